package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/phillip/event-ticketing-go/models"
	"github.com/phillip/event-ticketing-go/utils"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for local testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)

		user, _ := cmd.Flags().GetString("user")
		email, _ := cmd.Flags().GetString("email")
		organizer, _ := cmd.Flags().GetBool("organizer")
		admin, _ := cmd.Flags().GetBool("admin")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		token, err := utils.GenerateAccessToken(cfg.JWTSecret, models.Principal{
			ID:          user,
			Email:       email,
			IsOrganizer: organizer,
			IsAdmin:     admin,
		}, ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("user", "", "User ID")
	tokenCmd.Flags().String("email", "", "User email")
	tokenCmd.Flags().Bool("organizer", false, "Grant the organizer role")
	tokenCmd.Flags().Bool("admin", false, "Grant the admin role")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	tokenCmd.MarkFlagRequired("user")
}
