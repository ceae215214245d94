package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/phillip/event-ticketing-go/ledger"
	"github.com/phillip/event-ticketing-go/models"
)

var tierCmd = &cobra.Command{
	Use:   "tier",
	Short: "Manage ticket tiers",
}

var tierPutCmd = &cobra.Command{
	Use:   "put",
	Short: "Create or replace a ticket tier",
	Long: `Create or replace a ticket tier. The event is created first when it
does not exist yet, which is handy for seeding a development ledger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)

		eventID, _ := cmd.Flags().GetString("event-id")
		eventTitle, _ := cmd.Flags().GetString("event-title")
		organizer, _ := cmd.Flags().GetString("organizer")
		tierID, _ := cmd.Flags().GetString("id")
		name, _ := cmd.Flags().GetString("name")
		priceStr, _ := cmd.Flags().GetString("price")
		quantity, _ := cmd.Flags().GetInt("quantity")
		inactive, _ := cmd.Flags().GetBool("inactive")

		price, err := decimal.NewFromString(priceStr)
		if err != nil || !price.IsPositive() {
			return fmt.Errorf("invalid price %q", priceStr)
		}
		if quantity < 1 {
			return fmt.Errorf("quantity must be at least 1")
		}
		if tierID == "" {
			tierID = uuid.NewString()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := openLedger(ctx, cfg); err != nil {
			return err
		}
		defer cfg.Ledger.Close()

		now := time.Now().UTC()
		if _, err := cfg.Ledger.GetEvent(ctx, eventID); errors.Is(err, ledger.ErrNotFound) {
			if eventTitle == "" {
				return fmt.Errorf("event %s does not exist; pass --event-title to create it", eventID)
			}
			if err := cfg.Ledger.PutEvent(ctx, &models.Event{
				ID:          eventID,
				OrganizerID: organizer,
				Title:       eventTitle,
				StartDate:   now.Add(30 * 24 * time.Hour),
				CreatedAt:   now,
				UpdatedAt:   now,
			}); err != nil {
				return fmt.Errorf("failed to create event: %v", err)
			}
			fmt.Printf("✓ Event %s created\n", eventID)
		} else if err != nil {
			return fmt.Errorf("failed to load event: %v", err)
		}

		tier := &models.TicketTier{
			ID:        tierID,
			EventID:   eventID,
			Name:      name,
			Price:     price.Round(2),
			Quantity:  quantity,
			IsActive:  !inactive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if existing, err := cfg.Ledger.GetTier(ctx, tierID); err == nil {
			tier.SoldQuantity = existing.SoldQuantity
			tier.CreatedAt = existing.CreatedAt
		}
		if err := cfg.Ledger.PutTier(ctx, tier); err != nil {
			return fmt.Errorf("failed to save tier: %v", err)
		}

		fmt.Printf("✓ Tier %s saved (%s, %s x %d)\n", tier.ID, tier.Name, tier.Price.StringFixed(2), tier.Quantity)
		return nil
	},
}

func init() {
	tierCmd.AddCommand(tierPutCmd)

	tierPutCmd.Flags().String("event-id", "", "Event ID")
	tierPutCmd.Flags().String("event-title", "", "Title used when the event has to be created")
	tierPutCmd.Flags().String("organizer", "", "Organizer user ID for a created event")
	tierPutCmd.Flags().String("id", "", "Tier ID (generated when empty)")
	tierPutCmd.Flags().String("name", "General Admission", "Tier name")
	tierPutCmd.Flags().String("price", "", "Unit price, e.g. 25.00")
	tierPutCmd.Flags().Int("quantity", 100, "Tickets available")
	tierPutCmd.Flags().Bool("inactive", false, "Create the tier without putting it on sale")
	tierPutCmd.MarkFlagRequired("event-id")
	tierPutCmd.MarkFlagRequired("price")
}
