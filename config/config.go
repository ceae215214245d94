package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/phillip/event-ticketing-go/grouppay"
	"github.com/phillip/event-ticketing-go/ledger"
	"github.com/phillip/event-ticketing-go/payment"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	StoreMongo = "mongo"
	StoreBolt  = "bolt"
)

type Config struct {
	Port        string
	Store       string
	MongoURI    string
	DBName      string
	BoltPath    string
	AppURL      string
	Currency    string
	CORSOrigins []string

	JWTSecret           string
	CredentialSecret    string
	StripeSecretKey     string
	StripeWebhookSecret string

	LogLevel string
	LogJSON  bool

	ZeptoAPIURL string
	ZeptoAPIKey string
	EmailFrom   string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	// Runtime dependencies, set up by the serve command.
	MongoClient *mongo.Client
	Ledger      ledger.Store
	GroupPay    *grouppay.Service
	Webhooks    payment.SettlementParser
}

// LoadConfig reads .env when present, then the process environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Store:       getEnv("STORE", StoreMongo),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "ticketpool"),
		BoltPath:    getEnv("BOLT_PATH", "ticketpool.db"),
		AppURL:      strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),
		Currency:    strings.ToLower(getEnv("CURRENCY", "usd")),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),

		JWTSecret:           os.Getenv("JWT_SECRET"),
		CredentialSecret:    os.Getenv("CREDENTIAL_SECRET"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogJSON:  getBool("LOG_JSON", false),

		ZeptoAPIURL: os.Getenv("ZEPTO_API_URL"),
		ZeptoAPIKey: os.Getenv("ZEPTO_API_KEY"),
		EmailFrom:   os.Getenv("EMAIL_FROM"),

		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
	}
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Store != StoreMongo && c.Store != StoreBolt {
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StoreMongo, StoreBolt, c.Store))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.CredentialSecret == "" {
		errs = append(errs, errors.New("CREDENTIAL_SECRET is required"))
	}
	if c.StripeSecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY is required"))
	}
	if c.StripeWebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required"))
	}
	return errors.Join(errs...)
}

// EmailEnabled reports whether ticket emails can be sent.
func (c *Config) EmailEnabled() bool {
	return c.ZeptoAPIURL != "" && c.ZeptoAPIKey != "" && c.EmailFrom != ""
}

// QRUploadsEnabled reports whether QR images are published to Cloudinary.
func (c *Config) QRUploadsEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
