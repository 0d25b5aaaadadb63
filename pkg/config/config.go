package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"treat-shop"`
	ServerPort  int    `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL"`

	AdminPassword      string   `envconfig:"ADMIN_PASSWORD"`
	AdminSessionSecret []byte   `envconfig:"ADMIN_SESSION_SECRET"`
	CookieSecure       bool     `envconfig:"COOKIE_SECURE" default:"true"`
	AdminOrigins       []string `envconfig:"ADMIN_ALLOWED_ORIGINS"`

	LoginRatePerMinute float64 `envconfig:"LOGIN_RATE_PER_MINUTE" default:"10"`
	LoginBurst         int     `envconfig:"LOGIN_BURST" default:"5"`

	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`

	ShippingProductID        string   `envconfig:"SHIPPING_PRODUCT_ID"`
	LocalDeliveryProductID   string   `envconfig:"LOCAL_DELIVERY_PRODUCT_ID"`
	AllowedShippingCountries []string `envconfig:"ALLOWED_SHIPPING_COUNTRIES" default:"CA"`

	TwilioAccountSID      string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken       string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber      string `envconfig:"TWILIO_PHONE_NUMBER"`
	TwilioRecipientNumber string `envconfig:"TWILIO_RECIPIENT_PHONE_NUMBER"`

	CatalogCacheTTL time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"180s"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
}

type ShopperConfig struct {
	StoreURL string `envconfig:"STORE_URL" default:"http://localhost:8080"`
	CartDSN  string `envconfig:"CART_DSN" default:"cart.db"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"warn"`
}

func loadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		log.Printf("notice: .env file not loaded: %v. Using system environment variables", err)
	}
}

func Load(envFiles ...string) (*Config, error) {
	loadDotEnv(envFiles...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func LoadShopper(envFiles ...string) (*ShopperConfig, error) {
	loadDotEnv(envFiles...)

	var cfg ShopperConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}
