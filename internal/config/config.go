package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
//
// Only the Stripe secret key and price catalog for the selected mode are
// mandatory: every billing operation depends on them, so the server refuses
// to start without them. Firebase and OpenAI credentials are optional and
// merely disable the features they back.
type Config struct {
	Port      string `mapstructure:"PORT"`
	GinMode   string `mapstructure:"GIN_MODE"`
	ClientURL string `mapstructure:"CLIENT_URL"`

	// StripeMode selects which secret key, webhook signing secret and price
	// catalog apply: "test" (default) or "live".
	StripeMode              string `mapstructure:"STRIPE_MODE"`
	StripeSecretKey         string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeSecretKeyLive     string `mapstructure:"STRIPE_SECRET_KEY_LIVE"`
	StripeWebhookSecret     string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	StripeWebhookSecretLive string `mapstructure:"STRIPE_WEBHOOK_SECRET_LIVE"`
	// Price catalogs are JSON objects mapping "<planId>_<billingCycle>" keys
	// to Stripe price ids, one catalog per mode.
	StripePriceCatalog     string `mapstructure:"STRIPE_PRICE_CATALOG"`
	StripePriceCatalogLive string `mapstructure:"STRIPE_PRICE_CATALOG_LIVE"`

	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`

	OpenAIAPIKey      string `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL     string `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel       string `mapstructure:"OPENAI_MODEL"`
	OpenAIAssistantID string `mapstructure:"OPENAI_ASSISTANT_ID"`
}

// LoadConfig loads configuration from environment variables using Viper.
func LoadConfig() (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("GIN_MODE", "debug")
	viper.SetDefault("STRIPE_MODE", "test")
	viper.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	viper.SetDefault("OPENAI_MODEL", "gpt-4o-mini")

	viper.BindEnv("PORT")
	viper.BindEnv("GIN_MODE")
	viper.BindEnv("CLIENT_URL")
	viper.BindEnv("STRIPE_MODE")
	viper.BindEnv("STRIPE_SECRET_KEY")
	viper.BindEnv("STRIPE_SECRET_KEY_LIVE")
	viper.BindEnv("STRIPE_WEBHOOK_SECRET")
	viper.BindEnv("STRIPE_WEBHOOK_SECRET_LIVE")
	viper.BindEnv("STRIPE_PRICE_CATALOG")
	viper.BindEnv("STRIPE_PRICE_CATALOG_LIVE")
	viper.BindEnv("FIREBASE_PROJECT_ID")
	viper.BindEnv("GOOGLE_APPLICATION_CREDENTIALS")
	viper.BindEnv("FIREBASE_SERVICE_ACCOUNT_JSON_BASE64")
	viper.BindEnv("OPENAI_API_KEY")
	viper.BindEnv("OPENAI_BASE_URL")
	viper.BindEnv("OPENAI_MODEL")
	viper.BindEnv("OPENAI_ASSISTANT_ID")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.StripeMode))
	if mode != "test" && mode != "live" {
		return nil, errors.New("STRIPE_MODE must be either 'test' or 'live'")
	}
	cfg.StripeMode = mode

	if cfg.ActiveStripeKey() == "" {
		if mode == "live" {
			return nil, errors.New("STRIPE_SECRET_KEY_LIVE is required when STRIPE_MODE=live")
		}
		return nil, errors.New("STRIPE_SECRET_KEY is required")
	}
	if cfg.ActiveCatalogJSON() == "" {
		if mode == "live" {
			return nil, errors.New("STRIPE_PRICE_CATALOG_LIVE is required when STRIPE_MODE=live")
		}
		return nil, errors.New("STRIPE_PRICE_CATALOG is required")
	}

	return &cfg, nil
}

// ActiveStripeKey returns the Stripe secret key for the configured mode.
func (c *Config) ActiveStripeKey() string {
	if c.StripeMode == "live" {
		return c.StripeSecretKeyLive
	}
	return c.StripeSecretKey
}

// ActiveWebhookSecret returns the webhook signing secret for the configured mode.
func (c *Config) ActiveWebhookSecret() string {
	if c.StripeMode == "live" {
		return c.StripeWebhookSecretLive
	}
	return c.StripeWebhookSecret
}

// ActiveCatalogJSON returns the raw price catalog JSON for the configured mode.
func (c *Config) ActiveCatalogJSON() string {
	if c.StripeMode == "live" {
		return c.StripePriceCatalogLive
	}
	return c.StripePriceCatalog
}

// FirebaseEnabled reports whether enough configuration is present to
// initialize the Firebase Admin SDK (auth middleware and Firestore storage).
func (c *Config) FirebaseEnabled() bool {
	return c.FirebaseProjectID != "" &&
		(c.GoogleApplicationCredentials != "" || c.FirebaseServiceAccountJSONBase64 != "")
}

// OpenAIEnabled reports whether a model client can be constructed. Without it
// the classifier always answers with the deterministic fallback.
func (c *Config) OpenAIEnabled() bool {
	return c.OpenAIAPIKey != ""
}
