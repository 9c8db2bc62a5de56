package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadWithEnv(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	for k, v := range env {
		t.Setenv(k, v)
	}
	return LoadConfig()
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadWithEnv(t, map[string]string{
		"STRIPE_SECRET_KEY":    "sk_test_123",
		"STRIPE_PRICE_CATALOG": `{"pro_monthly":"price_1"}`,
	})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "debug", cfg.GinMode)
	assert.Equal(t, "test", cfg.StripeMode)
	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAIBaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, "sk_test_123", cfg.ActiveStripeKey())
	assert.Equal(t, `{"pro_monthly":"price_1"}`, cfg.ActiveCatalogJSON())
	assert.False(t, cfg.FirebaseEnabled())
	assert.False(t, cfg.OpenAIEnabled())
}

func TestLoadConfig_MissingStripeKey(t *testing.T) {
	_, err := loadWithEnv(t, map[string]string{
		"STRIPE_PRICE_CATALOG": `{"pro_monthly":"price_1"}`,
	})
	assert.Error(t, err)
}

func TestLoadConfig_MissingCatalog(t *testing.T) {
	_, err := loadWithEnv(t, map[string]string{
		"STRIPE_SECRET_KEY": "sk_test_123",
	})
	assert.Error(t, err)
}

func TestLoadConfig_InvalidMode(t *testing.T) {
	_, err := loadWithEnv(t, map[string]string{
		"STRIPE_MODE":          "sandbox",
		"STRIPE_SECRET_KEY":    "sk_test_123",
		"STRIPE_PRICE_CATALOG": `{"pro_monthly":"price_1"}`,
	})
	assert.Error(t, err)
}

func TestLoadConfig_LiveModeSelectsLiveValues(t *testing.T) {
	cfg, err := loadWithEnv(t, map[string]string{
		"STRIPE_MODE":                "live",
		"STRIPE_SECRET_KEY":          "sk_test_123",
		"STRIPE_SECRET_KEY_LIVE":     "sk_live_456",
		"STRIPE_WEBHOOK_SECRET":      "whsec_test",
		"STRIPE_WEBHOOK_SECRET_LIVE": "whsec_live",
		"STRIPE_PRICE_CATALOG":       `{"pro_monthly":"price_test"}`,
		"STRIPE_PRICE_CATALOG_LIVE":  `{"pro_monthly":"price_live"}`,
	})
	require.NoError(t, err)

	assert.Equal(t, "sk_live_456", cfg.ActiveStripeKey())
	assert.Equal(t, "whsec_live", cfg.ActiveWebhookSecret())
	assert.Equal(t, `{"pro_monthly":"price_live"}`, cfg.ActiveCatalogJSON())
}

func TestLoadConfig_LiveModeRequiresLiveKey(t *testing.T) {
	_, err := loadWithEnv(t, map[string]string{
		"STRIPE_MODE":          "live",
		"STRIPE_SECRET_KEY":    "sk_test_123",
		"STRIPE_PRICE_CATALOG": `{"pro_monthly":"price_1"}`,
	})
	assert.Error(t, err)
}

func TestConfig_FeatureFlags(t *testing.T) {
	cfg, err := loadWithEnv(t, map[string]string{
		"STRIPE_SECRET_KEY":              "sk_test_123",
		"STRIPE_PRICE_CATALOG":           `{"pro_monthly":"price_1"}`,
		"FIREBASE_PROJECT_ID":            "demo-project",
		"GOOGLE_APPLICATION_CREDENTIALS": "/tmp/creds.json",
		"OPENAI_API_KEY":                 "sk-openai",
	})
	require.NoError(t, err)

	assert.True(t, cfg.FirebaseEnabled())
	assert.True(t, cfg.OpenAIEnabled())
}
