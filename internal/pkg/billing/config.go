package billing

import (
	"strings"
	"time"

	"github.com/mywallet/mywallet/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.mercadopago.com"

// Config holds the Mercado Pago integration settings.
type Config struct {
	AccessToken        string        `env:"MP_ACCESS_TOKEN"`
	APIBaseURL         string        `env:"MP_API_BASE_URL" envDefault:"https://api.mercadopago.com"`
	WebhookSecret      string        `env:"MP_WEBHOOK_SECRET"`
	Timeout            time.Duration `env:"MP_TIMEOUT" envDefault:"15s"`
	StartDelay         time.Duration `env:"MP_SUBSCRIPTION_START_DELAY" envDefault:"1h"`
	SignatureTolerance time.Duration `env:"MP_SIGNATURE_TOLERANCE" envDefault:"5m"`
	CurrencyID         string        `env:"MP_CURRENCY_ID" envDefault:"BRL"`
	PublicDomain       string        `env:"PUBLIC_DOMAIN"`
	FrontendURL        string        `env:"APP_FRONTEND_URL"`
	ReferenceSecret    string        `env:"REFERENCE_SECRET"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.AccessToken = strings.TrimSpace(c.AccessToken)
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.StartDelay <= 0 {
		c.StartDelay = time.Hour
	}
	if c.CurrencyID == "" {
		c.CurrencyID = "BRL"
	}
	c.PublicDomain = strings.TrimRight(strings.TrimSpace(c.PublicDomain), "/")
	c.FrontendURL = strings.TrimRight(strings.TrimSpace(c.FrontendURL), "/")
	if c.FrontendURL == "" {
		c.FrontendURL = c.PublicDomain
	}
}

// NotificationURL is where the gateway posts webhooks.
func (c Config) NotificationURL() string {
	if c.PublicDomain == "" {
		return ""
	}
	return c.PublicDomain + "/webhooks/payment-gateway"
}

// ReturnURL builds a frontend URL the gateway redirects the payer to.
func (c Config) ReturnURL(result string) string {
	if c.FrontendURL == "" {
		return ""
	}
	return c.FrontendURL + "/subscription/" + result
}
