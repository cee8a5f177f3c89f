package postmark

// Config holds Postmark credentials and alert routing.
type Config struct {
	ServerToken  string   `env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string   `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail  string   `env:"ALERT_SENDER_EMAIL"`
	Recipients   []string `env:"ALERT_RECIPIENTS" envSeparator:","`
	Tag          string   `env:"ALERT_TAG" envDefault:"gateway-alert"`
}

// Enabled reports whether enough settings are present to send alerts.
func (c Config) Enabled() bool {
	return c.ServerToken != "" && c.SenderEmail != "" && len(c.Recipients) > 0
}
