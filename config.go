package photopost

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the photopost service.
type Config struct {
	Addr string `yaml:"addr"` // listen address (default ":8080")
	Env  string `yaml:"env"`  // "development" or "production"

	Domain    string `yaml:"domain"`     // blog domain, used by the caption autolinker
	AssetsURL string `yaml:"assets_url"` // public base URL for uploaded variants

	BlogPath    string `yaml:"blog_path"` // local working copy of the site repository
	Remote      string `yaml:"remote"`    // default "origin"
	Branch      string `yaml:"branch"`    // default "master"
	CommitName  string `yaml:"commit_name"`
	CommitEmail string `yaml:"commit_email"`

	Webhook WebhookConfig `yaml:"webhook"`
	S3      S3Config      `yaml:"s3"`
	Mail    MailConfig    `yaml:"mail"`

	JournalPath     string `yaml:"journal_path"`     // default "data/journal.db"
	AttachmentField string `yaml:"attachment_field"` // multipart field name (default "attachment1")
	DryRun          bool   `yaml:"dry_run"`
}

// WebhookConfig authenticates the inbound email webhook.
type WebhookConfig struct {
	User              string `yaml:"user"`
	Pass              string `yaml:"pass"`
	AuthorizedSenders string `yaml:"authorized_senders"` // regexp matched against the bare sender address
}

// S3Config locates the object store for image variants.
type S3Config struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"` // optional, for S3-compatible providers
}

// MailConfig configures the digest notifier.
type MailConfig struct {
	APIURL         string `yaml:"api_url"` // Mailgun-style messages endpoint
	APIKey         string `yaml:"api_key"`
	From           string `yaml:"from"`
	ReplyTo        string `yaml:"reply_to"`
	RecipientsPath string `yaml:"recipients_path"` // JSON recipients file
}

// LoadConfig reads the YAML configuration at path, overlays environment
// variables for secrets, and fills defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.setDefaults()
	return cfg, nil
}

// applyEnv lets secrets come from the environment instead of the config file.
func (c *Config) applyEnv() {
	c.Webhook.User = EnvOr("PHOTOPOST_WEBHOOK_USER", c.Webhook.User)
	c.Webhook.Pass = EnvOr("PHOTOPOST_WEBHOOK_PASS", c.Webhook.Pass)
	c.S3.AccessKeyID = EnvOr("PHOTOPOST_S3_ACCESS_KEY_ID", c.S3.AccessKeyID)
	c.S3.SecretAccessKey = EnvOr("PHOTOPOST_S3_SECRET_ACCESS_KEY", c.S3.SecretAccessKey)
	c.Mail.APIKey = EnvOr("PHOTOPOST_MAIL_API_KEY", c.Mail.APIKey)
	if os.Getenv("PHOTOPOST_DRY_RUN") != "" {
		c.DryRun = true
	}
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Env == "" {
		c.Env = "development"
	}
	if c.BlogPath == "" {
		c.BlogPath = "blog"
	}
	if c.Remote == "" {
		c.Remote = "origin"
	}
	if c.Branch == "" {
		c.Branch = "master"
	}
	if c.CommitName == "" {
		c.CommitName = "photopost"
	}
	if c.CommitEmail == "" {
		c.CommitEmail = "photopost@localhost"
	}
	if c.JournalPath == "" {
		c.JournalPath = "data/journal.db"
	}
	if c.AttachmentField == "" {
		c.AttachmentField = "attachment1"
	}
}

// EnvOr returns the value of the environment variable key, or fallback if
// empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
