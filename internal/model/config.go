package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// IMAPConfig holds the settings for the mailbox that is polled for
// unread messages.
type IMAPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`

	// TLS selects implicit TLS; otherwise STARTTLS is negotiated.
	TLS bool `mapstructure:"tls" yaml:"tls"`

	// Insecure disables transport security entirely. Only meant for
	// local test servers.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// Mailbox is the folder searched for unseen messages.
	Mailbox string `mapstructure:"mailbox" yaml:"mailbox"`
}

// SMTPConfig holds the settings for the server replies are submitted to.
type SMTPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
	TLS  bool   `mapstructure:"tls" yaml:"tls"`
}

// AgentConfig holds the LLM provider and the persona of the agent that
// summarizes incoming mail.
type AgentConfig struct {
	// Provider is one of "openai", "anthropic" or "ollama".
	Provider  string `mapstructure:"provider" yaml:"provider"`
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`

	// BaseURL overrides the provider endpoint (proxies, self-hosted).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	Role      string `mapstructure:"role" yaml:"role"`
	Goal      string `mapstructure:"goal" yaml:"goal"`
	Backstory string `mapstructure:"backstory" yaml:"backstory"`
}

// ReplyConfig controls the automatic reply.
type ReplyConfig struct {
	Body          string `mapstructure:"body" yaml:"body"`
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix"`
}

// StoreConfig locates the reply history database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	IMAP  IMAPConfig  `mapstructure:"imap" yaml:"imap"`
	SMTP  SMTPConfig  `mapstructure:"smtp" yaml:"smtp"`
	Agent AgentConfig `mapstructure:"agent" yaml:"agent"`
	Reply ReplyConfig `mapstructure:"reply" yaml:"reply"`
	Store StoreConfig `mapstructure:"store" yaml:"store"`
	Log   LogConfig   `mapstructure:"log" yaml:"log"`
}

// Defaults for the Email Reader persona.
const (
	DefaultRole      = "Email Reader"
	DefaultGoal      = "Understand and summarize incoming emails"
	DefaultBackstory = "You are skilled at extracting relevant information from messages."
	DefaultReplyBody = "I'll get back to you shortly"
)

// envPrefix namespaces environment overrides, e.g. AUTOREPLY_SMTP_PORT.
const envPrefix = "AUTOREPLY"

// configDir returns ~/.config/autoreply, or "." when the home directory
// cannot be determined.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "autoreply")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/autoreply/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultStorePath returns the default reply history database path.
func DefaultStorePath() string {
	return filepath.Join(configDir(), "history.db")
}

// setDefaults registers every key so that missing YAML entries and
// environment overrides both resolve.
func setDefaults(v *viper.Viper) {
	v.SetDefault("imap.host", "imap.gmail.com")
	v.SetDefault("imap.port", "993")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.insecure", false)
	v.SetDefault("imap.mailbox", "INBOX")

	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", "587")
	v.SetDefault("smtp.tls", false)

	v.SetDefault("agent.provider", "openai")
	v.SetDefault("agent.model", "")
	v.SetDefault("agent.max_tokens", 1024)
	v.SetDefault("agent.base_url", "")
	v.SetDefault("agent.role", DefaultRole)
	v.SetDefault("agent.goal", DefaultGoal)
	v.SetDefault("agent.backstory", DefaultBackstory)

	v.SetDefault("reply.body", DefaultReplyBody)
	v.SetDefault("reply.subject_prefix", "Re: ")

	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("log.level", "info")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error: defaults apply, and AUTOREPLY_*
// environment variables override individual keys either way.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the fields the run cannot proceed without.
func (c *AppConfig) Validate() error {
	switch {
	case c.IMAP.Host == "" || c.IMAP.Port == "":
		return errors.New("imap host and port are required")
	case c.SMTP.Host == "" || c.SMTP.Port == "":
		return errors.New("smtp host and port are required")
	case c.Reply.Body == "":
		return errors.New("reply body must not be empty")
	}

	switch c.Agent.Provider {
	case "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("unknown agent provider %q", c.Agent.Provider)
	}

	return nil
}
