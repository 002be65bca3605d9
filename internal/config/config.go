package config

import "time"

// Config holds SDK configuration values.
type Config struct {
	// SiteID identifies the host application's site on the backend.
	SiteID string `mapstructure:"site_id" yaml:"site_id"`

	// SocketURL is the backend session socket endpoint (ws:// or wss://).
	SocketURL string `mapstructure:"socket_url" yaml:"socket_url"`

	// VisitorSecret signs visitor session tokens for the socket hello.
	VisitorSecret   string `mapstructure:"visitor_secret" yaml:"visitor_secret"`
	VisitorIssuer   string `mapstructure:"visitor_issuer" yaml:"visitor_issuer"`
	VisitorAudience string `mapstructure:"visitor_audience" yaml:"visitor_audience"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// JournalPath is the sqlite file recording engagement outcomes.
	// Empty disables the journal.
	JournalPath string `mapstructure:"journal_path" yaml:"journal_path"`

	DialTimeout    time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// ShowSurvey requests post-engagement survey presentation when the
	// engagement's configured post-end action allows one.
	ShowSurvey bool `mapstructure:"show_survey" yaml:"show_survey"`

	// Media configures the dev-mode media engine used when the backend's
	// join payload carries no credentials.
	Media MediaConfig `mapstructure:"media" yaml:"media"`
}

// MediaConfig holds dev-mode LiveKit settings.
type MediaConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	APISecret string `mapstructure:"api_secret" yaml:"api_secret"`
	WSURL     string `mapstructure:"ws_url" yaml:"ws_url"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		SocketURL:      "wss://localhost:8443/engage",
		VisitorIssuer:  "engage-sdk",
		LogLevel:       "info",
		DialTimeout:    10 * time.Second,
		RequestTimeout: 15 * time.Second,
		ShowSurvey:     true,
	}
}
