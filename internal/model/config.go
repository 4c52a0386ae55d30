package model

import "time"

// Config is the complete coursepilot configuration.
// Field tags serve both viper (mapstructure) and `config show` (yaml).
type Config struct {
	Source      SourceConfig      `yaml:"source" mapstructure:"source"`
	Scrape      ScrapeConfig      `yaml:"scrape" mapstructure:"scrape"`
	Filter      TermFilterConfig  `yaml:"filter" mapstructure:"filter"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Chat        ChatConfig        `yaml:"chat" mapstructure:"chat"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
}

// SourceConfig describes the LMS host and how to talk to its structured API
type SourceConfig struct {
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	LPVersion         string        `yaml:"lp_version" mapstructure:"lp_version"` // Learning platform API version
	LEVersion         string        `yaml:"le_version" mapstructure:"le_version"` // Learning environment API version
	SessionCookie     string        `yaml:"session_cookie,omitempty" mapstructure:"session_cookie"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// ScrapeConfig controls the DOM fallback strategy
type ScrapeConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	PageSource    string        `yaml:"page_source" mapstructure:"page_source"` // "http" or "rod"
	DebuggerURL   string        `yaml:"debugger_url,omitempty" mapstructure:"debugger_url"`
	MaxAttempts   int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// StoreConfig locates the device-scoped state database
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ChatConfig controls how the session manager reaches the chat backend
type ChatConfig struct {
	Mode          string        `yaml:"mode" mapstructure:"mode"` // "remote" or "local"
	BackendURL    string        `yaml:"backend_url" mapstructure:"backend_url"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"` // Transport timeout only
	HistoryWindow int           `yaml:"history_window" mapstructure:"history_window"`
}

// LLMConfig configures the model behind the chat backend
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, mistral, anthropic, ollama, ""
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ServerConfig configures `coursepilot serve`
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// ConcurrencyConfig bounds the per-course fan-out
type ConcurrencyConfig struct {
	CourseWorkers int `yaml:"course_workers" mapstructure:"course_workers"`
}

// LoggingConfig selects the log level and encoding
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL:           "https://uottawa.brightspace.com",
			LPVersion:         "1.43",
			LEVersion:         "1.74",
			UserAgent:         "coursepilot/0.3 (+https://github.com/ppiankov/coursepilot)",
			Timeout:           20 * time.Second,
			MaxBodyBytes:      4_000_000,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Scrape: ScrapeConfig{
			Enabled:     true,
			PageSource:  "http",
			MaxAttempts: 10,
			RetryDelay:  time.Second,
		},
		Filter: DefaultTermFilter(),
		Store: StoreConfig{
			Path: "~/.coursepilot/state.db",
		},
		Chat: ChatConfig{
			Mode:          "remote",
			BackendURL:    "http://localhost:8001",
			Timeout:       60 * time.Second,
			HistoryWindow: 6,
		},
		LLM: LLMConfig{
			Provider:  "",
			Timeout:   30,
			MaxTokens: 1000,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8001",
		},
		Concurrency: ConcurrencyConfig{
			CourseWorkers: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
