package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/coursepilot/internal/model"
)

// Keys with omitempty yaml tags are missing from the marshalled defaults
// but still need a default for AutomaticEnv to see them.
var secretKeys = []string{
	"source.session_cookie",
	"source.http_proxy",
	"source.https_proxy",
	"scrape.debugger_url",
	"llm.api_key",
	"llm.base_url",
}

// registerDefaults registers every key of model.DefaultConfig with v
func registerDefaults(v *viper.Viper) {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	for key, value := range flatten("", tree) {
		v.SetDefault(key, value)
	}
	for _, key := range secretKeys {
		v.SetDefault(key, "")
	}
}

func flatten(prefix string, tree map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			for sk, sv := range flatten(key, sub) {
				out[sk] = sv
			}
			continue
		}
		out[key] = v
	}
	return out
}

// loadConfig builds the effective configuration: flags > env > config file > defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	applyProviderEnv(cfg, os.Getenv)
	if viper.GetBool("verbose") {
		cfg.Logging.Level = "debug"
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyProviderEnv fills the LLM credentials from the provider's conventional variables
func applyProviderEnv(cfg *model.Config, getenv func(string) string) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = getenv("OPENAI_API_KEY")
		}
	case "mistral":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = getenv("MISTRAL_API_KEY")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = getenv("ANTHROPIC_API_KEY")
		}
	case "ollama":
		// Ollama doesn't need an API key
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = getenv("OLLAMA_BASE_URL")
		}
	}
}

func validateConfig(cfg *model.Config) error {
	switch cfg.Chat.Mode {
	case "remote", "local":
	default:
		return fmt.Errorf("invalid chat.mode %q (supported: remote, local)", cfg.Chat.Mode)
	}
	switch cfg.Scrape.PageSource {
	case "http", "rod":
	default:
		return fmt.Errorf("invalid scrape.page_source %q (supported: http, rod)", cfg.Scrape.PageSource)
	}
	if cfg.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url must be set")
	}
	return nil
}

// redacted returns a copy safe to print
func redacted(cfg *model.Config) *model.Config {
	out := *cfg
	if out.Source.SessionCookie != "" {
		out.Source.SessionCookie = "***"
	}
	if out.LLM.APIKey != "" {
		out.LLM.APIKey = "***"
	}
	return &out
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CoursePilot configuration",
	Long: `Manage CoursePilot configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (COURSEPILOT_*)
3. Config file (~/.coursepilot/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after merging defaults, config file, env vars and flags. Secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		configFile := viper.ConfigFileUsed()
		if configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println("  Current Configuration")
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println()

		yamlData, err := yaml.Marshal(redacted(cfg))
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		fmt.Println(string(yamlData))

		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println()
		fmt.Println("Configuration hierarchy (highest to lowest priority):")
		fmt.Println("  1. CLI flags")
		fmt.Println("  2. Environment variables (COURSEPILOT_*, OPENAI_API_KEY, MISTRAL_API_KEY, ANTHROPIC_API_KEY, OLLAMA_BASE_URL)")
		fmt.Println("  3. Config file (~/.coursepilot/config.yaml)")
		fmt.Println("  4. Defaults")
		fmt.Println()

		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.coursepilot/config.yaml with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configDir := filepath.Join(home, ".coursepilot")
		configPath := filepath.Join(configDir, "config.yaml")

		// Check if config already exists
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'coursepilot config show' to view it, or delete it first to recreate", configPath)
		}

		if err := os.MkdirAll(configDir, 0o700); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		// The file may hold a session cookie later
		f, err := os.OpenFile(configPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
		if err != nil {
			return fmt.Errorf("error creating config file: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close config file: %w", closeErr)
			}
		}()

		printf := func(format string, a ...interface{}) {
			if err != nil {
				return
			}
			_, err = fmt.Fprintf(f, format, a...)
		}

		printf("# CoursePilot Configuration File\n")
		printf("#\n")
		printf("# Configuration hierarchy (highest to lowest priority):\n")
		printf("#   1. CLI flags\n")
		printf("#   2. Environment variables (COURSEPILOT_*, e.g. COURSEPILOT_SOURCE_SESSION_COOKIE)\n")
		printf("#   3. This config file\n")
		printf("#   4. Built-in defaults\n\n")

		yamlData, mErr := yaml.Marshal(model.DefaultConfig())
		if mErr != nil {
			return fmt.Errorf("error marshaling config: %w", mErr)
		}
		printf("%s", yamlData)

		printf("\n# Secrets (recommended to use environment variables instead):\n")
		printf("#   export COURSEPILOT_SOURCE_SESSION_COOKIE='d2lSessionVal=...; d2lSecureSessionVal=...'\n")
		printf("#   export MISTRAL_API_KEY=...\n")
		printf("#   export OPENAI_API_KEY=sk-...\n")
		printf("#   export ANTHROPIC_API_KEY=sk-ant-...\n")
		printf("#   export OLLAMA_BASE_URL=http://localhost:11434\n")

		if err != nil {
			return err
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the configuration:\n")
		fmt.Printf("  coursepilot config show\n")
		fmt.Printf("\nTo customize, edit the file with your preferred editor:\n")
		fmt.Printf("  $EDITOR %s\n", configPath)
		fmt.Printf("\n")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
