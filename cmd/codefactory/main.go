package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/zen-systems/codefactory/pkg/adapter"
	"github.com/zen-systems/codefactory/pkg/config"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "codefactory",
		Short: "Turn a build request into code, docs and tests with a staged LLM pipeline",
		Long: `codefactory drives a fixed sequence of LLM-backed stages (requirements,
coding, review, documentation, QA, deployment, UI) over a shared transcript,
extracts the files they produce into a workspace and runs the generated tests.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default ~/.codefactory/config.yaml)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(testCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(stagesCmd())
	rootCmd.AddCommand(validateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// bindFlags returns a viper instance where each flag of cmd can also be set
// through CODEFACTORY_<FLAG> with dashes replaced by underscores.
func bindFlags(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("CODEFACTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	return v, nil
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return config.Load()
}

// adapterPreference is the order used to pick an adapter when neither the
// flags nor the config name one that is available.
var adapterPreference = []string{"anthropic", "openai", "google", "deepseek", "groq", "openrouter"}

func createAdapters(cfg *config.Config) (map[string]adapter.Adapter, error) {
	adapters := make(map[string]adapter.Adapter)

	if cfg.AnthropicAPIKey != "" {
		a, err := adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic adapter: %w", err)
		}
		adapters["anthropic"] = a
	}

	if cfg.OpenAIAPIKey != "" {
		a, err := adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai adapter: %w", err)
		}
		adapters["openai"] = a
	}

	if cfg.GoogleAPIKey != "" {
		a, err := adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create google adapter: %w", err)
		}
		adapters["google"] = a
	}

	if cfg.DeepSeekAPIKey != "" {
		a, err := adapter.NewDeepSeekAdapter(cfg.DeepSeekAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepseek adapter: %w", err)
		}
		adapters["deepseek"] = a
	}

	if cfg.GroqAPIKey != "" {
		a, err := adapter.NewGroqAdapter(cfg.GroqAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create groq adapter: %w", err)
		}
		adapters["groq"] = a
	}

	if cfg.OpenRouterAPIKey != "" {
		a, err := adapter.NewOpenRouterAdapter(cfg.OpenRouterAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create openrouter adapter: %w", err)
		}
		adapters["openrouter"] = a
	}

	adapters["mock"] = adapter.NewMockAdapter()

	return adapters, nil
}

// defaultAdapter resolves which adapter stages use when the manifest leaves
// it unset.
func defaultAdapter(flag string, cfg *config.Config, adapters map[string]adapter.Adapter) (string, error) {
	if flag != "" {
		if _, ok := adapters[flag]; !ok {
			return "", &adapter.ConfigError{Adapter: flag, Reason: "adapter not available (missing API key?)"}
		}
		return flag, nil
	}
	if name := cfg.Policy.Default.Adapter; name != "" {
		if _, ok := adapters[name]; ok {
			return name, nil
		}
	}
	for _, name := range adapterPreference {
		if _, ok := adapters[name]; ok {
			log.Printf("using %s adapter", name)
			return name, nil
		}
	}
	return "", &adapter.ConfigError{Reason: "no API keys configured; set ANTHROPIC_API_KEY, OPENAI_API_KEY, GOOGLE_API_KEY, DEEPSEEK_API_KEY, GROQ_API_KEY or OPENROUTER_API_KEY, or use --adapter mock"}
}
