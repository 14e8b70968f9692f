package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	awseks "github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/eksight/internal/analyzer"
	"github.com/bimmerbailey/eksight/internal/config"
	"github.com/bimmerbailey/eksight/internal/eks"
	"github.com/bimmerbailey/eksight/internal/llm"
	"github.com/bimmerbailey/eksight/internal/logsource"
	"github.com/bimmerbailey/eksight/internal/normalize"
	"github.com/bimmerbailey/eksight/internal/output"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "eksight",
	Short: "Ask questions about EKS control plane logs",
	Long: `Eksight pulls EKS control plane logs from CloudWatch, condenses them
into a bounded context, and answers natural language questions about them
using an LLM.

Examples:
  eksight clusters
  eksight ask "why are pods failing to schedule?" --cluster prod
  eksight ask "any authentication failures today?" --cluster prod --categories audit,authenticator
  eksight analyze --cluster prod`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is called by main.main(). It runs the root command. Typed
// failures are rendered by the commands themselves with remediation
// guidance; everything else is printed here.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		if _, ok := config.AsFailure(err); !ok {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.eksight.yaml)")
	rootCmd.PersistentFlags().StringP("region", "r", "", "AWS region (default us-east-2)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format (text, json, table)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	_ = viper.BindPFlag("region", rootCmd.PersistentFlags().Lookup("region"))
	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error finding home directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".eksight")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("EKSIGHT")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("region", "us-east-2")
	viper.SetDefault("format", "text")
	viper.SetDefault("verbose", false)
	viper.SetDefault("logs.hours_back", 24)
	viper.SetDefault("logs.max_records", 150)
	viper.SetDefault("logs.max_chars", 24000)
	viper.SetDefault("logs.max_events_per_category", 2000)
	viper.SetDefault("llm.provider", "bedrock")
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.max_answer_tokens", 2000)
	viper.SetDefault("llm.question_timeout", time.Minute)
	viper.SetDefault("llm.bedrock.model_id", "anthropic.claude-3-sonnet-20240229-v1:0")
	viper.SetDefault("llm.ollama.host", "http://localhost:11434")
	viper.SetDefault("llm.ollama.model", "llama3.2")
	viper.SetDefault("redaction.enabled", false)
	viper.SetDefault("redaction.patterns", []string{})

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// loadConfig materializes the viper state into a typed config.
func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the application logger. Errors only by default, info
// when verbose. Logs go to stderr so stdout stays clean for results.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newWriter builds the output writer for a command's stdout.
func newWriter(cmd *cobra.Command) *output.Writer {
	return output.New(cmd.OutOrStdout(), output.ParseFormat(viper.GetString("format")))
}

// newEKSClient builds the cluster discovery client.
func newEKSClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*eks.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws configuration: %w", err)
	}
	return eks.New(awseks.NewFromConfig(awsCfg), logger), nil
}

// newSession wires a full analysis session against real AWS clients.
func newSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*analyzer.Session, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws configuration: %w", err)
	}

	provider, err := llm.NewProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := provider.Heartbeat(ctx); err != nil {
		if cfg.LLM.Provider == "ollama" {
			return nil, fmt.Errorf("cannot connect to Ollama at %s: %w\n\nStart Ollama with: ollama serve",
				cfg.LLM.Ollama.Host, err)
		}
		return nil, fmt.Errorf("llm provider %s unavailable: %w", cfg.LLM.Provider, err)
	}

	return analyzer.New(
		eks.New(awseks.NewFromConfig(awsCfg), logger),
		logsource.New(cloudwatchlogs.NewFromConfig(awsCfg), logsource.Options{
			MaxEventsPerCategory: cfg.Logs.MaxEventsPerCategory,
		}, logger),
		normalize.New(logger, normalize.WithRedaction(cfg.Redaction.Enabled, cfg.Redaction.Patterns)),
		llm.NewClient(provider, llm.DefaultRetryPolicy(), cfg.LLM.QuestionTimeout, logger),
		cfg,
		logger,
	), nil
}

// resolveWindow turns --since/--until/--hours-back flags into a window.
func resolveWindow(cmd *cobra.Command, cfg *config.Config) (config.TimeWindow, error) {
	since, _ := cmd.Flags().GetString("since")
	until, _ := cmd.Flags().GetString("until")
	hoursBack, _ := cmd.Flags().GetInt("hours-back")
	if hoursBack <= 0 {
		hoursBack = cfg.Logs.HoursBack
	}
	return config.ParseWindow(since, until, hoursBack)
}

// resolveCategories merges the --categories flag with configured defaults.
func resolveCategories(cmd *cobra.Command, cfg *config.Config) ([]config.LogCategory, error) {
	names, _ := cmd.Flags().GetStringSlice("categories")
	if len(names) == 0 {
		names = cfg.Logs.Categories
	}
	return config.ParseCategories(names)
}
