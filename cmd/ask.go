package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/eksight/internal/config"
	"github.com/bimmerbailey/eksight/internal/output"
)

var askCmd = &cobra.Command{
	Use:   "ask <question> --cluster <name>",
	Short: "Ask a single question about a cluster's control plane logs",
	Long: `Ask a natural language question about an EKS cluster's control plane logs.

The command fetches recent logs from CloudWatch, condenses them into a
bounded context, and sends your question to the configured LLM.

Examples:
  eksight ask "why are pods failing to schedule?" --cluster prod
  eksight ask "who deleted the payments deployment?" --cluster prod --categories audit
  eksight ask "any errors overnight?" --cluster prod --since 12h
  eksight ask "what happened during the deploy?" --cluster prod --since "2024-02-13 14:00:00" --until "2024-02-13 15:00:00"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringP("cluster", "c", "", "EKS cluster name (required)")
	askCmd.Flags().StringSlice("categories", nil, "log categories to include (api, audit, authenticator, controllerManager, scheduler)")
	askCmd.Flags().String("since", "", "start of the log window (relative like '12h' or absolute like '2024-02-13 14:00:00')")
	askCmd.Flags().String("until", "", "end of the log window (relative or absolute, default now)")
	askCmd.Flags().Int("hours-back", 0, "lookback window in hours when --since is not given")

	_ = askCmd.MarkFlagRequired("cluster")

	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]
	cluster, _ := cmd.Flags().GetString("cluster")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(viper.GetBool("verbose"))
	writer := newWriter(cmd)

	window, err := resolveWindow(cmd, cfg)
	if err != nil {
		return err
	}
	categories, err := resolveCategories(cmd, cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	session, err := newSession(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := session.BuildContext(ctx, cluster, categories, window); err != nil {
		return reportFailure(writer, err)
	}
	for _, note := range session.Notes() {
		_ = writer.WriteNote(note)
	}

	result := session.Ask(ctx, question)
	if !result.OK() {
		return reportFailure(writer, result.Failure)
	}

	return writer.WriteAnswer(output.Answer{
		Cluster:   cluster,
		Question:  question,
		Answer:    result.Answer,
		Model:     result.Model,
		TokensIn:  result.TokensIn,
		TokensOut: result.TokensOut,
	})
}

// reportFailure renders a typed failure with remediation, then returns it
// so the process exits nonzero. Cobra's own error printing is silenced, so
// the failure is only shown once.
func reportFailure(writer *output.Writer, err error) error {
	if f, ok := config.AsFailure(err); ok {
		_ = writer.WriteFailure(f)
		return f
	}
	return err
}
