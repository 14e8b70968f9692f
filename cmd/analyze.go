package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/eksight/internal/config"
	"github.com/bimmerbailey/eksight/internal/output"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags]",
	Short: "Interactively analyze a cluster's control plane logs",
	Long: `Start an interactive session against one cluster: the log context is
fetched and budgeted once, then you can ask any number of questions
against it. Type "exit" or "quit" to leave.

Without --cluster, the clusters in the region are listed and you pick one.

Examples:
  eksight analyze --cluster prod
  eksight analyze --cluster prod --since 6h --categories api,scheduler
  eksight analyze`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringP("cluster", "c", "", "EKS cluster name (prompted for when omitted)")
	analyzeCmd.Flags().StringSlice("categories", nil, "log categories to include (api, audit, authenticator, controllerManager, scheduler)")
	analyzeCmd.Flags().String("since", "", "start of the log window (relative like '12h' or absolute)")
	analyzeCmd.Flags().String("until", "", "end of the log window (default now)")
	analyzeCmd.Flags().Int("hours-back", 0, "lookback window in hours when --since is not given")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
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

	cluster, _ := cmd.Flags().GetString("cluster")
	if cluster == "" {
		cluster, err = pickCluster(ctx, cmd, cfg)
		if err != nil {
			return err
		}
	}

	// Re-read tunables when the config file changes mid-session. The next
	// question picks up new budget caps and model settings; the fetched
	// log context stays as built.
	if viper.ConfigFileUsed() != "" {
		viper.OnConfigChange(func(e fsnotify.Event) {
			if err := viper.Unmarshal(cfg); err != nil {
				logger.Error("ignoring config change", "file", e.Name, "error", err)
				return
			}
			logger.Info("configuration reloaded", "file", e.Name)
		})
		viper.WatchConfig()
	}

	if err := session.BuildContext(ctx, cluster, categories, window); err != nil {
		return reportFailure(writer, err)
	}
	for _, note := range session.Notes() {
		_ = writer.WriteNote(note)
	}
	_ = writer.WriteContextSummary(cluster, session.Context())

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, `Ask questions about the logs. Type "exit" to leave.`)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "eksight> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		result := session.Ask(ctx, question)
		if !result.OK() {
			_ = writer.WriteFailure(result.Failure)
			continue
		}
		_ = writer.WriteAnswer(output.Answer{
			Cluster:   cluster,
			Question:  question,
			Answer:    result.Answer,
			Model:     result.Model,
			TokensIn:  result.TokensIn,
			TokensOut: result.TokensOut,
		})
		fmt.Fprintln(out)
	}
	return scanner.Err()
}

// pickCluster lists the region's clusters and asks the user to choose one.
func pickCluster(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (string, error) {
	client, err := newEKSClient(ctx, cfg, newLogger(viper.GetBool("verbose")))
	if err != nil {
		return "", err
	}
	names, err := client.ListClusters(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no EKS clusters found in region %s", cfg.Region)
	}
	if len(names) == 1 {
		return names[0], nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Clusters in %s:\n", cfg.Region)
	for i, name := range names {
		fmt.Fprintf(out, "  %d. %s\n", i+1, name)
	}
	fmt.Fprint(out, "Select a cluster [1]: ")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		return names[0], nil
	}
	choice := strings.TrimSpace(scanner.Text())
	if choice == "" {
		return names[0], nil
	}
	var idx int
	if _, err := fmt.Sscanf(choice, "%d", &idx); err == nil && idx >= 1 && idx <= len(names) {
		return names[idx-1], nil
	}
	for _, name := range names {
		if name == choice {
			return name, nil
		}
	}
	return "", fmt.Errorf("invalid cluster selection: %s", choice)
}
