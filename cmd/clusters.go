package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/eksight/internal/eks"
)

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "List EKS clusters and their control plane logging status",
	Long: `List the EKS clusters in the configured region, including which
control plane log categories each one ships to CloudWatch.

Examples:
  eksight clusters
  eksight clusters --region eu-west-1
  eksight clusters --format json`,
	Args: cobra.NoArgs,
	RunE: runClusters,
}

func init() {
	rootCmd.AddCommand(clustersCmd)
}

func runClusters(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(viper.GetBool("verbose"))
	writer := newWriter(cmd)

	ctx := context.Background()
	client, err := newEKSClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	names, err := client.ListClusters(ctx)
	if err != nil {
		return reportFailure(writer, err)
	}

	infos := make([]eks.ClusterInfo, 0, len(names))
	for _, name := range names {
		info, err := client.Describe(ctx, name)
		if err != nil {
			return reportFailure(writer, err)
		}
		infos = append(infos, *info)
	}

	return writer.WriteClusters(infos)
}
