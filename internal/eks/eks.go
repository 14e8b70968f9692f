// Package eks wraps EKS cluster discovery: listing clusters and describing
// their status and control-plane logging configuration.
package eks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/smithy-go"

	"github.com/bimmerbailey/eksight/internal/config"
)

// API is the subset of the EKS service client used by this package.
type API interface {
	ListClusters(ctx context.Context, params *eks.ListClustersInput, optFns ...func(*eks.Options)) (*eks.ListClustersOutput, error)
	DescribeCluster(ctx context.Context, params *eks.DescribeClusterInput, optFns ...func(*eks.Options)) (*eks.DescribeClusterOutput, error)
}

// Client provides cluster discovery over an authenticated EKS API handle.
type Client struct {
	api    API
	logger *slog.Logger
}

// New creates a discovery client.
func New(api API, logger *slog.Logger) *Client {
	return &Client{api: api, logger: logger}
}

// ClusterInfo describes one cluster's state and logging configuration.
type ClusterInfo struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Version string `json:"version"`

	// EnabledCategories lists the control-plane log categories shipping to
	// the log store.
	EnabledCategories []config.LogCategory `json:"enabled_categories"`
}

// HasCategory reports whether the given category is enabled on the cluster.
func (ci *ClusterInfo) HasCategory(c config.LogCategory) bool {
	for _, e := range ci.EnabledCategories {
		if e == c {
			return true
		}
	}
	return false
}

// ListClusters returns the names of all clusters in the configured region.
func (c *Client) ListClusters(ctx context.Context) ([]string, error) {
	var names []string
	var nextToken *string

	for {
		out, err := c.api.ListClusters(ctx, &eks.ListClustersInput{NextToken: nextToken})
		if err != nil {
			return nil, classify(err, "listing clusters")
		}
		names = append(names, out.Clusters...)

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	c.logger.Debug("listed clusters", "count", len(names))
	return names, nil
}

// Describe fetches a cluster's status, version, and enabled log categories.
// A missing cluster returns a cluster_not_found failure, not a transport error.
func (c *Client) Describe(ctx context.Context, name string) (*ClusterInfo, error) {
	out, err := c.api.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: &name})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
			return nil, config.NewFailure(config.FailClusterNotFound, "cluster %q not found", name)
		}
		return nil, classify(err, fmt.Sprintf("describing cluster %q", name))
	}

	info := &ClusterInfo{Name: name}
	cluster := out.Cluster
	if cluster == nil {
		return info, nil
	}

	info.Status = string(cluster.Status)
	if cluster.Version != nil {
		info.Version = *cluster.Version
	}

	if cluster.Logging != nil {
		for _, setup := range cluster.Logging.ClusterLogging {
			if setup.Enabled == nil || !*setup.Enabled {
				continue
			}
			for _, lt := range setup.Types {
				cat, err := config.ParseCategory(string(lt))
				if err != nil {
					c.logger.Debug("skipping unrecognized log type", "type", string(lt))
					continue
				}
				info.EnabledCategories = append(info.EnabledCategories, cat)
			}
		}
	}

	c.logger.Debug("described cluster",
		"name", name,
		"status", info.Status,
		"enabled_categories", len(info.EnabledCategories))

	return info, nil
}

// classify maps an EKS API error to a typed failure.
func classify(err error, op string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnauthorizedException":
			return config.NewFailure(config.FailAccessDenied, "%s: %s", op, apiErr.ErrorMessage())
		}
	}
	return config.NewFailure(config.FailTransport, "%s: %v", op, err)
}
