package output

import (
	"fmt"

	"github.com/bimmerbailey/eksight/internal/config"
)

const enableLoggingHint = `Control plane logging must be enabled before logs can be analyzed.
To enable it:
  1. AWS console: EKS > Clusters > your cluster > Observability > Manage logging
  2. Or run:
     aws eks update-cluster-config --name <cluster> --region <region> \
       --logging '{"clusterLogging":[{"types":["api","audit","authenticator","controllerManager","scheduler"],"enabled":true}]}'
Logs can take a few minutes to appear in CloudWatch after enabling.`

const noLogDataHint = `No events were found in the selected time window. Possible causes:
  - Logging was enabled recently and nothing has shipped yet
  - The cluster was idle during the window; widen it with --since or --hours-back
  - The categories you asked for are enabled but quiet; try others`

// Remediation returns actionable guidance for a failure, or "" when there
// is nothing useful to suggest.
func Remediation(f *config.Failure) string {
	switch f.Kind {
	case config.FailLoggingNotEnabled:
		return enableLoggingHint
	case config.FailNoLogData:
		return noLogDataHint
	case config.FailClusterNotFound:
		return "Check the cluster name and region. List available clusters with: eksight clusters"
	case config.FailAccessDenied:
		return "Verify the active AWS credentials can call eks:DescribeCluster, logs:FilterLogEvents, and bedrock:InvokeModel."
	case config.FailRegionUnsupported:
		return fmt.Sprintf("The model is not available here. Choose a Bedrock region with model access, or switch models. (%s)", f.Detail)
	case config.FailThrottled:
		return "The service is rate limiting requests. Wait a moment and retry."
	case config.FailInputTooLarge:
		return "The log context exceeds the model input limit even after reduction. Narrow the time window or category list."
	default:
		return ""
	}
}
