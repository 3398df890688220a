package registry

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vburojevic/runwatch/internal/domain"
)

// DefaultRegion is used for links of resources without a configured region
const DefaultRegion = "us-east-1"

// ConsoleLinks renders AWS console deep links for one resource type
type ConsoleLinks struct {
	Type domain.ResourceType
}

// RunLink returns the console page of a run, or of the resource when runID is empty
func (l ConsoleLinks) RunLink(res domain.Resource, runID string) string {
	region := res.Region
	if region == "" {
		region = DefaultRegion
	}
	base := fmt.Sprintf("https://%s.console.aws.amazon.com", region)
	q := "?region=" + url.QueryEscape(region)
	name := url.PathEscape(res.Name)
	run := url.PathEscape(runID)

	switch l.Type {
	case domain.ResourceGlueJobs:
		if runID == "" {
			return base + "/gluestudio/home" + q + "#/editor/job/" + name + "/runs"
		}
		return base + "/gluestudio/home" + q + "#/job/" + name + "/run/" + run
	case domain.ResourceGlueWorkflows:
		return base + "/glue/home" + q + "#/v2/etl-configuration/workflows/view/" + name
	case domain.ResourceStepFunctions:
		if runID == "" || res.AccountID == "" {
			arn := fmt.Sprintf("arn:aws:states:%s:%s:stateMachine:%s", region, res.AccountID, res.Name)
			return base + "/states/home" + q + "#/statemachines/view/" + url.QueryEscape(arn)
		}
		arn := fmt.Sprintf("arn:aws:states:%s:%s:execution:%s:%s", region, res.AccountID, res.Name, runID)
		return base + "/states/home" + q + "#/v2/executions/details/" + url.QueryEscape(arn)
	case domain.ResourceLambdaFunctions:
		group := cloudWatchEscape("/aws/lambda/" + res.Name)
		if runID == "" {
			return base + "/cloudwatch/home" + q + "#logsV2:log-groups/log-group/" + group
		}
		filter := cloudWatchEscape(`"` + runID + `"`)
		return base + "/cloudwatch/home" + q + "#logsV2:log-groups/log-group/" + group + "/log-events$3FfilterPattern$3D" + filter
	case domain.ResourceSQSQueues:
		queueURL := fmt.Sprintf("https://sqs.%s.amazonaws.com/%s/%s", region, res.AccountID, res.Name)
		return base + "/sqs/v3/home" + q + "#/queues/" + url.QueryEscape(queueURL)
	case domain.ResourceGlueDataQuality:
		if runID == "" {
			return base + "/glue/home" + q + "#/v2/data-catalog/tables"
		}
		return base + "/glue/home" + q + "#/v2/data-quality/results/" + run
	}
	return ""
}

// cloudWatchEscape applies the console's double escaping ("%" becomes "$25")
func cloudWatchEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "%", "$25")
}
