package domain

import (
	"fmt"
	"strings"
	"time"
)

// ResourceType tags the kind of monitored resource. The set is closed.
type ResourceType string

const (
	ResourceGlueJobs        ResourceType = "glue_jobs"
	ResourceGlueWorkflows   ResourceType = "glue_workflows"
	ResourceStepFunctions   ResourceType = "step_functions"
	ResourceLambdaFunctions ResourceType = "lambda_functions"
	ResourceSQSQueues       ResourceType = "sqs_queues"
	ResourceGlueDataQuality ResourceType = "glue_data_quality"
)

// AllResourceTypes returns every supported resource type in a stable order
func AllResourceTypes() []ResourceType {
	return []ResourceType{
		ResourceGlueJobs,
		ResourceGlueWorkflows,
		ResourceStepFunctions,
		ResourceLambdaFunctions,
		ResourceSQSQueues,
		ResourceGlueDataQuality,
	}
}

// Valid reports whether t is one of the supported resource types
func (t ResourceType) Valid() bool {
	for _, known := range AllResourceTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// ParseResourceType converts a config tag to a ResourceType
func ParseResourceType(s string) (ResourceType, error) {
	t := ResourceType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", &UnknownTypeError{Type: t}
	}
	return t, nil
}

// Resource is one monitored unit together with its alerting configuration
type Resource struct {
	Type            ResourceType `json:"type"`
	Name            string       `json:"name"`
	Group           string       `json:"group"`
	Region          string       `json:"region,omitempty"`
	AccountID       string       `json:"account_id,omitempty"`
	MinRequiredRuns int          `json:"min_required_runs,omitempty"`
	SLASeconds      float64      `json:"sla_seconds,omitempty"`
}

// Key identifies a resource across types
func (r Resource) Key() string {
	return fmt.Sprintf("%s/%s", r.Type, r.Name)
}

// Checkpoint is the boundary below which a resource's activity is already captured
type Checkpoint struct {
	ResourceName string    `json:"resource_name"`
	SinceTime    time.Time `json:"since_time"`
}
