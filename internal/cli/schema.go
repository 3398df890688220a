package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/vburojevic/runwatch/internal/domain"
	"github.com/vburojevic/runwatch/internal/output"
)

// SchemaCmd outputs JSON Schema for runwatch output records
type SchemaCmd struct {
	Type []string `short:"t" help:"Record types to include (extract_result,extract_summary,digest_entry,group_summary,failure,digest,resource,error). Default: all"`
}

// Run executes the schema command
func (c *SchemaCmd) Run(globals *Globals) error {
	schemas := map[string]map[string]interface{}{
		"extract_result":  extractResultSchema(),
		"extract_summary": extractSummarySchema(),
		"digest_entry":    digestEntrySchema(),
		"group_summary":   groupSummarySchema(),
		"failure":         failureSchema(),
		"digest":          digestSchema(),
		"resource":        resourceSchema(),
		"error":           errorSchema(),
	}

	typesToOutput := c.Type
	if len(typesToOutput) == 0 {
		for t := range schemas {
			typesToOutput = append(typesToOutput, t)
		}
		sort.Strings(typesToOutput)
	}

	defs := map[string]interface{}{}
	for _, t := range typesToOutput {
		t = strings.ToLower(strings.TrimSpace(t))
		schema, ok := schemas[t]
		if !ok {
			return outputErrorCommon(globals, "INVALID_SCHEMA_TYPE", fmt.Sprintf("unknown record type %q", t))
		}
		defs[t] = schema
	}

	schemaOutput := map[string]interface{}{
		"$schema":       "http://json-schema.org/draft-07/schema#",
		"title":         "runwatch Output Schemas",
		"description":   "JSON Schema definitions for all runwatch NDJSON record types",
		"schemaVersion": output.SchemaVersion,
		"definitions":   defs,
	}

	encoder := json.NewEncoder(globals.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(schemaOutput)
}

// record builds the schema of one record type; every record carries type and schemaVersion
func record(recordType, title, description string, props map[string]interface{}, required ...string) map[string]interface{} {
	properties := map[string]interface{}{
		"type": map[string]interface{}{
			"type":  "string",
			"const": recordType,
		},
		"schemaVersion": map[string]interface{}{
			"type":        "integer",
			"const":       output.SchemaVersion,
			"description": "Schema version for compatibility detection",
		},
	}
	for k, v := range props {
		properties[k] = v
	}
	return map[string]interface{}{
		"type":        "object",
		"title":       title,
		"description": description,
		"properties":  properties,
		"required":    append([]string{"type", "schemaVersion"}, required...),
	}
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func timeProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "format": "date-time", "description": description}
}

func resourceTypeProp() map[string]interface{} {
	var tags []string
	for _, rt := range domain.AllResourceTypes() {
		tags = append(tags, string(rt))
	}
	return map[string]interface{}{"type": "string", "enum": tags, "description": "Resource type tag"}
}

func statusProp() map[string]interface{} {
	return map[string]interface{}{
		"type": "string",
		"enum": []string{string(domain.StatusOK), string(domain.StatusWarning), string(domain.StatusError)},
	}
}

// entryProps are the counters shared by alerts and digest entries
func entryProps() map[string]interface{} {
	return map[string]interface{}{
		"executions":        prop("integer", "Runs in the window"),
		"success":           prop("integer", "Succeeded runs"),
		"errors":            prop("integer", "Failed runs"),
		"warnings":          prop("integer", "Retried successes and SLA breaches"),
		"comments":          map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}, "description": "Deduplicated notes in first-seen order"},
		"min_required_runs": prop("integer", "Configured minimum runs per window"),
		"sla_seconds":       prop("number", "Configured execution time limit"),
		"insufficient_runs": prop("boolean", "Fewer runs than min_required_runs"),
		"sla_breach":        prop("boolean", "A run exceeded sla_seconds"),
		"had_retry_success": prop("boolean", "A run succeeded after failed attempts"),
	}
}

func extractResultSchema() map[string]interface{} {
	alert := map[string]interface{}{"type": "object", "properties": entryProps()}
	return record("extract_result", "Extraction Result", "One resource's outcome of an extraction cycle", map[string]interface{}{
		"resource_type": resourceTypeProp(),
		"resource":      prop("string", "Resource name"),
		"group":         prop("string", "Monitoring group"),
		"since":         timeProp("Checkpoint the cycle read from"),
		"extracted":     prop("integer", "Rows parsed from the source"),
		"written":       prop("integer", "Rows new to the store"),
		"dropped":       prop("integer", "Rows that fell behind the retention floor during the fetch"),
		"status":        statusProp(),
		"alert":         alert,
		"error":         prop("string", "Failure of this resource"),
	}, "resource_type", "resource", "extracted", "written")
}

func extractSummarySchema() map[string]interface{} {
	return record("extract_summary", "Extraction Summary", "Closes an extraction cycle", map[string]interface{}{
		"until":     timeProp("Upper bound of the cycle"),
		"resources": prop("integer", "Resources reported"),
		"failed":    prop("integer", "Resources that failed"),
		"alerting":  prop("integer", "Resources whose new runs are not ok"),
		"written":   prop("integer", "Rows written in total"),
		"partial":   prop("boolean", "The cycle stopped before every resource finished"),
	}, "until", "resources", "failed", "alerting", "written")
}

func digestEntrySchema() map[string]interface{} {
	props := entryProps()
	props["resource_type"] = resourceTypeProp()
	props["resource"] = prop("string", "Resource name")
	props["group"] = prop("string", "Monitoring group")
	props["status"] = statusProp()
	return record("digest_entry", "Digest Entry", "One resource's rollup over the digest window", props,
		"resource_type", "resource", "group", "status", "executions", "success", "errors", "warnings")
}

func groupSummarySchema() map[string]interface{} {
	return record("group_summary", "Group Summary", "Rollup of one resource type within a group", map[string]interface{}{
		"group":         prop("string", "Monitoring group"),
		"resource_type": resourceTypeProp(),
		"status":        statusProp(),
		"executions":    prop("integer", "Runs in the window"),
		"success":       prop("integer", "Succeeded runs"),
		"failures":      prop("integer", "Failed runs plus resources short of runs"),
		"warnings":      prop("integer", "Warnings"),
	}, "group", "resource_type", "status", "executions", "success", "failures", "warnings")
}

func failureSchema() map[string]interface{} {
	return record("failure", "Failure", "A resource or type that could not be processed", map[string]interface{}{
		"resource_type": resourceTypeProp(),
		"resource":      prop("string", "Resource name"),
		"group":         prop("string", "Monitoring group"),
		"message":       prop("string", "What failed"),
	}, "resource_type", "message")
}

func digestSchema() map[string]interface{} {
	return record("digest", "Digest", "Closes a digest", map[string]interface{}{
		"since":     timeProp("Window start"),
		"until":     timeProp("Window end"),
		"status":    statusProp(),
		"resources": prop("integer", "Resources reported"),
		"failures":  prop("integer", "Failure records"),
		"partial":   prop("boolean", "Some types were not read before the deadline"),
	}, "since", "until", "status", "resources", "failures")
}

func resourceSchema() map[string]interface{} {
	return record("resource", "Resource", "A configured resource", map[string]interface{}{
		"resource_type":     resourceTypeProp(),
		"resource":          prop("string", "Resource name"),
		"group":             prop("string", "Monitoring group"),
		"region":            prop("string", "AWS region"),
		"account_id":        prop("string", "AWS account"),
		"min_required_runs": prop("integer", "Minimum runs per window"),
		"sla_seconds":       prop("number", "Execution time limit"),
		"link":              prop("string", "Console deep link"),
	}, "resource_type", "resource", "group")
}

func errorSchema() map[string]interface{} {
	return record("error", "Error", "A command failure", map[string]interface{}{
		"code":    prop("string", "Error code, e.g. CONFIG_ERROR"),
		"message": prop("string", "Error message"),
		"hint":    prop("string", "Suggested fix"),
	}, "code", "message")
}
