package cli

import (
	"errors"
	"fmt"

	"github.com/vburojevic/runwatch/internal/domain"
	"github.com/vburojevic/runwatch/internal/output"
)

// Error codes emitted in error records
const (
	codeConfig     = "CONFIG_ERROR"
	codeStore      = "STORE_ERROR"
	codeCheckpoint = "CHECKPOINT_ERROR"
	codeExtract    = "EXTRACT_FAILED"
	codeDigest     = "DIGEST_FAILED"
)

// CLIError is a structured error used for consistent NDJSON/text emission.
type CLIError struct {
	Code    string
	Message string
	Hint    string
}

func (e *CLIError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// outputErrorCommon normalizes error emission across commands, respecting
// ndjson vs text formats so batch callers always get machine-readable failures.
func outputErrorCommon(globals *Globals, code, message string) error {
	hint := hintFor(code)
	if globals != nil && globals.Format == "ndjson" {
		_ = output.NewNDJSONWriter(globals.Stdout).WriteError(code, message, hint)
	} else if globals != nil {
		fmt.Fprintf(globals.Stderr, "Error [%s]: %s\n", code, message)
		if hint != "" {
			fmt.Fprintf(globals.Stderr, "Hint: %s\n", hint)
		}
	}
	return &CLIError{Code: code, Message: message, Hint: hint}
}

// outputError emits err, picking a more specific code for known failures
func outputError(globals *Globals, code string, err error) error {
	var unknown *domain.UnknownTypeError
	if errors.As(err, &unknown) {
		code = codeConfig
	}
	return outputErrorCommon(globals, code, err.Error())
}

func hintFor(code string) string {
	switch code {
	case codeConfig:
		return "Check the groups section with `runwatch config show`; `runwatch config generate` prints a sample"
	case codeStore:
		return "Check store.path and store.retention in the configuration"
	case codeCheckpoint:
		return `Checkpoints are JSON: {"<resource type>": {"<resource>": "<RFC3339 time>"}}`
	}
	return ""
}
