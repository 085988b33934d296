package tools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

type (
	// FieldIssue is one argument validation failure.
	FieldIssue struct {
		// Field is the JSON pointer of the offending value ("" for the root).
		Field string
		// Constraint classifies the failure.
		Constraint string
		// Message is the validator message.
		Message string
	}

	// ValidationError reports invalid tool arguments.
	ValidationError struct {
		Tool   string
		Issues []FieldIssue
	}
)

const (
	// ConstraintInvalidJSON flags arguments that are not valid JSON.
	ConstraintInvalidJSON = "invalid_json"
	// ConstraintSchema flags arguments violating the tool schema.
	ConstraintSchema = "schema"
)

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		if is.Field == "" {
			msgs[i] = is.Message
			continue
		}
		msgs[i] = fmt.Sprintf("%s: %s", is.Field, is.Message)
	}
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(msgs, "; "))
}

// issuesFrom flattens a schema validation error into leaf issues.
func issuesFrom(err error) []FieldIssue {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []FieldIssue{{Constraint: ConstraintSchema, Message: err.Error()}}
	}
	var issues []FieldIssue
	var walk func(*jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			field := ""
			if len(v.InstanceLocation) > 0 {
				field = "/" + strings.Join(v.InstanceLocation, "/")
			}
			issues = append(issues, FieldIssue{Field: field, Constraint: ConstraintSchema, Message: leafMessage(v)})
			return
		}
		for _, c := range v.Causes {
			walk(c)
		}
	}
	walk(ve)
	return issues
}

// leafMessage returns the last line of the validator message, which names
// the violated keyword without the schema URL preamble.
func leafMessage(v *jsonschema.ValidationError) string {
	msg := strings.TrimSpace(v.Error())
	if i := strings.LastIndex(msg, "\n"); i >= 0 {
		msg = strings.TrimSpace(msg[i+1:])
	}
	msg = strings.TrimPrefix(msg, "- ")
	return msg
}
