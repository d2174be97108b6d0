package conversion

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	contextutils "appfeedback/internal/utils"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed submission_schema.json
var submissionSchemaJSON []byte

var (
	submissionSchema     *gojsonschema.Schema
	submissionSchemaErr  error
	submissionSchemaOnce sync.Once
)

func loadSubmissionSchema() (*gojsonschema.Schema, error) {
	submissionSchemaOnce.Do(func() {
		submissionSchema, submissionSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(submissionSchemaJSON))
	})
	return submissionSchema, submissionSchemaErr
}

// validateSubmissionShape checks raw against the submission schema. The first
// failing field (in field name order) is reported as INVALID_INPUT.
func validateSubmissionShape(raw []byte) error {
	schema, err := loadSubmissionSchema()
	if err != nil {
		return contextutils.WrapError(err, "failed to load submission schema")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return contextutils.NewInvalidInputError("payload", "", "payload is not valid JSON: "+err.Error())
	}
	if result.Valid() {
		return nil
	}

	type failure struct {
		field, description string
	}
	failures := make([]failure, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		failures = append(failures, failure{field: schemaErrorField(e), description: e.Description()})
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].field < failures[j].field })

	first := failures[0]
	return &contextutils.AppError{
		Code:     contextutils.ErrorCodeInvalidInput,
		Severity: contextutils.SeverityWarn,
		Message:  fmt.Sprintf("Invalid value for field '%s'", first.field),
		Details:  first.description,
		Field:    first.field,
	}
}

// schemaErrorField names the offending property, including the missing
// property of a required error.
func schemaErrorField(e gojsonschema.ResultError) string {
	field := e.Field()
	if e.Type() != "required" {
		return field
	}
	property, _ := e.Details()["property"].(string)
	if property == "" || field == property || strings.HasSuffix(field, "."+property) {
		return field
	}
	if field == "(root)" || field == "" {
		return property
	}
	return field + "." + property
}
