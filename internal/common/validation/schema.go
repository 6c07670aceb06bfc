// Package validation compiles JSON schemas and turns gojsonschema results
// into field-level messages.
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"veripass/internal/common/errors"
)

const requiredMessage = "This field is required."

// Schema is a compiled JSON schema, safe for concurrent use.
type Schema struct {
	schema *gojsonschema.Schema
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Compile parses schemaJSON.
func Compile(schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// MustCompile is like Compile but panics on error. Use for package-level schemas.
func MustCompile(schemaJSON string) *Schema {
	s, err := Compile(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks doc, which is marshalled to JSON first, so struct json tags apply.
func (s *Schema) Validate(doc interface{}) (*ValidationResult, error) {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate document: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	seen := map[string]bool{}
	for _, re := range result.Errors() {
		// if/then wrappers duplicate the underlying error
		if strings.HasPrefix(re.Type(), "condition_") {
			continue
		}
		ve := toValidationError(re)
		if seen[ve.Field] {
			continue
		}
		seen[ve.Field] = true
		out.Errors = append(out.Errors, ve)
	}
	sort.Slice(out.Errors, func(i, j int) bool { return out.Errors[i].Field < out.Errors[j].Field })
	return out, nil
}

func toValidationError(re gojsonschema.ResultError) ValidationError {
	field := re.Field()
	switch re.Type() {
	case "required":
		if prop, ok := re.Details()["property"].(string); ok {
			if field == "(root)" {
				field = prop
			} else {
				field = field + "." + prop
			}
		}
		return ValidationError{Field: field, Message: requiredMessage, Code: "REQUIRED_FIELD_MISSING"}
	case "string_gte":
		if s, ok := re.Value().(string); ok && s == "" {
			return ValidationError{Field: field, Message: requiredMessage, Code: "REQUIRED_FIELD_MISSING"}
		}
		return ValidationError{Field: field, Message: capitalize(re.Description()), Code: "MIN_LENGTH_VIOLATION"}
	case "string_lte":
		return ValidationError{Field: field, Message: fmt.Sprintf("Ensure this value has at most %v characters.", re.Details()["max"]), Code: "MAX_LENGTH_VIOLATION"}
	case "enum":
		return ValidationError{Field: field, Message: "Select a valid choice.", Code: "INVALID_ENUM_VALUE"}
	case "number_gte", "number_lte", "number_gt", "number_lt":
		return ValidationError{Field: field, Message: capitalize(re.Description()), Code: "RANGE_VIOLATION"}
	case "format":
		return ValidationError{Field: field, Message: "Enter a valid value.", Code: "INVALID_FORMAT"}
	case "invalid_type":
		return ValidationError{Field: field, Message: capitalize(re.Description()), Code: "INVALID_TYPE"}
	default:
		return ValidationError{Field: field, Message: capitalize(re.Description()), Code: strings.ToUpper(re.Type())}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// FieldErrors converts the result to the error type returned by the API.
func (vr *ValidationResult) FieldErrors() []errors.FieldError {
	out := make([]errors.FieldError, 0, len(vr.Errors))
	for _, e := range vr.Errors {
		out = append(out, errors.FieldError{Field: e.Field, Message: e.Message})
	}
	return out
}

// AsError returns nil for a valid result and a VALIDATION_FAILED error otherwise.
func (vr *ValidationResult) AsError(message string) error {
	if vr.Valid {
		return nil
	}
	return errors.NewValidationError(message, vr.FieldErrors()...)
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)
)

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePhone validates basic phone number format
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}
