package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veripass/internal/common/errors"
)

const ownerSchema = `{
  "type": "object",
  "properties": {
    "plate_number": {"type": "string", "minLength": 1, "maxLength": 10},
    "year_model": {"type": "integer", "minimum": 1950, "maximum": 2100},
    "owner": {"type": "string", "enum": ["yes", "no"]},
    "owner_firstname": {"type": "string"}
  },
  "required": ["plate_number", "owner"],
  "if": {"properties": {"owner": {"const": "no"}}},
  "then": {"required": ["owner_firstname"]}
}`

func TestSchemaValidate(t *testing.T) {
	schema := MustCompile(ownerSchema)

	tests := []struct {
		name       string
		doc        map[string]interface{}
		wantValid  bool
		wantFields []string
	}{
		{
			name:      "valid owner",
			doc:       map[string]interface{}{"plate_number": "ABC 123", "owner": "yes", "year_model": 2020},
			wantValid: true,
		},
		{
			name:       "missing required",
			doc:        map[string]interface{}{"owner": "yes"},
			wantFields: []string{"plate_number"},
		},
		{
			name:       "empty string counts as missing",
			doc:        map[string]interface{}{"plate_number": "", "owner": "yes"},
			wantFields: []string{"plate_number"},
		},
		{
			name:       "conditional owner fields",
			doc:        map[string]interface{}{"plate_number": "ABC 123", "owner": "no"},
			wantFields: []string{"owner_firstname"},
		},
		{
			name:       "range and enum",
			doc:        map[string]interface{}{"plate_number": "ABC 123", "owner": "maybe", "year_model": 1900},
			wantFields: []string{"owner", "year_model"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := schema.Validate(tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.Valid)

			var fields []string
			for _, e := range result.Errors {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestValidationResult_AsError(t *testing.T) {
	schema := MustCompile(ownerSchema)
	result, err := schema.Validate(map[string]interface{}{"owner": "yes"})
	require.NoError(t, err)

	verr := result.AsError("Please correct the errors below.")
	require.Error(t, verr)
	std, ok := errors.AsStandard(verr)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeValidationFailed, std.Code)
	assert.Equal(t, "This field is required.", std.Fields[0].Message)
	assert.True(t, result.HasErrors("plate_number"))

	ok2, err := schema.Validate(map[string]interface{}{"plate_number": "X", "owner": "yes"})
	require.NoError(t, err)
	assert.NoError(t, ok2.AsError("unused"))
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("juan@psu.edu.ph"))
	assert.False(t, ValidateEmail("not-an-email"))
}
