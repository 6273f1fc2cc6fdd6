package validation

import "regexp"

// FieldType is the expected type of a field's value
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeBool   FieldType = "boolean"
	TypeObject FieldType = "object"
	TypeArray  FieldType = "array"
)

// Violation codes carried on FieldError
const (
	CodeRequired      = "REQUIRED"
	CodeInvalidType   = "INVALID_TYPE"
	CodeTooShort      = "TOO_SHORT"
	CodeTooLong       = "TOO_LONG"
	CodeOutOfRange    = "OUT_OF_RANGE"
	CodeInvalidFormat = "INVALID_FORMAT"
	CodeNotAllowed    = "NOT_ALLOWED"
)

// Field defines the rules for one field
type Field struct {
	// Type is the expected value type; string values from query and route
	// surfaces are coerced to number/boolean before the check
	Type FieldType
	// Required rejects absent or null values
	Required bool
	// MinLength/MaxLength bound string length; zero means unbounded
	MinLength int
	MaxLength int
	// Min/Max bound numeric values
	Min *float64
	Max *float64
	// Pattern must match the full string value
	Pattern *regexp.Regexp
	// Enum restricts a string to a fixed value set
	Enum []string
	// Fields validates a nested object
	Fields Schema
	// Elem validates each element of an array
	Elem *Field
	// Messages substitutes friendlier messages keyed by violation code
	Messages map[string]string
}

// Schema maps field names to their rules
type Schema map[string]*Field

// FieldError is one schema violation, ephemeral and never persisted
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Float is a convenience for Field.Min/Max literals
func Float(v float64) *float64 { return &v }
