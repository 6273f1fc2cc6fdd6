package validation

import (
	"fmt"
	"strconv"

	"github.com/newsdeck/gatehouse/pkg/security"
)

// Validate checks data against the schema. On success the returned map
// holds the sanitized, type-coerced values; on failure the FieldError list
// carries every violation found, with dotted paths for nested fields.
func Validate(data map[string]interface{}, schema Schema) (map[string]interface{}, []FieldError) {
	var errs []FieldError
	out := validateObject("", data, schema, &errs)
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func validateObject(prefix string, data map[string]interface{}, schema Schema, errs *[]FieldError) map[string]interface{} {
	out := make(map[string]interface{}, len(data))

	for name, field := range schema {
		path := joinPath(prefix, name)
		value, present := data[name]
		if !present || value == nil {
			if field.Required {
				addError(errs, field, path, CodeRequired, fmt.Sprintf("%s is required", path))
			}
			continue
		}
		if clean, ok := validateField(path, value, field, errs); ok {
			out[name] = clean
		}
	}

	// fields outside the schema pass through sanitized but unchecked
	for name, value := range data {
		if _, declared := schema[name]; declared {
			continue
		}
		if s, ok := value.(string); ok {
			out[name] = sanitizeString(s)
		} else {
			out[name] = value
		}
	}

	return out
}

// validateField checks one value against one rule set, returning the
// sanitized, coerced value when it passes
func validateField(path string, value interface{}, field *Field, errs *[]FieldError) (interface{}, bool) {
	before := len(*errs)

	switch field.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			addError(errs, field, path, CodeInvalidType, fmt.Sprintf("%s must be a string", path))
			return nil, false
		}
		validateString(path, s, field, errs)
		if len(*errs) > before {
			return nil, false
		}
		return sanitizeString(s), true

	case TypeNumber:
		n, ok := coerceNumber(value)
		if !ok {
			addError(errs, field, path, CodeInvalidType, fmt.Sprintf("%s must be a number", path))
			return nil, false
		}
		if field.Min != nil && n < *field.Min {
			addError(errs, field, path, CodeOutOfRange, fmt.Sprintf("%s must be at least %v", path, *field.Min))
		}
		if field.Max != nil && n > *field.Max {
			addError(errs, field, path, CodeOutOfRange, fmt.Sprintf("%s must be at most %v", path, *field.Max))
		}
		if len(*errs) > before {
			return nil, false
		}
		return n, true

	case TypeBool:
		b, ok := coerceBool(value)
		if !ok {
			addError(errs, field, path, CodeInvalidType, fmt.Sprintf("%s must be a boolean", path))
			return nil, false
		}
		return b, true

	case TypeObject:
		m, ok := value.(map[string]interface{})
		if !ok {
			addError(errs, field, path, CodeInvalidType, fmt.Sprintf("%s must be an object", path))
			return nil, false
		}
		out := validateObject(path, m, field.Fields, errs)
		if len(*errs) > before {
			return nil, false
		}
		return out, true

	case TypeArray:
		arr, ok := value.([]interface{})
		if !ok {
			addError(errs, field, path, CodeInvalidType, fmt.Sprintf("%s must be an array", path))
			return nil, false
		}
		out := make([]interface{}, 0, len(arr))
		for idx, elem := range arr {
			if field.Elem == nil {
				out = append(out, elem)
				continue
			}
			clean, ok := validateField(fmt.Sprintf("%s.%d", path, idx), elem, field.Elem, errs)
			if ok {
				out = append(out, clean)
			}
		}
		if len(*errs) > before {
			return nil, false
		}
		return out, true

	default:
		// untyped rule: value passes with string sanitization only
		if s, ok := value.(string); ok {
			validateString(path, s, field, errs)
			if len(*errs) > before {
				return nil, false
			}
			return sanitizeString(s), true
		}
		return value, true
	}
}

func validateString(path, s string, field *Field, errs *[]FieldError) {
	if field.MinLength > 0 && len(s) < field.MinLength {
		addError(errs, field, path, CodeTooShort,
			fmt.Sprintf("%s must be at least %d characters", path, field.MinLength))
	}
	if field.MaxLength > 0 && len(s) > field.MaxLength {
		addError(errs, field, path, CodeTooLong,
			fmt.Sprintf("%s must be at most %d characters", path, field.MaxLength))
	}
	if field.Pattern != nil && !field.Pattern.MatchString(s) {
		addError(errs, field, path, CodeInvalidFormat, fmt.Sprintf("%s has an invalid format", path))
	}
	if len(field.Enum) > 0 && !inEnum(s, field.Enum) {
		addError(errs, field, path, CodeNotAllowed, fmt.Sprintf("%s must be one of the allowed values", path))
	}
}

// sanitizeString applies the inspector's string sanitization; both steps
// are idempotent so re-application after the inspector is harmless
func sanitizeString(s string) string {
	return security.NormalizeWhitespace(security.EscapeHTML(s))
}

// addError records a violation, preferring the schema's custom message for
// the code when one is configured
func addError(errs *[]FieldError, field *Field, path, code, message string) {
	if field.Messages != nil {
		if custom, ok := field.Messages[code]; ok {
			message = custom
		}
	}
	*errs = append(*errs, FieldError{Field: path, Message: message, Code: code})
}

// coerceNumber accepts JSON numbers and the string forms that query and
// route parameters arrive in
func coerceNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(v, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func coerceBool(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	default:
		return false, false
	}
}

func inEnum(s string, enum []string) bool {
	for _, e := range enum {
		if s == e {
			return true
		}
	}
	return false
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
