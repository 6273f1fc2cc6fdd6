package validation

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(errs []FieldError) map[string]string {
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[e.Field] = e.Code
	}
	return out
}

func TestValidateRequired(t *testing.T) {
	schema := Schema{
		"title": {Type: TypeString, Required: true},
	}

	_, errs := Validate(map[string]interface{}{}, schema)
	require.Len(t, errs, 1)
	assert.Equal(t, "title", errs[0].Field)
	assert.Equal(t, CodeRequired, errs[0].Code)

	// explicit null counts as absent
	_, errs = Validate(map[string]interface{}{"title": nil}, schema)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeRequired, errs[0].Code)
}

func TestValidateOptionalAbsentPasses(t *testing.T) {
	schema := Schema{"note": {Type: TypeString}}
	out, errs := Validate(map[string]interface{}{}, schema)
	require.Nil(t, errs)
	assert.NotContains(t, out, "note")
}

func TestValidateTypeMismatch(t *testing.T) {
	schema := Schema{
		"title": {Type: TypeString},
		"count": {Type: TypeNumber},
		"flag":  {Type: TypeBool},
		"meta":  {Type: TypeObject},
		"tags":  {Type: TypeArray},
	}
	data := map[string]interface{}{
		"title": 12,
		"count": map[string]interface{}{},
		"flag":  "maybe",
		"meta":  "not an object",
		"tags":  "not an array",
	}

	_, errs := Validate(data, schema)
	require.Len(t, errs, 5)
	for _, e := range errs {
		assert.Equal(t, CodeInvalidType, e.Code, "field %s", e.Field)
	}
}

func TestValidateStringBounds(t *testing.T) {
	schema := Schema{
		"title": {Type: TypeString, MinLength: 3, MaxLength: 5},
	}

	_, errs := Validate(map[string]interface{}{"title": "ab"}, schema)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeTooShort, errs[0].Code)

	_, errs = Validate(map[string]interface{}{"title": "abcdef"}, schema)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeTooLong, errs[0].Code)

	out, errs := Validate(map[string]interface{}{"title": "abcd"}, schema)
	require.Nil(t, errs)
	assert.Equal(t, "abcd", out["title"])
}

func TestValidateNumberRange(t *testing.T) {
	schema := Schema{
		"limit": {Type: TypeNumber, Min: Float(1), Max: Float(100)},
	}

	_, errs := Validate(map[string]interface{}{"limit": float64(0)}, schema)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeOutOfRange, errs[0].Code)

	_, errs = Validate(map[string]interface{}{"limit": float64(101)}, schema)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeOutOfRange, errs[0].Code)
}

func TestValidateCoercesStringInputs(t *testing.T) {
	// query and route parameters arrive as strings
	schema := Schema{
		"page":   {Type: TypeNumber},
		"pretty": {Type: TypeBool},
	}
	out, errs := Validate(map[string]interface{}{"page": "3", "pretty": "true"}, schema)
	require.Nil(t, errs)
	assert.Equal(t, float64(3), out["page"])
	assert.Equal(t, true, out["pretty"])

	_, errs = Validate(map[string]interface{}{"page": "three"}, schema)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeInvalidType, errs[0].Code)
}

func TestValidatePattern(t *testing.T) {
	schema := Schema{
		"slug": {Type: TypeString, Pattern: regexp.MustCompile(`^[a-z0-9-]+$`)},
	}
	_, errs := Validate(map[string]interface{}{"slug": "Not A Slug"}, schema)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeInvalidFormat, errs[0].Code)
}

func TestValidateEnum(t *testing.T) {
	schema := Schema{
		"category": {Type: TypeString, Enum: []string{"news", "opinion"}},
	}
	_, errs := Validate(map[string]interface{}{"category": "sports"}, schema)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeNotAllowed, errs[0].Code)

	_, errs = Validate(map[string]interface{}{"category": "news"}, schema)
	assert.Nil(t, errs)
}

func TestValidateNestedObjectPaths(t *testing.T) {
	schema := Schema{
		"author": {Type: TypeObject, Fields: Schema{
			"name": {Type: TypeString, Required: true},
			"contact": {Type: TypeObject, Fields: Schema{
				"email": {Type: TypeString, Required: true},
			}},
		}},
	}
	data := map[string]interface{}{
		"author": map[string]interface{}{
			"contact": map[string]interface{}{},
		},
	}

	_, errs := Validate(data, schema)
	got := codes(errs)
	assert.Equal(t, CodeRequired, got["author.name"])
	assert.Equal(t, CodeRequired, got["author.contact.email"])
}

func TestValidateArrayElements(t *testing.T) {
	schema := Schema{
		"tags": {Type: TypeArray, Elem: &Field{Type: TypeString, MaxLength: 4}},
	}
	_, errs := Validate(map[string]interface{}{
		"tags": []interface{}{"ok", "toolong", "also"},
	}, schema)
	require.Len(t, errs, 1)
	assert.Equal(t, "tags.1", errs[0].Field)
	assert.Equal(t, CodeTooLong, errs[0].Code)
}

func TestValidateAggregatesAllViolations(t *testing.T) {
	schema := Schema{
		"title": {Type: TypeString, Required: true},
		"limit": {Type: TypeNumber, Max: Float(10)},
	}
	_, errs := Validate(map[string]interface{}{"limit": float64(50)}, schema)
	assert.Len(t, errs, 2, "every violation is reported, not just the first")
}

func TestValidateCustomMessages(t *testing.T) {
	schema := Schema{
		"email": {
			Type:     TypeString,
			Required: true,
			Messages: map[string]string{CodeRequired: "we need your email to reach you"},
		},
	}
	_, errs := Validate(map[string]interface{}{}, schema)
	require.Len(t, errs, 1)
	assert.Equal(t, "we need your email to reach you", errs[0].Message)
	assert.Equal(t, CodeRequired, errs[0].Code)
}

func TestValidateSanitizesStrings(t *testing.T) {
	schema := Schema{"comment": {Type: TypeString}}
	out, errs := Validate(map[string]interface{}{"comment": "  <b>loud</b>  "}, schema)
	require.Nil(t, errs)
	assert.Equal(t, "&lt;b&gt;loud&lt;/b&gt;", out["comment"])
}

func TestValidateUndeclaredFieldsPassThrough(t *testing.T) {
	schema := Schema{"title": {Type: TypeString}}
	out, errs := Validate(map[string]interface{}{
		"title": "ok",
		"extra": "<i>stray</i>",
		"n":     float64(7),
	}, schema)
	require.Nil(t, errs)
	assert.Equal(t, "&lt;i&gt;stray&lt;/i&gt;", out["extra"], "undeclared strings are still sanitized")
	assert.Equal(t, float64(7), out["n"])
}
