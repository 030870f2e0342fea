package jira

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies a custom field value decoded from the REST API.
type Kind int

// Field value kinds.
const (
	KindUnknown Kind = iota
	KindScalar
	KindUser
	KindOption
	KindOptionArray
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindUser:
		return "user"
	case KindOption:
		return "option"
	case KindOptionArray:
		return "array-of-option"
	default:
		return "unknown"
	}
}

// FieldValue is a custom field value tagged with its kind.
type FieldValue struct {
	Kind Kind
	raw  any
}

// NewFieldValue classifies a value as decoded by encoding/json.
func NewFieldValue(v any) FieldValue {
	return FieldValue{Kind: Classify(v), raw: v}
}

// converters holds one text conversion per kind.
var converters = map[Kind]func(any) string{ //nolint:gochecknoglobals // dispatch table
	KindScalar:      scalarText,
	KindUser:        userText,
	KindOption:      optionText,
	KindOptionArray: optionArrayText,
	KindUnknown:     unknownText,
}

// Text renders the value for display. Nil values render as "".
func (f FieldValue) Text() string {
	if f.raw == nil {
		return ""
	}

	return converters[f.Kind](f.raw)
}

// Classify infers the kind of a JSON-decoded value.
func Classify(v any) Kind {
	switch t := v.(type) {
	case string, float64, bool, json.Number:
		return KindScalar
	case map[string]any:
		if _, ok := t["displayName"]; ok {
			return KindUser
		}

		if _, ok := t["value"]; ok {
			return KindOption
		}
	case []any:
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return KindUnknown
			}

			if _, ok := m["value"]; !ok {
				return KindUnknown
			}
		}

		return KindOptionArray
	}

	return KindUnknown
}

func scalarText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

func userText(v any) string {
	m, _ := v.(map[string]any)

	if name, ok := m["displayName"].(string); ok && name != "" {
		return name
	}

	name, _ := m["name"].(string)

	return name
}

func optionText(v any) string {
	m, _ := v.(map[string]any)

	return scalarText(m["value"])
}

func optionArrayText(v any) string {
	items, _ := v.([]any)
	values := make([]string, 0, len(items))

	for _, item := range items {
		values = append(values, optionText(item))
	}

	return strings.Join(values, ", ")
}

func unknownText(v any) string {
	if m, ok := v.(map[string]any); ok {
		if name, ok := m["name"].(string); ok {
			return name
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}

	return string(data)
}
