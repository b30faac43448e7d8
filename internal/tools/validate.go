package tools

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/lucasdpassos/pokedex-assistant/internal/fault"
)

// validateInput checks input against the declared schema: every required
// field must be present, and every present field with a known declared type
// must match it. Fields declaring an unknown type are accepted as-is.
// All offending fields are collected into one invalid-input fault so the
// caller sees the complete list at once.
func validateInput(schema map[string]Field, input map[string]any) error {
	var offending []string

	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := schema[name]
		value, present := input[name]
		if !present {
			if field.Required {
				offending = append(offending, fmt.Sprintf("%s (missing required field)", name))
			}
			continue
		}
		if !typeMatches(field.Type, value) {
			offending = append(offending, fmt.Sprintf("%s (expected %s)", name, field.Type))
		}
	}

	if len(offending) > 0 {
		return fault.InvalidInput("input validation failed", offending)
	}
	return nil
}

// typeMatches reports whether value conforms to the declared type. Inputs
// usually arrive through JSON decoding (strings, float64, bool, []any,
// map[string]any), but handlers are also called directly from Go, so the
// numeric and array checks accept native Go kinds too.
func typeMatches(declared string, value any) bool {
	switch declared {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		switch value.(type) {
		case float64, float32, int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64:
			return true
		}
		return false
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeArray:
		if value == nil {
			return false
		}
		kind := reflect.TypeOf(value).Kind()
		return kind == reflect.Slice || kind == reflect.Array
	case TypeObject:
		if _, ok := value.(map[string]any); ok {
			return true
		}
		return value != nil && reflect.TypeOf(value).Kind() == reflect.Map
	default:
		// Unknown declared types are forward-compatible: always valid.
		return true
	}
}
