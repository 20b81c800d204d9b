// Package schema validates declared parameter contracts and, at call time,
// the parameters supplied against them. Both checks share one registry of
// supported types.
package schema

import (
	"encoding/json"
	"math"

	"fnbox/fault"
)

// Supported parameter types.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeBoolean = "boolean"
	TypeList    = "list"
	TypeMap     = "map"
)

var supportedTypes = map[string]bool{
	TypeString:  true,
	TypeInteger: true,
	TypeFloat:   true,
	TypeBoolean: true,
	TypeList:    true,
	TypeMap:     true,
}

// Validate checks a declared schema: a mapping from parameter name to a
// specification with a supported "type", a boolean "required", and an
// optional "range" carrying numeric "min" and "max". Violations are
// reported as SchemaInvalid naming the offending field.
func Validate(s map[string]any) error {
	for name, raw := range s {
		spec, ok := asMap(raw)
		if !ok {
			return fault.New(fault.SchemaInvalid, "parameter %q: specification must be a mapping", name)
		}

		typRaw, ok := spec["type"]
		if !ok {
			return fault.New(fault.SchemaInvalid, "parameter %q: missing field \"type\"", name)
		}
		typ, ok := typRaw.(string)
		if !ok || !supportedTypes[typ] {
			return fault.New(fault.SchemaInvalid, "parameter %q: unsupported type %v", name, typRaw)
		}

		reqRaw, ok := spec["required"]
		if !ok {
			return fault.New(fault.SchemaInvalid, "parameter %q: missing field \"required\"", name)
		}
		if _, ok := reqRaw.(bool); !ok {
			return fault.New(fault.SchemaInvalid, "parameter %q: field \"required\" must be a boolean", name)
		}

		if rangeRaw, ok := spec["range"]; ok {
			rng, ok := asMap(rangeRaw)
			if !ok {
				return fault.New(fault.SchemaInvalid, "parameter %q: field \"range\" must be a mapping", name)
			}
			if _, ok := asNumber(rng["min"]); !ok {
				return fault.New(fault.SchemaInvalid, "parameter %q: range field \"min\" must be numeric", name)
			}
			if _, ok := asNumber(rng["max"]); !ok {
				return fault.New(fault.SchemaInvalid, "parameter %q: range field \"max\" must be numeric", name)
			}
		}
	}
	return nil
}

// ValidateParams checks call parameters against a declared schema. Missing
// required parameters, type mismatches, and out-of-range numeric values are
// ParameterValidationFailed. Parameters not declared in the schema pass
// through untouched.
func ValidateParams(s map[string]any, params map[string]any) error {
	for name, raw := range s {
		spec, ok := asMap(raw)
		if !ok {
			continue
		}
		typ, _ := spec["type"].(string)

		value, present := params[name]
		if !present {
			if req, _ := spec["required"].(bool); req {
				return fault.New(fault.ParameterValidationFailed, "required parameter %q is missing", name)
			}
			continue
		}

		if !typeMatches(typ, value) {
			return fault.New(fault.ParameterValidationFailed, "parameter %q: expected type %s", name, typ)
		}

		// Range only applies to numeric types.
		if typ == TypeInteger || typ == TypeFloat {
			if rng, ok := asMap(spec["range"]); ok {
				v, _ := asNumber(value)
				min, _ := asNumber(rng["min"])
				max, _ := asNumber(rng["max"])
				if v < min || v > max {
					return fault.New(fault.ParameterValidationFailed, "parameter %q: value %v outside range [%v, %v]", name, v, min, max)
				}
			}
		}
	}
	return nil
}

func typeMatches(typ string, value any) bool {
	switch typ {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeInteger:
		v, ok := asNumber(value)
		return ok && v == math.Trunc(v)
	case TypeFloat:
		_, ok := asNumber(value)
		return ok
	case TypeList:
		_, ok := value.([]any)
		return ok
	case TypeMap:
		_, ok := asMap(value)
		return ok
	}
	return false
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// asNumber normalizes the numeric shapes a value can arrive in, depending
// on whether it came from a JSON body, a stored schema, or test literals.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
