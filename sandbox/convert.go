package sandbox

import (
	"encoding/json"
	"fmt"

	"go.starlark.net/starlark"
)

// toStarlark converts a decoded JSON value into its Starlark equivalent.
// Integral numbers become ints so arithmetic on them stays integral.
func toStarlark(v any) (starlark.Value, error) {
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(x), nil
	case string:
		return starlark.String(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return starlark.MakeInt64(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", x.String())
		}
		return starlark.Float(f), nil
	case int:
		return starlark.MakeInt(x), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case float64:
		return starlark.Float(x), nil
	case []any:
		elems := make([]starlark.Value, 0, len(x))
		for _, item := range x {
			conv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			elems = append(elems, conv)
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		dict := starlark.NewDict(len(x))
		for key, item := range x {
			conv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(key), conv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	}
	return nil, fmt.Errorf("unsupported parameter type %T", v)
}

// fromStarlark converts an interpreter value back into a JSON-serializable
// Go value.
func fromStarlark(v starlark.Value) (any, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.String:
		return string(x), nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i, nil
		}
		// Preserve arbitrary-precision integers verbatim.
		return json.Number(x.String()), nil
	case starlark.Float:
		return float64(x), nil
	case *starlark.List:
		return fromIterable(x)
	case starlark.Tuple:
		out := make([]any, 0, len(x))
		for _, item := range x {
			conv, err := fromStarlark(item)
			if err != nil {
				return nil, err
			}
			out = append(out, conv)
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]any, x.Len())
		for _, item := range x.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("map keys must be strings, got %s", item[0].Type())
			}
			conv, err := fromStarlark(item[1])
			if err != nil {
				return nil, err
			}
			out[string(key)] = conv
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported return type %s", v.Type())
}

func fromIterable(it starlark.Iterable) (any, error) {
	iter := it.Iterate()
	defer iter.Done()

	out := []any{}
	var item starlark.Value
	for iter.Next(&item) {
		conv, err := fromStarlark(item)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}
