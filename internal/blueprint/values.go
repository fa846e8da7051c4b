package blueprint

import (
	"encoding/json"
	"math"
)

// Int converts a decoded JSON number to int.
func Int(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}

		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err == nil {
			return int(i), true
		}

		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}

		return int(f), true
	default:
		return 0, false
	}
}

// Float converts a decoded JSON number to float64.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()

		return f, err == nil
	default:
		return 0, false
	}
}

// Object returns v as a JSON object.
func Object(v any) (map[string]any, bool) {
	obj, ok := v.(map[string]any)

	return obj, ok
}

// Array returns v as a JSON array.
func Array(v any) ([]any, bool) {
	arr, ok := v.([]any)

	return arr, ok
}

// Path walks nested objects by key.
func Path(v any, keys ...string) (any, bool) {
	cur := v

	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}

		cur, ok = obj[k]
		if !ok {
			return nil, false
		}
	}

	return cur, true
}

// CloneValue deep-copies a decoded JSON value.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneObject(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}

		return out
	default:
		return v
	}
}

// CloneObject deep-copies a decoded JSON object. A nil object stays nil.
func CloneObject(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}

	return out
}

// Clone deep-copies the module and its nested flows.
func (m *Module) Clone() *Module {
	c := &Module{
		ID:         m.ID,
		Type:       m.Type,
		Version:    m.Version,
		Parameters: CloneObject(m.Parameters),
		Mapper:     CloneObject(m.Mapper),
		Metadata:   CloneObject(m.Metadata),
		Extra:      CloneObject(m.Extra),
		OnError:    cloneFlow(m.OnError),
	}

	if m.Routes != nil {
		c.Routes = make([]*Route, len(m.Routes))
		for i, r := range m.Routes {
			c.Routes[i] = &Route{Flow: cloneFlow(r.Flow), Extra: CloneObject(r.Extra)}
		}
	}

	return c
}

// Clone deep-copies the blueprint.
func (b *Blueprint) Clone() *Blueprint {
	return &Blueprint{Flow: cloneFlow(b.Flow), Extra: CloneObject(b.Extra)}
}

func cloneFlow(flow []*Module) []*Module {
	if flow == nil {
		return nil
	}

	out := make([]*Module, len(flow))
	for i, m := range flow {
		out[i] = m.Clone()
	}

	return out
}
