package blueprint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Module is a single node of the blueprint graph.
type Module struct {
	ID         int
	Type       string
	Version    int
	Parameters map[string]any
	Mapper     map[string]any
	Metadata   map[string]any
	Routes     []*Route
	OnError    []*Module

	// Extra holds keys this package does not interpret (filter, etc.).
	Extra map[string]any
}

// Route is one branch of a router module.
type Route struct {
	Flow  []*Module
	Extra map[string]any
}

// Blueprint is the unwrapped document root.
type Blueprint struct {
	Flow  []*Module
	Extra map[string]any
}

var (
	// ErrMissingFlow is returned when the document has no flow array.
	ErrMissingFlow = errors.New("blueprint: document has no flow")
	// ErrNotObject is returned when the document is not a JSON object.
	ErrNotObject = errors.New("blueprint: document is not a JSON object")
)

const (
	keyID         = "id"
	keyModule     = "module"
	keyVersion    = "version"
	keyParameters = "parameters"
	keyMapper     = "mapper"
	keyMetadata   = "metadata"
	keyRoutes     = "routes"
	keyOnError    = "onerror"
	keyFlow       = "flow"
)

// UnmarshalJSON decodes a module, keeping numbers as json.Number.
func (m *Module) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("module: %w", err)
	}

	*m = Module{}

	for key, value := range raw {
		switch key {
		case keyID:
			m.ID, err = decodeInt(value)
		case keyModule:
			err = json.Unmarshal(value, &m.Type)
		case keyVersion:
			m.Version, err = decodeInt(value)
		case keyParameters, keyMapper, keyMetadata:
			err = m.setBag(key, value)
		case keyRoutes:
			err = json.Unmarshal(value, &m.Routes)
		case keyOnError:
			err = json.Unmarshal(value, &m.OnError)
		default:
			err = m.setExtra(key, value)
		}

		if err != nil {
			return fmt.Errorf("module %q: %w", key, err)
		}
	}

	return nil
}

// MarshalJSON encodes a module with its unknown keys.
func (m *Module) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+8)
	for k, v := range m.Extra {
		out[k] = v
	}

	out[keyID] = m.ID

	if m.Type != "" {
		out[keyModule] = m.Type
	}

	if m.Version != 0 {
		out[keyVersion] = m.Version
	}

	if m.Parameters != nil {
		out[keyParameters] = m.Parameters
	}

	if m.Mapper != nil {
		out[keyMapper] = m.Mapper
	}

	if m.Metadata != nil {
		out[keyMetadata] = m.Metadata
	}

	if m.Routes != nil {
		out[keyRoutes] = m.Routes
	}

	if m.OnError != nil {
		out[keyOnError] = m.OnError
	}

	return Marshal(out)
}

// setBag stores an object-valued key. Anything that is not an object (null,
// an empty array from old exports) is kept verbatim in Extra.
func (m *Module) setBag(key string, value json.RawMessage) error {
	v, err := decodeValue(value)
	if err != nil {
		return err
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return m.setExtra(key, value)
	}

	switch key {
	case keyParameters:
		m.Parameters = obj
	case keyMapper:
		m.Mapper = obj
	case keyMetadata:
		m.Metadata = obj
	}

	return nil
}

func (m *Module) setExtra(key string, value json.RawMessage) error {
	v, err := decodeValue(value)
	if err != nil {
		return err
	}

	if m.Extra == nil {
		m.Extra = make(map[string]any)
	}

	m.Extra[key] = v

	return nil
}

// UnmarshalJSON decodes a route.
func (r *Route) UnmarshalJSON(data []byte) error {
	flow, extra, err := decodeFlowContainer(data, false)
	if err != nil {
		return fmt.Errorf("route: %w", err)
	}

	r.Flow, r.Extra = flow, extra

	return nil
}

// MarshalJSON encodes a route.
func (r *Route) MarshalJSON() ([]byte, error) {
	return encodeFlowContainer(r.Flow, r.Extra)
}

// UnmarshalJSON decodes a blueprint root. A missing flow is an error.
func (b *Blueprint) UnmarshalJSON(data []byte) error {
	flow, extra, err := decodeFlowContainer(data, true)
	if err != nil {
		return err
	}

	b.Flow, b.Extra = flow, extra

	return nil
}

// MarshalJSON encodes a blueprint root.
func (b *Blueprint) MarshalJSON() ([]byte, error) {
	return encodeFlowContainer(b.Flow, b.Extra)
}

func decodeFlowContainer(data []byte, required bool) ([]*Module, map[string]any, error) {
	var raw map[string]json.RawMessage

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, nil, ErrNotObject
	}

	flowRaw, ok := raw[keyFlow]
	if !ok && required {
		return nil, nil, ErrMissingFlow
	}

	var flow []*Module

	if ok {
		trimmed := bytes.TrimSpace(flowRaw)
		if len(trimmed) == 0 || trimmed[0] != '[' {
			if required {
				return nil, nil, ErrMissingFlow
			}

			return nil, nil, fmt.Errorf("flow is not an array")
		}

		err = json.Unmarshal(flowRaw, &flow)
		if err != nil {
			return nil, nil, err
		}

		if flow == nil {
			flow = []*Module{}
		}
	}

	extra := make(map[string]any)

	for key, value := range raw {
		if key == keyFlow {
			continue
		}

		v, err := decodeValue(value)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", key, err)
		}

		extra[key] = v
	}

	return flow, extra, nil
}

func encodeFlowContainer(flow []*Module, extra map[string]any) ([]byte, error) {
	out := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		out[k] = v
	}

	if flow != nil {
		out[keyFlow] = flow
	}

	return Marshal(out)
}

// Marshal encodes v as compact JSON without HTML escaping.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	err := enc.Encode(v)
	if err != nil {
		return nil, err
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalIndent encodes v as indented JSON without HTML escaping.
func MarshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	err := enc.Encode(v)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses arbitrary JSON keeping numbers as json.Number.
func Decode(data []byte) (any, error) {
	return decodeValue(data)
}

func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any

	err := dec.Decode(&v)
	if err != nil {
		return nil, err
	}

	return v, nil
}

func decodeInt(data []byte) (int, error) {
	v, err := decodeValue(data)
	if err != nil {
		return 0, err
	}

	n, ok := Int(v)
	if !ok {
		return 0, fmt.Errorf("expected integer, got %s", string(data))
	}

	return n, nil
}
