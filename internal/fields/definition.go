package fields

import (
	"encoding/json"
	"slices"
	"strconv"

	"blueprint-migrator/internal/match"
)

// Option is one choice of an enum or set field.
type Option struct {
	ID    int    `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// Definition is the metadata of one custom field.
type Definition struct {
	Key     string   `json:"key" yaml:"key"`
	Name    string   `json:"name" yaml:"name"`
	Type    string   `json:"type" yaml:"type"`
	Options []Option `json:"options,omitempty" yaml:"options,omitempty"`
}

// UnmarshalJSON accepts both the v1 (key, name, field_type) and the v2
// (field_code, field_name, field_type) definition layouts.
func (d *Definition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key       string          `json:"key"`
		FieldCode string          `json:"field_code"`
		Name      string          `json:"name"`
		FieldName string          `json:"field_name"`
		Type      string          `json:"type"`
		FieldType string          `json:"field_type"`
		Options   json.RawMessage `json:"options"`
	}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	*d = Definition{
		Key:  firstNonEmpty(raw.FieldCode, raw.Key),
		Name: firstNonEmpty(raw.FieldName, raw.Name),
		Type: firstNonEmpty(raw.FieldType, raw.Type),
	}

	if len(raw.Options) > 0 && string(raw.Options) != "null" {
		var opts []struct {
			ID    json.RawMessage `json:"id"`
			Label string          `json:"label"`
		}

		err = json.Unmarshal(raw.Options, &opts)
		if err != nil {
			return err
		}

		for _, o := range opts {
			id, err := parseOptionID(o.ID)
			if err != nil {
				continue
			}

			d.Options = append(d.Options, Option{ID: id, Label: o.Label})
		}
	}

	return nil
}

// option ids arrive as numbers, or as numeric strings from older accounts.
func parseOptionID(raw json.RawMessage) (int, error) {
	var n int

	err := json.Unmarshal(raw, &n)
	if err == nil {
		return n, nil
	}

	var s string

	err = json.Unmarshal(raw, &s)
	if err != nil {
		return 0, err
	}

	return strconv.Atoi(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

// IsEnum reports whether the field is single-select.
func (d Definition) IsEnum() bool {
	return d.Type == TypeEnum
}

// IsSet reports whether the field is multi-select.
func (d Definition) IsSet() bool {
	return d.Type == TypeSet
}

// IsStructured reports whether v2 represents the value as an object.
func (d Definition) IsStructured() bool {
	return IsStructuredType(d.Type)
}

// OptionID resolves a label to its option id, ignoring case and spacing.
func (d Definition) OptionID(label string) (int, bool) {
	i := match.Exact(label, d.Labels())
	if i < 0 {
		return 0, false
	}

	return d.Options[i].ID, true
}

// HasOption reports whether id is one of the field's options.
func (d Definition) HasOption(id int) bool {
	return slices.ContainsFunc(d.Options, func(o Option) bool { return o.ID == id })
}

// Labels returns the option labels in order.
func (d Definition) Labels() []string {
	labels := make([]string, len(d.Options))
	for i, o := range d.Options {
		labels[i] = o.Label
	}

	return labels
}

// Suggest returns option labels close to an unresolved label.
func (d Definition) Suggest(label string) []string {
	return match.Closest(label, d.Labels(), 3)
}
