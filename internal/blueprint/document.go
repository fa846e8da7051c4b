package blueprint

import (
	"encoding/json"
	"fmt"
)

// Shape is the envelope a blueprint arrived in.
type Shape int

const (
	// ShapeBare is {"flow": [...], "metadata": {...}}.
	ShapeBare Shape = iota
	// ShapeBlueprint is {"blueprint": {...}}.
	ShapeBlueprint
	// ShapeResponse is {"response": {"blueprint": {...}}}, the scenario API form.
	ShapeResponse
)

const (
	keyBlueprint  = "blueprint"
	keyResponse   = "response"
	keyIDSequence = "idSequence"
)

// Document is a blueprint together with the envelope it was read from.
type Document struct {
	Shape     Shape
	Blueprint *Blueprint

	outer    map[string]json.RawMessage
	response map[string]json.RawMessage
}

// Parse unwraps and decodes a blueprint document in any supported shape.
func Parse(data []byte) (*Document, error) {
	var outer map[string]json.RawMessage

	err := json.Unmarshal(data, &outer)
	if err != nil || outer == nil {
		return nil, ErrNotObject
	}

	doc := &Document{outer: outer}

	var raw json.RawMessage

	switch {
	case outer[keyFlow] != nil:
		doc.Shape = ShapeBare
		raw = data
	case outer[keyResponse] != nil:
		err = json.Unmarshal(outer[keyResponse], &doc.response)
		if err != nil || doc.response[keyBlueprint] == nil {
			return nil, ErrMissingFlow
		}

		doc.Shape = ShapeResponse
		raw = doc.response[keyBlueprint]
	case outer[keyBlueprint] != nil:
		doc.Shape = ShapeBlueprint
		raw = outer[keyBlueprint]
	default:
		return nil, ErrMissingFlow
	}

	var bp Blueprint

	err = json.Unmarshal(raw, &bp)
	if err != nil {
		return nil, fmt.Errorf("decode blueprint: %w", err)
	}

	doc.Blueprint = &bp

	return doc, nil
}

// Clone returns a document with a deep copy of the blueprint and the same envelope.
func (d *Document) Clone() *Document {
	c := &Document{Shape: d.Shape, Blueprint: d.Blueprint.Clone()}

	if d.outer != nil {
		c.outer = make(map[string]json.RawMessage, len(d.outer))
		for k, v := range d.outer {
			c.outer[k] = v
		}
	}

	if d.response != nil {
		c.response = make(map[string]json.RawMessage, len(d.response))
		for k, v := range d.response {
			c.response[k] = v
		}
	}

	return c
}

// Envelope returns the full document value in its original shape.
func (d *Document) Envelope() (any, error) {
	if d.Shape == ShapeBare {
		return d.Blueprint, nil
	}

	bp, err := Marshal(d.Blueprint)
	if err != nil {
		return nil, err
	}

	outer := make(map[string]json.RawMessage, len(d.outer))
	for k, v := range d.outer {
		outer[k] = v
	}

	if d.Shape == ShapeBlueprint {
		outer[keyBlueprint] = bp

		return outer, nil
	}

	response := make(map[string]json.RawMessage, len(d.response))
	for k, v := range d.response {
		response[k] = v
	}

	response[keyBlueprint] = bp

	err = d.bumpIDSequence(response)
	if err != nil {
		return nil, err
	}

	resp, err := Marshal(response)
	if err != nil {
		return nil, err
	}

	outer[keyResponse] = resp

	return outer, nil
}

// bumpIDSequence keeps the scenario id counter ahead of every module id.
func (d *Document) bumpIDSequence(response map[string]json.RawMessage) error {
	raw, ok := response[keyIDSequence]
	if !ok {
		return nil
	}

	v, _ := decodeValue(raw)

	seq, ok := Int(v)
	if !ok {
		return nil
	}

	next := d.Blueprint.MaxID() + 1
	if seq >= next {
		return nil
	}

	b, err := Marshal(next)
	if err != nil {
		return err
	}

	response[keyIDSequence] = b

	return nil
}

// Encode serializes the document in its original shape.
func (d *Document) Encode() ([]byte, error) {
	env, err := d.Envelope()
	if err != nil {
		return nil, err
	}

	return Marshal(env)
}

// EncodeIndent serializes the document in its original shape, indented.
func (d *Document) EncodeIndent() ([]byte, error) {
	env, err := d.Envelope()
	if err != nil {
		return nil, err
	}

	return MarshalIndent(env)
}
