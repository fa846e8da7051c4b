package rules

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:generate go tool stringer -type=Category -trimprefix=Category -output=category_string.go

// Category selects the upgrade rule applied to a legacy module.
type Category int

const (
	CategoryNone Category = iota
	CategoryRename
	CategoryGeneric
	CategoryHTTP
	CategoryScopedList
	CategoryTrigger
)

var categoryNames = map[string]Category{
	"rename":      CategoryRename,
	"generic":     CategoryGeneric,
	"http":        CategoryHTTP,
	"scoped_list": CategoryScopedList,
	"trigger":     CategoryTrigger,
}

// ParseCategory parses a YAML category name.
func ParseCategory(s string) (Category, error) {
	c, ok := categoryNames[s]
	if !ok {
		return CategoryNone, fmt.Errorf("unknown category %q", s)
	}

	return c, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Category) UnmarshalYAML(node *yaml.Node) error {
	var s string

	err := node.Decode(&s)
	if err != nil {
		return err
	}

	parsed, err := ParseCategory(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}

	*c = parsed

	return nil
}

// Operation is the shape of call a module performs.
type Operation string

const (
	OperationGet    Operation = "get"
	OperationList   Operation = "list"
	OperationSearch Operation = "search"
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// IsValid reports whether the operation is known. Empty is valid.
func (o Operation) IsValid() bool {
	switch o {
	case "", OperationGet, OperationList, OperationSearch, OperationCreate, OperationUpdate, OperationDelete:
		return true
	default:
		return false
	}
}

// SingleEntity reports whether the operation addresses one entity by id.
func (o Operation) SingleEntity() bool {
	return o == OperationGet || o == OperationUpdate || o == OperationDelete
}

// Reads reports whether the operation returns existing records.
func (o Operation) Reads() bool {
	return o == OperationGet || o == OperationList || o == OperationSearch
}
