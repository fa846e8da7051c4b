package rewrite

import (
	"encoding/json"
	"fmt"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/expr"
)

// Apply serializes bp, applies fn to every reference and decodes the result.
// When nothing changed bp itself is returned.
func Apply(bp *blueprint.Blueprint, fn expr.RewriteFunc) (*blueprint.Blueprint, int, error) {
	data, err := blueprint.Marshal(bp)
	if err != nil {
		return nil, 0, fmt.Errorf("encode blueprint: %w", err)
	}

	out, n, err := expr.RewriteJSON(data, fn)
	if err != nil {
		return nil, 0, fmt.Errorf("rewrite references: %w", err)
	}

	if n == 0 {
		return bp, 0, nil
	}

	var rewritten blueprint.Blueprint

	err = json.Unmarshal(out, &rewritten)
	if err != nil {
		return nil, 0, fmt.Errorf("decode rewritten blueprint: %w", err)
	}

	return &rewritten, n, nil
}

// Scan calls fn for every reference in bp.
func Scan(bp *blueprint.Blueprint, fn func(site expr.Site)) error {
	_, _, err := Apply(bp, func(site expr.Site) (string, bool) {
		fn(site)

		return "", false
	})

	return err
}
