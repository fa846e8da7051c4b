package inject

import (
	"context"
	"fmt"
	"strings"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/common"
	"blueprint-migrator/internal/diagnostic"
	"blueprint-migrator/internal/expr"
	"blueprint-migrator/internal/fields"
	"blueprint-migrator/internal/rewrite"
)

// Batches splits the custom fields requested by each fetch module in ids
// into batches of at most the batch limit. The first batch stays on the
// module; every further batch goes to a clone inserted after it, and
// references to a field move to the clone that fetches it.
func (in *Injector) Batches(ctx context.Context, bp *blueprint.Blueprint, ids []int, diags *diagnostic.Diagnostics) (*blueprint.Blueprint, Stats, error) {
	referenced := make(map[int][]string)

	for _, id := range ids {
		referenced[id] = nil
	}

	err := rewrite.Scan(bp, func(site expr.Site) {
		hashes, ok := referenced[site.Ref.Module]
		if !ok {
			return
		}

		if hash, ok := customFieldHash(site.Ref); ok {
			referenced[site.Ref.Module] = append(hashes, hash)
		}
	})
	if err != nil {
		return nil, Stats{}, fmt.Errorf("scan custom field references: %w", err)
	}

	alloc := blueprint.NewAllocator(bp)
	owner := make(map[int]map[string]int)
	p := &plan{pass: "batches"}

	for _, id := range ids {
		hashes := common.Unique(referenced[id])
		if len(hashes) <= in.opts.BatchLimit {
			continue
		}

		src := bp.Find(id)
		if src == nil {
			continue
		}

		batches := common.Chunk(hashes, in.opts.BatchLimit)
		first := strings.Join(batches[0], ",")

		p.edit(id, func(m *blueprint.Module) {
			setCustomFields(m, first)
		})

		owner[id] = make(map[string]int)

		var clones []*blueprint.Module

		for i, batch := range batches[1:] {
			c := src.Clone()
			c.ID = alloc.Next()
			setCustomFields(c, strings.Join(batch, ","))
			c.SetName(fmt.Sprintf("%s (custom fields %d/%d)", displayName(src), i+2, len(batches)))

			for _, hash := range batch {
				owner[id][hash] = c.ID
			}

			clones = append(clones, c)
		}

		p.add(id, fmt.Sprintf("module %d references %d custom fields, more than %d per request", id, len(hashes), in.opts.BatchLimit), clones...)
	}

	if len(owner) > 0 {
		p.rewrite = func(site expr.Site) (string, bool) {
			hash, ok := customFieldHash(site.Ref)
			if !ok {
				return "", false
			}

			clone, ok := owner[site.Ref.Module][hash]
			if !ok {
				return "", false
			}

			return site.Ref.WithModule(clone).String(), true
		}
	}

	return in.apply(ctx, bp, p, diags)
}

// customFieldHash returns the custom field a reference reads.
func customFieldHash(ref expr.Reference) (string, bool) {
	for i, seg := range ref.Path {
		if seg.Name == segCustomFields && i+1 < len(ref.Path) && fields.IsHash(ref.Path[i+1].Name) {
			return ref.Path[i+1].Name, true
		}
	}

	return "", false
}

func setCustomFields(m *blueprint.Module, hashes string) {
	if m.Mapper == nil {
		m.Mapper = map[string]any{}
	}

	m.Mapper[segCustomFields] = hashes
}

func displayName(m *blueprint.Module) string {
	if name := m.Name(); name != "" {
		return name
	}

	return m.Type
}
