package upgrade

import (
	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/rules"
)

// connection picks the credential a migrated module binds to: the override,
// else the module's own reference, else (raw HTTP calls only) the default.
func (u *Upgrader) connection(m *blueprint.Module, r *rules.ModuleRule) (any, bool) {
	if u.opts.ConnectionID != nil {
		return *u.opts.ConnectionID, true
	}

	if v, ok := m.Parameters[u.rules.Connection.Parameter]; ok && present(v) {
		return v, true
	}

	if r.Category == rules.CategoryHTTP && u.opts.DefaultConnectionID != 0 {
		return u.opts.DefaultConnectionID, true
	}

	return nil, false
}

// ConnectionFor returns the credential an injected module next to anchor
// should use.
func (u *Upgrader) ConnectionFor(anchor *blueprint.Module) any {
	if u.opts.ConnectionID != nil {
		return *u.opts.ConnectionID
	}

	if anchor != nil {
		if v, ok := anchor.Parameters[u.rules.Connection.Parameter]; ok && present(v) {
			return v
		}
	}

	if u.opts.DefaultConnectionID != 0 {
		return u.opts.DefaultConnectionID
	}

	return nil
}

// RestoreConnection returns the restore hint of the credential parameter.
func (u *Upgrader) RestoreConnection() map[string]any {
	label := u.opts.ConnectionLabel
	if label == "" {
		label = u.rules.Connection.Label
	}

	return map[string]any{
		u.rules.Connection.Parameter: map[string]any{
			"label": label,
			"data": map[string]any{
				"scoped":     "true",
				"connection": u.rules.Connection.Account,
			},
		},
	}
}

// ConnectionSchema returns the declared parameter schema of the credential.
func (u *Upgrader) ConnectionSchema() []any {
	return []any{map[string]any{
		"name":     u.rules.Connection.Parameter,
		"type":     "account:" + u.rules.Connection.Account,
		"label":    "Connection",
		"required": true,
	}}
}

func (w *work) setConnection() {
	if w.m.Parameters == nil {
		w.m.Parameters = map[string]any{}
	}

	w.m.Parameters[w.rules.Connection.Parameter] = w.conn

	restore := w.restore()
	restore["parameters"] = w.RestoreConnection()

	w.metadata()["parameters"] = w.ConnectionSchema()
}

func (w *work) metadata() map[string]any {
	if w.m.Metadata == nil {
		w.m.Metadata = map[string]any{}
	}

	return w.m.Metadata
}

func (w *work) restore() map[string]any {
	md := w.metadata()

	restore, ok := blueprint.Object(md["restore"])
	if !ok {
		restore = map[string]any{}
		md["restore"] = restore
	}

	return restore
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	default:
		n, ok := blueprint.Int(v)

		return !ok || n != 0
	}
}
