package upgrade

import (
	"fmt"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/diagnostic"
)

// native upgrades a module that has a first-class v2 counterpart.
func (w *work) native() error {
	structured := w.structuredHashes()

	if w.m.Mapper != nil {
		if w.rule.IDKey != "" {
			renameKey(w.m.Mapper, "id", w.rule.IDKey)
		}

		w.checkNumericFieldID()
		w.fixInputs(w.m.Mapper, "mapper")
		w.regroup(w.m.Mapper, "mapper", structured)
	}

	w.rebuildExpect(structured)
	w.rebuildRestore()
	w.offerIncludeFields()
	w.rebuildInterface(structured)

	w.m.Type = w.rule.To
	w.m.Version = TargetVersion
	w.setConnection()

	return nil
}

func (w *work) checkNumericFieldID() {
	key := w.rule.NumericFieldID
	if key == "" {
		return
	}

	v, ok := w.m.Mapper[key]
	if !ok {
		return
	}

	_, isDigits := digits(v)
	_, isNumber := blueprint.Int(v)

	if !isDigits && !isNumber {
		return
	}

	w.diags.AddWarning(diagnostic.CodeNumericFieldID,
		fmt.Sprintf("field id %v is a legacy numeric id; v2 addresses fields by key, replace it manually", v),
		w.m.ID, "mapper."+key)
}
