package diagnostic

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnostics_AddAndCount(t *testing.T) {
	var d Diagnostics

	d.AddWarning(CodeLossyFlatten, "org_id.name flattened", 2, "{{2.org_id.name}}")
	d.AddWarning(CodeLossyFlatten, "user_id.email flattened", 2, "{{2.user_id.email}}")
	d.AddInfo(CodeModuleMigrated, "pipedrive:GetDeal -> pipedrive:getDealV2", 2, "")
	d.AddError(CodeModuleFailed, "boom", 7, "")

	assert.Equal(t, 2, d.Count(CodeLossyFlatten))
	assert.Equal(t, 1, d.Count(CodeModuleMigrated))
	assert.Len(t, d.ByCode(CodeLossyFlatten), 2)
	assert.Len(t, d.All(), 4)
	assert.True(t, d.HasErrors())
	assert.False(t, d.IsValid())
	require.Error(t, d.Error())
	assert.Contains(t, d.Error().Error(), "[module 7]")
}

func TestDiagnostics_Merge(t *testing.T) {
	var a, b Diagnostics

	a.AddWarning(CodePaginationRemoved, "start dropped", 3, "start")
	b.AddWarning(CodeTriggerReconfigure, "recreate webhook", 1, "")
	b.AddInfo(CodeNodeInjected, "GetPersonV2", 9, "")

	a.Merge(b)
	assert.Len(t, a.Warnings, 2)
	assert.Len(t, a.Infos, 1)
	assert.Nil(t, a.Error())
}

func TestDiagnostic_String(t *testing.T) {
	d := Diagnostic{
		Code:        CodeUnresolvedLabel,
		Message:     `label "Hgh" not found`,
		ModuleID:    4,
		FieldPath:   "custom_fields.abc",
		Suggestions: []string{"High"},
	}

	assert.Equal(t, `[module 4] custom_fields.abc: [unresolved_label] label "Hgh" not found (did you mean: High?)`, d.String())
	assert.Equal(t, "plain", Diagnostic{Message: "plain"}.String())
}

func TestSeverity_JSON(t *testing.T) {
	data, err := json.Marshal(Diagnostic{Severity: SeverityWarning, Code: CodeDynamicSort, Message: "m"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"severity":"warning","code":"dynamic_sort","message":"m"}`, string(data))
	assert.Equal(t, "Severity(9)", Severity(9).String())
}

func TestReport_Write(t *testing.T) {
	r := Report{RunID: "r1", Changed: true, ModulesMigrated: 2, NodesInjected: 1, Connection: "preserved"}
	r.Diagnostics.AddWarning(CodeLossyFlatten, "dropped", 2, "")

	var b strings.Builder
	require.NoError(t, r.Write(&b))
	assert.Contains(t, b.String(), "2 modules migrated, 1 modules injected, 0 references rewritten, 1 warnings")
	assert.Contains(t, b.String(), "warning [module 2]: [lossy_flatten] dropped")
	assert.Equal(t, map[Code]int{CodeLossyFlatten: 1}, r.Counts())

	assert.Equal(t, "nothing to migrate", (&Report{}).Summary())
}
