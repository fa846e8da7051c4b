package rewrite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/diagnostic"
	"blueprint-migrator/internal/fields"
	"blueprint-migrator/internal/rules"
	"blueprint-migrator/internal/upgrade"
)

const (
	hashBudget   = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	hashPriority = "cccccccccccccccccccccccccccccccccccccccc"
	hashNote     = "dddddddddddddddddddddddddddddddddddddddd"
)

// fixture has a migrated deal (2), a generic person call (5), a raw HTTP
// call (6) and a consumer (9) whose mapper holds the references under test.
func fixture(t *testing.T, refs map[string]string) *blueprint.Blueprint {
	t.Helper()

	mapper, err := json.Marshal(refs)
	require.NoError(t, err)

	var bp blueprint.Blueprint

	require.NoError(t, json.Unmarshal([]byte(`{"flow": [
		{"id": 2, "module": "pipedrive:getDealV2", "version": 2},
		{"id": 5, "module": "pipedrive:MakeAPICallV2", "version": 2},
		{"id": 6, "module": "pipedrive:MakeAPICallV2", "version": 2},
		{"id": 8, "module": "json:ParseJSON", "version": 1},
		{"id": 9, "module": "util:SetVariables", "version": 1, "mapper": `+string(mapper)+`}
	]}`), &bp))

	return &bp
}

func results(set *rules.Set) []*upgrade.Result {
	deal, _ := set.Entity("deal")
	person, _ := set.Entity("person")

	return []*upgrade.Result{
		{ModuleID: 2, From: "pipedrive:GetDeal", To: "pipedrive:getDealV2", Entity: deal},
		{ModuleID: 5, From: "pipedrive:GetPerson", To: "pipedrive:MakeAPICallV2", Entity: person,
			OutputRoot: &rules.RootRemap{To: "body.data"}},
		{ModuleID: 6, From: "http:ActionSendData", To: "pipedrive:MakeAPICallV2",
			OutputRoot: &rules.RootRemap{From: "data", To: "body"}},
	}
}

func run(t *testing.T, refs map[string]string, table *fields.Table, helpers map[string]int) (map[string]any, int, diagnostic.Diagnostics) {
	t.Helper()

	set := rules.Default()
	bp := fixture(t, refs)

	var diags diagnostic.Diagnostics

	r := New(set, table, helpers, Targets(set, bp, results(set)))

	out, n, err := r.Rewrite(context.Background(), bp, &diags)
	require.NoError(t, err)

	return out.Find(9).Mapper, n, diags
}

func TestRewrite_Categories(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"rename", "{{2.user_id}}", "{{2.owner_id}}"},
		{"rename inside text", "Owner: {{2.cc_email}}!", "Owner: {{2.smart_bcc_email}}!"},
		{"lossless flatten", "{{2.org_id.value}}", "{{2.org_id}}"},
		{"flatten with rename", "{{2.user_id.id}}", "{{2.owner_id}}"},
		{"unchanged field", "{{2.title}}", "{{2.title}}"},
		{"related embedded path is deferred", "{{2.person_id.phone[].value}}", "{{2.person_id.phone[].value}}"},
		{"related lossless path", "{{2.person_id.value}}", "{{2.person_id}}"},
		{"custom field", "{{2." + hashNote + "}}", "{{2.custom_fields." + hashNote + "}}"},
		{"raw accessor", "{{2.`" + hashNote + "`}}", "{{2.custom_fields." + hashNote + "}}"},
		{"companion", "{{2." + hashBudget + "_currency}}", "{{2.custom_fields." + hashBudget + ".currency}}"},
		{"date only", "{{2.expected_close_date}}", "{{addHours(2.expected_close_date; 0)}}"},
		{"date only inside call", `{{formatDate(2.expected_close_date; "YYYY")}}`, `{{formatDate(addHours(2.expected_close_date; 0); "YYYY")}}`},
		{"generic reroot", "{{5.phone[].value}}", "{{5.body.data.phones[].value}}"},
		{"generic custom field", "{{5." + hashNote + "}}", "{{5.body.data.custom_fields." + hashNote + "}}"},
		{"http reroot", "{{6.data.items[].id}}", "{{6.body.items[].id}}"},
		{"http other root", "{{6.statusCode}}", "{{6.statusCode}}"},
		{"non target", "{{8.user_id}}", "{{8.user_id}}"},
		{"string literal", `{{ifempty(2.title; "2.user_id")}}`, `{{ifempty(2.title; "2.user_id")}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapper, _, diags := run(t, map[string]string{"v": tt.in}, nil, nil)
			assert.Equal(t, tt.want, mapper["v"], spew.Sdump(diags))
		})
	}
}

func TestRewrite_StructuredValueFromCompanion(t *testing.T) {
	mapper, n, _ := run(t, map[string]string{
		"amount":   "{{2." + hashBudget + "}}",
		"currency": "{{2." + hashBudget + "_currency}}",
	}, nil, nil)

	assert.Equal(t, 2, n)
	assert.Equal(t, "{{2.custom_fields."+hashBudget+".value}}", mapper["amount"])
	assert.Equal(t, "{{2.custom_fields."+hashBudget+".currency}}", mapper["currency"])
}

func TestRewrite_Diagnostics(t *testing.T) {
	_, _, diags := run(t, map[string]string{
		"a": "{{2.org_id.name}}",
		"b": "{{2.org_id.name}} {{2.creator_user_id.email}}",
		"c": "{{2.org_id.value}}",
		"d": "{{5.name}} {{5.email}}",
	}, nil, nil)

	lossy := diags.ByCode(diagnostic.CodeLossyFlatten)
	assert.Len(t, lossy, 2, spew.Sdump(lossy))
	assert.Len(t, diags.ByCode(diagnostic.CodeOutputShapeChanged), 1)
}

func TestRewrite_EnumLabel(t *testing.T) {
	table := fields.NewTable(map[string][]fields.Definition{
		"deal": {
			{Key: hashPriority, Type: fields.TypeEnum, Options: []fields.Option{{ID: 1, Label: "High"}}},
			{Key: hashBudget, Type: fields.TypeMonetary},
		},
	})

	t.Run("with helper", func(t *testing.T) {
		mapper, _, diags := run(t, map[string]string{
			"label":  "{{2." + hashPriority + ".label}}",
			"budget": "{{2." + hashBudget + "}}",
		}, table, map[string]int{"deal": 20})

		assert.Equal(t,
			"{{get(map(get(map(20.body.data; options; field_code; "+hashPriority+"); 1); label; id; 2.custom_fields."+hashPriority+"); 1)}}",
			mapper["label"])
		assert.Equal(t, "{{2.custom_fields."+hashBudget+".value}}", mapper["budget"])
		assert.Empty(t, diags.ByCode(diagnostic.CodeLabelReferenceUnresolved))
	})

	t.Run("without helper", func(t *testing.T) {
		mapper, _, diags := run(t, map[string]string{
			"label": "{{2." + hashPriority + ".label}}",
		}, table, nil)

		assert.Equal(t, "{{2.custom_fields."+hashPriority+".label}}", mapper["label"])
		assert.Len(t, diags.ByCode(diagnostic.CodeLabelReferenceUnresolved), 1)
	})
}

func TestRewrite_Idempotent(t *testing.T) {
	set := rules.Default()
	bp := fixture(t, map[string]string{
		"a": "{{2.user_id.name}} {{2.expected_close_date}} {{2." + hashBudget + "_currency}} {{2." + hashBudget + "}}",
		"b": "{{5.phone[].value}} {{6.data.items}}",
	})

	var diags diagnostic.Diagnostics

	first, n, err := New(set, nil, nil, Targets(set, bp, results(set))).Rewrite(context.Background(), bp, &diags)
	require.NoError(t, err)
	require.Positive(t, n)

	second, n, err := New(set, nil, nil, Targets(set, first, nil)).Rewrite(context.Background(), first, &diags)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Same(t, first, second)
}

func TestTargets(t *testing.T) {
	set := rules.Default()
	bp := fixture(t, nil)

	targets := Targets(set, bp, results(set))

	require.Contains(t, targets, 2)
	assert.True(t, targets[2].Migrated)
	assert.Equal(t, "deal", targets[2].Entity.Name)

	require.Contains(t, targets, 5)
	assert.Equal(t, "person", targets[5].Entity.Name)
	assert.NotNil(t, targets[5].OutputRoot)

	assert.NotContains(t, targets, 8)
	assert.NotContains(t, targets, 9)
}

func TestTargets_LegacyModulesLeftOut(t *testing.T) {
	set := rules.Default()

	var bp blueprint.Blueprint

	require.NoError(t, json.Unmarshal([]byte(`{"flow": [
		{"id": 1, "module": "pipedrive:GetDeal", "version": 1},
		{"id": 2, "module": "pipedrive:GetPipeline", "version": 1},
		{"id": 3, "module": "pipedrive:AddProductToDeal", "version": 1},
		{"id": 4, "module": "pipedrive:AddProductToDeal", "version": 2},
		{"id": 5, "module": "pipedrive:getPipelineV2", "version": 2},
		{"id": 6, "module": "pipedrive:getDealV2", "version": 2},
		{"id": 9, "module": "util:SetVariables", "version": 1, "mapper": {
			"owner": "{{1.user_id}}",
			"org": "{{1.org_id.name}}",
			"selected": "{{2.selected}}"
		}}
	]}`), &bp))

	targets := Targets(set, &bp, nil)

	assert.NotContains(t, targets, 1)
	assert.NotContains(t, targets, 2)
	assert.NotContains(t, targets, 3)
	assert.Contains(t, targets, 4)
	assert.Contains(t, targets, 5)
	assert.Contains(t, targets, 6)

	var diags diagnostic.Diagnostics

	out, n, err := New(set, nil, nil, targets).Rewrite(context.Background(), &bp, &diags)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, map[string]any{
		"owner":    "{{1.user_id}}",
		"org":      "{{1.org_id.name}}",
		"selected": "{{2.selected}}",
	}, out.Find(9).Mapper)
}
