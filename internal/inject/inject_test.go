package inject

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/diagnostic"
	"blueprint-migrator/internal/fields"
	"blueprint-migrator/internal/rewrite"
	"blueprint-migrator/internal/rules"
	"blueprint-migrator/internal/upgrade"
)

const (
	hashStage = "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
	hashTags  = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func table() *fields.Table {
	return fields.NewTable(map[string][]fields.Definition{
		"deal": {
			{Key: hashStage, Name: "Stage", Type: fields.TypeEnum, Options: []fields.Option{{ID: 1, Label: "Lead"}}},
			{Key: hashTags, Name: "Tags", Type: fields.TypeSet, Options: []fields.Option{{ID: 4, Label: "VIP"}}},
		},
	})
}

func parse(t *testing.T, src string) *blueprint.Blueprint {
	t.Helper()

	var bp blueprint.Blueprint

	require.NoError(t, json.Unmarshal([]byte(src), &bp))

	return &bp
}

func injector(opts upgrade.Options) *Injector {
	set := rules.Default()

	return New(set, upgrade.New(set, opts), Options{})
}

func x(t *testing.T, bp *blueprint.Blueprint, id int) float64 {
	t.Helper()

	m := bp.Find(id)
	require.NotNil(t, m, "module %d", id)

	p, ok := m.Position()
	require.True(t, ok, "module %d has no position", id)

	return p.X
}

func ids(flow []*blueprint.Module) []int {
	out := make([]int, len(flow))
	for i, m := range flow {
		out[i] = m.ID
	}

	return out
}

func TestHelpers_InjectedOncePerCategory(t *testing.T) {
	bp := parse(t, `{"flow": [
		{"id": 1, "module": "pipedrive:GetDeal", "version": 1, "parameters": {"__IMTCONN__": 77},
		 "mapper": {"id": "5"}, "metadata": {"designer": {"x": 0, "y": 0}}},
		{"id": 2, "module": "util:SetVariable2", "version": 1,
		 "mapper": {"a": "{{1.`+hashStage+`.label}}", "b": "{{1.`+"`"+hashTags+"`"+`.label}}"},
		 "metadata": {"designer": {"x": 300, "y": 0}}}
	]}`)

	in := injector(upgrade.Options{Fields: table()})

	var diags diagnostic.Diagnostics

	helpers, stats, err := in.Helpers(context.Background(), bp, &diags)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"deal": 3}, helpers)
	assert.Equal(t, 1, stats.Injected)
	assert.Equal(t, 1, diags.Count(diagnostic.CodeNodeInjected))
	assert.Equal(t, []int{3, 1, 2}, ids(bp.Flow))

	helper := bp.Flow[0]
	assert.Equal(t, "pipedrive:MakeAPICallV2", helper.Type)
	assert.Equal(t, "Get Fields (Smart Cache)", helper.Name())
	assert.Equal(t, "/v2/dealFields", helper.Mapper["url"])

	conn, ok := blueprint.Int(helper.Parameters["__IMTCONN__"])
	require.True(t, ok)
	assert.Equal(t, 77, conn)

	assert.InDelta(t, 0, x(t, bp, 3), 0)
	assert.InDelta(t, 300, x(t, bp, 1), 0)
	assert.InDelta(t, 600, x(t, bp, 2), 0)

	again, stats, err := in.Helpers(context.Background(), bp, &diags)
	require.NoError(t, err)
	assert.Equal(t, helpers, again)
	assert.Zero(t, stats.Injected)
	assert.Len(t, bp.Flow, 3)
}

func TestHelpers_AfterLeadingTrigger(t *testing.T) {
	bp := parse(t, `{"flow": [
		{"id": 1, "module": "gateway:CustomWebHook", "version": 1, "metadata": {"designer": {"x": 0, "y": 0}}},
		{"id": 2, "module": "pipedrive:GetDeal", "version": 1, "parameters": {"__IMTCONN__": 77},
		 "mapper": {"id": "{{1.id}}"}, "metadata": {"designer": {"x": 300, "y": 0}}},
		{"id": 3, "module": "util:SetVariable2", "version": 1,
		 "mapper": {"a": "{{2.`+hashStage+`.label}}"}, "metadata": {"designer": {"x": 600, "y": 0}}}
	]}`)

	helpers, stats, err := injector(upgrade.Options{Fields: table()}).Helpers(context.Background(), bp, &diagnostic.Diagnostics{})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"deal": 4}, helpers)
	assert.Equal(t, 1, stats.Injected)
	assert.Equal(t, []int{1, 4, 2, 3}, ids(bp.Flow))

	assert.InDelta(t, 0, x(t, bp, 1), 0)
	assert.InDelta(t, 300, x(t, bp, 4), 0)
	assert.InDelta(t, 600, x(t, bp, 2), 0)
	assert.InDelta(t, 900, x(t, bp, 3), 0)
}

func TestHelpers_DynamicOptionValue(t *testing.T) {
	bp := parse(t, `{"flow": [
		{"id": 4, "module": "pipedrive:UpdateDeal", "version": 1, "parameters": {"__IMTCONN__": 77},
		 "mapper": {"id": "5", "`+hashStage+`": "{{3.stage}}"}}
	]}`)

	helpers, _, err := injector(upgrade.Options{Fields: table()}).Helpers(context.Background(), bp, &diagnostic.Diagnostics{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"deal": 5}, helpers)
}

func TestHelpers_NotNeeded(t *testing.T) {
	src := `{"flow": [
		{"id": 1, "module": "pipedrive:GetDeal", "version": 1, "parameters": {"__IMTCONN__": 77}},
		{"id": 2, "module": "util:SetVariable2", "version": 1, "mapper": {"a": "{{1.title}}"}}
	]}`

	t.Run("no label references", func(t *testing.T) {
		bp := parse(t, src)

		helpers, stats, err := injector(upgrade.Options{Fields: table()}).Helpers(context.Background(), bp, &diagnostic.Diagnostics{})
		require.NoError(t, err)
		assert.Empty(t, helpers)
		assert.Zero(t, stats.Injected)
	})

	t.Run("no definitions", func(t *testing.T) {
		bp := parse(t, strings.Replace(src, "{{1.title}}", "{{1."+hashStage+".label}}", 1))

		helpers, _, err := injector(upgrade.Options{}).Helpers(context.Background(), bp, &diagnostic.Diagnostics{})
		require.NoError(t, err)
		assert.Empty(t, helpers)
		assert.Len(t, bp.Flow, 2)
	})
}

func TestHelpers_MissingConnection(t *testing.T) {
	bp := parse(t, `{"flow": [
		{"id": 1, "module": "pipedrive:GetDeal", "version": 1},
		{"id": 2, "module": "util:SetVariable2", "version": 1, "mapper": {"a": "{{1.`+hashStage+`.label}}"}}
	]}`)

	var diags diagnostic.Diagnostics

	helpers, _, err := injector(upgrade.Options{Fields: table()}).Helpers(context.Background(), bp, &diags)
	require.NoError(t, err)
	assert.Empty(t, helpers)
	assert.Equal(t, 1, diags.Count(diagnostic.CodeMissingCredential))
}

func TestFetchers_RelatedPerson(t *testing.T) {
	bp := parse(t, `{"flow": [
		{"id": 1, "module": "gateway:CustomWebHook", "version": 1, "metadata": {"designer": {"x": 0, "y": 0}}},
		{"id": 2, "module": "pipedrive:getDealV2", "version": 2, "parameters": {"__IMTCONN__": 9},
		 "mapper": {"id": "{{1.id}}"}, "metadata": {"designer": {"x": 300, "y": 0}}},
		{"id": 3, "module": "util:SetVariables", "version": 1, "metadata": {"designer": {"x": 600, "y": 0}},
		 "mapper": {"phone": "{{2.person_id.phone[].value}}", "name": "{{2.person_id.name}}", "pid": "{{2.person_id}}",
		            "first": "{{first(2.person_id.email).value}}"}}
	]}`)

	in := injector(upgrade.Options{})

	var diags diagnostic.Diagnostics

	out, stats, err := in.Fetchers(context.Background(), bp, &diags)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Injected, spew.Sdump(out.Flow))
	assert.Equal(t, 3, stats.Rewritten)

	assert.Equal(t, []int{1, 2, 4, 3}, ids(out.Flow))

	person := out.Find(4)
	assert.Equal(t, "pipedrive:GetPersonV2", person.Type)
	assert.Equal(t, "{{2.person_id}}", person.Mapper["id"])
	assert.Equal(t, "Get Person (Auto-injected for v2 migration)", person.Name())

	conn, _ := blueprint.Int(person.Parameters["__IMTCONN__"])
	assert.Equal(t, 9, conn)

	consumer := out.Find(3)
	assert.Equal(t, "{{4.phones[].value}}", consumer.Mapper["phone"])
	assert.Equal(t, "{{4.name}}", consumer.Mapper["name"])
	assert.Equal(t, "{{2.person_id}}", consumer.Mapper["pid"])
	assert.Equal(t, "{{first(4.emails).value}}", consumer.Mapper["first"])

	assert.InDelta(t, 600, x(t, out, 4), 0)
	assert.InDelta(t, 900, x(t, out, 3), 0)

	again, stats, err := in.Fetchers(context.Background(), out, &diags)
	require.NoError(t, err)
	assert.Zero(t, stats.Injected)
	assert.Same(t, out, again)
}

func TestFetchers_NotForOtherModules(t *testing.T) {
	bp := parse(t, `{"flow": [
		{"id": 2, "module": "pipedrive:getPersonV2", "version": 2, "parameters": {"__IMTCONN__": 9}},
		{"id": 3, "module": "util:SetVariables", "version": 1, "mapper": {"a": "{{2.person_id.name}}"}}
	]}`)

	out, stats, err := injector(upgrade.Options{}).Fetchers(context.Background(), bp, &diagnostic.Diagnostics{})
	require.NoError(t, err)
	assert.Zero(t, stats.Injected)
	assert.Len(t, out.Flow, 2)
}

func TestFetchers_NotForLegacySources(t *testing.T) {
	bp := parse(t, `{"flow": [
		{"id": 1, "module": "pipedrive:GetDeal", "version": 1},
		{"id": 3, "module": "util:SetVariables", "version": 1, "mapper": {"a": "{{1.person_id.name}}", "b": "{{1.org_id.name}}"}}
	]}`)

	var diags diagnostic.Diagnostics

	out, stats, err := injector(upgrade.Options{}).Fetchers(context.Background(), bp, &diags)
	require.NoError(t, err)
	assert.Zero(t, stats.Injected)
	assert.Same(t, bp, out)
	assert.Zero(t, diags.Count(diagnostic.CodeMissingCredential))
}

func TestScripts_SetLabels(t *testing.T) {
	set := rules.Default()
	bp := parse(t, `{"flow": [
		{"id": 2, "module": "pipedrive:getDealV2", "version": 2, "parameters": {"__IMTCONN__": 9}},
		{"id": 3, "module": "util:SetVariables", "version": 1,
		 "mapper": {"tags": "Tags: {{2.custom_fields.`+hashTags+`.label}}", "ids": "{{2.custom_fields.`+hashTags+`}}"}}
	]}`)

	in := New(set, upgrade.New(set, upgrade.Options{Fields: table()}), Options{})
	targets := rewrite.Targets(set, bp, nil)

	var diags diagnostic.Diagnostics

	out, stats, err := in.Scripts(context.Background(), bp, targets, map[string]int{"deal": 10}, &diags)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Injected)

	assert.Equal(t, []int{2, 4, 3}, ids(out.Flow))

	script := out.Find(4)
	assert.Equal(t, "code:ExecuteCode", script.Type)
	assert.JSONEq(t, `[
		{"name": "`+hashTags+`_ids", "value": "{{2.custom_fields.`+hashTags+`}}"},
		{"name": "`+hashTags+`_options", "value": "{{get(map(10.body.data; options; field_code; `+hashTags+`); 1)}}"}
	]`, encode(t, script.Mapper["input"]))
	assert.Contains(t, script.Mapper["code"], "labels_"+hashTags+": labels(")

	consumer := out.Find(3)
	assert.Equal(t, "Tags: {{4.result.labels_"+hashTags+"}}", consumer.Mapper["tags"])
	assert.Equal(t, "{{2.custom_fields."+hashTags+"}}", consumer.Mapper["ids"])
}

func TestScripts_NoHelper(t *testing.T) {
	set := rules.Default()
	bp := parse(t, `{"flow": [
		{"id": 2, "module": "pipedrive:getDealV2", "version": 2},
		{"id": 3, "module": "util:SetVariables", "version": 1,
		 "mapper": {"a": "{{2.custom_fields.`+hashTags+`.label}}", "b": "{{2.custom_fields.`+hashTags+`.label}}"}}
	]}`)

	in := New(set, upgrade.New(set, upgrade.Options{Fields: table()}), Options{})

	var diags diagnostic.Diagnostics

	out, stats, err := in.Scripts(context.Background(), bp, rewrite.Targets(set, bp, nil), nil, &diags)
	require.NoError(t, err)
	assert.Zero(t, stats.Injected)
	assert.Len(t, out.Flow, 2)
	assert.Equal(t, 1, diags.Count(diagnostic.CodeLabelReferenceUnresolved))
}

func hashN(i int) string {
	return fmt.Sprintf("%040x", i+1)
}

func batchFixture(t *testing.T, n int) *blueprint.Blueprint {
	t.Helper()

	refs := make(map[string]string, n)
	for i := range n {
		refs[fmt.Sprintf("f%02d", i)] = "{{2.custom_fields." + hashN(i) + "}}"
	}

	mapper, err := json.Marshal(refs)
	require.NoError(t, err)

	return parse(t, `{"flow": [
		{"id": 2, "module": "pipedrive:getDealV2", "version": 2, "parameters": {"__IMTCONN__": 9},
		 "mapper": {"id": "7"}, "metadata": {"designer": {"x": 0, "y": 0, "name": "Deal"}}},
		{"id": 3, "module": "util:SetVariables", "version": 1, "mapper": `+string(mapper)+`,
		 "metadata": {"designer": {"x": 300, "y": 0}}}
	]}`)
}

func TestBatches_SplitsByHash(t *testing.T) {
	bp := batchFixture(t, 20)

	var diags diagnostic.Diagnostics

	out, stats, err := injector(upgrade.Options{}).Batches(context.Background(), bp, []int{2}, &diags)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Injected)
	assert.Equal(t, 5, stats.Rewritten)

	assert.Equal(t, []int{2, 4, 3}, ids(out.Flow))

	first := strings.Split(out.Find(2).Mapper["custom_fields"].(string), ",")
	second := strings.Split(out.Find(4).Mapper["custom_fields"].(string), ",")

	assert.Len(t, first, 15)
	assert.Len(t, second, 5)
	assert.Equal(t, "7", out.Find(4).Mapper["id"])
	assert.Equal(t, "Deal (custom fields 2/2)", out.Find(4).Name())
	assert.Equal(t, "Deal", out.Find(2).Name())

	consumer := out.Find(3)

	for i := range 20 {
		owner := 2
		if i >= 15 {
			owner = 4
		}

		assert.Equal(t, fmt.Sprintf("{{%d.custom_fields.%s}}", owner, hashN(i)), consumer.Mapper[fmt.Sprintf("f%02d", i)])
	}

	assert.InDelta(t, 300, x(t, out, 4), 0)
	assert.InDelta(t, 600, x(t, out, 3), 0)
}

func TestBatches_UnderLimit(t *testing.T) {
	bp := batchFixture(t, 15)

	out, stats, err := injector(upgrade.Options{}).Batches(context.Background(), bp, []int{2}, &diagnostic.Diagnostics{})
	require.NoError(t, err)
	assert.Zero(t, stats.Injected)
	assert.NotContains(t, out.Find(2).Mapper, "custom_fields")
}

func encode(t *testing.T, v any) string {
	t.Helper()

	data, err := blueprint.Marshal(v)
	require.NoError(t, err)

	return string(data)
}
