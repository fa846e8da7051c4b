package blueprint

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bareDoc = `{
  "name": "Sync deals",
  "flow": [
    {"id": 1, "module": "gateway:CustomWebHook", "version": 1, "parameters": {"hook": 7}, "mapper": {}, "metadata": {"designer": {"x": 0, "y": 0}}},
    {"id": 2, "module": "builtin:BasicRouter", "version": 1, "mapper": null, "routes": [
      {"flow": [{"id": 3, "module": "pipedrive:GetDeal", "version": 1, "parameters": {"__IMTCONN__": 55}, "mapper": {"id": "{{1.deal}}"}, "filter": {"name": "open"}}]},
      {"flow": [{"id": 4, "module": "util:SetVariable2", "version": 1, "mapper": {"value": "{{3.title}} & <b>"}, "onerror": [{"id": 5, "module": "builtin:Ignore", "version": 1}]}]}
    ]}
  ],
  "metadata": {"version": 1, "scenario": {"roundtrips": 1}}
}`

func TestParse_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		shape Shape
	}{
		{"bare", bareDoc, ShapeBare},
		{"blueprint", `{"blueprint": ` + bareDoc + `}`, ShapeBlueprint},
		{"response", `{"code": "OK", "response": {"blueprint": ` + bareDoc + `, "scheduling": {"type": "indefinitely"}}}`, ShapeResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.shape, doc.Shape)
			require.Len(t, doc.Blueprint.Flow, 2)

			out, err := doc.Encode()
			require.NoError(t, err)
			assert.JSONEq(t, tt.input, string(out))
		})
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte(`[1, 2]`))
	require.ErrorIs(t, err, ErrNotObject)

	_, err = Parse([]byte(`{"name": "no flow"}`))
	require.ErrorIs(t, err, ErrMissingFlow)

	_, err = Parse([]byte(`{"response": {"scheduling": {}}}`))
	require.ErrorIs(t, err, ErrMissingFlow)

	_, err = Parse([]byte(`{"blueprint": {"flow": "nope"}}`))
	require.ErrorIs(t, err, ErrMissingFlow)
}

func TestModule_KeepsUnknownKeysAndNumbers(t *testing.T) {
	doc, err := Parse([]byte(bareDoc))
	require.NoError(t, err)

	m := doc.Blueprint.Find(3)
	require.NotNil(t, m)
	assert.Equal(t, "pipedrive:GetDeal", m.Type)
	assert.Equal(t, 1, m.Version)
	assert.Equal(t, json.Number("55"), m.Parameters["__IMTCONN__"])
	assert.Equal(t, map[string]any{"name": "open"}, m.Extra["filter"])
}

func TestEncode_NoHTMLEscape(t *testing.T) {
	doc, err := Parse([]byte(bareDoc))
	require.NoError(t, err)

	out, err := doc.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(out), `{{3.title}} & <b>`)
}

func TestEnvelope_BumpsIDSequence(t *testing.T) {
	input := `{"response": {"idSequence": 6, "blueprint": ` + bareDoc + `}}`

	doc, err := Parse([]byte(input))
	require.NoError(t, err)

	doc.Blueprint.Flow = append(doc.Blueprint.Flow, &Module{ID: 9, Type: "util:SetVariable2", Version: 1})

	out, err := doc.Encode()
	require.NoError(t, err)

	var decoded struct {
		Response struct {
			IDSequence int `json:"idSequence"`
		} `json:"response"`
	}

	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, 10, decoded.Response.IDSequence)
}

func TestDocument_CloneIsIndependent(t *testing.T) {
	doc, err := Parse([]byte(bareDoc))
	require.NoError(t, err)

	clone := doc.Clone()
	clone.Blueprint.Find(3).Mapper["id"] = "changed"
	clone.Blueprint.Find(4).OnError[0].Type = "builtin:Break"

	assert.Equal(t, "{{1.deal}}", doc.Blueprint.Find(3).Mapper["id"])
	assert.Equal(t, "builtin:Ignore", doc.Blueprint.Find(5).Type)
}
