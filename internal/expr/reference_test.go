package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReference_RoundTrip(t *testing.T) {
	tests := []string{
		"2.title",
		"2.person_id.phone[].value",
		"2.items[1].id",
		"2.custom_fields.170fec77b436631984905a2a5f82308bad04aff3",
		"2.`Deal value`",
		"12.body.data[]",
		"3.170fec77b436631984905a2a5f82308bad04aff3_currency",
	}

	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			ref, err := ParseReference(s)
			require.NoError(t, err)
			assert.Equal(t, s, ref.String())
		})
	}
}

func TestParseReference_Structure(t *testing.T) {
	ref, err := ParseReference("2.person_id.phone[].value")
	require.NoError(t, err)

	assert.Equal(t, 2, ref.Module)
	assert.Equal(t, []string{"person_id", "phone", "value"}, ref.Names())
	assert.True(t, ref.Path[1].Indexed)
	assert.Empty(t, ref.Path[1].Index)
	assert.True(t, ref.HasPrefix("person_id", "phone"))
	assert.False(t, ref.HasPrefix("person_id", "email"))
	assert.Equal(t, "person_id", ref.Head())
}

func TestParseReference_Invalid(t *testing.T) {
	for _, s := range []string{"", "2", "2.", "x.title", "1.5", "2.title extra", "2.`open"} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseReference(s)
			require.ErrorIs(t, err, ErrInvalidReference)
		})
	}
}

func TestReference_Replace(t *testing.T) {
	ref := MustParseReference("2.person_id.phone[].value")

	moved := ref.WithModule(9).Replace(2, Each("phones"))
	assert.Equal(t, "9.phones[].value", moved.String())
	assert.Equal(t, "2.person_id.phone[].value", ref.String())

	assert.Equal(t, "2.person_id", ref.Truncate(1).String())
	assert.Equal(t, "{{2.person_id}}", ref.Truncate(1).Template())
}

func TestParsePath(t *testing.T) {
	path, err := ParsePath("phones[].value")
	require.NoError(t, err)
	assert.Equal(t, []Segment{Each("phones"), Field("value")}, path)

	_, err = ParsePath("")
	require.Error(t, err)
}
