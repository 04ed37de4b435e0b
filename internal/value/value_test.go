package value

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumber_EqualIgnoresScale(t *testing.T) {
	a, err := ParseNumber("20")
	require.NoError(t, err)
	b, err := ParseNumber("20.0")
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, "20", b.String())
}

func TestNumber_NotEqualToText(t *testing.T) {
	assert.False(t, NewNumber(1).Equal(Text("1")))
	assert.False(t, Text("1").Equal(NewNumber(1)))
}

func TestParseNumber_TrimsWhitespace(t *testing.T) {
	n, err := ParseNumber("  12 ")
	require.NoError(t, err)
	assert.True(t, n.Equal(NewNumber(12)))
}

func TestParseNumber_Rejects(t *testing.T) {
	for _, raw := range []string{"", "   ", "abc", "1,000", "12abc"} {
		_, err := ParseNumber(raw)
		assert.Error(t, err, "input %q", raw)
	}
}

func TestEqual_Nil(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, Text("x")))
	assert.False(t, Equal(NewNumber(1), nil))
}

func TestInputSet_CloneIsIndependent(t *testing.T) {
	orig := InputSet{"a": NewNumber(1), "b": Text("x")}
	clone := orig.Clone()
	clone["a"] = NewNumber(2)

	assert.True(t, orig["a"].Equal(NewNumber(1)))
	assert.True(t, clone["a"].Equal(NewNumber(2)))
	assert.Nil(t, InputSet(nil).Clone())
}

func TestInputSet_Equal(t *testing.T) {
	a := InputSet{"a": NewNumber(2), "b": Text("x")}
	b := InputSet{"b": Text("x"), "a": NewNumber(2)}
	c := InputSet{"a": NewNumber(2)}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(InputSet{"a": NewNumber(2), "b": Text("y")}))
}

func TestInputSet_SortedKeys(t *testing.T) {
	s := InputSet{"sys.b": Text("x"), "sys.a": Text("y"), "other": NewNumber(1)}
	assert.Equal(t, []FieldID{"other", "sys.a", "sys.b"}, s.SortedKeys())
}

func TestInputSet_MarshalJSON(t *testing.T) {
	s := InputSet{"qty": NewNumber(20), "guarding": Text("Tall")}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `{"guarding":"Tall","qty":20}`, string(data))
}

func TestInputSet_UnmarshalJSON(t *testing.T) {
	var s InputSet
	err := json.Unmarshal([]byte(`{"qty": 2.50, "guarding": "Tall"}`), &s)
	require.NoError(t, err)

	require.Len(t, s, 2)
	n, ok := s["qty"].(Number)
	require.True(t, ok)
	assert.Equal(t, "2.5", n.String())
	assert.Equal(t, Text("Tall"), s["guarding"])
}

func TestInputSet_UnmarshalJSON_RejectsNonScalars(t *testing.T) {
	for _, raw := range []string{
		`{"a": true}`,
		`{"a": null}`,
		`{"a": [1]}`,
		`{"a": {"b": 1}}`,
	} {
		var s InputSet
		assert.Error(t, json.Unmarshal([]byte(raw), &s), raw)
	}
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(3)
	require.NoError(t, err)
	assert.True(t, v.Equal(NewNumber(3)))

	v, err = FromAny("Left")
	require.NoError(t, err)
	assert.Equal(t, Text("Left"), v)

	v, err = FromAny(json.Number("10"))
	require.NoError(t, err)
	assert.True(t, v.Equal(NewNumber(10)))

	_, err = FromAny(nil)
	assert.Error(t, err)
	_, err = FromAny(true)
	assert.Error(t, err)
}
