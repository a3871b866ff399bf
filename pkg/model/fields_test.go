package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsKeepKeyOrder(t *testing.T) {
	var f Fields
	require.NoError(t, json.Unmarshal([]byte(`{"z":1,"a":"x","m":{"k2":true,"k1":null},"l":[1,"b"]}`), &f))

	assert.Equal(t, []string{"z", "a", "m", "l"}, f.Keys())
	nested, ok := f.Get("m")
	require.True(t, ok)
	assert.Equal(t, []string{"k2", "k1"}, nested.(*Fields).Keys())

	out, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":"x","m":{"k2":true,"k1":null},"l":[1,"b"]}`, string(out))
}

func TestFieldsRejectNonObject(t *testing.T) {
	for _, in := range []string{`[1,2]`, `"text"`, `{"a":1} {"b":2}`, `{"a":`} {
		var f Fields
		assert.Error(t, f.UnmarshalJSON([]byte(in)), in)
	}

	var f Fields
	require.NoError(t, f.UnmarshalJSON([]byte(`null`)))
	assert.Equal(t, 0, f.Len())
}

func TestFieldsSetKeepsFirstPosition(t *testing.T) {
	f := NewFields()
	f.Set("a", 1)
	f.Set("b", 2)
	f.Set("a", 3)

	assert.Equal(t, []string{"a", "b"}, f.Keys())
	v, _ := f.Get("a")
	assert.Equal(t, 3, v)
}

func TestFieldsNoHTMLEscape(t *testing.T) {
	f := NewFields()
	f.Set("html", "<b>&</b>")
	out, err := f.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<b>&</b>"}`, string(out))
}

func TestFieldsScanValue(t *testing.T) {
	f := NewFields()
	f.Set("label", "正常")
	v, err := f.Value()
	require.NoError(t, err)

	var back Fields
	require.NoError(t, back.Scan(v))
	assert.Equal(t, []string{"label"}, back.Keys())

	empty, err := Fields{}.Value()
	require.NoError(t, err)
	assert.Nil(t, empty)
	assert.Error(t, back.Scan(42))
}

func TestStringify(t *testing.T) {
	nested := NewFields()
	nested.Set("a", json.Number("1.50"))

	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"文本", "文本"},
		{json.Number("1.50"), "1.50"},
		{true, "true"},
		{42, "42"},
		{3.5, "3.5"},
		{[]interface{}{"x", json.Number("2")}, `["x",2]`},
		{nested, `{"a":1.50}`},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Stringify(c.in))
	}
}
