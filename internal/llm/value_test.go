package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseValueKinds(t *testing.T) {
	v, err := ParseValue([]byte(`{"a":1.5,"b":"x","c":true,"d":null,"e":[1,"two"]}`))
	require.NoError(t, err)
	assert.Equal(t, KindObject, v.Kind())
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, v.Keys())

	a, _ := v.Field("a")
	n, ok := a.Num()
	require.True(t, ok)
	assert.Equal(t, 1.5, n)

	b, _ := v.Field("b")
	s, ok := b.Str()
	require.True(t, ok)
	assert.Equal(t, "x", s)

	c, _ := v.Field("c")
	flag, ok := c.Bool()
	require.True(t, ok)
	assert.True(t, flag)

	d, _ := v.Field("d")
	assert.True(t, d.IsNull())

	e, _ := v.Field("e")
	require.Equal(t, KindArray, e.Kind())
	assert.Len(t, e.Items(), 2)

	_, ok = v.Field("missing")
	assert.False(t, ok)
}

func TestParseValueRejectsBadInput(t *testing.T) {
	for _, in := range []string{``, `{"a":`, `{} {}`, `nope`} {
		_, err := ParseValue([]byte(in))
		var decodeErr *DecodeError
		assert.ErrorAs(t, err, &decodeErr, "input %q", in)
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	in := `{"list":[1,2.25,"x",false,null],"nested":{"k":"v"},"n":-3}`
	v, err := ParseValue([]byte(in))
	require.NoError(t, err)
	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))

	back, err := ParseValue(out)
	require.NoError(t, err)
	assert.True(t, v.Equal(back))
}

func TestValueEqual(t *testing.T) {
	a := Object(map[string]Value{"x": Number(1), "y": Array(String("a"))})
	b := Object(map[string]Value{"y": Array(String("a")), "x": Number(1)})
	c := Object(map[string]Value{"x": Number(2), "y": Array(String("a"))})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, Number(1).Equal(String("1")))
	assert.True(t, Null().Equal(Value{}))
}

func TestFromNative(t *testing.T) {
	type point struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	v, err := FromNative(map[string]any{
		"n":     3,
		"s":     []string{"a", "b"},
		"point": point{X: 1, Y: 2},
	})
	require.NoError(t, err)

	p, ok := v.Field("point")
	require.True(t, ok)
	x, _ := p.Field("x")
	n, _ := x.Num()
	assert.Equal(t, float64(1), n)

	assert.Equal(t, map[string]any{
		"n":     float64(3),
		"s":     []any{"a", "b"},
		"point": map[string]any{"x": float64(1), "y": float64(2)},
	}, v.Native())
}

func TestObjectCopiesMap(t *testing.T) {
	fields := map[string]Value{"a": Number(1)}
	v := Object(fields)
	fields["b"] = Number(2)
	assert.Equal(t, []string{"a"}, v.Keys())
}

func TestValueStringAndYAML(t *testing.T) {
	v := Object(map[string]Value{"path": String("a.txt")})
	assert.Equal(t, `{"path":"a.txt"}`, v.String())

	out, err := yaml.Marshal(struct {
		Input Value `yaml:"input"`
	}{Input: v})
	require.NoError(t, err)
	assert.Equal(t, "input:\n    path: a.txt\n", string(out))
}
