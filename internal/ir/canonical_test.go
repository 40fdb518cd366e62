package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    IRValue
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"empty string", IRString(""), `""`},
		{"int", IRInt(42), "42"},
		{"negative int", IRInt(-100), "-100"},
		{"min int64", IRInt(-9223372036854775808), "-9223372036854775808"},
		{"bool true", IRBool(true), "true"},
		{"bool false", IRBool(false), "false"},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"array of ints", IRArray{IRInt(1), IRInt(2), IRInt(3)}, "[1,2,3]"},
		{"simple object", IRObject{"a": IRInt(1)}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNestedSortedKeys(t *testing.T) {
	obj := IRObject{
		"z": IRObject{"b": IRInt(1), "a": IRInt(2)},
		"a": IRInt(3),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as the surrogate pair D800 DC00, which sorts before
	// U+E000 in UTF-16 but after it in UTF-8.
	obj := IRObject{
		"\uE000":     IRInt(1),
		"\U00010000": IRInt(2),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscaping(t *testing.T) {
	result, err := MarshalCanonical(IRString("a<b>&c"))
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(result))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical(IRString("x\u2028y\u2029z"))
	require.NoError(t, err)
	assert.Equal(t, "\"x\u2028y\u2029z\"", string(result))

	// a literal backslash followed by u2028 stays escaped
	result, err = MarshalCanonical(IRString(`\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// e followed by a combining acute accent composes to U+00E9
	result, err := MarshalCanonical(IRString("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalRejectsNil(t *testing.T) {
	_, err := MarshalCanonical(IRObject{"x": nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null")
}

func TestUnmarshalIRValue(t *testing.T) {
	v, err := UnmarshalIRValue([]byte(`{"kind":"annot","args":[1,"x",true]}`))
	require.NoError(t, err)
	assert.Equal(t, IRObject{
		"kind": IRString("annot"),
		"args": IRArray{IRInt(1), IRString("x"), IRBool(true)},
	}, v)

	_, err = UnmarshalIRValue([]byte(`{"x":1.5}`))
	assert.Error(t, err, "floats are rejected")
	_, err = UnmarshalIRValue([]byte(`{"x":null}`))
	assert.Error(t, err, "null is rejected")
}

func TestUnmarshalRoundTripsCanonical(t *testing.T) {
	in := IRObject{
		"name": IRString("port"),
		"ofs":  IRInt(-4),
		"list": IRArray{IRObject{"t": IRString("int"), "v": IRInt(7)}},
	}
	data, err := MarshalCanonical(in)
	require.NoError(t, err)

	out, err := UnmarshalIRObject(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestIRObjectAccessors(t *testing.T) {
	obj := IRObject{"s": IRString("a"), "n": IRInt(3), "a": IRArray{}, "o": IRObject{}}

	s, err := obj.String("s")
	require.NoError(t, err)
	assert.Equal(t, "a", s)
	n, err := obj.Int("n")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	_, err = obj.Array("a")
	require.NoError(t, err)
	_, err = obj.Object("o")
	require.NoError(t, err)

	_, err = obj.Int("s")
	assert.Error(t, err)
	_, err = obj.String("missing")
	assert.Error(t, err)
}
