package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"int", IRInt(-100), "-100"},
		{"max int64", IRInt(9223372036854775807), "9223372036854775807"},
		{"bool", IRBool(true), "true"},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"sorted keys", IRObject{"zebra": IRInt(1), "alpha": IRInt(2)}, `{"alpha":2,"zebra":1}`},
		{"nested sorted keys", IRObject{"z": IRObject{"b": IRInt(1), "a": IRInt(2)}, "a": IRInt(3)}, `{"a":3,"z":{"a":2,"b":1}}`},
		{"no html escape", IRString("<a&b>"), `"<a&b>"`},
		{"go types", map[string]any{"n": 1, "s": "x", "l": []any{true, int64(2)}}, `{"l":[true,2],"n":1,"s":"x"}`},
		{"control escapes", IRString("a\nb\t\"c\\"), `"a\nb\t\"c\\"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalUTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as surrogates 0xD83D 0xDE00, which sort before
	// U+FF61 in UTF-16 but after it in UTF-8.
	obj := IRObject{"\uff61": IRInt(1), "\U0001F600": IRInt(2)}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uff61\":1}", string(result))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	for name, v := range map[string]any{
		"float":         1.5,
		"nil":           nil,
		"IRNull":        IRNull{},
		"nested null":   IRObject{"a": IRNull{}},
		"unsupported":   struct{}{},
		"float in list": []any{1, 2.5},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := MarshalCanonical(v)
			assert.Error(t, err)
		})
	}
}

func TestMarshalCanonicalNFC(t *testing.T) {
	decomposed, err := MarshalCanonical(IRObject{"cafe\u0301": IRString("cafe\u0301")})
	require.NoError(t, err)
	composed, err := MarshalCanonical(IRObject{"caf\u00e9": IRString("caf\u00e9")})
	require.NoError(t, err)

	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"U+2028 is literal", "a\u2028b", "\"a\u2028b\""},
		{"U+2029 is literal", "a\u2029b", "\"a\u2029b\""},
		{"escaped text is kept", `see \u2028`, `"see \\u2028"`},
		{"mixed", "lit \\u2029 and real \u2029", "\"lit \\\\u2029 and real \u2029\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(IRString(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func FuzzMarshalCanonicalIdempotent(f *testing.F) {
	f.Add(`{"a":1,"b":"test"}`)
	f.Add(`[1,2,3]`)
	f.Add(`{"square":{"index":4},"player":"O"}`)

	f.Fuzz(func(t *testing.T, jsonStr string) {
		val, err := UnmarshalIRValue([]byte(jsonStr))
		if err != nil {
			t.Skip()
		}
		first, err := MarshalCanonical(val)
		if err != nil {
			t.Skip()
		}

		val2, err := UnmarshalIRValue(first)
		require.NoError(t, err)
		second, err := MarshalCanonical(val2)
		require.NoError(t, err)

		assert.Equal(t, first, second, "canonical marshaling must be idempotent")
	})
}
