package signature

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	testCases := []struct {
		name     string
		payload  any
		expected string
	}{
		{
			name:     "sorts keys at every depth",
			payload:  map[string]any{"z": 1, "a": map[string]any{"y": 2, "b": 3}},
			expected: `{"a":{"b":3,"y":2},"z":1}`,
		},
		{
			name:     "struct fields are sorted too",
			payload:  struct{ Zeta, Alpha string }{"z", "a"},
			expected: `{"Alpha":"a","Zeta":"z"}`,
		},
		{
			name:     "no html escaping",
			payload:  map[string]any{"ref": "<a&b>"},
			expected: `{"ref":"<a&b>"}`,
		},
		{
			name:     "number literals are kept as written",
			payload:  json.RawMessage(`{"amount":12.50,"n":1e2,"big":9007199254740993}`),
			expected: `{"amount":12.50,"big":9007199254740993,"n":1e2}`,
		},
		{
			name:     "nested arrays keep order",
			payload:  json.RawMessage(`{"a":[{"y":1,"x":[]},null,false]}`),
			expected: `{"a":[{"x":[],"y":1},null,false]}`,
		},
		{
			name:     "whitespace is dropped",
			payload:  []byte("{ \"a\" : [ 1 , 2 ] }\n"),
			expected: `{"a":[1,2]}`,
		},
		{
			name:     "top level string is signed raw",
			payload:  "hello",
			expected: `hello`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Canonicalize(tc.payload)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, string(got))
		})
	}
}

func TestCanonicalize_InvalidJSON(t *testing.T) {
	_, err := Canonicalize([]byte(`{"a":`))
	assert.Error(t, err)

	_, err = Canonicalize(make(chan int))
	assert.Error(t, err)

	_, err = Canonicalize([]byte(`{"a":1} {"b":2}`))
	assert.Error(t, err)
}

func TestCanonicalize_RejectsAmbiguousText(t *testing.T) {
	t.Run("duplicate key", func(t *testing.T) {
		_, err := Canonicalize([]byte(`{"amount":99999,"amount":10}`))
		assert.ErrorIs(t, err, ErrDuplicateKey)
	})

	t.Run("nested duplicate key", func(t *testing.T) {
		_, err := Canonicalize([]byte(`{"data":{"id":1,"id":2}}`))
		assert.ErrorIs(t, err, ErrDuplicateKey)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		_, err := Canonicalize([]byte("{\"name\":\"\xff\"}"))
		assert.ErrorIs(t, err, ErrInvalidUTF8)
	})
}
