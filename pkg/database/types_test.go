package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArrayScan(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  StringArray
	}{
		{"nil", nil, nil},
		{"empty", "", StringArray{}},
		{"json", `["a.png","b c.pdf"]`, StringArray{"a.png", "b c.pdf"}},
		{"json bytes", []byte(`["x"]`), StringArray{"x"}},
		{"postgres literal", `{a,"b,c",d}`, StringArray{"a", "b,c", "d"}},
		{"postgres empty", `{}`, StringArray{}},
		{"bare value", "solo", StringArray{"solo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got StringArray
			require.NoError(t, got.Scan(tt.value))
			assert.Equal(t, tt.want, got)
		})
	}

	var bad StringArray
	assert.Error(t, bad.Scan(42))
}

func TestStringArrayValue(t *testing.T) {
	v, err := StringArray{"a", "b"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, v)

	v, err = StringArray(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	src := StringArray{"a"}
	out := src.Strings()
	out[0] = "changed"
	assert.Equal(t, "a", src[0])
}
