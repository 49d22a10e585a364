package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSONSortsKeys(t *testing.T) {
	out, err := CanonicalJSON(map[string]any{
		"zeta":  1,
		"alpha": map[string]any{"delta": 2, "beta": 3},
	})
	require.NoError(t, err)

	assert.Equal(t, "{\n  \"alpha\": {\n    \"beta\": 3,\n    \"delta\": 2\n  },\n  \"zeta\": 1\n}", string(out))
}

func TestCanonicalJSONDeterministic(t *testing.T) {
	value := map[string]any{"b": []any{1, 2}, "a": "x", "c": map[string]any{"y": true, "x": false}}

	first, err := CanonicalJSON(value)
	require.NoError(t, err)
	second, err := CanonicalJSON(value)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCanonicalJSONNoHTMLEscaping(t *testing.T) {
	out, err := CanonicalJSON(map[string]any{"html": "<b>&</b>"})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"<b>&</b>"`)
}

func TestDumpFallsBackPerValue(t *testing.T) {
	// Channels have no JSON representation; they stringify instead of
	// failing the whole dump.
	out := Dump(map[string]any{"ok": 1, "ch": make(chan int)})
	assert.Contains(t, out, `"ok": 1`)
	assert.Contains(t, out, `"ch"`)
}

func TestDumpScalar(t *testing.T) {
	assert.Equal(t, `"hello"`, Dump("hello"))
	assert.Equal(t, "42", Dump(42))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", Slugify("Hello, World!"))
	assert.Equal(t, "conversation", Slugify("!!!"))
}
