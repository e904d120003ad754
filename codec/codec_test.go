package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}

	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestCodecs_CrossCompatible(t *testing.T) {
	p := newBenchParams()

	for _, enc := range []Codec{JSON{}, GoJSON{}} {
		for _, dec := range []Codec{JSON{}, GoJSON{}} {
			t.Run(enc.Name()+"->"+dec.Name(), func(t *testing.T) {
				data, err := enc.Marshal(p)
				require.NoError(t, err)

				var got benchParams
				require.NoError(t, dec.Unmarshal(data, &got))
				assert.Equal(t, p, got)
			})
		}
	}
}

func TestPretty(t *testing.T) {
	out, err := Pretty(nil, map[string]int{"k": 3})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"k\": 3\n}", string(out))

	out, err = Pretty(JSON{}, []int{1})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "[\n  1"))
}

func TestMustMarshal(t *testing.T) {
	assert.Equal(t, `{"k":1}`, string(MustMarshal(nil, map[string]int{"k": 1})))
	assert.Panics(t, func() { MustMarshal(JSON{}, make(chan int)) })
}
