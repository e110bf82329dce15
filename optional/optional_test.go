package optional

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSomeAndNone(t *testing.T) {
	t.Parallel()

	some := Some(42)
	assert.True(t, some.NonEmpty())

	val, ok := some.Get()
	assert.True(t, ok)
	assert.Equal(t, 42, val)

	none := None[int]()
	assert.True(t, none.Empty())
	assert.Equal(t, 7, none.GetOrElse(7))
	assert.Equal(t, some, none.OrElse(some))
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	type holder struct {
		Share Value[string] `json:"share"`
	}

	data, err := json.Marshal(holder{Share: None[string]()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"share":null}`, string(data))

	var decoded holder

	require.NoError(t, json.Unmarshal([]byte(`{"share":"abc"}`), &decoded))
	assert.Equal(t, Some("abc"), decoded.Share)
}

func TestString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "None", None[int]().String())
	assert.Equal(t, "Some(3)", Some(3).String())
}
