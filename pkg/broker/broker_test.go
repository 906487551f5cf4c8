package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQoSFor(t *testing.T) {
	assert.Equal(t, byte(0), QoSFor("sensor/data/buoy1"))
	assert.Equal(t, byte(1), QoSFor("sensor/aggregated/buoy1"))
	assert.Equal(t, byte(1), QoSFor(" event/harvest/harvest.minted/h-1"))
}

func TestExpandTopic(t *testing.T) {
	got := ExpandTopic("event/harvest/{type}/{harvest}", map[string]string{
		"type":    "harvest.submitted",
		"harvest": "a/b#+",
	})
	assert.Equal(t, "event/harvest/harvest.submitted/a_b__", got)
	assert.Equal(t, "sensor/data/{buoy}", ExpandTopic("sensor/data/{buoy}", nil))
}

func TestEncode(t *testing.T) {
	b, err := encode("raw")
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), b)

	b, err = encode(struct {
		ID string `json:"id"`
	}{ID: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x"}`, string(b))

	_, err = encode(make(chan int))
	assert.Error(t, err)
}
