package blueflood

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewDatapointDefaults verifies the default TTL and collection time
func TestNewDatapointDefaults(t *testing.T) {
	before := time.Now().UnixMilli()
	point := NewDatapoint("app.requests", 42)
	after := time.Now().UnixMilli()

	assert.Equal(t, "app.requests", point.Name)
	assert.Equal(t, 42.0, point.Value)
	assert.Equal(t, int64(15552000), point.TTLSeconds)
	assert.GreaterOrEqual(t, point.CollectionTime, before)
	assert.LessOrEqual(t, point.CollectionTime, after)
	assert.Empty(t, point.Unit)
}

// TestNewDatapointTTLClamping verifies negative TTLs are clamped to zero
func TestNewDatapointTTLClamping(t *testing.T) {
	assert.Equal(t, int64(0), NewDatapoint("m", 1, WithTTL(-5)).TTLSeconds)
	assert.Equal(t, int64(0), NewDatapoint("m", 1, WithTTL(0)).TTLSeconds)
	assert.Equal(t, int64(3600), NewDatapoint("m", 1, WithTTL(3600)).TTLSeconds)
}

// TestNewDatapointOptions verifies explicit collection time and unit
func TestNewDatapointOptions(t *testing.T) {
	point := NewDatapoint("cpu.threads", 55,
		WithCollectionTime(1442262994835),
		WithTTL(3600),
		WithUnit("count"),
	)

	assert.Equal(t, int64(1442262994835), point.CollectionTime)
	assert.Equal(t, int64(3600), point.TTLSeconds)
	assert.Equal(t, "count", point.Unit)
}

// TestDatapointWireFormat verifies the fixed field projection, with unit
// omitted when empty
func TestDatapointWireFormat(t *testing.T) {
	point := NewDatapoint("james.test.number", 55,
		WithCollectionTime(1442262994835),
		WithTTL(3600),
	)

	data, err := json.Marshal(point)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"metricName": "james.test.number",
		"metricValue": 55,
		"collectionTime": 1442262994835,
		"ttlInSeconds": 3600
	}`, string(data))

	withUnit := NewDatapoint("m", 1, WithCollectionTime(1), WithTTL(1), WithUnit("ms"))
	data, err = json.Marshal(withUnit)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"unit":"ms"`)
}

// TestTimeInMillis verifies the epoch conversion
func TestTimeInMillis(t *testing.T) {
	at := time.Date(2015, 9, 14, 20, 36, 34, 835_000_000, time.UTC)
	assert.Equal(t, int64(1442262994835), TimeInMillis(at))
}
