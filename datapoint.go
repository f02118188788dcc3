package blueflood

import (
	"time"
)

// DefaultTTLSeconds is the retention applied to datapoints constructed
// without an explicit TTL: 180 days.
const DefaultTTLSeconds = 60 * 60 * 24 * 180

// Datapoint is a single metric observation. Serialization is a fixed
// field-by-field projection onto the ingest wire format.
type Datapoint struct {
	Name           string  `json:"metricName"`
	Value          float64 `json:"metricValue"`
	CollectionTime int64   `json:"collectionTime"`
	TTLSeconds     int64   `json:"ttlInSeconds"`
	Unit           string  `json:"unit,omitempty"`
}

// DatapointOption configures a Datapoint at construction
type DatapointOption func(*Datapoint)

// WithCollectionTime sets the collection time in milliseconds since epoch;
// defaults to the construction time
func WithCollectionTime(millis int64) DatapointOption {
	return func(d *Datapoint) {
		d.CollectionTime = millis
	}
}

// WithTTL sets the retention in seconds; negative values are clamped to 0.
// An explicit 0 is honored as-is rather than restoring the default.
func WithTTL(seconds int64) DatapointOption {
	return func(d *Datapoint) {
		d.TTLSeconds = seconds
	}
}

// WithUnit sets the unit string, omitted from the wire format when empty
func WithUnit(unit string) DatapointOption {
	return func(d *Datapoint) {
		d.Unit = unit
	}
}

// NewDatapoint constructs a datapoint with the default TTL and the current
// time as collection time unless overridden.
func NewDatapoint(name string, value float64, opts ...DatapointOption) Datapoint {
	d := Datapoint{
		Name:           name,
		Value:          value,
		CollectionTime: TimeInMillis(time.Now()),
		TTLSeconds:     DefaultTTLSeconds,
	}
	for _, opt := range opts {
		opt(&d)
	}
	if d.TTLSeconds < 0 {
		d.TTLSeconds = 0
	}
	return d
}

// TimeInMillis converts a time to milliseconds since epoch, the unit the
// ingest API expects for collection times
func TimeInMillis(t time.Time) int64 {
	return t.UnixMilli()
}
