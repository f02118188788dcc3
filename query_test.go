package blueflood

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestReadParams verifies the query parameters for view requests
func TestReadParams(t *testing.T) {
	t.Run("time range only", func(t *testing.T) {
		params := readParams(0, 1000, nil)
		assert.Equal(t, "0", params.Get("from"))
		assert.Equal(t, "1000", params.Get("to"))
		assert.Empty(t, params.Get("points"))
		assert.Empty(t, params.Get("resolution"))
	})

	t.Run("points", func(t *testing.T) {
		params := readParams(0, 1000, &ReadOptions{Points: 100})
		assert.Equal(t, "100", params.Get("points"))
	})

	t.Run("resolution wins over points", func(t *testing.T) {
		params := readParams(0, 1000, &ReadOptions{Points: 100, Resolution: ResolutionMin5})
		assert.Equal(t, "MIN5", params.Get("resolution"))
		assert.Empty(t, params.Get("points"))
	})

	t.Run("select", func(t *testing.T) {
		params := readParams(0, 1000, &ReadOptions{Select: []Statistic{StatMax, StatAverage}})
		assert.Equal(t, "average,max", params.Get("select"))
	})
}

// TestSelectParam verifies canonical ordering and filtering of selectables
func TestSelectParam(t *testing.T) {
	assert.Equal(t, "", selectParam(nil))
	assert.Equal(t, "average", selectParam([]Statistic{StatAverage}))

	// Requested order does not matter; output follows the canonical order
	assert.Equal(t, "average,min,max,numPoints,variance",
		selectParam([]Statistic{StatVariance, StatNumPoints, StatMax, StatMin, StatAverage}))

	// Unknown statistics are dropped, duplicates collapse
	assert.Equal(t, "min", selectParam([]Statistic{StatMin, Statistic("median"), StatMin}))
}
