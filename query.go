package blueflood

import (
	"net/url"
	"strconv"
	"strings"
)

// Resolution is the time-bucket granularity for a metric view query
type Resolution string

const (
	ResolutionFull    Resolution = "FULL"
	ResolutionMin5    Resolution = "MIN5"
	ResolutionMin20   Resolution = "MIN20"
	ResolutionMin60   Resolution = "MIN60"
	ResolutionMin240  Resolution = "MIN240"
	ResolutionMin1440 Resolution = "MIN1440"
)

// Statistic is a selectable aggregate on view queries
type Statistic string

const (
	StatAverage   Statistic = "average"
	StatMin       Statistic = "min"
	StatMax       Statistic = "max"
	StatNumPoints Statistic = "numPoints"
	StatVariance  Statistic = "variance"
)

// selectables is the full set of statistics the read API accepts, in the
// order they appear in the select parameter
var selectables = []Statistic{StatAverage, StatMin, StatMax, StatNumPoints, StatVariance}

// ReadOptions narrows a view query. Resolution takes precedence over
// Points when both are set.
type ReadOptions struct {
	Points     int
	Resolution Resolution
	Select     []Statistic
}

// readParams builds the query parameters for a view request
func readParams(start, stop int64, opts *ReadOptions) url.Values {
	params := url.Values{
		"from": []string{strconv.FormatInt(start, 10)},
		"to":   []string{strconv.FormatInt(stop, 10)},
	}
	if opts == nil {
		return params
	}

	if opts.Resolution != "" {
		params.Set("resolution", string(opts.Resolution))
	} else if opts.Points > 0 {
		params.Set("points", strconv.Itoa(opts.Points))
	}

	if selects := selectParam(opts.Select); selects != "" {
		params.Set("select", selects)
	}
	return params
}

// selectParam joins the requested statistics in canonical order, dropping
// anything outside the selectable set
func selectParam(stats []Statistic) string {
	if len(stats) == 0 {
		return ""
	}
	requested := make(map[Statistic]bool, len(stats))
	for _, s := range stats {
		requested[s] = true
	}

	var parts []string
	for _, s := range selectables {
		if requested[s] {
			parts = append(parts, string(s))
		}
	}
	return strings.Join(parts, ",")
}
