package repository

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"KlineScope/internal/domain/models"
)

// Timeframe is an interval string such as "1m" or "4h".
type Timeframe string

var timeframePattern = regexp.MustCompile(`^([0-9]+)([smhd])$`)

// unitOrder fixes the iteration order used for tie breaking.
var unitOrder = []string{"s", "m", "h", "d"}

var minutesPerUnit = map[string]float64{
	"s": 1.0 / 60,
	"m": 1,
	"h": 60,
	"d": 1440,
}

// TimeframeTable is a set of supported intervals grouped by unit, each list ascending.
type TimeframeTable map[string][]int

// DefaultTimeframes is the set of kline intervals the exchange serves.
var DefaultTimeframes = TimeframeTable{
	"s": {1},
	"m": {1, 3, 5, 15, 30},
	"h": {1, 2, 4, 6, 8, 12},
	"d": {1, 3},
}

// Supported lists the table's intervals in seconds, minutes, hours, days order.
func (t TimeframeTable) Supported() []Timeframe {
	var out []Timeframe
	for _, u := range unitOrder {
		for _, v := range t[u] {
			out = append(out, Timeframe(fmt.Sprintf("%d%s", v, u)))
		}
	}
	return out
}

// Contains reports whether tf is listed verbatim.
func (t TimeframeTable) Contains(tf Timeframe) bool {
	v, unit, err := ParseTimeframe(string(tf))
	if err != nil {
		return false
	}
	for _, sv := range t[unit] {
		if sv == v {
			return true
		}
	}
	return false
}

// Normalize returns s unchanged if supported, otherwise the supported interval
// closest in minutes. On a tie the first candidate in table order wins.
func (t TimeframeTable) Normalize(s string) (Timeframe, error) {
	v, unit, err := ParseTimeframe(s)
	if err != nil {
		return "", err
	}
	for _, sv := range t[unit] {
		if sv == v {
			return Timeframe(s), nil
		}
	}

	target := float64(v) * minutesPerUnit[unit]
	best := Timeframe("")
	bestDiff := math.Inf(1)
	for _, u := range unitOrder {
		for _, sv := range t[u] {
			diff := math.Abs(target - float64(sv)*minutesPerUnit[u])
			if diff < bestDiff {
				bestDiff = diff
				best = Timeframe(fmt.Sprintf("%d%s", sv, u))
			}
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: no supported intervals configured", models.ErrInvalidFormat)
	}
	return best, nil
}

// ParseTimeframe splits "15m" into (15, "m").
func ParseTimeframe(s string) (int, string, error) {
	m := timeframePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, "", fmt.Errorf("%w: %q", models.ErrInvalidFormat, s)
	}
	v, err := strconv.Atoi(m[1])
	if err != nil || v <= 0 {
		return 0, "", fmt.Errorf("%w: %q", models.ErrInvalidFormat, s)
	}
	return v, m[2], nil
}

// NormalizeTimeframe normalizes s against DefaultTimeframes, the intervals
// the exchange kline endpoints accept. That table has no 45m bucket, so "50m"
// becomes "1h" here; callers that want 45m (or sub-minute buckets other than
// 1s) normalize against their own TimeframeTable.
func NormalizeTimeframe(s string) (Timeframe, error) {
	return DefaultTimeframes.Normalize(s)
}

// SupportedTimeframes lists DefaultTimeframes.
func SupportedTimeframes() []Timeframe {
	return DefaultTimeframes.Supported()
}
