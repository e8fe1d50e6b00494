// Package trigger holds the pure trigger-price arithmetic: tick-grid
// rounding, trendline interpolation and the unix-millisecond time base the
// schedules are scored in.
package trigger

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrZeroWindow is returned by Interpolate when the trendline window has no
// duration. Classification must reject such orders before they reach the
// recomputer.
var ErrZeroWindow = errors.New("trendline window has zero duration")

// RoundToTick snaps a price to the symbol's tick grid and truncates the
// float noise at the symbol's decimal precision. Rounding is half away from
// zero (math.Round), applied consistently everywhere; the function is
// idempotent for a fixed (tick, decimals).
func RoundToTick(price, tick float64, decimals int) float64 {
	snapped := math.Round(price/tick) * tick
	pow := math.Pow(10, float64(decimals))
	return math.Round(snapped*pow) / pow
}

// Interpolate computes the linear trendline price at now for a window
// [t0, t1] moving from p0 to p1. Times are unix milliseconds.
func Interpolate(now, t0, t1 int64, p0, p1 float64) (float64, error) {
	if t1 == t0 {
		return 0, ErrZeroWindow
	}
	return p0 + float64(now-t0)/float64(t1-t0)*(p1-p0), nil
}

// UnixMilli converts a wall-clock time to the engine's millisecond time
// base. Sub-second precision is discarded on purpose: schedule scores are
// whole-second milliseconds, matching what the order service publishes.
func UnixMilli(t time.Time) int64 {
	return t.Unix() * 1000
}

const dateLayout = "2006-01-02T15:04:05.000Z"

// ParseDate converts an upstream date string such as
// "2020-07-06T11:23:49.000Z" to unix milliseconds, truncated to whole
// seconds.
func ParseDate(s string) (int64, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return 0, errors.Wrapf(err, "parse date %q", s)
	}
	return UnixMilli(t), nil
}

// DecimalPlaces derives the decimal precision of a tick increment, e.g.
// 0.05 -> 2, 1 -> 0.
func DecimalPlaces(tick float64) int {
	s := strconv.FormatFloat(tick, 'f', -1, 64)
	idx := strings.IndexByte(s, '.')
	if idx < 0 {
		return 0
	}
	return len(s) - idx - 1
}
