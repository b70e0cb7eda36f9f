package logx

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Throttle rate-limits a repeating log line. Suppressed lines are counted
// and reported on the next line that gets through.
type Throttle struct {
	lim        *rate.Limiter
	suppressed atomic.Uint64
}

// NewThrottle allows burst lines at once, then one per every.
func NewThrottle(every time.Duration, burst int) *Throttle {
	return &Throttle{lim: rate.NewLimiter(rate.Every(every), burst)}
}

func (t *Throttle) Warn(l Logger, msg string, fields ...Field) bool {
	return t.emit(l, zerolog.WarnLevel, msg, fields)
}

func (t *Throttle) Error(l Logger, msg string, fields ...Field) bool {
	return t.emit(l, zerolog.ErrorLevel, msg, fields)
}

func (t *Throttle) emit(l Logger, level zerolog.Level, msg string, fields []Field) bool {
	if !t.lim.Allow() {
		t.suppressed.Add(1)
		return false
	}
	if n := t.suppressed.Swap(0); n > 0 {
		fields = append(fields, Uint64("suppressed", n))
	}
	l.logSkip(3, level, msg, fields...)
	return true
}

// Suppressed returns the number of lines dropped since the last emitted one.
func (t *Throttle) Suppressed() uint64 { return t.suppressed.Load() }
