package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// Timer measures an operation and the named stages inside it.
type Timer struct {
	start  time.Time
	last   time.Time
	name   string
	log    zerolog.Logger
	stages []Stage
}

// Stage is the duration of one step of a timed operation.
type Stage struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// NewTimer creates a new timer with the given name
func NewTimer(name string, log zerolog.Logger) *Timer {
	now := time.Now()
	return &Timer{
		start: now,
		last:  now,
		name:  name,
		log:   log,
	}
}

// Lap records the time since the previous lap (or the start) as stage.
func (t *Timer) Lap(stage string) time.Duration {
	now := time.Now()
	d := now.Sub(t.last)
	t.last = now
	t.stages = append(t.stages, Stage{Name: stage, Duration: d})

	t.log.Debug().
		Str("operation", t.name).
		Str("stage", stage).
		Dur("duration_ms", d).
		Msg("Stage completed")
	return d
}

// Stages returns the recorded laps in order.
func (t *Timer) Stages() []Stage {
	return append([]Stage(nil), t.stages...)
}

// Stop stops the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	return t.StopWithContext(nil)
}

// StopWithContext stops the timer and logs with additional context
func (t *Timer) StopWithContext(context map[string]interface{}) time.Duration {
	duration := time.Since(t.start)

	event := t.log.Debug().
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Float64("duration_seconds", duration.Seconds())

	for key, value := range context {
		switch v := value.(type) {
		case string:
			event = event.Str(key, v)
		case int:
			event = event.Int(key, v)
		case int64:
			event = event.Int64(key, v)
		case float64:
			event = event.Float64(key, v)
		case bool:
			event = event.Bool(key, v)
		default:
			event = event.Interface(key, v)
		}
	}
	event.Msg("Performance measurement")

	if duration > 30*time.Second {
		t.log.Warn().
			Str("operation", t.name).
			Dur("duration", duration).
			Msg("Slow operation detected (>30s)")
	}

	return duration
}
