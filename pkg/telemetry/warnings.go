package telemetry

import (
	"sync"

	"github.com/plusconf/plusconf/pkg/engine"
)

// OnceSet remembers which once-only warning keys were already logged.
// One OnceSet is shared by every pass of a process.
type OnceSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewOnceSet creates an empty set.
func NewOnceSet() *OnceSet {
	return &OnceSet{seen: make(map[string]struct{})}
}

// First reports whether key is seen for the first time and marks it.
func (o *OnceSet) First(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.seen[key]; ok {
		return false
	}
	o.seen[key] = struct{}{}
	return true
}

// Warner collects the warnings of one pass and logs them.
// Every warning is recorded; once-only warnings are logged at most once per OnceSet.
type Warner struct {
	logger  *Logger
	metrics *Metrics
	once    *OnceSet

	mu       sync.Mutex
	warnings []engine.Warning
}

// NewWarner creates a warner. metrics and once may be nil.
func NewWarner(logger *Logger, metrics *Metrics, once *OnceSet) *Warner {
	if logger == nil {
		logger = Nop()
	}
	if once == nil {
		once = NewOnceSet()
	}
	return &Warner{logger: logger, metrics: metrics, once: once}
}

// Warn records and logs a warning.
func (w *Warner) Warn(msg string) {
	w.record(engine.Warning{Message: msg})
	w.logger.Warn(msg)
}

// WarnOnce records a warning and logs it only the first time key is seen.
// An empty key deduplicates on the message itself.
func (w *Warner) WarnOnce(key, msg string) {
	if key == "" {
		key = msg
	}
	w.record(engine.Warning{Message: msg, Key: key})
	if w.once.First(key) {
		w.logger.Warn(msg)
	}
}

// Warnings returns the recorded warnings in emission order.
func (w *Warner) Warnings() []engine.Warning {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]engine.Warning, len(w.warnings))
	copy(out, w.warnings)
	return out
}

func (w *Warner) record(warning engine.Warning) {
	w.mu.Lock()
	w.warnings = append(w.warnings, warning)
	w.mu.Unlock()
	if w.metrics != nil {
		w.metrics.RecordWarning()
	}
}
