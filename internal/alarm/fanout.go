package alarm

import "github.com/fraudpipeline/core/internal/domain"

// Fanout triggers every wrapped sink for each alert, so an operational
// sink (log, redis) and an operator-facing sink (the websocket feed)
// can both receive the same alert. All sinks are always attempted;
// Fanout reports the first failure it saw, if any, after trying every
// sink — matching the pipeline's best-effort alarm delivery semantics.
type Fanout struct {
	sinks []domain.Alarm
}

// NewFanout wraps the given sinks. A nil sink in the slice is skipped.
func NewFanout(sinks ...domain.Alarm) *Fanout {
	filtered := make([]domain.Alarm, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &Fanout{sinks: filtered}
}

// Trigger calls Trigger on every wrapped sink.
func (f *Fanout) Trigger(it domain.InferredTransaction) error {
	var first error
	for _, s := range f.sinks {
		if err := s.Trigger(it); err != nil && first == nil {
			first = err
		}
	}
	return first
}
