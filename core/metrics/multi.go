package metrics

import "errors"

// MultiSink fans events out to several sinks. Every sink is called even when
// an earlier one fails; the errors are joined.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordMessage(ev MessageEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordMessage(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordCommand(ev CommandEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(CommandRecorder); ok {
			errs = append(errs, r.RecordCommand(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordConnection(ev ConnectionEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(ConnectionRecorder); ok {
			errs = append(errs, r.RecordConnection(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordScene(ev SceneEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(SceneRecorder); ok {
			errs = append(errs, r.RecordScene(ev))
		}
	}
	return errors.Join(errs...)
}
