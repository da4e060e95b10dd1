package metrics

import coremetrics "github.com/seoulbike/bikeflow/core/metrics"

// MultiSink fans pipeline events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordIngest forwards the event to all sinks, returning the first error.
func (m *MultiSink) RecordIngest(r coremetrics.IngestResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordIngest(r); err != nil {
			return err
		}
	}
	return nil
}

// RecordTraining forwards the event to all sinks.
func (m *MultiSink) RecordTraining(r coremetrics.TrainingResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordTraining(r); err != nil {
			return err
		}
	}
	return nil
}

// RecordRecommendation forwards the event to all sinks.
func (m *MultiSink) RecordRecommendation(r coremetrics.RecommendationEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordRecommendation(r); err != nil {
			return err
		}
	}
	return nil
}

// RecordPurge forwards the event to all sinks.
func (m *MultiSink) RecordPurge(r coremetrics.PurgeResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordPurge(r); err != nil {
			return err
		}
	}
	return nil
}
