package tracing

import "sync/atomic"

// NopSystem is a System that records nothing. It still honors the sample
// rate accessors so the overhead control loop behaves identically with
// tracing disabled.
type NopSystem struct {
	rate atomic.Value // float64
}

// NewNopSystem creates a no-op tracing system at the given sample rate.
func NewNopSystem(rate float64) *NopSystem {
	s := &NopSystem{}
	s.rate.Store(rate)
	return s
}

func (s *NopSystem) StartTrace(tc *TraceContext)      {}
func (s *NopSystem) StartChildTrace(tc *TraceContext) {}
func (s *NopSystem) SetTraceStatus(tc *TraceContext, status SpanStatus, message string) {
}
func (s *NopSystem) FinishTrace(tc *TraceContext) {}

func (s *NopSystem) SetSampleRate(rate float64) {
	s.rate.Store(rate)
}

func (s *NopSystem) SampleRate() float64 {
	return s.rate.Load().(float64)
}

func (s *NopSystem) Statistics() Statistics {
	return Statistics{SampleRate: s.SampleRate()}
}

var _ System = (*NopSystem)(nil)
