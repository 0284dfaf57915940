package narrator

import "sync/atomic"

// PipelineState is the operator-visible run state. One instance is
// shared by reference between the queue worker, the poll loop, the
// command listener, and the wake monitor; every flag is atomic so
// readers never contend on the queue lock.
type PipelineState struct {
	paused   atomic.Bool
	running  atomic.Bool
	speaking atomic.Bool
}

func NewPipelineState() *PipelineState {
	s := &PipelineState{}
	s.running.Store(true)
	return s
}

func (s *PipelineState) Paused() bool   { return s.paused.Load() }
func (s *PipelineState) Running() bool  { return s.running.Load() }
func (s *PipelineState) Speaking() bool { return s.speaking.Load() }

func (s *PipelineState) setPaused(paused bool)     { s.paused.Store(paused) }
func (s *PipelineState) setRunning(running bool)   { s.running.Store(running) }
func (s *PipelineState) setSpeaking(speaking bool) { s.speaking.Store(speaking) }
