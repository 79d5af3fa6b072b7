package pipeline

import "sync"

// ProgressState is a point-in-time view of a run.
type ProgressState struct {
	Step      string
	StepIndex int
	Steps     int
	// Done and Total count the units of the current step, datasets for an
	// import.
	Done  int
	Total int
}

// Progress aggregates progress reports from a running step. Reports may
// come from several worker goroutines at once.
type Progress struct {
	mu       sync.Mutex
	state    ProgressState
	observer func(ProgressState)
}

// NewProgress returns a Progress calling fn, which may be nil, after every
// change.
func NewProgress(fn func(ProgressState)) *Progress {
	return &Progress{observer: fn}
}

func (p *Progress) beginStep(index, steps int, name string) {
	p.update(func(s *ProgressState) {
		*s = ProgressState{Step: name, StepIndex: index, Steps: steps}
	})
}

// Observe records done of total units for the current step. It satisfies
// persistence.ProgressFunc.
func (p *Progress) Observe(done, total int) {
	p.update(func(s *ProgressState) {
		s.Done, s.Total = done, total
	})
}

// State returns the latest state.
func (p *Progress) State() ProgressState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Progress) update(fn func(*ProgressState)) {
	p.mu.Lock()
	fn(&p.state)
	s := p.state
	p.mu.Unlock()

	if p.observer != nil {
		p.observer(s)
	}
}
