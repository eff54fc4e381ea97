package estimator

import (
	"slices"
	"sync"
	"sync/atomic"
)

// ProgressUpdate is one progress sample of estimate EstimatorIndex, with
// Value in [0, 1].
type ProgressUpdate struct {
	EstimatorIndex int
	Value          float64
}

// ProgressReporter receives the progress of a single estimate.
type ProgressReporter func(progress float64)

// ProgressObserver is notified as estimates advance.
type ProgressObserver interface {
	Update(index int, progress float64)
}

// ProgressSubject fans progress out to its observers in registration order.
// Notify runs on the evaluation hot path, so it reads an immutable snapshot
// of the observer list and never takes a lock; Register and Unregister
// publish a fresh copy.
type ProgressSubject struct {
	mu        sync.Mutex // serialises writers
	observers atomic.Pointer[[]ProgressObserver]
}

// NewProgressSubject returns a subject with no observers.
func NewProgressSubject() *ProgressSubject {
	s := &ProgressSubject{}
	s.observers.Store(&[]ProgressObserver{})
	return s
}

func (s *ProgressSubject) snapshot() []ProgressObserver {
	return *s.observers.Load()
}

// Register appends observer. Nil is ignored.
func (s *ProgressSubject) Register(observer ProgressObserver) {
	if observer == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := append(slices.Clone(s.snapshot()), observer)
	s.observers.Store(&next)
}

// Unregister removes the first registration of observer, if any.
func (s *ProgressSubject) Unregister(observer ProgressObserver) {
	if observer == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.snapshot()
	if i := slices.Index(cur, observer); i >= 0 {
		next := slices.Delete(slices.Clone(cur), i, i+1)
		s.observers.Store(&next)
	}
}

// Notify calls every observer synchronously.
func (s *ProgressSubject) Notify(index int, progress float64) {
	for _, o := range s.snapshot() {
		o.Update(index, progress)
	}
}

func (s *ProgressSubject) ObserverCount() int {
	return len(s.snapshot())
}

// AsProgressReporter binds the subject to one estimate index.
func (s *ProgressSubject) AsProgressReporter(index int) ProgressReporter {
	return func(progress float64) { s.Notify(index, progress) }
}
