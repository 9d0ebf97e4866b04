// Package concurrency provides the bounded-concurrency primitive C7 uses to
// cap in-flight requests. Adapted from the teacher's generic concurrency
// toolkit, trimmed to the one primitive this engine actually dispatches:
// a counting semaphore guarding a process-wide request budget.
package concurrency

import (
	"context"
	"sync"
	"time"
)

// Semaphore is a counting semaphore bounding how many callers may hold a
// slot concurrently.
type Semaphore struct {
	ch      chan struct{}
	mu      sync.Mutex
	max     int
	current int
}

// NewSemaphore builds a Semaphore with the given capacity.
func NewSemaphore(max int) *Semaphore {
	return &Semaphore{
		ch:  make(chan struct{}, max),
		max: max,
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
		s.mu.Lock()
		s.current++
		s.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AcquireWithTimeout is Acquire bounded by a timeout rather than a caller-
// supplied context.
func (s *Semaphore) AcquireWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Acquire(ctx)
}

// Release frees one slot.
func (s *Semaphore) Release() {
	select {
	case <-s.ch:
		s.mu.Lock()
		if s.current > 0 {
			s.current--
		}
		s.mu.Unlock()
	default:
	}
}

// Current reports how many slots are held.
func (s *Semaphore) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Available reports how many slots remain free.
func (s *Semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max - s.current
}

// TryAcquire acquires a slot without blocking, reporting success.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.ch <- struct{}{}:
		s.mu.Lock()
		s.current++
		s.mu.Unlock()
		return true
	default:
		return false
	}
}

// Close releases the underlying channel. Callers must not Acquire after Close.
func (s *Semaphore) Close() {
	close(s.ch)
}
