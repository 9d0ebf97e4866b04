package httpapi

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"dev.consensus.engine/internal/concurrency"
)

func newDiscardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newExhaustedSemaphoreForTest returns a one-slot semaphore with its only
// slot already held, so the next TryAcquire fails.
func newExhaustedSemaphoreForTest(t *testing.T) *concurrency.Semaphore {
	t.Helper()
	sem := concurrency.NewSemaphore(1)
	if !sem.TryAcquire() {
		t.Fatal("expected to acquire the only slot")
	}
	return sem
}
