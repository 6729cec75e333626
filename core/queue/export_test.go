package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RescheduleForTest makes a job immediately eligible for claiming without
// waiting out its backoff window.
func (ms *MemoryStorage) RescheduleForTest(jobID uuid.UUID, at time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, ok := ms.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	job.ScheduledAt = at
	return nil
}
