package resilience

import (
	"sync"
	"time"
)

// DeferredEntry represents a mention whose resolution timed out or hit a
// transient failure and was re-queued instead of being force-decided. A
// deferral is never converted into an auto-reject.
type DeferredEntry struct {
	MentionID    string    `json:"mention_id"`
	Error        string    `json:"error"`
	ErrorType    string    `json:"error_type"` // "transient" or "permanent"
	FailedStep   string    `json:"failed_step,omitempty"`
	RetryCount   int       `json:"retry_count"`
	MaxRetries   int       `json:"max_retries"`
	NextRetryAt  time.Time `json:"next_retry_at"`
	CreatedAt    time.Time `json:"created_at"`
	LastFailedAt time.Time `json:"last_failed_at"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *DeferredEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}

// DeferredQueue accumulates deferred mentions during a batch so the caller
// can re-queue them. Safe for concurrent use by the batch workers.
type DeferredQueue struct {
	mu      sync.Mutex
	entries map[string]*DeferredEntry
	backoff time.Duration
	maxTry  int
}

// NewDeferredQueue creates a queue whose entries become retriable after the
// given backoff, up to maxRetries attempts.
func NewDeferredQueue(backoff time.Duration, maxRetries int) *DeferredQueue {
	if backoff <= 0 {
		backoff = time.Minute
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &DeferredQueue{
		entries: make(map[string]*DeferredEntry),
		backoff: backoff,
		maxTry:  maxRetries,
	}
}

// Defer records a failed step for a mention, bumping its retry count if it
// was already deferred.
func (q *DeferredQueue) Defer(mentionID, step string, err error) *DeferredEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	e, ok := q.entries[mentionID]
	if !ok {
		e = &DeferredEntry{
			MentionID:  mentionID,
			MaxRetries: q.maxTry,
			CreatedAt:  now,
		}
		q.entries[mentionID] = e
	}
	e.Error = err.Error()
	e.ErrorType = ClassifyError(err)
	e.FailedStep = step
	e.RetryCount++
	e.LastFailedAt = now
	e.NextRetryAt = now.Add(q.backoff)
	return e
}

// Drain returns and clears all queued entries.
func (q *DeferredQueue) Drain() []DeferredEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DeferredEntry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, *e)
	}
	q.entries = make(map[string]*DeferredEntry)
	return out
}

// Len reports the number of queued entries.
func (q *DeferredQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
