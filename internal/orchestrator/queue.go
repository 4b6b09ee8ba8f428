package orchestrator

import "sync"

// Queue is an in-memory, unbounded, non-durable FIFO of Jobs, guarded by a
// single mutex so concurrent HTTP handlers can enqueue and dequeue safely.
type Queue struct {
	mu    sync.Mutex
	items []Job
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends job to the tail of the queue.
func (q *Queue) Enqueue(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, job)
}

// Len reports the current queue length, for observability and tests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dequeue scans the queue head to tail and removes the first job whose
// pipeline worker-tags is a subset of tags (an empty worker-tags list
// matches any worker). Returns ok=false if nothing matches.
func (q *Queue) Dequeue(tags []string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tagSet[t] = struct{}{}
	}

	for i, job := range q.items {
		if isSubset(job.Pipeline.WorkerTags, tagSet) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return job, true
		}
	}
	return Job{}, false
}

func isSubset(required []string, available map[string]struct{}) bool {
	for _, r := range required {
		if _, ok := available[r]; !ok {
			return false
		}
	}
	return true
}
