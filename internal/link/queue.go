package link

import "sync"

// retryQueue buffers outbound payloads while the data channel is not
// usable. FIFO, unbounded, cleared entirely on cleanup.
type retryQueue struct {
	mu    sync.Mutex
	items [][]byte
}

func newRetryQueue() *retryQueue {
	return &retryQueue{}
}

func (q *retryQueue) push(payload []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, payload)
}

// drain delivers queued payloads in order through send, removing each
// only after send reports success, so a failure mid-drain loses
// nothing and a later drain resumes where this one stopped. Returns
// true when the queue is empty.
func (q *retryQueue) drain(send func([]byte) bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) > 0 {
		if !send(q.items[0]) {
			return false
		}
		q.items = q.items[1:]
	}
	return true
}

func (q *retryQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

func (q *retryQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
