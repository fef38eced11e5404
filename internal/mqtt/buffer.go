package mqtt

import log "github.com/sirupsen/logrus"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// offlineQueue holds messages published while the broker is unreachable.
// When full, the oldest reading (QoS 0) is evicted first; lifecycle events
// are only evicted once no readings remain.
// Not safe for concurrent use; the caller must synchronize.
type offlineQueue struct {
	msgs    []bufferedMsg
	limit   int
	dropped int // evictions since the last drain
}

func newOfflineQueue(limit int) *offlineQueue {
	if limit < 1 {
		limit = 1
	}
	return &offlineQueue{limit: limit}
}

func (q *offlineQueue) push(msg bufferedMsg) {
	if len(q.msgs) >= q.limit {
		q.evict()
	}
	q.msgs = append(q.msgs, msg)
}

func (q *offlineQueue) evict() {
	victim := 0
	for i, m := range q.msgs {
		if m.qos == 0 {
			victim = i
			break
		}
	}
	if q.dropped == 0 {
		log.WithField("limit", q.limit).Warn("mqtt: offline queue full, dropping messages")
	}
	q.msgs = append(q.msgs[:victim], q.msgs[victim+1:]...)
	q.dropped++
}

// drain returns the queued messages oldest first, and how many were
// evicted since the previous drain.
func (q *offlineQueue) drain() ([]bufferedMsg, int) {
	msgs, dropped := q.msgs, q.dropped
	q.msgs = nil
	q.dropped = 0
	return msgs, dropped
}

func (q *offlineQueue) len() int {
	return len(q.msgs)
}
