package dhcp

import "net"

// Request is one client-origin DHCP packet handed from a listener to the
// relay worker: the raw payload plus enough provenance to populate giaddr
// and to know where a reply destined for this request's client eventually
// needs to go back out (§3, request queue entry).
type Request struct {
	Payload       []byte
	IngressIfName string
	IngressIfAddr net.IP
	SrcMAC        net.HardwareAddr
}

// Queue is the bounded, multi-producer single-consumer request queue
// shared by every listener goroutine and the single relay worker (§5).
// It is a thin wrapper over a buffered channel: Enqueue blocks once the
// channel is full rather than dropping, per the block-on-full policy
// resolved for the open queue-overflow question (§9).
type Queue struct {
	ch chan Request
}

// NewQueue creates a Queue buffered to depth. depth <= 0 yields an
// unbuffered (synchronous) channel.
func NewQueue(depth int) *Queue {
	if depth < 0 {
		depth = 0
	}
	return &Queue{ch: make(chan Request, depth)}
}

// Enqueue hands req to the relay worker, blocking while the queue is
// full. It returns false without blocking further if done is closed
// first, so a listener can still react to shutdown while backed up.
func (q *Queue) Enqueue(req Request, done <-chan struct{}) bool {
	select {
	case q.ch <- req:
		return true
	case <-done:
		return false
	}
}

// Dequeue is called by the relay worker; it returns false once done is
// closed and no request was immediately available. Listeners never
// close the channel themselves — shutdown is coordinated entirely
// through done, so a producer mid-send can never race a close.
func (q *Queue) Dequeue(done <-chan struct{}) (Request, bool) {
	select {
	case req := <-q.ch:
		return req, true
	case <-done:
		select {
		case req := <-q.ch:
			return req, true
		default:
			return Request{}, false
		}
	}
}

// Len reports the number of requests currently buffered, for metrics.
func (q *Queue) Len() int { return len(q.ch) }
