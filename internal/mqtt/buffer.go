package mqtt

// outgoing is an encoded message waiting for the broker.
type outgoing struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// backlog holds messages published while disconnected, oldest first. Once
// full, each new message evicts the oldest. The caller synchronizes access.
type backlog struct {
	msgs    []outgoing
	start   int
	n       int
	dropped bool
}

func newBacklog(size int) *backlog {
	return &backlog{msgs: make([]outgoing, size)}
}

// add queues m. It reports true for the first eviction since the last takeAll.
func (b *backlog) add(m outgoing) bool {
	if b.n < len(b.msgs) {
		b.msgs[(b.start+b.n)%len(b.msgs)] = m
		b.n++
		return false
	}
	b.msgs[b.start] = m
	b.start = (b.start + 1) % len(b.msgs)
	first := !b.dropped
	b.dropped = true
	return first
}

// takeAll empties the backlog and returns its messages in publish order.
func (b *backlog) takeAll() []outgoing {
	if b.n == 0 {
		return nil
	}
	out := make([]outgoing, b.n)
	for i := range out {
		j := (b.start + i) % len(b.msgs)
		out[i] = b.msgs[j]
		b.msgs[j] = outgoing{}
	}
	b.start, b.n, b.dropped = 0, 0, false
	return out
}

func (b *backlog) size() int {
	return b.n
}
