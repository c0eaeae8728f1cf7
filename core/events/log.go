package events

import (
	"sync"

	"fareledger/core/types"
)

// Entry is one committed event in the ordered log. Sequence numbers start at
// 1 and never repeat; Timestamp is the ledger clock at commit time.
type Entry struct {
	Sequence  uint64       `json:"sequence"`
	Timestamp int64        `json:"timestamp"`
	Event     *types.Event `json:"event"`
}

// Log is an append-only, ordered event log. Consumers either replay the
// committed prefix or subscribe for entries appended after the call; both
// observe the same total order the ledger committed in.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	subs    map[int]chan Entry
	nextSub int
}

func NewLog() *Log {
	return &Log{subs: make(map[int]chan Entry)}
}

// Append records an event with the next sequence number and fans it out to
// subscribers. Slow subscribers are skipped rather than blocking the ledger.
func (l *Log) Append(timestamp int64, evt *types.Event) Entry {
	l.mu.Lock()
	entry := Entry{
		Sequence:  uint64(len(l.entries) + 1),
		Timestamp: timestamp,
		Event:     evt,
	}
	l.entries = append(l.entries, entry)
	subs := make([]chan Entry, 0, len(l.subs))
	for _, ch := range l.subs {
		subs = append(subs, ch)
	}
	l.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- entry:
		default:
		}
	}
	return entry
}

// Replay returns all committed entries with sequence numbers strictly greater
// than after, in order.
func (l *Log) Replay(after uint64) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if after >= uint64(len(l.entries)) {
		return nil
	}
	out := make([]Entry, len(l.entries)-int(after))
	copy(out, l.entries[after:])
	return out
}

// Len reports the number of committed entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Subscribe registers a buffered channel receiving entries appended after the
// call. The returned cancel function unregisters and closes the channel.
func (l *Log) Subscribe(buffer int) (<-chan Entry, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Entry, buffer)
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		if _, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(ch)
		}
		l.mu.Unlock()
	}
	return ch, cancel
}
