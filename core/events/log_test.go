package events

import (
	"testing"

	"fareledger/core/types"
)

func entry(t string) *types.Event {
	return &types.Event{Type: t, Attributes: map[string]string{}}
}

func TestLogAssignsMonotonicSequences(t *testing.T) {
	log := NewLog()
	first := log.Append(100, entry("a"))
	second := log.Append(101, entry("b"))
	if first.Sequence != 1 || second.Sequence != 2 {
		t.Fatalf("unexpected sequences: %d, %d", first.Sequence, second.Sequence)
	}
	if log.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", log.Len())
	}
}

func TestReplayCursor(t *testing.T) {
	log := NewLog()
	for i := 0; i < 5; i++ {
		log.Append(int64(i), entry("evt"))
	}
	all := log.Replay(0)
	if len(all) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(all))
	}
	tail := log.Replay(3)
	if len(tail) != 2 || tail[0].Sequence != 4 {
		t.Fatalf("unexpected tail: %+v", tail)
	}
	if got := log.Replay(5); got != nil {
		t.Fatalf("replay past the end should return nothing, got %+v", got)
	}
	if got := log.Replay(99); got != nil {
		t.Fatalf("replay far past the end should return nothing, got %+v", got)
	}
}

func TestSubscribeReceivesNewEntries(t *testing.T) {
	log := NewLog()
	log.Append(1, entry("before"))

	ch, cancel := log.Subscribe(4)
	defer cancel()

	log.Append(2, entry("after"))
	got := <-ch
	if got.Event.Type != "after" || got.Sequence != 2 {
		t.Fatalf("unexpected subscription delivery: %+v", got)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra entry: %+v", extra)
	default:
	}
}

func TestCancelClosesChannel(t *testing.T) {
	log := NewLog()
	ch, cancel := log.Subscribe(1)
	cancel()
	cancel() // double cancel is harmless
	if _, open := <-ch; open {
		t.Fatalf("channel should be closed after cancel")
	}
	log.Append(1, entry("late"))
}
