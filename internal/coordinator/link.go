package coordinator

import (
	"context"

	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
)

// Link is the dedicated channel pair between the coordinator and one
// provider. Snapshots flow out to the provider, batches flow back.
// Both directions are capacity one: a slow provider costs at most one
// dropped snapshot per tick, never a blocked tick, and a slow
// coordinator holds at most one batch of pending mutations.
type Link struct {
	snapshots chan *gamestate.Snapshot
	batches   chan Batch
}

// NewLink builds a standalone channel pair. The coordinator creates one
// per provider in Add; tests and harnesses may create them directly.
func NewLink() *Link {
	return &Link{
		snapshots: make(chan *gamestate.Snapshot, 1),
		batches:   make(chan Batch, 1),
	}
}

// NextSnapshot blocks until the coordinator publishes the next
// snapshot or the context is canceled. It is the intended suspension
// point of a provider loop.
func (l *Link) NextSnapshot(ctx context.Context) (*gamestate.Snapshot, error) {
	select {
	case snap := <-l.snapshots:
		return snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PollSnapshot returns the pending snapshot without blocking. "Would
// block" means no data, not an error.
func (l *Link) PollSnapshot() (*gamestate.Snapshot, bool) {
	select {
	case snap := <-l.snapshots:
		return snap, true
	default:
		return nil, false
	}
}

// Send hands a batch of observations and commands to the coordinator.
// If the previous batch has not been collected yet it is replaced, so
// the coordinator always applies the provider's freshest data and Send
// never blocks a provider loop.
func (l *Link) Send(b Batch) {
	for {
		select {
		case l.batches <- b:
			return
		default:
		}
		select {
		case <-l.batches:
		default:
		}
	}
}

// Offer publishes a snapshot without blocking. A full channel means
// the provider has not drained the previous one; the new snapshot is
// dropped and the next tick will offer a fresher one.
func (l *Link) Offer(snap *gamestate.Snapshot) bool {
	select {
	case l.snapshots <- snap:
		return true
	default:
		return false
	}
}

// PollBatch collects the provider's pending batch without blocking.
func (l *Link) PollBatch() (Batch, bool) {
	select {
	case b := <-l.batches:
		return b, true
	default:
		return Batch{}, false
	}
}
