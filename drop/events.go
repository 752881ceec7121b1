package drop

import (
	"math/big"
	"sync"

	"github.com/premier-io/drops-go/common"
	logger "github.com/sirupsen/logrus"
)

type EventKind string

const (
	EventDropCreated          EventKind = "DropCreated"
	EventMinted               EventKind = "Minted"
	EventMutated              EventKind = "Mutated"
	EventWithdrawn            EventKind = "Withdrawn"
	EventDripTransferred      EventKind = "DripTransferred"
	EventOwnershipTransferred EventKind = "OwnershipTransferred"
)

// Event is emitted after a state change has been committed. Only the
// fields relevant to Kind are set.
type Event struct {
	Kind   EventKind
	DropId uint64
	DripId uint64
	Amount *big.Int
	From   common.Address
	To     common.Address
}

// Publisher is a concurrent-safe fan-out of events to observer channels.
// Delivery never blocks: an event is dropped for an observer whose
// channel is full, so observers see events in commit order with gaps.
// A nil Publisher drops every event.
type Publisher struct {
	observers []chan Event
	mu        sync.Mutex
}

func NewPublisher() *Publisher {
	return &Publisher{
		observers: make([]chan Event, 0),
	}
}

func (p *Publisher) Register(observer chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.observers = append(p.observers, observer)
}

func (p *Publisher) Notify(ev Event) {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, observer := range p.observers {
		select {
		case observer <- ev:
		default:
			logger.WithFields(logger.Fields{
				"kind":   ev.Kind,
				"dropId": ev.DropId,
				"dripId": ev.DripId,
			}).Warn("observer channel full, event dropped")
		}
	}
}
