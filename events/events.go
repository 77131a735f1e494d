// Package events carries domain events between bridge components. The bus
// is an owned instance, constructed once and passed by reference, so tests
// can run isolated instances. Delivery is synchronous, in emission order,
// at most once: a handler registered after emission never sees that event.
package events

import (
	"sort"
	"sync"
	"time"

	"github.com/jaydeep-me/algorand-carbon-bridge/types"
)

type Type string

const (
	TypeLock         Type = "lock"
	TypeMint         Type = "mint"
	TypeBurn         Type = "burn"
	TypeRelease      Type = "release"
	TypeError        Type = "error"
	TypeTimeout      Type = "timeout"
	TypeVerification Type = "verification"
	// TypeAny subscribers receive every event after the type-specific
	// handlers have run.
	TypeAny Type = "any"
)

// Event is the envelope delivered to handlers. Transaction is a snapshot
// taken at emission time.
type Event struct {
	Type        Type
	Transaction *types.BridgeTransaction
	Timestamp   time.Time
	Details     Details
}

// Details is the type-specific payload; each event type carries only the
// fields relevant to it.
type Details interface {
	eventDetails()
}

type LockDetails struct {
	SourceTransactionID string
	Receipt             any
}

type BurnDetails struct {
	SourceTransactionID string
	Receipt             any
}

type MintDetails struct {
	TargetTransactionID string
	Signatures          []types.VerifierSignature
}

type ReleaseDetails struct {
	TargetTransactionID string
	// Compensation marks a release that returns locked funds to the
	// original sender after a timeout, as opposed to a normal return leg.
	Compensation bool
}

type ErrorDetails struct {
	Stage   string
	Message string
}

type TimeoutDetails struct {
	ElapsedMs int64
}

type VerificationDetails struct {
	Result types.VerificationResult
}

func (LockDetails) eventDetails()         {}
func (BurnDetails) eventDetails()         {}
func (MintDetails) eventDetails()         {}
func (ReleaseDetails) eventDetails()      {}
func (ErrorDetails) eventDetails()        {}
func (TimeoutDetails) eventDetails()      {}
func (VerificationDetails) eventDetails() {}

type Handler func(Event)

// Subscription identifies one registered handler so it can be removed
// again (Go functions are not comparable).
type Subscription struct {
	eventType Type
	id        uint64
}

type registration struct {
	id      uint64
	handler Handler
}

type Bus struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[Type][]registration
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Type][]registration)}
}

// On registers handler for eventType (or TypeAny for every event). The
// returned subscription is the argument to Off.
func (b *Bus) On(eventType Type, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], registration{id: b.nextID, handler: handler})
	return &Subscription{eventType: eventType, id: b.nextID}
}

func (b *Bus) Off(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.handlers[sub.eventType]
	idx := sort.Search(len(regs), func(i int) bool { return regs[i].id >= sub.id })
	if idx < len(regs) && regs[idx].id == sub.id {
		b.handlers[sub.eventType] = append(regs[:idx:idx], regs[idx+1:]...)
	}
}

// Emit delivers ev synchronously: first to the handlers registered for its
// type in registration order, then to the wildcard handlers. The handler
// list is snapshotted before invocation so handlers may subscribe or
// unsubscribe without deadlock.
func (b *Bus) Emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.Lock()
	snapshot := make([]registration, 0, len(b.handlers[ev.Type])+len(b.handlers[TypeAny]))
	snapshot = append(snapshot, b.handlers[ev.Type]...)
	if ev.Type != TypeAny {
		snapshot = append(snapshot, b.handlers[TypeAny]...)
	}
	b.mu.Unlock()

	for _, reg := range snapshot {
		reg.handler(ev)
	}
}
