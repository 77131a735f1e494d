// Package bridge owns the transaction ledger and drives the transfer
// lifecycle: it reacts to lock/burn/verification/timeout events, applies
// state transitions, and exposes the public operation surface.
package bridge

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/jaydeep-me/algorand-carbon-bridge/chain"
	"github.com/jaydeep-me/algorand-carbon-bridge/config"
	"github.com/jaydeep-me/algorand-carbon-bridge/events"
	"github.com/jaydeep-me/algorand-carbon-bridge/store"
	"github.com/jaydeep-me/algorand-carbon-bridge/types"
)

// Verifier gates every mint or release. It returns a result; it never
// mutates the transaction itself.
type Verifier interface {
	Verify(ctx context.Context, tx *types.BridgeTransaction) types.VerificationResult
}

type Orchestrator struct {
	cfg      *config.Configuration
	store    store.Store
	bus      *events.Bus
	engine   Verifier
	adapters map[types.ChainID]chain.Adapter
	validate *validator.Validate
	nonce    atomic.Uint64
	subs     []*events.Subscription
}

func New(cfg *config.Configuration, st store.Store, bus *events.Bus, engine Verifier, adapters map[types.ChainID]chain.Adapter) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		store:    st,
		bus:      bus,
		engine:   engine,
		adapters: adapters,
		validate: validator.New(),
	}
	o.nonce.Store(uint64(time.Now().UnixNano()))
	o.subs = append(o.subs,
		bus.On(events.TypeLock, o.handleLock),
		bus.On(events.TypeBurn, o.handleBurn),
		bus.On(events.TypeTimeout, o.handleTimeout),
	)
	return o
}

// Close detaches the orchestrator from the bus.
func (o *Orchestrator) Close() {
	for _, sub := range o.subs {
		o.bus.Off(sub)
	}
	o.subs = nil
}

// BridgeToTargetChain locks carbon credits in the Algorand escrow and
// kicks off the mirrored mint. It returns once the lock is submitted;
// verification and minting are driven asynchronously by the lock event.
func (o *Orchestrator) BridgeToTargetChain(ctx context.Context, sender, receiver string, amount decimal.Decimal, metadata *types.CarbonCreditMetadata, opts chain.LockOptions) (*chain.Result, error) {
	src := o.adapters[types.ChainAlgorand]
	dst := o.adapters[types.ChainEVM]

	sender, receiver, err := o.validateTransfer(src, dst, sender, receiver, amount)
	if err != nil {
		return nil, err
	}
	if metadata != nil {
		if err := o.validate.Struct(metadata); err != nil {
			return nil, &types.ValidationError{Field: "metadata", Reason: err.Error()}
		}
	}

	res, err := src.Lock(ctx, sender, receiver, amount, opts)
	if err != nil {
		return nil, &types.ChainSubmissionError{Chain: src.Chain(), Op: "lock", Err: err}
	}
	log.Info().Str("bridgeId", res.BridgeID).Str("sourceTx", res.TransactionID).
		Msg("[Orchestrator] [BridgeToTargetChain] lock submitted")

	tx := o.newTransaction(src, dst, sender, receiver, amount, res)
	tx.Metadata = metadata
	o.bus.Emit(events.Event{
		Type:        events.TypeLock,
		Transaction: tx,
		Details:     events.LockDetails{SourceTransactionID: res.TransactionID, Receipt: res.Receipt},
	})
	return res, nil
}

// BridgeToAlgorand burns wrapped carbon tokens on the EVM side and kicks
// off the mirrored release of the escrowed credits. Metadata is never
// required on the return leg.
func (o *Orchestrator) BridgeToAlgorand(ctx context.Context, sender, receiver string, amount decimal.Decimal, opts chain.BurnOptions) (*chain.Result, error) {
	src := o.adapters[types.ChainEVM]
	dst := o.adapters[types.ChainAlgorand]

	sender, receiver, err := o.validateTransfer(src, dst, sender, receiver, amount)
	if err != nil {
		return nil, err
	}

	res, err := src.Burn(ctx, sender, receiver, amount, opts)
	if err != nil {
		return nil, &types.ChainSubmissionError{Chain: src.Chain(), Op: "burn", Err: err}
	}
	log.Info().Str("bridgeId", res.BridgeID).Str("sourceTx", res.TransactionID).
		Msg("[Orchestrator] [BridgeToAlgorand] burn submitted")

	tx := o.newTransaction(src, dst, sender, receiver, amount, res)
	o.bus.Emit(events.Event{
		Type:        events.TypeBurn,
		Transaction: tx,
		Details:     events.BurnDetails{SourceTransactionID: res.TransactionID, Receipt: res.Receipt},
	})
	return res, nil
}

func (o *Orchestrator) validateTransfer(src, dst chain.Adapter, sender, receiver string, amount decimal.Decimal) (string, string, error) {
	if sender == "" {
		return "", "", &types.ValidationError{Field: "sender", Reason: "must not be empty"}
	}
	if receiver == "" {
		return "", "", &types.ValidationError{Field: "receiver", Reason: "must not be empty"}
	}
	sender, err := src.CanonicalAddress(sender)
	if err != nil {
		return "", "", err
	}
	receiver, err = dst.CanonicalAddress(receiver)
	if err != nil {
		return "", "", err
	}
	// the coarser chain's scale bounds what can round trip losslessly
	minDecimals := config.ChainDecimals[src.Chain()]
	if d := config.ChainDecimals[dst.Chain()]; d < minDecimals {
		minDecimals = d
	}
	if err := types.ValidateAmount(amount, minDecimals); err != nil {
		return "", "", err
	}
	return sender, receiver, nil
}

func (o *Orchestrator) newTransaction(src, dst chain.Adapter, sender, receiver string, amount decimal.Decimal, res *chain.Result) *types.BridgeTransaction {
	id := res.BridgeID
	if id == "" {
		id = uuid.New().String()
	}
	return &types.BridgeTransaction{
		ID:                  id,
		SourceChain:         src.Chain(),
		TargetChain:         dst.Chain(),
		SourceAssetID:       src.AssetID(),
		TargetAssetID:       dst.AssetID(),
		Amount:              amount,
		Sender:              sender,
		Receiver:            receiver,
		Status:              types.StatusPending,
		SourceTransactionID: res.TransactionID,
		Timestamp:           time.Now(),
		Nonce:               o.nonce.Add(1),
	}
}

// GetTransaction returns the stored transaction for id, or nil.
func (o *Orchestrator) GetTransaction(id string) (*types.BridgeTransaction, error) {
	return o.store.Get(id)
}

func (o *Orchestrator) ListTransactions() ([]*types.BridgeTransaction, error) {
	return o.store.List()
}

// GetTransactionStatus answers from the ledger first; for unknown ids it
// falls back to the chains' native lookups, preferring the source chain's
// answer unless that reports failure.
func (o *Orchestrator) GetTransactionStatus(ctx context.Context, id string) (types.Status, error) {
	tx, err := o.store.Get(id)
	if err != nil {
		return "", err
	}
	if tx != nil {
		return tx.Status, nil
	}

	srcStatus, srcErr := o.adapters[types.ChainAlgorand].StatusOf(ctx, id)
	if srcErr == nil && srcStatus != types.StatusFailed {
		return srcStatus, nil
	}
	dstStatus, dstErr := o.adapters[types.ChainEVM].StatusOf(ctx, id)
	if dstErr == nil {
		return dstStatus, nil
	}
	if srcErr == nil {
		return srcStatus, nil
	}
	return "", fmt.Errorf("transaction %s unknown to both chains: %v", id, dstErr)
}

// On and Off are subscription pass-throughs to the event bus, the only
// channel by which outer layers observe bridge activity.
func (o *Orchestrator) On(eventType events.Type, handler events.Handler) *events.Subscription {
	return o.bus.On(eventType, handler)
}

func (o *Orchestrator) Off(sub *events.Subscription) {
	o.bus.Off(sub)
}
