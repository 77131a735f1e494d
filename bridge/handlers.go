package bridge

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/jaydeep-me/algorand-carbon-bridge/chain"
	"github.com/jaydeep-me/algorand-carbon-bridge/config"
	"github.com/jaydeep-me/algorand-carbon-bridge/events"
	"github.com/jaydeep-me/algorand-carbon-bridge/store"
	"github.com/jaydeep-me/algorand-carbon-bridge/types"
)

// errAlreadyProcessed aborts an Update without persisting: the transaction
// already moved past the state the handler expected, typically because a
// duplicate event was delivered.
var errAlreadyProcessed = errors.New("transaction already processed")

func (o *Orchestrator) handleLock(ev events.Event) {
	o.recordObservation(ev, types.StatusLocked)
}

func (o *Orchestrator) handleBurn(ev events.Event) {
	o.recordObservation(ev, types.StatusBurned)
}

// recordObservation creates the transaction on first sight of a lock/burn
// event and starts verification. The creating handler is the only writer
// that ever inserts an id.
func (o *Orchestrator) recordObservation(ev events.Event, observed types.Status) {
	tx := ev.Transaction.Clone()
	if tx == nil {
		return
	}

	// never add a record for an origin transfer already seen, otherwise
	// could be double mint
	if tx.SourceTransactionID != "" {
		existing, err := o.store.FindBySourceTxID(tx.SourceTransactionID)
		if err != nil {
			log.Error().Err(err).Str("id", tx.ID).Msg("[Orchestrator] [recordObservation] error searching store")
			return
		}
		if existing != nil {
			log.Info().Str("id", existing.ID).Str("sourceTx", tx.SourceTransactionID).
				Msg("[Orchestrator] [recordObservation] found existing transaction with same source tx")
			return
		}
	}

	// insertion is idempotent per id: Put refuses a known id, so a
	// duplicate delivery can never reset a record that already advanced
	tx.Status = types.StatusPending
	if err := o.store.Put(tx); err != nil {
		if errors.Is(err, store.ErrDuplicateTransaction) {
			log.Info().Str("id", tx.ID).Msg("[Orchestrator] [recordObservation] transaction already recorded")
		} else {
			log.Error().Err(err).Str("id", tx.ID).Msg("[Orchestrator] [recordObservation] cannot store transaction")
		}
		return
	}
	if _, err := o.store.Update(tx.ID, func(cur *types.BridgeTransaction) error {
		if !types.CanTransition(cur.Status, observed) {
			return errAlreadyProcessed
		}
		cur.Status = observed
		return nil
	}); err != nil {
		if !errors.Is(err, errAlreadyProcessed) {
			log.Error().Err(err).Str("id", tx.ID).Msg("[Orchestrator] [recordObservation] cannot update status")
		}
		return
	}

	go o.completeTransfer(tx.ID)
}

// completeTransfer runs verification and, on quorum, the mirrored
// operation. It runs off the event handler goroutine so the initiating
// call never waits for verification.
func (o *Orchestrator) completeTransfer(id string) {
	ctx := context.Background()

	tx, err := o.store.Get(id)
	if err != nil || tx == nil {
		log.Error().Err(err).Str("id", id).Msg("[Orchestrator] [completeTransfer] cannot load transaction")
		return
	}

	result := o.engine.Verify(ctx, tx)
	o.bus.Emit(events.Event{
		Type:        events.TypeVerification,
		Transaction: tx,
		Details:     events.VerificationDetails{Result: result},
	})

	if !result.IsValid {
		var te *types.TimeoutError
		if errors.As(result.Err, &te) {
			// the engine emitted the timeout event; compensation runs in
			// that handler
			return
		}
		reason := "verification failed"
		if result.Err != nil {
			reason = result.Err.Error()
		}
		o.markFailed(id, "verification", reason)
		return
	}

	o.executeMirror(ctx, id, result)
}

// executeMirror mints or releases on the opposite chain. The whole step
// runs under the id's critical section with a status guard, so it executes
// at most once per transaction id even under duplicate event delivery.
func (o *Orchestrator) executeMirror(ctx context.Context, id string, result types.VerificationResult) {
	var (
		mirrorType    events.Type
		mirrorDetails events.Details
		subErr        error
	)
	updated, err := o.store.Update(id, func(tx *types.BridgeTransaction) error {
		switch tx.Status {
		case types.StatusLocked:
			payout := o.destinationAmount(tx)
			res, mintErr := o.adapters[tx.TargetChain].Mint(ctx, tx.ID, tx.Receiver, payout, tx.SourceTransactionID, result.Signatures, chain.MintOptions{})
			if mintErr != nil {
				subErr = &types.ChainSubmissionError{Chain: tx.TargetChain, Op: "mint", Err: mintErr}
				tx.Status = types.StatusFailed
				tx.AppendMessage(subErr.Error())
				return nil
			}
			tx.Status = types.StatusMinted
			tx.TargetTransactionID = res.TransactionID
			mirrorType = events.TypeMint
			mirrorDetails = events.MintDetails{TargetTransactionID: res.TransactionID, Signatures: result.Signatures}
			return nil
		case types.StatusBurned:
			payout := o.destinationAmount(tx)
			res, relErr := o.adapters[tx.TargetChain].Release(ctx, tx.ID, tx.Receiver, payout, chain.ReleaseOptions{})
			if relErr != nil {
				subErr = &types.ChainSubmissionError{Chain: tx.TargetChain, Op: "release", Err: relErr}
				tx.Status = types.StatusFailed
				tx.AppendMessage(subErr.Error())
				return nil
			}
			tx.Status = types.StatusReleased
			tx.TargetTransactionID = res.TransactionID
			mirrorType = events.TypeRelease
			mirrorDetails = events.ReleaseDetails{TargetTransactionID: res.TransactionID}
			return nil
		default:
			return errAlreadyProcessed
		}
	})
	if err != nil {
		if !errors.Is(err, errAlreadyProcessed) {
			log.Error().Err(err).Str("id", id).Msg("[Orchestrator] [executeMirror] cannot update transaction")
		}
		return
	}

	if subErr != nil {
		log.Error().Err(subErr).Str("id", id).Msg("[Orchestrator] [executeMirror] mirrored submission failed")
		o.bus.Emit(events.Event{
			Type:        events.TypeError,
			Transaction: updated,
			Details:     events.ErrorDetails{Stage: "mirror", Message: subErr.Error()},
		})
		return
	}

	log.Info().Str("id", id).Str("status", string(updated.Status)).
		Msg("[Orchestrator] [executeMirror] mirrored operation executed")
	o.bus.Emit(events.Event{Type: mirrorType, Transaction: updated, Details: mirrorDetails})
}

// handleTimeout compensates a transfer whose far side never completed: a
// still-locked escrow is released back to the original sender; burned
// wrapped tokens are re-minted to the original sender. Either way the
// transaction terminates failed.
func (o *Orchestrator) handleTimeout(ev events.Event) {
	if ev.Transaction == nil {
		return
	}
	id := ev.Transaction.ID
	ctx := context.Background()

	var (
		compType    events.Type
		compDetails events.Details
		subErr      error
	)
	updated, err := o.store.Update(id, func(tx *types.BridgeTransaction) error {
		switch tx.Status {
		case types.StatusLocked:
			res, relErr := o.adapters[tx.SourceChain].Release(ctx, tx.ID, tx.Sender, tx.Amount, chain.ReleaseOptions{})
			if relErr != nil {
				subErr = &types.ChainSubmissionError{Chain: tx.SourceChain, Op: "release", Err: relErr}
				tx.AppendMessage("timed out; compensation failed: " + subErr.Error())
			} else {
				tx.AppendMessage("timed out; locked funds returned to sender")
				compType = events.TypeRelease
				compDetails = events.ReleaseDetails{TargetTransactionID: res.TransactionID, Compensation: true}
			}
		case types.StatusBurned:
			res, mintErr := o.adapters[tx.SourceChain].Mint(ctx, tx.ID, tx.Sender, tx.Amount, tx.SourceTransactionID, nil, chain.MintOptions{})
			if mintErr != nil {
				subErr = &types.ChainSubmissionError{Chain: tx.SourceChain, Op: "mint", Err: mintErr}
				tx.AppendMessage("timed out; compensation failed: " + subErr.Error())
			} else {
				tx.AppendMessage("timed out; burned tokens re-minted to sender")
				compType = events.TypeMint
				compDetails = events.MintDetails{TargetTransactionID: res.TransactionID}
			}
		case types.StatusPending:
			tx.AppendMessage("timed out before origin leg confirmed")
		default:
			return errAlreadyProcessed
		}
		tx.Status = types.StatusFailed
		return nil
	})
	if err != nil {
		if !errors.Is(err, errAlreadyProcessed) {
			log.Error().Err(err).Str("id", id).Msg("[Orchestrator] [handleTimeout] cannot update transaction")
		}
		return
	}

	if compDetails != nil {
		o.bus.Emit(events.Event{Type: compType, Transaction: updated, Details: compDetails})
	}
	if subErr != nil {
		o.bus.Emit(events.Event{
			Type:        events.TypeError,
			Transaction: updated,
			Details:     events.ErrorDetails{Stage: "compensation", Message: subErr.Error()},
		})
	}
	log.Warn().Str("id", id).Msg("[Orchestrator] [handleTimeout] transaction terminated after timeout")
}

func (o *Orchestrator) markFailed(id, stage, reason string) {
	updated, err := o.store.Update(id, func(tx *types.BridgeTransaction) error {
		if tx.Status.IsTerminal() {
			return errAlreadyProcessed
		}
		tx.Status = types.StatusFailed
		tx.AppendMessage(reason)
		return nil
	})
	if err != nil {
		if !errors.Is(err, errAlreadyProcessed) {
			log.Error().Err(err).Str("id", id).Msg("[Orchestrator] [markFailed] cannot update transaction")
		}
		return
	}
	o.bus.Emit(events.Event{
		Type:        events.TypeError,
		Transaction: updated,
		Details:     events.ErrorDetails{Stage: stage, Message: reason},
	})
}

// destinationAmount re-expresses the bridged amount at the target chain's
// scale and deducts the configured bridge fee. Compensation paths skip it:
// returned funds carry no fee.
func (o *Orchestrator) destinationAmount(tx *types.BridgeTransaction) decimal.Decimal {
	toDecimals := config.ChainDecimals[tx.TargetChain]
	amount := types.ConvertScale(tx.Amount, config.ChainDecimals[tx.SourceChain], toDecimals)
	if o.cfg.FeePercentage > 0 {
		fee := amount.Mul(decimal.NewFromInt(int64(o.cfg.FeePercentage))).Div(decimal.NewFromInt(100))
		amount = amount.Sub(fee).Truncate(toDecimals)
	}
	return amount
}
