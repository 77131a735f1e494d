package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jaydeep-me/algorand-carbon-bridge/config"
	"github.com/jaydeep-me/algorand-carbon-bridge/events"
	"github.com/jaydeep-me/algorand-carbon-bridge/store"
	"github.com/jaydeep-me/algorand-carbon-bridge/verification"
)

const timeoutScanInterval = 30 * time.Second

// Worker_Timeout periodically sweeps the ledger for non-terminal
// transactions past the verification window and emits a timeout event for
// each. Compensation itself runs in the orchestrator's timeout handler;
// repeated sweeps are harmless because terminal transactions are skipped
// there.
func Worker_Timeout(ctx context.Context, cfg *config.Configuration, st store.Store, bus *events.Bus) {
	ticker := time.NewTicker(timeoutScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		txs, err := st.List()
		if err != nil {
			log.Error().Err(err).Msg("[TimeoutWorker] error listing transactions")
			continue
		}

		now := time.Now()
		for _, tx := range txs {
			if tx.Status.IsTerminal() {
				continue
			}
			if !verification.IsTimedOut(tx.Timestamp, cfg.TimeoutMs, now) {
				continue
			}
			log.Warn().Str("id", tx.ID).Str("status", string(tx.Status)).
				Msg("[TimeoutWorker] transaction exceeded verification window")
			bus.Emit(events.Event{
				Type:        events.TypeTimeout,
				Transaction: tx,
				Details:     events.TimeoutDetails{ElapsedMs: now.Sub(tx.Timestamp).Milliseconds()},
			})
		}
	}
}
