// Package algorand adapts the carbon credit ASA and the escrow application
// to the bridge's chain surface. The bridge operates custodially: the
// configured admin account signs escrow submissions, mirroring how the
// EVM side custodies the wrapped token wallet.
package algorand

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	sdkcrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/jaydeep-me/algorand-carbon-bridge/chain"
	"github.com/jaydeep-me/algorand-carbon-bridge/config"
	"github.com/jaydeep-me/algorand-carbon-bridge/types"
)

const defaultWaitRounds = 4

// bridgeNote is the correlation record embedded in the lock transaction
// note; the verification engine matches it against the transaction's own
// claim.
type bridgeNote struct {
	BridgeID    string        `json:"bridgeId"`
	TargetChain types.ChainID `json:"targetChain"`
	Receiver    string        `json:"receiver"`
}

type Adapter struct {
	cfg    *config.Configuration
	client *algod.Client
	admin  sdktypes.Address
	sk     ed25519.PrivateKey
	escrow string
}

func NewAdapter(cfg *config.Configuration) (*Adapter, error) {
	client, err := algod.MakeClient(cfg.Algorand.AlgodURL, cfg.Algorand.AlgodToken)
	if err != nil {
		return nil, fmt.Errorf("error connecting to algod at %s: %w", cfg.Algorand.AlgodURL, err)
	}

	escrow, err := sdktypes.DecodeAddress(cfg.Algorand.EscrowAddress)
	if err != nil {
		return nil, &types.ConfigurationError{Reason: fmt.Sprintf("malformed escrow address: %v", err)}
	}

	a := &Adapter{cfg: cfg, client: client, escrow: escrow.String()}
	if cfg.Algorand.AdminMnemonic != "" {
		sk, err := mnemonic.ToPrivateKey(cfg.Algorand.AdminMnemonic)
		if err != nil {
			return nil, &types.ConfigurationError{Reason: fmt.Sprintf("malformed admin mnemonic: %v", err)}
		}
		account, err := sdkcrypto.AccountFromPrivateKey(sk)
		if err != nil {
			return nil, &types.ConfigurationError{Reason: fmt.Sprintf("cannot derive admin account: %v", err)}
		}
		a.sk = sk
		a.admin = account.Address
	}
	return a, nil
}

func (a *Adapter) Chain() types.ChainID { return types.ChainAlgorand }

func (a *Adapter) EscrowAccount() string { return a.escrow }

func (a *Adapter) AssetID() string {
	return strconv.FormatUint(a.cfg.Algorand.CarbonAssetID, 10)
}

func (a *Adapter) CanonicalAddress(addr string) (string, error) {
	decoded, err := sdktypes.DecodeAddress(addr)
	if err != nil {
		return "", &types.ValidationError{Field: "address", Reason: "not an Algorand address"}
	}
	return decoded.String(), nil
}

// Lock escrows carbon credits as an atomic group: the ASA transfer into
// the escrow account paired with the application call recording the bridge
// id. The correlation note rides on the transfer.
func (a *Adapter) Lock(ctx context.Context, sender, receiver string, amount decimal.Decimal, opts chain.LockOptions) (*chain.Result, error) {
	bridgeID := uuid.New().String()
	baseAmount := types.BaseUnits(amount, config.ChainDecimals[types.ChainAlgorand]).Uint64()

	note, err := json.Marshal(bridgeNote{BridgeID: bridgeID, TargetChain: types.ChainEVM, Receiver: receiver})
	if err != nil {
		return nil, err
	}

	sp, err := a.client.SuggestedParams().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting suggested params: %w", err)
	}

	axfer, err := transaction.MakeAssetTransferTxn(
		a.admin.String(), a.escrow, baseAmount, note, sp, "", a.cfg.Algorand.CarbonAssetID)
	if err != nil {
		return nil, fmt.Errorf("error building asset transfer: %w", err)
	}

	appArgs := [][]byte{
		[]byte("lock"),
		[]byte(bridgeID),
		[]byte(sender),
		[]byte(receiver),
		[]byte(strconv.FormatUint(baseAmount, 10)),
	}
	appCall, err := transaction.MakeApplicationNoOpTx(
		a.cfg.Algorand.AppID, appArgs, nil, nil, nil, sp,
		a.admin, nil, sdktypes.Digest{}, [32]byte{}, sdktypes.ZeroAddress)
	if err != nil {
		return nil, fmt.Errorf("error building application call: %w", err)
	}

	txID, err := a.submitGroup(ctx, []sdktypes.Transaction{axfer, appCall}, opts.WaitRounds)
	if err != nil {
		return nil, err
	}

	log.Info().Str("bridgeId", bridgeID).Str("tx", txID).Uint64("amount", baseAmount).
		Msg("[AlgorandAdapter] [Lock] escrow group confirmed")
	return &chain.Result{
		Success:       true,
		TransactionID: txID,
		BridgeID:      bridgeID,
		Status:        types.StatusLocked,
	}, nil
}

// Release pays escrowed credits to receiver and records the completion in
// the escrow application.
func (a *Adapter) Release(ctx context.Context, bridgeID, receiver string, amount decimal.Decimal, opts chain.ReleaseOptions) (*chain.Result, error) {
	baseAmount := types.BaseUnits(amount, config.ChainDecimals[types.ChainAlgorand]).Uint64()

	sp, err := a.client.SuggestedParams().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting suggested params: %w", err)
	}

	axfer, err := transaction.MakeAssetTransferTxn(
		a.admin.String(), receiver, baseAmount, nil, sp, "", a.cfg.Algorand.CarbonAssetID)
	if err != nil {
		return nil, fmt.Errorf("error building asset transfer: %w", err)
	}

	appArgs := [][]byte{
		[]byte("release"),
		[]byte(bridgeID),
		[]byte(receiver),
		[]byte(strconv.FormatUint(baseAmount, 10)),
	}
	appCall, err := transaction.MakeApplicationNoOpTx(
		a.cfg.Algorand.AppID, appArgs, nil, nil, nil, sp,
		a.admin, nil, sdktypes.Digest{}, [32]byte{}, sdktypes.ZeroAddress)
	if err != nil {
		return nil, fmt.Errorf("error building application call: %w", err)
	}

	txID, err := a.submitGroup(ctx, []sdktypes.Transaction{axfer, appCall}, opts.WaitRounds)
	if err != nil {
		return nil, err
	}

	log.Info().Str("bridgeId", bridgeID).Str("tx", txID).Uint64("amount", baseAmount).
		Msg("[AlgorandAdapter] [Release] payout confirmed")
	return &chain.Result{
		Success:       true,
		TransactionID: txID,
		BridgeID:      bridgeID,
		Status:        types.StatusReleased,
	}, nil
}

// Mint has no Algorand-side meaning: wrapped tokens live on the EVM chain.
func (a *Adapter) Mint(ctx context.Context, bridgeID, receiver string, amount decimal.Decimal, sourceTxID string, sigs []types.VerifierSignature, opts chain.MintOptions) (*chain.Result, error) {
	return nil, &types.ChainSubmissionError{Chain: types.ChainAlgorand, Op: "mint", Err: fmt.Errorf("not supported on this chain")}
}

func (a *Adapter) Burn(ctx context.Context, sender, receiver string, amount decimal.Decimal, opts chain.BurnOptions) (*chain.Result, error) {
	return nil, &types.ChainSubmissionError{Chain: types.ChainAlgorand, Op: "burn", Err: fmt.Errorf("not supported on this chain")}
}

func (a *Adapter) submitGroup(ctx context.Context, txns []sdktypes.Transaction, waitRounds uint64) (string, error) {
	grouped, err := transaction.AssignGroupID(txns, "")
	if err != nil {
		return "", fmt.Errorf("error assigning group id: %w", err)
	}

	var (
		stxns   []byte
		firstID string
	)
	for i, txn := range grouped {
		txID, stx, err := sdkcrypto.SignTransaction(a.sk, txn)
		if err != nil {
			return "", fmt.Errorf("error signing transaction: %w", err)
		}
		if i == 0 {
			firstID = txID
		}
		stxns = append(stxns, stx...)
	}

	if _, err := a.client.SendRawTransaction(stxns).Do(ctx); err != nil {
		return "", fmt.Errorf("error submitting transaction group: %w", err)
	}

	if waitRounds == 0 {
		waitRounds = defaultWaitRounds
	}
	if _, err := transaction.WaitForConfirmation(a.client, firstID, waitRounds, ctx); err != nil {
		return "", fmt.Errorf("error waiting for confirmation: %w", err)
	}
	return firstID, nil
}

// StatusOf reads the escrow application's global record for bridgeID.
func (a *Adapter) StatusOf(ctx context.Context, bridgeID string) (types.Status, error) {
	app, err := a.client.GetApplicationByID(a.cfg.Algorand.AppID).Do(ctx)
	if err != nil {
		return "", fmt.Errorf("error querying escrow application: %w", err)
	}

	wanted := "status:" + bridgeID
	for _, kv := range app.Params.GlobalState {
		key, err := base64.StdEncoding.DecodeString(kv.Key)
		if err != nil || string(key) != wanted {
			continue
		}
		switch kv.Value.Uint {
		case 2:
			return types.StatusReleased, nil
		default:
			// locked and verified records are both in-flight locks from
			// the lifecycle's point of view
			return types.StatusLocked, nil
		}
	}
	return "", fmt.Errorf("bridge id %s unknown to escrow application", bridgeID)
}

// TransferProof answers the verification engine's proof query for a lock
// transaction: confirmed ASA transfer into escrow with the correlation
// note decoded from the transaction itself.
func (a *Adapter) TransferProof(ctx context.Context, txID string) (*chain.TransferProof, error) {
	info, stxn, err := a.client.PendingTransactionInformation(txID).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("error querying transaction %s: %w", txID, err)
	}

	txn := stxn.Txn
	if txn.Type != sdktypes.AssetTransferTx {
		return &chain.TransferProof{
			Confirmed: info.ConfirmedRound > 0,
			Kind:      chain.KindContractCall,
		}, nil
	}

	proof := &chain.TransferProof{
		Confirmed:    info.ConfirmedRound > 0,
		Kind:         chain.KindAssetTransfer,
		AssetID:      strconv.FormatUint(uint64(txn.XferAsset), 10),
		Counterparty: txn.AssetReceiver.String(),
		BaseAmount:   new(big.Int).SetUint64(txn.AssetAmount),
	}
	if len(txn.Note) > 0 {
		var note bridgeNote
		if err := json.Unmarshal(txn.Note, &note); err == nil {
			proof.NoteBridgeID = note.BridgeID
			proof.NoteReceiver = note.Receiver
			proof.NoteTarget = note.TargetChain
		}
	}
	return proof, nil
}
