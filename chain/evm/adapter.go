// Package evm adapts the wrapped carbon token contract on an EVM chain to
// the bridge's chain surface. Locking and releasing are Algorand-side
// operations; here the mirrored leg mints and burns.
package evm

import (
	"context"
	"fmt"
	"math/big"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/jaydeep-me/algorand-carbon-bridge/chain"
	"github.com/jaydeep-me/algorand-carbon-bridge/config"
	"github.com/jaydeep-me/algorand-carbon-bridge/types"
)

const defaultGasLimit = 200000

type Adapter struct {
	cfg      *config.Configuration
	chainID  int
	contract common.Address
}

func NewAdapter(cfg *config.Configuration) (*Adapter, error) {
	chainCfg, ok := config.EVMChains[cfg.EVM.ChainID]
	if !ok {
		return nil, &types.ConfigurationError{Reason: fmt.Sprintf("unsupported EVM chain id %d", cfg.EVM.ChainID)}
	}
	contractAddr := cfg.EVM.ContractAddress
	if contractAddr == "" {
		contractAddr = chainCfg.ContractAddress
	}
	if !common.IsHexAddress(contractAddr) {
		return nil, &types.ConfigurationError{Reason: "missing or malformed wrapped token contract address"}
	}
	return &Adapter{
		cfg:      cfg,
		chainID:  cfg.EVM.ChainID,
		contract: common.HexToAddress(contractAddr),
	}, nil
}

func (a *Adapter) Chain() types.ChainID { return types.ChainEVM }

func (a *Adapter) EscrowAccount() string { return a.contract.Hex() }

func (a *Adapter) AssetID() string { return a.contract.Hex() }

func (a *Adapter) CanonicalAddress(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", &types.ValidationError{Field: "address", Reason: "not an EVM address"}
	}
	checksummed := common.HexToAddress(addr).Hex()
	if err := ethav.Validate(checksummed); err != nil {
		return "", &types.ValidationError{Field: "address", Reason: err.Error()}
	}
	return checksummed, nil
}

// Lock has no EVM-side meaning: escrow lives on Algorand.
func (a *Adapter) Lock(ctx context.Context, sender, receiver string, amount decimal.Decimal, opts chain.LockOptions) (*chain.Result, error) {
	return nil, &types.ChainSubmissionError{Chain: types.ChainEVM, Op: "lock", Err: fmt.Errorf("not supported on this chain")}
}

func (a *Adapter) Release(ctx context.Context, bridgeID, receiver string, amount decimal.Decimal, opts chain.ReleaseOptions) (*chain.Result, error) {
	return nil, &types.ChainSubmissionError{Chain: types.ChainEVM, Op: "release", Err: fmt.Errorf("not supported on this chain")}
}

// Mint issues wrapped tokens to receiver, carrying the bridge id, origin
// transaction reference and the collected verifier signatures for the
// contract's threshold check.
func (a *Adapter) Mint(ctx context.Context, bridgeID, receiver string, amount decimal.Decimal, sourceTxID string, sigs []types.VerifierSignature, opts chain.MintOptions) (*chain.Result, error) {
	rawSigs := make([][]byte, 0, len(sigs))
	for _, s := range sigs {
		raw, err := hexutil.Decode(s.Signature)
		if err != nil {
			return nil, fmt.Errorf("malformed verifier signature from %s: %w", s.Verifier, err)
		}
		rawSigs = append(rawSigs, raw)
	}

	baseAmount := types.BaseUnits(amount, config.ChainDecimals[types.ChainEVM])
	tx, err := a.transact(ctx, opts.GasLimit, "mint",
		common.HexToAddress(receiver), baseAmount, bridgeID, sourceTxID, rawSigs)
	if err != nil {
		return nil, err
	}

	log.Info().Str("bridgeId", bridgeID).Str("tx", tx.Hash().Hex()).Stringer("amount", baseAmount).
		Msg("[EvmAdapter] [Mint] submitted")
	return &chain.Result{
		Success:       true,
		TransactionID: tx.Hash().Hex(),
		BridgeID:      bridgeID,
		Status:        types.StatusMinted,
		Receipt:       tx,
	}, nil
}

// Burn destroys wrapped tokens from the bridge wallet and records the
// Algorand destination in the BridgeBurn event so the release leg can be
// matched later. A fresh bridge id is generated here: the burn observation
// is the first sight of this transfer.
func (a *Adapter) Burn(ctx context.Context, sender, receiver string, amount decimal.Decimal, opts chain.BurnOptions) (*chain.Result, error) {
	bridgeID := uuid.New().String()
	baseAmount := types.BaseUnits(amount, config.ChainDecimals[types.ChainEVM])

	tx, err := a.transact(ctx, opts.GasLimit, "burn", baseAmount, bridgeID, receiver)
	if err != nil {
		return nil, err
	}

	log.Info().Str("bridgeId", bridgeID).Str("tx", tx.Hash().Hex()).Stringer("amount", baseAmount).
		Msg("[EvmAdapter] [Burn] submitted")
	return &chain.Result{
		Success:       true,
		TransactionID: tx.Hash().Hex(),
		BridgeID:      bridgeID,
		Status:        types.StatusBurned,
		Receipt:       tx,
	}, nil
}

// transact submits one contract method call, retrying across the RPC list.
func (a *Adapter) transact(ctx context.Context, gasLimit uint64, method string, args ...interface{}) (*ethtypes.Transaction, error) {
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
	}
	return WithClient(a.chainID, func(client *ethclient.Client) (*ethtypes.Transaction, error) {
		nonce, err := client.PendingNonceAt(ctx, common.HexToAddress(a.cfg.EVM.PublicAddress))
		if err != nil {
			return nil, fmt.Errorf("error getting nonce for wallet: %w", err)
		}
		gasPrice, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("error getting suggested gas price: %w", err)
		}
		privateKey, err := crypto.HexToECDSA(a.cfg.EVM.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("error instantiating private key: %w", err)
		}
		auth, err := bind.NewKeyedTransactorWithChainID(privateKey, big.NewInt(int64(a.chainID)))
		if err != nil {
			return nil, fmt.Errorf("error instantiating contract call: %w", err)
		}
		auth.Nonce = big.NewInt(int64(nonce))
		auth.Value = big.NewInt(0)
		auth.GasLimit = gasLimit
		auth.GasPrice = gasPrice
		auth.Context = ctx

		contract := bind.NewBoundContract(a.contract, wrappedABI, client, client, client)
		tx, err := contract.Transact(auth, method, args...)
		if err != nil {
			return nil, fmt.Errorf("error calling %s method: %w", method, err)
		}
		return tx, nil
	})
}

// StatusOf maps the contract's bridge status enumeration onto the
// transaction lifecycle.
func (a *Adapter) StatusOf(ctx context.Context, bridgeID string) (types.Status, error) {
	status, err := WithClient(a.chainID, func(client *ethclient.Client) (uint8, error) {
		contract := bind.NewBoundContract(a.contract, wrappedABI, client, client, client)
		var out []interface{}
		if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "getBridgeStatus", bridgeID); err != nil {
			return 0, err
		}
		if len(out) != 1 {
			return 0, fmt.Errorf("unexpected getBridgeStatus output")
		}
		v, ok := out[0].(uint8)
		if !ok {
			return 0, fmt.Errorf("unexpected getBridgeStatus output type %T", out[0])
		}
		return v, nil
	})
	if err != nil {
		return "", err
	}
	switch status {
	case 1:
		return types.StatusMinted, nil
	case 2:
		return types.StatusBurned, nil
	default:
		return types.StatusPending, nil
	}
}

// TransferProof answers the verification engine's proof query for a burn
// transaction: receipt confirmed at depth, BridgeBurn log from the wrapped
// token contract, amount and destination taken from the log itself.
func (a *Adapter) TransferProof(ctx context.Context, txID string) (*chain.TransferProof, error) {
	type receiptAndHeight struct {
		receipt *ethtypes.Receipt
		latest  uint64
	}
	rh, err := WithClient(a.chainID, func(client *ethclient.Client) (receiptAndHeight, error) {
		receipt, err := client.TransactionReceipt(ctx, common.HexToHash(txID))
		if err != nil {
			return receiptAndHeight{}, err
		}
		latest, err := client.BlockNumber(ctx)
		if err != nil {
			return receiptAndHeight{}, err
		}
		return receiptAndHeight{receipt: receipt, latest: latest}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error querying EVM RPC: %w", err)
	}

	receipt := rh.receipt
	confirmations := int(rh.latest - receipt.BlockNumber.Uint64())
	confirmed := receipt.Status == ethtypes.ReceiptStatusSuccessful &&
		confirmations >= config.EVMChains[a.chainID].MinConfirmations

	burnTopic := wrappedABI.Events["BridgeBurn"].ID
	for _, l := range receipt.Logs {
		if l.Address != a.contract || len(l.Topics) == 0 || l.Topics[0] != burnTopic {
			continue
		}
		var ev burnEvent
		if err := wrappedABI.UnpackIntoInterface(&ev, "BridgeBurn", l.Data); err != nil {
			return nil, fmt.Errorf("cannot unpack BridgeBurn log: %w", err)
		}
		return &chain.TransferProof{
			Confirmed:    confirmed,
			Kind:         chain.KindContractCall,
			AssetID:      a.contract.Hex(),
			Counterparty: a.contract.Hex(),
			BaseAmount:   ev.Amount,
			NoteBridgeID: ev.BridgeId,
			NoteReceiver: ev.Destination,
			NoteTarget:   types.ChainAlgorand,
		}, nil
	}
	return nil, fmt.Errorf("transaction %s carries no BridgeBurn event from the bridge contract", txID)
}
