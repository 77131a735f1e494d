package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/jaydeep-me/algorand-carbon-bridge/chain"
	"github.com/jaydeep-me/algorand-carbon-bridge/types"
)

type bridgeRequest struct {
	Sender   string                      `json:"sender"`
	Receiver string                      `json:"receiver"`
	Amount   string                      `json:"amount"`
	Metadata *types.CarbonCreditMetadata `json:"metadata,omitempty"`
}

// SubmitLock starts an Algorand -> EVM transfer: escrow the credits, mint
// wrapped tokens once verified.
func (a *API) SubmitLock(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := a.readBridgeRequest(w, r)
	if !ok {
		return
	}

	res, err := a.bridge.BridgeToTargetChain(r.Context(), req.Sender, req.Receiver, amount, req.Metadata, chain.LockOptions{})
	if err != nil {
		a.submissionError(w, err)
		return
	}

	responseJSON(w, &APIBridgeResponse{
		Status:        "ok",
		BridgeID:      res.BridgeID,
		TransactionID: res.TransactionID,
		FeePercentage: a.cfg.FeePercentage,
	}, http.StatusOK)
}

// SubmitBurn starts the return leg: burn wrapped tokens, release escrowed
// credits once verified.
func (a *API) SubmitBurn(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := a.readBridgeRequest(w, r)
	if !ok {
		return
	}

	res, err := a.bridge.BridgeToAlgorand(r.Context(), req.Sender, req.Receiver, amount, chain.BurnOptions{})
	if err != nil {
		a.submissionError(w, err)
		return
	}

	responseJSON(w, &APIBridgeResponse{
		Status:        "ok",
		BridgeID:      res.BridgeID,
		TransactionID: res.TransactionID,
		FeePercentage: a.cfg.FeePercentage,
	}, http.StatusOK)
}

func (a *API) readBridgeRequest(w http.ResponseWriter, r *http.Request) (*bridgeRequest, decimal.Decimal, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error().Err(err).Msg("[API] error reading request body")
		responseJSON(w, &APIResponse{Status: "error", Message: "Error reading request body"}, http.StatusBadRequest)
		return nil, decimal.Zero, false
	}

	var req bridgeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Error().Err(err).Msg("[API] error unmarshalling request body")
		responseJSON(w, &APIResponse{Status: "error", Message: "Cannot unmarshal input JSON"}, http.StatusBadRequest)
		return nil, decimal.Zero, false
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "amount", Message: "No amount or invalid amount provided"}, http.StatusBadRequest)
		return nil, decimal.Zero, false
	}
	return &req, amount, true
}

func (a *API) submissionError(w http.ResponseWriter, err error) {
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		responseJSON(w, &APIResponse{Status: "error", Field: verr.Field, Message: verr.Error()}, http.StatusBadRequest)
		return
	}
	log.Error().Err(err).Msg("[API] bridge submission failed")
	responseJSON(w, &APIResponse{Status: "error", Message: err.Error()}, http.StatusInternalServerError)
}
