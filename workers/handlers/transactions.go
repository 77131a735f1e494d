package handlers

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/jaydeep-me/algorand-carbon-bridge/types"
)

func (a *API) Transactions(w http.ResponseWriter, r *http.Request) {
	txs, err := a.bridge.ListTransactions()
	if err != nil {
		responseJSON(w, nil, http.StatusInternalServerError)
		return
	}
	responseJSON(w, txs, http.StatusOK)
}

func (a *API) TransactionByID(w http.ResponseWriter, r *http.Request) {
	tx, err := a.bridge.GetTransaction(chi.URLParam(r, "id"))
	if err != nil {
		responseJSON(w, nil, http.StatusInternalServerError)
		return
	}
	if tx == nil {
		responseJSON(w, &APIResponse{Status: "error", Message: "Unknown bridge transaction"}, http.StatusNotFound)
		return
	}
	responseJSON(w, tx, http.StatusOK)
}

func (a *API) TransactionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := a.bridge.GetTransactionStatus(r.Context(), id)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: "Unknown bridge transaction"}, http.StatusNotFound)
		return
	}
	responseJSON(w, &APIStatusResponse{Status: "ok", BridgeID: id, BridgeStatus: string(status)}, http.StatusOK)
}

func (a *API) FailedTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := a.bridge.ListTransactions()
	if err != nil {
		responseJSON(w, nil, http.StatusInternalServerError)
		return
	}
	failed := make([]*types.BridgeTransaction, 0)
	for _, tx := range txs {
		if tx.Status == types.StatusFailed {
			failed = append(failed, tx)
		}
	}
	responseJSON(w, failed, http.StatusOK)
}
