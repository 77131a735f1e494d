package handlers

import "net/http"

func (a *API) State(w http.ResponseWriter, r *http.Request) {
	responseJSON(w, &APIResponse{Status: "ok", Message: "bridge operational"}, http.StatusOK)
}

func (a *API) HealthCheck(w http.ResponseWriter, r *http.Request) {
	responseJSON(w, &APIResponse{Status: "ok"}, http.StatusOK)
}
