package handlers

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type APIBridgeResponse struct {
	Status        string `json:"status"`
	BridgeID      string `json:"bridgeId"`
	TransactionID string `json:"transactionId"`
	FeePercentage int    `json:"feePercentage"`
}

type APIStatusResponse struct {
	Status       string `json:"status"`
	BridgeID     string `json:"bridgeId"`
	BridgeStatus string `json:"bridgeStatus"`
}
