package handlers

// CreateSessionRequest opens a checkout session for an order
type CreateSessionRequest struct {
	OrderRef  string `json:"order_ref" validate:"required"`
	AmountUsd string `json:"amount_usd" validate:"required"`
}

// SelectRailRequest changes the rail selection of a session. Token may be
// omitted on a network switch; the session re-validates the current token
// against the new network and clears it if unsupported.
type SelectRailRequest struct {
	Rail    string `json:"rail" validate:"required,oneof=onchain gateway card"`
	Network string `json:"network" validate:"required_if=Rail onchain"`
	Token   string `json:"token"`
}

// SetAmountRequest changes the order amount
type SetAmountRequest struct {
	AmountUsd string `json:"amount_usd" validate:"required"`
}

// SubmitPaymentRequest starts a payment attempt
type SubmitPaymentRequest struct {
	Rail string `json:"rail,omitempty"`

	// On-chain. Without a tx_hash or raw_tx the built instruction goes to
	// the server-side signer, paying to destination.
	TxHash      string `json:"tx_hash,omitempty"`
	RawTx       string `json:"raw_tx,omitempty"`
	Destination string `json:"destination,omitempty"`

	// Hosted rails
	Currency    string `json:"currency,omitempty"`
	Description string `json:"description,omitempty"`
	ReturnURL   string `json:"return_url,omitempty"`
	CancelURL   string `json:"cancel_url,omitempty"`
	WebhookURL  string `json:"webhook_url,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
}

// GatewayWebhookPayload is what the hosted gateway posts on status changes
type GatewayWebhookPayload struct {
	OrderRef  string `json:"order_ref"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Amount    string `json:"amount,omitempty"`
}

// InitializeWalletRequest installs the deposit-wallet xpub
type InitializeWalletRequest struct {
	Xpub    string `json:"xpub" validate:"required"`
	Network string `json:"network" validate:"required,oneof=mainnet testnet"`
}

// DepositAddressRequest asks for a fresh per-order deposit address
type DepositAddressRequest struct {
	OrderRef string `json:"order_ref" validate:"required"`
	Network  string `json:"network" validate:"required"`
	Token    string `json:"token" validate:"required"`
}

// PriceUpdateRequest pushes a token unit price into the feed
type PriceUpdateRequest struct {
	Token        string `json:"token" validate:"required"`
	UnitPriceUsd string `json:"unit_price_usd" validate:"required"`
}
