package wallet

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront/api_payments/internal/rails"
)

// TransactionReceipt is the subset of an Ethereum receipt tracking needs.
type TransactionReceipt struct {
	Status      string `json:"status"`      // "0x1" success, "0x0" revert
	BlockNumber string `json:"blockNumber"` // hex
	GasUsed     string `json:"gasUsed"`     // hex
}

// Reverted reports whether the receipt records an on-chain revert.
func (r *TransactionReceipt) Reverted() bool {
	return r.Status != "0x1"
}

// ReceiptSource looks up receipts for submitted transactions. GetReceipt
// returns (nil, nil) while the transaction is unmined.
type ReceiptSource interface {
	GetReceipt(ctx context.Context, network string, txHash string) (*TransactionReceipt, error)
	HasRequiredConfirmations(ctx context.Context, network string, blockNumber int64) (bool, error)
}

// RPCClient reads chain state over plain JSON-RPC.
type RPCClient struct {
	httpClient *http.Client
}

// NewRPCClient creates a JSON-RPC chain reader.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *RPCClient) call(ctx context.Context, endpoint, method string, params interface{}, result interface{}) error {
	reqBody := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(string(reqJSON)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var rpcResp struct {
		Result json.RawMessage  `json:"result"`
		Error  *json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return err
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("RPC error: %s", string(*rpcResp.Error))
	}

	return json.Unmarshal(rpcResp.Result, result)
}

func endpointFor(network string) (string, rails.NetworkConfig, error) {
	cfg, ok := rails.Networks[network]
	if !ok {
		return "", cfg, fmt.Errorf("unknown network %s", network)
	}
	endpoint := cfg.GetRPCEndpointWithDefault()
	if endpoint == "" {
		return "", cfg, fmt.Errorf("no RPC endpoint for network %s", network)
	}
	return endpoint, cfg, nil
}

// GetReceipt fetches the transaction receipt. A nil receipt with nil error
// means the transaction is not yet mined.
func (c *RPCClient) GetReceipt(ctx context.Context, network string, txHash string) (*TransactionReceipt, error) {
	endpoint, _, err := endpointFor(network)
	if err != nil {
		return nil, err
	}

	var receipt *TransactionReceipt
	if err := c.call(ctx, endpoint, "eth_getTransactionReceipt", []string{txHash}, &receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

// HasRequiredConfirmations checks whether a mined block is deep enough for
// the network's confirmation policy.
func (c *RPCClient) HasRequiredConfirmations(ctx context.Context, network string, blockNumber int64) (bool, error) {
	if blockNumber == 0 {
		return false, nil
	}

	endpoint, cfg, err := endpointFor(network)
	if err != nil {
		return false, err
	}

	var latestHex string
	if err := c.call(ctx, endpoint, "eth_blockNumber", []interface{}{}, &latestHex); err != nil {
		return false, err
	}

	latest := ParseHexInt64(latestHex)
	if latest < blockNumber {
		return false, nil
	}
	return (latest - blockNumber) >= int64(cfg.Confirmations), nil
}

// ParseHexInt64 parses a 0x-prefixed hex quantity to int64.
func ParseHexInt64(hexStr string) int64 {
	hexStr = strings.TrimPrefix(hexStr, "0x")
	if hexStr == "" {
		return 0
	}
	b, err := hex.DecodeString(padHexString(hexStr))
	if err != nil {
		return 0
	}
	var result int64
	for _, v := range b {
		result = result<<8 | int64(v)
	}
	return result
}

// padHexString pads a hex string to even length
func padHexString(s string) string {
	if len(s)%2 != 0 {
		return "0" + s
	}
	return s
}
