package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"
)

// Signer signs and broadcasts transfers on behalf of the checkout. The key
// material lives wherever the host environment keeps it; callers only ever
// see the resulting transaction hash.
type Signer interface {
	// SubmitNativeTransfer signs and broadcasts a plain value transfer of
	// the chain's native coin, denominated in minor units (wei).
	SubmitNativeTransfer(ctx context.Context, network, to string, amountMinorUnits *big.Int) (txHash string, err error)
	// SubmitContractCall signs and broadcasts a contract call. Calldata is
	// the 0x-prefixed ABI encoding, selector and arguments included.
	SubmitContractCall(ctx context.Context, network, contract, calldata string) (txHash string, err error)
}

// Submitter broadcasts signed transactions. Signing happens client-side or
// offline; the server only ever relays raw bytes, mirroring the xpub-only
// stance of the HD wallet.
type Submitter interface {
	SubmitRawTransaction(ctx context.Context, network string, rawTx string) (txHash string, err error)
}

// SubmitRawTransaction broadcasts a pre-signed transaction via JSON-RPC and
// returns its hash.
func (c *RPCClient) SubmitRawTransaction(ctx context.Context, network string, rawTx string) (string, error) {
	endpoint, _, err := endpointFor(network)
	if err != nil {
		return "", err
	}

	if !strings.HasPrefix(rawTx, "0x") {
		rawTx = "0x" + rawTx
	}

	var txHash string
	if err := c.call(ctx, endpoint, "eth_sendRawTransaction", []string{rawTx}, &txHash); err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	if txHash == "" {
		return "", fmt.Errorf("node returned empty transaction hash")
	}
	return txHash, nil
}
