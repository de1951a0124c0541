package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestRPCServer answers eth_getTransactionReceipt and eth_blockNumber
// with canned results.
func newTestRPCServer(t *testing.T, receipt interface{}, latestBlock string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode RPC request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "eth_getTransactionReceipt":
			json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": receipt})
		case "eth_blockNumber":
			json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": latestBlock})
		case "eth_sendRawTransaction":
			json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": "0xdeadbeef"})
		default:
			t.Errorf("unexpected RPC method %s", req.Method)
		}
	}))
}

func TestParseHexInt64(t *testing.T) {
	cases := map[string]int64{
		"0x0":     0,
		"0x1":     1,
		"0xff":    255,
		"0x1234":  4660,
		"0xabc":   2748, // odd length gets padded
		"":        0,
		"0x":      0,
		"not-hex": 0,
	}
	for in, want := range cases {
		if got := ParseHexInt64(in); got != want {
			t.Errorf("ParseHexInt64(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestGetReceiptPending(t *testing.T) {
	srv := newTestRPCServer(t, nil, "0x100")
	defer srv.Close()
	t.Setenv("BASE_RPC_ENDPOINT", srv.URL)

	client := NewRPCClient()
	receipt, err := client.GetReceipt(context.Background(), "base", "0xabc")
	if err != nil {
		t.Fatalf("GetReceipt failed: %v", err)
	}
	if receipt != nil {
		t.Errorf("expected nil receipt for unmined tx, got %+v", receipt)
	}
}

func TestGetReceiptMined(t *testing.T) {
	srv := newTestRPCServer(t, map[string]string{
		"status":      "0x1",
		"blockNumber": "0x64",
		"gasUsed":     "0x5208",
	}, "0x100")
	defer srv.Close()
	t.Setenv("BASE_RPC_ENDPOINT", srv.URL)

	client := NewRPCClient()
	receipt, err := client.GetReceipt(context.Background(), "base", "0xabc")
	if err != nil {
		t.Fatalf("GetReceipt failed: %v", err)
	}
	if receipt == nil {
		t.Fatal("expected receipt")
	}
	if receipt.Reverted() {
		t.Error("status 0x1 must not read as reverted")
	}
	if ParseHexInt64(receipt.BlockNumber) != 100 {
		t.Errorf("expected block 100, got %s", receipt.BlockNumber)
	}
}

func TestGetReceiptReverted(t *testing.T) {
	srv := newTestRPCServer(t, map[string]string{"status": "0x0", "blockNumber": "0x64", "gasUsed": "0x0"}, "0x100")
	defer srv.Close()
	t.Setenv("BASE_RPC_ENDPOINT", srv.URL)

	client := NewRPCClient()
	receipt, err := client.GetReceipt(context.Background(), "base", "0xabc")
	if err != nil {
		t.Fatalf("GetReceipt failed: %v", err)
	}
	if receipt == nil || !receipt.Reverted() {
		t.Errorf("expected reverted receipt, got %+v", receipt)
	}
}

func TestHasRequiredConfirmations(t *testing.T) {
	// base requires 10 confirmations
	cases := []struct {
		latest string
		block  int64
		want   bool
	}{
		{"0x6e", 100, true},  // 110 - 100 = 10
		{"0x6d", 100, false}, // 109 - 100 = 9
		{"0x63", 100, false}, // latest behind block
		{"0x100", 0, false},  // zero block never confirms
	}
	for _, tc := range cases {
		srv := newTestRPCServer(t, nil, tc.latest)
		t.Setenv("BASE_RPC_ENDPOINT", srv.URL)

		client := NewRPCClient()
		got, err := client.HasRequiredConfirmations(context.Background(), "base", tc.block)
		srv.Close()
		if err != nil {
			t.Fatalf("HasRequiredConfirmations failed: %v", err)
		}
		if got != tc.want {
			t.Errorf("latest=%s block=%d: got %v, want %v", tc.latest, tc.block, got, tc.want)
		}
	}
}

func TestSubmitRawTransaction(t *testing.T) {
	srv := newTestRPCServer(t, nil, "0x100")
	defer srv.Close()
	t.Setenv("BASE_RPC_ENDPOINT", srv.URL)

	client := NewRPCClient()
	hash, err := client.SubmitRawTransaction(context.Background(), "base", "f86c0a85")
	if err != nil {
		t.Fatalf("SubmitRawTransaction failed: %v", err)
	}
	if hash != "0xdeadbeef" {
		t.Errorf("unexpected hash %s", hash)
	}
}

func TestUnknownNetwork(t *testing.T) {
	client := NewRPCClient()
	if _, err := client.GetReceipt(context.Background(), "nope", "0xabc"); err == nil {
		t.Error("expected error for unknown network")
	}
}
