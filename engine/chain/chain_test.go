package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/netgodgame/netgod/engine/config"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func testConfig(endpoint string) *Config {
	return &config.BlockchainConfig{
		RPCEndpoint:        endpoint,
		WalletAddress:      "0xwallet",
		NetworkID:          1337,
		ConfirmationBlocks: 3,
		ContractAddresses: map[string]string{
			"ngt_token": "0x0000000000000000000000000000000000000001",
			"nft":       "0x0000000000000000000000000000000000000004",
		},
	}
}

func tokenTransfer(amount string) TxRequest {
	return TxRequest{
		To:       "0xplayer",
		Contract: "ngt_token",
		Method:   "transfer",
		Amount:   decimal.RequireFromString(amount),
	}
}

func TestNewLedger(t *testing.T) {
	_, ok := NewLedger(testConfig("")).(*MemoryLedger)
	assert.T(t, ok, "empty endpoint should be a memory ledger")
	_, ok = NewLedger(testConfig(MemoryEndpoint)).(*MemoryLedger)
	assert.T(t, ok, "memory:// should be a memory ledger")
	_, ok = NewLedger(testConfig("http://localhost:8545")).(*RPCLedger)
	assert.T(t, ok, "http endpoint should be an rpc ledger")
}

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(testConfig(MemoryEndpoint))

	_, err := l.Submit(ctx, "client_1", tokenTransfer("1"))
	assert.Equal(t, ErrNotConnected, errors.Cause(err))
	_, err = l.Sync(ctx)
	assert.Equal(t, ErrNotConnected, errors.Cause(err))

	assert.Equal(t, nil, l.Connect(ctx))
	assert.T(t, l.Connected(), "should be connected")
	addr, ok := l.Contract("nft")
	assert.T(t, ok, "nft contract should exist")
	assert.Equal(t, "0x0000000000000000000000000000000000000004", addr)

	tx, err := l.Submit(ctx, "client_1", tokenTransfer("12.5"))
	assert.Equal(t, nil, err)
	assert.Equal(t, TxPending, tx.Status)
	assert.Equal(t, "0xwallet", tx.Request.From)
	assert.Equal(t, 36, len(tx.ID))
	assert.Equal(t, 1, len(l.Pending()))

	for i := 0; i < 2; i++ {
		res, err := l.Sync(ctx)
		assert.Equal(t, nil, err)
		assert.Equal(t, 0, len(res.Confirmed))
	}
	res, err := l.Sync(ctx)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint64(3), res.Block)
	assert.Equal(t, 1, len(res.Confirmed))
	assert.Equal(t, tx.ID, res.Confirmed[0].ID)
	assert.Equal(t, TxConfirmed, res.Confirmed[0].Status)
	assert.Equal(t, 0, len(l.Pending()))

	l.Close()
	assert.T(t, !l.Connected(), "should be disconnected")
}

func TestRejectedTransactions(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(testConfig(MemoryEndpoint))
	l.Connect(ctx)

	_, err := l.Submit(ctx, "client_1", tokenTransfer("-1"))
	assert.Equal(t, ErrNegativeAmount, errors.Cause(err))

	req := tokenTransfer("1")
	req.Contract = "casino"
	_, err = l.Submit(ctx, "client_1", req)
	assert.Equal(t, ErrUnknownContract, errors.Cause(err))

	req.Contract = ""
	_, err = l.Submit(ctx, "client_1", req)
	assert.Equal(t, nil, err)
}

type fakeNode struct {
	mu      sync.Mutex
	chainID uint64
	block   uint64
	sent    []map[string]string
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	switch req.Method {
	case "eth_chainId":
		resp["result"] = fmt.Sprintf("0x%x", n.chainID)
	case "eth_blockNumber":
		resp["result"] = fmt.Sprintf("0x%x", n.block)
	case "eth_sendTransaction":
		var params map[string]string
		json.Unmarshal(req.Params[0], &params)
		n.sent = append(n.sent, params)
		resp["result"] = fmt.Sprintf("0x%064x", len(n.sent))
	default:
		resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
	}
	json.NewEncoder(w).Encode(resp)
}

func TestRPCLedger(t *testing.T) {
	node := &fakeNode{chainID: 1337, block: 100}
	srv := httptest.NewServer(node)
	defer srv.Close()

	ctx := context.Background()
	l := NewRPCLedger(testConfig(srv.URL))
	defer l.Close()
	assert.Equal(t, nil, l.Connect(ctx))

	tx, err := l.Submit(ctx, "client_1", tokenTransfer("1.5"))
	assert.Equal(t, nil, err)
	assert.Equal(t, uint64(100), tx.SubmittedBlock)
	assert.Equal(t, fmt.Sprintf("0x%064x", 1), tx.Hash)

	node.mu.Lock()
	sent := node.sent[0]
	node.block = 102
	node.mu.Unlock()
	assert.Equal(t, "0x0000000000000000000000000000000000000001", sent["to"])
	assert.Equal(t, "0xwallet", sent["from"])
	assert.Equal(t, "0x14d1120d7b160000", sent["value"])

	res, err := l.Sync(ctx)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(res.Confirmed))

	node.mu.Lock()
	node.block = 103
	node.mu.Unlock()
	res, err = l.Sync(ctx)
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(res.Confirmed))
	assert.Equal(t, uint64(103), res.Confirmed[0].ConfirmedBlock)
}

func TestRPCLedgerWrongNetwork(t *testing.T) {
	srv := httptest.NewServer(&fakeNode{chainID: 1, block: 5})
	defer srv.Close()

	l := NewRPCLedger(testConfig(srv.URL))
	assert.T(t, l.Connect(context.Background()) != nil, "chain id mismatch should fail")
	assert.T(t, !l.Connected(), "should not be connected")
}

func TestRPCLedgerUnreachable(t *testing.T) {
	srv := httptest.NewServer(&fakeNode{})
	url := srv.URL
	srv.Close()

	l := NewRPCLedger(testConfig(url))
	assert.T(t, l.Connect(context.Background()) != nil, "closed node should fail")
}

func TestParseQuantity(t *testing.T) {
	v, err := parseQuantity("0x1f")
	assert.Equal(t, nil, err)
	assert.Equal(t, uint64(31), v)
	_, err = parseQuantity("31")
	assert.T(t, err != nil, "missing 0x should fail")
	_, err = parseQuantity("0xzz")
	assert.T(t, err != nil, "invalid hex should fail")
}
