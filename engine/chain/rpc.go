package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/netgodgame/netgod/engine/common"
	"github.com/netgodgame/netgod/engine/consts"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/pkg/errors"
)

const weiDecimals = 18

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return "rpc error " + strconv.Itoa(e.Code) + ": " + e.Message
}

// RPCLedger talks JSON-RPC 2.0 over HTTP to an Ethereum compatible node
type RPCLedger struct {
	txBook
	client *http.Client
	nextID uint64
}

// NewRPCLedger creates a JSON-RPC ledger
func NewRPCLedger(cfg *Config) *RPCLedger {
	l := &RPCLedger{client: &http.Client{Timeout: consts.CHAIN_RPC_TIMEOUT}}
	l.init(cfg)
	return l
}

func (l *RPCLedger) call(ctx context.Context, method string, result interface{}, params ...interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      atomic.AddUint64(&l.nextID, 1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.Wrap(err, "marshal rpc request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.RPCEndpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create rpc request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s", method)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "read %s response", method)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s: http status %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return errors.Wrapf(err, "decode %s response", method)
	}
	if rpcResp.Error != nil {
		return errors.Wrap(rpcResp.Error, method)
	}
	if result == nil {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(rpcResp.Result, result), "decode %s result", method)
}

func (l *RPCLedger) callQuantity(ctx context.Context, method string) (uint64, error) {
	var hex string
	if err := l.call(ctx, method, &hex); err != nil {
		return 0, err
	}
	return parseQuantity(hex)
}

// parseQuantity parses a 0x prefixed hex quantity
func parseQuantity(s string) (uint64, error) {
	if !strings.HasPrefix(s, "0x") {
		return 0, errors.Errorf("invalid quantity: %q", s)
	}
	v, err := strconv.ParseUint(s[2:], 16, 64)
	return v, errors.Wrapf(err, "invalid quantity: %q", s)
}

// Connect checks the chain id of the node
func (l *RPCLedger) Connect(ctx context.Context) error {
	gwlog.Infof("Connecting to blockchain at %s ...", l.cfg.RPCEndpoint)
	chainID, err := l.callQuantity(ctx, "eth_chainId")
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	if int64(chainID) != l.cfg.NetworkID {
		return errors.Errorf("chain id %d does not match network id %d", chainID, l.cfg.NetworkID)
	}
	block, err := l.callQuantity(ctx, "eth_blockNumber")
	if err != nil {
		return errors.Wrap(err, "connect")
	}

	l.mu.Lock()
	l.connected = true
	l.block = block
	l.mu.Unlock()
	gwlog.Infof("Blockchain connection established: network %d, block %d", chainID, block)
	return nil
}

// Sync reads the latest block and confirms old enough pending transactions
func (l *RPCLedger) Sync(ctx context.Context) (SyncResult, error) {
	if !l.Connected() {
		return SyncResult{}, ErrNotConnected
	}
	block, err := l.callQuantity(ctx, "eth_blockNumber")
	if err != nil {
		return SyncResult{}, errors.Wrap(err, "sync")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.confirm(block), nil
}

// Submit sends the transaction with eth_sendTransaction from the configured wallet
func (l *RPCLedger) Submit(ctx context.Context, clientID common.ClientID, req TxRequest) (*Transaction, error) {
	l.mu.Lock()
	tx, err := l.prepare(clientID, req)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	to := tx.Request.To
	if addr, ok := l.cfg.ContractAddresses[tx.Request.Contract]; ok {
		to = addr
	}
	l.mu.Unlock()

	params := map[string]string{
		"from":  tx.Request.From,
		"to":    to,
		"value": "0x" + tx.Request.Amount.Shift(weiDecimals).Truncate(0).BigInt().Text(16),
	}
	if tx.Request.Data != "" {
		params["data"] = tx.Request.Data
	}
	var hash string
	if err := l.call(ctx, "eth_sendTransaction", &hash, params); err != nil {
		return nil, errors.Wrap(err, "submit")
	}

	l.mu.Lock()
	tx.Hash = hash
	l.pending[tx.ID] = tx
	cp := *tx
	l.mu.Unlock()
	return &cp, nil
}

// Close disconnects the ledger
func (l *RPCLedger) Close() {
	l.mu.Lock()
	l.connected = false
	l.mu.Unlock()
	l.client.CloseIdleConnections()
}
