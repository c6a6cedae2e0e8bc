// Package chain connects the game server to a token ledger.
//
// Two ledgers are provided: MemoryLedger runs in process and advances one block per Sync,
// RPCLedger talks JSON-RPC 2.0 to an Ethereum compatible node.
package chain

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/netgodgame/netgod/engine/common"
	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Config of the ledger connection
type Config = config.BlockchainConfig

// MemoryEndpoint selects the in-process ledger
const MemoryEndpoint = "memory://"

var (
	// ErrNotConnected is returned when the ledger is used before Connect succeeds
	ErrNotConnected = errors.New("blockchain not connected")
	// ErrUnknownContract is returned for a contract name missing from the config
	ErrUnknownContract = errors.New("unknown contract")
	// ErrNegativeAmount is returned for transactions with a negative amount
	ErrNegativeAmount = errors.New("negative amount")
)

// TxStatus is the status of a transaction
type TxStatus string

// Transaction statuses
const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// TxRequest is a transaction requested by a client
type TxRequest struct {
	From     string          `json:"from"`
	To       string          `json:"to"`
	Contract string          `json:"contract"`
	Method   string          `json:"method"`
	Amount   decimal.Decimal `json:"amount"`
	Data     string          `json:"data,omitempty"`
}

// Transaction is a submitted transaction
type Transaction struct {
	ID             string          `json:"id"`
	Hash           string          `json:"hash,omitempty"`
	ClientID       common.ClientID `json:"client_id"`
	Request        TxRequest       `json:"request"`
	Status         TxStatus        `json:"status"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	SubmittedBlock uint64          `json:"submitted_block"`
	ConfirmedBlock uint64          `json:"confirmed_block,omitempty"`
}

// SyncResult is the outcome of one ledger sync
type SyncResult struct {
	Block     uint64         `json:"block"`
	Confirmed []*Transaction `json:"confirmed"`
}

// Ledger is a chain the game server submits transactions to
type Ledger interface {
	Connect(ctx context.Context) error
	Connected() bool
	Sync(ctx context.Context) (SyncResult, error)
	Submit(ctx context.Context, clientID common.ClientID, req TxRequest) (*Transaction, error)
	Pending() []*Transaction
	Contract(name string) (string, bool)
	Close()
}

// NewLedger creates the ledger selected by the rpc endpoint
func NewLedger(cfg *Config) Ledger {
	if cfg.RPCEndpoint == "" || strings.HasPrefix(cfg.RPCEndpoint, MemoryEndpoint) {
		return NewMemoryLedger(cfg)
	}
	return NewRPCLedger(cfg)
}

// txBook keeps the pending transactions of a ledger
type txBook struct {
	mu        sync.Mutex
	cfg       Config
	connected bool
	block     uint64
	pending   map[string]*Transaction
}

func (b *txBook) init(cfg *Config) {
	b.cfg = *cfg
	b.cfg.ContractAddresses = make(map[string]string, len(cfg.ContractAddresses))
	for name, addr := range cfg.ContractAddresses {
		b.cfg.ContractAddresses[name] = addr
	}
	b.pending = map[string]*Transaction{}
}

// Connected returns whether Connect succeeded
func (b *txBook) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Contract returns the address of the named contract
func (b *txBook) Contract(name string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	addr, ok := b.cfg.ContractAddresses[name]
	return addr, ok
}

// Pending returns pending transactions sorted by submission time
func (b *txBook) Pending() []*Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	txs := make([]*Transaction, 0, len(b.pending))
	for _, tx := range b.pending {
		cp := *tx
		txs = append(txs, &cp)
	}
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].SubmittedBlock != txs[j].SubmittedBlock {
			return txs[i].SubmittedBlock < txs[j].SubmittedBlock
		}
		return txs[i].SubmittedAt.Before(txs[j].SubmittedAt)
	})
	return txs
}

// prepare validates the request and builds a pending transaction; the lock must be held
func (b *txBook) prepare(clientID common.ClientID, req TxRequest) (*Transaction, error) {
	if !b.connected {
		return nil, ErrNotConnected
	}
	if req.Amount.IsNegative() {
		return nil, errors.Wrapf(ErrNegativeAmount, "amount %s", req.Amount)
	}
	if req.Contract != "" {
		if _, ok := b.cfg.ContractAddresses[req.Contract]; !ok {
			return nil, errors.Wrapf(ErrUnknownContract, "contract %s", req.Contract)
		}
	}
	if req.From == "" {
		req.From = b.cfg.WalletAddress
	}
	return &Transaction{
		ID:             uuid.NewString(),
		ClientID:       clientID,
		Request:        req,
		Status:         TxPending,
		SubmittedAt:    time.Now(),
		SubmittedBlock: b.block,
	}, nil
}

// confirm marks pending transactions old enough at block as confirmed; the lock must be held
func (b *txBook) confirm(block uint64) SyncResult {
	b.block = block
	res := SyncResult{Block: block}
	depth := uint64(b.cfg.ConfirmationBlocks)
	for id, tx := range b.pending {
		if block >= tx.SubmittedBlock+depth {
			tx.Status = TxConfirmed
			tx.ConfirmedBlock = block
			delete(b.pending, id)
			res.Confirmed = append(res.Confirmed, tx)
		}
	}
	sort.Slice(res.Confirmed, func(i, j int) bool {
		return res.Confirmed[i].SubmittedAt.Before(res.Confirmed[j].SubmittedAt)
	})
	if len(res.Confirmed) > 0 {
		gwlog.Infof("Ledger block %d: %d transactions confirmed, %d pending", block, len(res.Confirmed), len(b.pending))
	}
	return res
}

// MemoryLedger is an in-process ledger
type MemoryLedger struct {
	txBook
}

// NewMemoryLedger creates an in-process ledger
func NewMemoryLedger(cfg *Config) *MemoryLedger {
	l := &MemoryLedger{}
	l.init(cfg)
	return l
}

// Connect always succeeds
func (l *MemoryLedger) Connect(ctx context.Context) error {
	l.mu.Lock()
	l.connected = true
	l.mu.Unlock()
	gwlog.Infof("Connected to in-process ledger, network %d", l.cfg.NetworkID)
	return nil
}

// Sync advances one block
func (l *MemoryLedger) Sync(ctx context.Context) (SyncResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return SyncResult{}, ErrNotConnected
	}
	return l.confirm(l.block + 1), nil
}

// Submit records a pending transaction
func (l *MemoryLedger) Submit(ctx context.Context, clientID common.ClientID, req TxRequest) (*Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, err := l.prepare(clientID, req)
	if err != nil {
		return nil, err
	}
	tx.Hash = "0x" + strings.ReplaceAll(tx.ID, "-", "")
	l.pending[tx.ID] = tx
	cp := *tx
	return &cp, nil
}

// Close disconnects the ledger
func (l *MemoryLedger) Close() {
	l.mu.Lock()
	l.connected = false
	l.mu.Unlock()
}
