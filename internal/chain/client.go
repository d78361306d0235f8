package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"liquiditySniper/internal/model"
)

// ErrNotConnected is returned before the first successful Redial.
var ErrNotConnected = errors.New("rpc not connected")

// Client wraps go-ethereum RPC and provides helper methods. The underlying
// connection can be replaced with Redial; calls in flight on the old
// connection fail with a network error.
type Client struct {
	url          string
	pollInterval time.Duration

	mu         sync.RWMutex
	rpcClient  *rpc.Client
	ethClient  *ethclient.Client
	gethClient *gethclient.Client
	chainID    *big.Int
	signer     types.Signer
}

// NewClient creates an unconnected client for the RPC URL.
func NewClient(rpcURL string) *Client {
	return &Client{url: rpcURL, pollInterval: time.Second}
}

// Redial opens a fresh connection and closes the previous one.
func (c *Client) Redial(ctx context.Context) error {
	rpcClient, err := rpc.DialContext(ctx, c.url)
	if err != nil {
		return err
	}
	ethClient := ethclient.NewClient(rpcClient)

	c.mu.RLock()
	chainID := c.chainID
	c.mu.RUnlock()
	if chainID == nil {
		chainID, err = ethClient.ChainID(ctx)
		if err != nil {
			rpcClient.Close()
			return fmt.Errorf("chain id: %w", err)
		}
	}

	c.mu.Lock()
	old := c.rpcClient
	c.rpcClient = rpcClient
	c.ethClient = ethClient
	c.gethClient = gethclient.New(rpcClient)
	c.chainID = chainID
	c.signer = types.LatestSignerForChainID(chainID)
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpcClient != nil {
		c.rpcClient.Close()
		c.rpcClient = nil
	}
}

func (c *Client) eth() (*ethclient.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ethClient == nil {
		return nil, ErrNotConnected
	}
	return c.ethClient, nil
}

// ChainID returns the chain ID learned on the first connection.
func (c *Client) ChainID() (*big.Int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.chainID == nil {
		return nil, ErrNotConnected
	}
	return new(big.Int).Set(c.chainID), nil
}

// SubscribePendingHashes streams hashes of transactions entering the node's
// mempool.
func (c *Client) SubscribePendingHashes(ctx context.Context, ch chan<- common.Hash) (ethereum.Subscription, error) {
	c.mu.RLock()
	gc := c.gethClient
	c.mu.RUnlock()
	if gc == nil {
		return nil, ErrNotConnected
	}
	return gc.SubscribePendingTransactions(ctx, ch)
}

// SubscribeNewHead streams new block headers.
func (c *Client) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	ec, err := c.eth()
	if err != nil {
		return nil, err
	}
	return ec.SubscribeNewHead(ctx, ch)
}

// PendingTransaction fetches a transaction by hash. A transaction the node
// no longer knows yields nil without error.
func (c *Client) PendingTransaction(ctx context.Context, hash common.Hash) (*model.PendingTransaction, error) {
	ec, err := c.eth()
	if err != nil {
		return nil, err
	}
	tx, _, err := ec.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, err
	}

	c.mu.RLock()
	signer := c.signer
	c.mu.RUnlock()
	from, err := types.Sender(signer, tx)
	if err != nil {
		return nil, fmt.Errorf("recover sender: %w", err)
	}
	return FromTransaction(tx, from), nil
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	ec, err := c.eth()
	if err != nil {
		return 0, err
	}
	return ec.BlockNumber(ctx)
}

// HeaderByNumber returns the block header by number, nil meaning latest.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	ec, err := c.eth()
	if err != nil {
		return nil, err
	}
	return ec.HeaderByNumber(ctx, number)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	ec, err := c.eth()
	if err != nil {
		return nil, err
	}
	return ec.CallContract(ctx, msg, blockNumber)
}

// BalanceAt returns the native balance of account at the latest block.
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	ec, err := c.eth()
	if err != nil {
		return nil, err
	}
	return ec.BalanceAt(ctx, account, nil)
}

// PendingNonceAt returns the next nonce including pending transactions.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	ec, err := c.eth()
	if err != nil {
		return 0, err
	}
	return ec.PendingNonceAt(ctx, account)
}

// SendTransaction submits a signed transaction. Failures are returned as
// *SubmissionError.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	ec, err := c.eth()
	if err != nil {
		return Classify(err)
	}
	if err := ec.SendTransaction(ctx, tx); err != nil {
		return Classify(err)
	}
	return nil
}

// WaitMined blocks until tx is mined. A mined but reverted transaction
// returns the receipt together with ErrReceiptFailed.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ec, err := c.eth()
	if err != nil {
		return nil, err
	}
	receipt, err := bind.WaitMined(ctx, ec, tx)
	if err != nil {
		return nil, fmt.Errorf("wait mined: %w", err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, fmt.Errorf("%w: %s", ErrReceiptFailed, tx.Hash().Hex())
	}
	return receipt, nil
}

// WaitConfirmed polls for the receipt of a transaction seen only by hash.
func (c *Client) WaitConfirmed(ctx context.Context, hash common.Hash) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		ec, err := c.eth()
		if err != nil {
			return err
		}
		receipt, err := ec.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return fmt.Errorf("%w: %s", ErrReceiptFailed, hash.Hex())
			}
			return nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// FromTransaction converts a go-ethereum transaction into the observed form.
func FromTransaction(tx *types.Transaction, from common.Address) *model.PendingTransaction {
	out := &model.PendingTransaction{
		Hash:  tx.Hash(),
		From:  from,
		To:    tx.To(),
		Input: tx.Data(),
		Value: tx.Value(),
		Nonce: tx.Nonce(),
	}
	switch tx.Type() {
	case types.DynamicFeeTxType, types.BlobTxType:
		out.GasFeeCap = tx.GasFeeCap()
		out.GasTipCap = tx.GasTipCap()
	default:
		out.GasPrice = tx.GasPrice()
	}
	return out
}

// SuggestGasPrice returns the node's legacy gas price suggestion.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	ec, err := c.eth()
	if err != nil {
		return nil, err
	}
	return ec.SuggestGasPrice(ctx)
}
