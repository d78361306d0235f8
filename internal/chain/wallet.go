package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"liquiditySniper/internal/model"
)

// DefaultGasLimit is used when no gas limit is configured.
const DefaultGasLimit = 500_000

// Wallet signs and submits payloads from one key, tracking the nonce locally.
type Wallet struct {
	client   *Client
	key      *ecdsa.PrivateKey
	address  common.Address
	gasLimit uint64

	mu     sync.Mutex
	nonce  uint64
	synced bool
}

// NewWallet parses a hex private key.
func NewWallet(client *Client, hexKey string, gasLimit uint64) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	if gasLimit == 0 {
		gasLimit = DefaultGasLimit
	}
	return &Wallet{
		client:   client,
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		gasLimit: gasLimit,
	}, nil
}

// Address returns the wallet address.
func (w *Wallet) Address() common.Address {
	return w.address
}

// Balance returns the native balance of the wallet.
func (w *Wallet) Balance(ctx context.Context) (*big.Int, error) {
	return w.client.BalanceAt(ctx, w.address)
}

// Nonce returns the next nonce the wallet will use.
func (w *Wallet) Nonce(ctx context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.syncNonceLocked(ctx); err != nil {
		return 0, err
	}
	return w.nonce, nil
}

func (w *Wallet) syncNonceLocked(ctx context.Context) error {
	if w.synced {
		return nil
	}
	nonce, err := w.client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return fmt.Errorf("pending nonce: %w", err)
	}
	w.nonce = nonce
	w.synced = true
	return nil
}

// Send signs payload with the next nonce and submits it. A failed send
// resynchronizes the nonce from the node before the next attempt.
func (w *Wallet) Send(ctx context.Context, payload model.Payload, gas *model.GasOverride) (*types.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.syncNonceLocked(ctx); err != nil {
		return nil, Classify(err)
	}
	chainID, err := w.client.ChainID()
	if err != nil {
		return nil, Classify(err)
	}
	txData, err := w.txData(ctx, chainID, payload, gas)
	if err != nil {
		return nil, Classify(err)
	}
	tx, err := types.SignNewTx(w.key, types.LatestSignerForChainID(chainID), txData)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", payload.Label, err)
	}
	if err := w.client.SendTransaction(ctx, tx); err != nil {
		w.synced = false
		return nil, err
	}
	w.nonce++
	return tx, nil
}

// Wait blocks until tx is mined and succeeded.
func (w *Wallet) Wait(ctx context.Context, tx *types.Transaction) error {
	_, err := w.client.WaitMined(ctx, tx)
	return err
}

func (w *Wallet) txData(ctx context.Context, chainID *big.Int, payload model.Payload, gas *model.GasOverride) (types.TxData, error) {
	value := payload.Value
	if value == nil {
		value = new(big.Int)
	}
	to := payload.To

	if gas != nil && gas.Style == model.FeeMarket {
		tip := gas.GasTipCap
		if tip == nil {
			tip = new(big.Int)
		}
		feeCap := gas.GasFeeCap
		if feeCap == nil {
			head, err := w.client.HeaderByNumber(ctx, nil)
			if err != nil {
				return nil, fmt.Errorf("latest header: %w", err)
			}
			feeCap = new(big.Int).Add(tip, new(big.Int).Mul(baseFee(head), big.NewInt(2)))
		}
		return &types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     w.nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       w.gasLimit,
			To:        &to,
			Value:     value,
			Data:      payload.Data,
		}, nil
	}

	var price *big.Int
	if gas != nil {
		price = gas.GasPrice
	}
	if price == nil {
		suggested, err := w.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest gas price: %w", err)
		}
		price = suggested
	}
	return &types.LegacyTx{
		Nonce:    w.nonce,
		GasPrice: price,
		Gas:      w.gasLimit,
		To:       &to,
		Value:    value,
		Data:     payload.Data,
	}, nil
}

func baseFee(head *types.Header) *big.Int {
	if head == nil || head.BaseFee == nil {
		return new(big.Int)
	}
	return head.BaseFee
}
