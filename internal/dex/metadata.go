package dex

import (
	"bytes"
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// TokenMeta is the ERC20 metadata logged for configured tokens.
type TokenMeta struct {
	Address  common.Address
	Decimals uint8
	Symbol   string
	Name     string
}

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

func tokenMetaWithDecimals(token common.Address, decimals uint8) TokenMeta {
	return TokenMeta{Address: token, Decimals: decimals}
}

// TokenMeta loads decimals, symbol and name for token. Only decimals is
// required; symbol and name fall back to their bytes32 variants and are
// left empty when neither answers.
func (q *Quoter) TokenMeta(ctx context.Context, token common.Address, logger *zap.Logger) (TokenMeta, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if meta, ok := q.tokens.Get(token); ok && meta.Symbol != "" {
		return meta, nil
	}

	decimals, err := q.Decimals(ctx, token)
	if err != nil {
		return TokenMeta{Address: token}, err
	}
	meta := tokenMetaWithDecimals(token, decimals)

	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, err
	}

	meta.Symbol = q.textField(ctx, token, "symbol", bytes32ABI, logger)
	meta.Name = q.textField(ctx, token, "name", bytes32ABI, logger)

	q.tokens.Set(token, meta)
	return meta, nil
}

func (q *Quoter) textField(ctx context.Context, token common.Address, method string, fallback abi.ABI, logger *zap.Logger) string {
	if values, err := callMethod(ctx, q.caller, token, q.erc20ABI, method); err == nil {
		if text, ok := values[0].(string); ok {
			return text
		}
	}
	values, err := callMethod(ctx, q.caller, token, fallback, method)
	if err != nil {
		logger.Debug(method+" call failed", zap.String("token", token.Hex()), zap.Error(err))
		return ""
	}
	text, _ := bytes32ToString(values[0])
	return text
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}
