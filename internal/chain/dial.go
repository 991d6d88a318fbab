package chain

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const DefaultRPCTimeout = 30 * time.Second

// NewTransport returns the keep-alive transport every RPC connection starts from.
func NewTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  false,
	}
}

// NewHTTPClient wraps transport with a whole-request timeout.
func NewHTTPClient(transport http.RoundTripper, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultRPCTimeout
	}
	if transport == nil {
		transport = NewTransport()
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Dial opens an HTTP JSON-RPC connection through hc. Nothing is sent until the first call.
func Dial(rpcURL string, hc *http.Client) (*ethclient.Client, error) {
	if hc == nil {
		hc = NewHTTPClient(nil, DefaultRPCTimeout)
	}
	rc, err := rpc.DialHTTPWithClient(rpcURL, hc)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return ethclient.NewClient(rc), nil
}

// VerifyChainID asks the node for its chain id and, when want is set, checks they agree.
func VerifyChainID(ctx context.Context, ec interface {
	ChainID(context.Context) (*big.Int, error)
}, want *big.Int) (*big.Int, error) {
	got, err := ec.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth_chainId: %w", err)
	}
	if want != nil && want.Sign() > 0 && got.Cmp(want) != 0 {
		return nil, fmt.Errorf("chain id mismatch: node reports %s, configured %s", got, want)
	}
	return got, nil
}
