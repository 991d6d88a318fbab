package chain

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core"
)

// IsRateLimit reports provider throttling (HTTP 429 or JSON-RPC -32005).
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Too Many Requests") || strings.Contains(s, "-32005")
}

func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "deadline exceeded") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "timed out")
}

// FriendlyError turns node and transport errors into one short line for the console.
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrReverted):
		return "transaction reverted"
	case errors.Is(err, bind.ErrNoCode):
		return "no contract code at WETH address"
	case errors.Is(err, core.ErrInsufficientFunds):
		return "insufficient ETH for value + gas"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}

	s := strings.TrimSpace(err.Error())
	ls := strings.ToLower(s)
	switch {
	case IsRateLimit(err):
		return "rate limited by RPC"
	case IsTimeout(err):
		return "RPC timeout"
	case strings.Contains(ls, "insufficient funds"):
		return "insufficient ETH for value + gas"
	case strings.Contains(ls, "nonce too low"), strings.Contains(ls, "replacement transaction underpriced"):
		return "nonce conflict (pending tx from this wallet?)"
	case strings.Contains(ls, "execution reverted"):
		return "execution reverted"
	case strings.Contains(ls, "invalid character '<'"):
		return "non-JSON/HTML response (proxy/cf?)"
	case strings.Contains(ls, "proxyconnect"), strings.Contains(ls, "socks connect"):
		return "proxy error"
	case strings.Contains(ls, "dial tcp"), strings.Contains(ls, "lookup "), strings.Contains(ls, "connection refused"):
		return "network/DNS error"
	}
	return s
}
