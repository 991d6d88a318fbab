package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const etherDecimals = 18

var ErrAmountFormat = errors.New("invalid ETH amount")

// FormatEther renders wei as ETH with a fixed number of decimal places.
func FormatEther(wei *big.Int, places int) string {
	if wei == nil {
		return decimal.Zero.StringFixed(int32(places))
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).StringFixed(int32(places))
}

// ParseEther converts a decimal ETH string ("0.001", "1e-3") to wei.
// Negative amounts and precision below 1 wei are rejected.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrAmountFormat)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrAmountFormat, s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", ErrAmountFormat, s)
	}
	wei := d.Shift(etherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrAmountFormat, s, etherDecimals)
	}
	return wei.BigInt(), nil
}

// ShortAddress renders a checksummed address as "0x1234...abcd".
func ShortAddress(a common.Address) string {
	s := a.Hex()
	return s[:6] + "..." + s[len(s)-4:]
}

func ShortHash(h common.Hash) string {
	s := h.Hex()
	return s[:10] + "..." + s[len(s)-6:]
}
