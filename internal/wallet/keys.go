package wallet

import (
	"bufio"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var ErrMalformedKey = errors.New("malformed private key")

// ParseKey parses a hex ECDSA private key (with / without 0x). The error never
// echoes the input.
func ParseKey(s string) (*ecdsa.PrivateKey, error) {
	h := strings.TrimSpace(s)
	if strings.HasPrefix(h, "0x") || strings.HasPrefix(h, "0X") {
		h = h[2:]
	}
	if len(h) != 64 {
		return nil, fmt.Errorf("%w: want 64 hex characters, got %d", ErrMalformedKey, len(h))
	}
	for _, r := range h {
		if !isHex(r) {
			return nil, fmt.Errorf("%w: non-hex character", ErrMalformedKey)
		}
	}
	key, err := gethcrypto.HexToECDSA(h)
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid secp256k1 scalar", ErrMalformedKey)
	}
	return key, nil
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// ReadLines returns the trimmed, non-empty lines of path. Lines starting with '#' are comments.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}
