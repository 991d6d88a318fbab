package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/ligun0805/wethcycle/internal/chain"
	"github.com/ligun0805/wethcycle/internal/swap"
)

var ErrInvalid = errors.New("invalid configuration")

// Settings keeps all configuration options.
type Settings struct {
	RPCURL      string
	WETHAddress string
	ChainID     string // empty: ask the node
	NetworkName string

	PrivateKeysFile string
	ProxyFile       string

	SwapMode   string
	SwapAmount string // ETH, decimal
	LoopCount  int
	Randomize  bool
	Recurring  bool

	AccountDelayMin time.Duration
	AccountDelayMax time.Duration
	LoopDelayMin    time.Duration
	LoopDelayMax    time.Duration

	ReadAttempts   int
	RPCTimeout     time.Duration
	RPCRateLimit   float64
	ConfirmTimeout time.Duration

	LogLevel    string
	LogFile     string
	MetricsAddr string

	problems []error
}

// LoadEnvFiles loads .env and lets .env.local override it. Missing files are fine.
func LoadEnvFiles() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")
}

// Load reads settings from environment supporting both UPPER_CASE and lower_case keys.
// Unparsable values are kept as problems and reported by Validate.
func Load() Settings {
	st := Settings{}

	get := func(keys []string, def string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				return v
			}
		}
		return def
	}
	getInt := func(keys []string, def int) int {
		s := get(keys, "")
		if s == "" {
			return def
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			st.problems = append(st.problems, fmt.Errorf("%s: not an integer: %q", keys[len(keys)-1], s))
			return def
		}
		return n
	}
	getFloat := func(keys []string, def float64) float64 {
		s := get(keys, "")
		if s == "" {
			return def
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			st.problems = append(st.problems, fmt.Errorf("%s: not a number: %q", keys[len(keys)-1], s))
			return def
		}
		return n
	}
	getBool := func(keys []string, def bool) bool {
		s := strings.ToLower(get(keys, ""))
		if s == "" {
			return def
		}
		return s == "1" || s == "true" || s == "yes" || s == "on"
	}
	getMillis := func(keys []string, def time.Duration) time.Duration {
		return time.Duration(getInt(keys, int(def/time.Millisecond))) * time.Millisecond
	}

	st.RPCURL = get([]string{"rpc_url", "rpc_rise", "RPC_RISE", "RPC_URL"}, "")
	st.WETHAddress = get([]string{"weth_address", "WETH_ADDRESS"}, "")
	st.ChainID = get([]string{"chain_id", "CHAIN_ID"}, "")
	st.NetworkName = get([]string{"network_name", "NETWORK_NAME"}, "RISE TESTNET")

	st.PrivateKeysFile = get([]string{"private_keys_file", "PRIVATE_KEYS_FILE"}, "privatekey.txt")
	st.ProxyFile = get([]string{"proxy_file", "PROXY_FILE"}, "proxy.txt")

	st.SwapMode = get([]string{"swap_mode", "SWAP_MODE"}, string(swap.ModeBoth))
	st.SwapAmount = get([]string{"swap_amount", "SWAP_AMOUNT"}, "0.001")
	st.LoopCount = getInt([]string{"loop_count", "LOOP_COUNT"}, 1)
	st.Randomize = getBool([]string{"randomize_amount", "RANDOMIZE_AMOUNT"}, true)
	st.Recurring = getBool([]string{"recurring", "RECURRING"}, false)

	st.AccountDelayMin = getMillis([]string{"account_delay_min_ms", "ACCOUNT_DELAY_MIN_MS"}, time.Second)
	st.AccountDelayMax = getMillis([]string{"account_delay_max_ms", "ACCOUNT_DELAY_MAX_MS"}, 4*time.Second)
	st.LoopDelayMin = getMillis([]string{"loop_delay_min_ms", "LOOP_DELAY_MIN_MS"}, 3*time.Second)
	st.LoopDelayMax = getMillis([]string{"loop_delay_max_ms", "LOOP_DELAY_MAX_MS"}, 6*time.Second)

	st.ReadAttempts = getInt([]string{"read_attempts", "READ_ATTEMPTS"}, 3)
	st.RPCTimeout = getMillis([]string{"rpc_timeout_ms", "RPC_TIMEOUT_MS"}, chain.DefaultRPCTimeout)
	st.RPCRateLimit = getFloat([]string{"rpc_rate_limit", "RPC_RATE_LIMIT"}, 0)
	st.ConfirmTimeout = getMillis([]string{"confirm_timeout_ms", "CONFIRM_TIMEOUT_MS"}, chain.DefaultConfirmTimeout)

	st.LogLevel = get([]string{"log_level", "LOG_LEVEL"}, "info")
	st.LogFile = get([]string{"log_file", "LOG_FILE"}, "")
	st.MetricsAddr = get([]string{"metrics_addr", "METRICS_ADDR"}, "")

	return st
}

// Validate reports every problem at once, wrapped in ErrInvalid.
func (s Settings) Validate() error {
	errs := append([]error(nil), s.problems...)

	if s.RPCURL == "" {
		errs = append(errs, errors.New("RPC_URL is required"))
	}
	if !common.IsHexAddress(s.WETHAddress) {
		errs = append(errs, fmt.Errorf("WETH_ADDRESS: not an address: %q", s.WETHAddress))
	}
	if _, err := s.ChainIDBig(); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.RunConfig(); err != nil {
		errs = append(errs, err)
	}
	if err := s.accountRange().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ACCOUNT_DELAY: %w", err))
	}
	if err := s.loopRange().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("LOOP_DELAY: %w", err))
	}
	if s.ReadAttempts < 1 {
		errs = append(errs, fmt.Errorf("READ_ATTEMPTS must be at least 1, got %d", s.ReadAttempts))
	}
	if s.RPCTimeout <= 0 || s.ConfirmTimeout <= 0 {
		errs = append(errs, errors.New("RPC_TIMEOUT_MS and CONFIRM_TIMEOUT_MS must be positive"))
	}
	if s.RPCRateLimit < 0 {
		errs = append(errs, errors.New("RPC_RATE_LIMIT must not be negative"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// RunConfig builds the run snapshot from the SWAP_* keys.
func (s Settings) RunConfig() (swap.RunConfig, error) {
	mode, err := swap.ParseMode(s.SwapMode)
	if err != nil {
		return swap.RunConfig{}, err
	}
	amount, err := chain.ParseEther(s.SwapAmount)
	if err != nil {
		return swap.RunConfig{}, fmt.Errorf("SWAP_AMOUNT: %w", err)
	}
	cfg := swap.RunConfig{
		Mode:      mode,
		Amount:    amount,
		Loops:     s.LoopCount,
		Randomize: s.Randomize,
		Recurring: s.Recurring,
	}
	return cfg, cfg.Validate()
}

// ChainIDBig returns the configured chain id, or nil when the node should be asked.
func (s Settings) ChainIDBig() (*big.Int, error) {
	if s.ChainID == "" {
		return nil, nil
	}
	id, ok := new(big.Int).SetString(s.ChainID, 0)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("CHAIN_ID: not a positive integer: %q", s.ChainID)
	}
	return id, nil
}

func (s Settings) WETH() common.Address { return common.HexToAddress(s.WETHAddress) }

func (s Settings) accountRange() swap.Range {
	return swap.Range{Min: s.AccountDelayMin, Max: s.AccountDelayMax}
}

func (s Settings) loopRange() swap.Range {
	return swap.Range{Min: s.LoopDelayMin, Max: s.LoopDelayMax}
}

// Pacing returns a fresh pacing policy from the delay keys.
func (s Settings) Pacing() *swap.Pacing {
	return swap.NewPacing(s.accountRange(), s.loopRange(), nil)
}

// ClientOptions is the per-account client template for chainID.
func (s Settings) ClientOptions(chainID *big.Int) chain.Options {
	return chain.Options{
		ChainID:        chainID,
		WETH:           s.WETH(),
		RateLimit:      s.RPCRateLimit,
		ConfirmTimeout: s.ConfirmTimeout,
	}
}
