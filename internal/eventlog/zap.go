package eventlog

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ligun0805/wethcycle/internal/chain"
	"github.com/ligun0805/wethcycle/internal/swap"
)

// NewLogger builds the diagnostics logger: JSON lines appended to file when set,
// otherwise a console encoder on stderr.
func NewLogger(level, file string) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevel()
	if strings.TrimSpace(level) != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if file == "" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), lvl)
		return zap.New(core), nil
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), lvl)
	return zap.New(core), nil
}

// Zap mirrors events into a structured logger.
type Zap struct {
	log *zap.Logger
}

func NewZap(log *zap.Logger) *Zap {
	if log == nil {
		log = zap.NewNop()
	}
	return &Zap{log: log}
}

func (z *Zap) Emit(ev swap.Event) {
	var fields []zap.Field
	if o := ev.Outcome; o != nil {
		fields = append(fields,
			zap.String("account", o.Account.Hex()),
			zap.String("op", string(o.Op)),
			zap.Stringer("outcome", o.Kind),
		)
		if o.Amount != nil {
			fields = append(fields, zap.String("amountEth", chain.FormatEther(o.Amount, 18)))
		}
		if o.TxHash != (common.Hash{}) {
			fields = append(fields, zap.String("tx", o.TxHash.Hex()))
		}
		if o.Reason != "" {
			fields = append(fields, zap.String("reason", o.Reason))
		}
		if o.Err != nil {
			fields = append(fields, zap.Error(o.Err))
		}
	}
	switch ev.Severity {
	case swap.SeverityError:
		z.log.Error(ev.Message, fields...)
	case swap.SeverityWarn:
		z.log.Warn(ev.Message, fields...)
	default:
		z.log.Info(ev.Message, fields...)
	}
}

// Multi fans one event out to every sink in order.
type Multi []swap.Sink

func (m Multi) Emit(ev swap.Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}
