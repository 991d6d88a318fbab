package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ligun0805/wethcycle/internal/chain"
	"github.com/ligun0805/wethcycle/internal/swap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var noColor bool
	root := &cobra.Command{
		Use:           "wethcycle",
		Short:         "Wrap and unwrap ETH/WETH across many wallets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			setupColor(noColor)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return a.runMenu(ctx, cmd.InOrStdin())
			})
		},
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")
	root.AddCommand(newMenuCmd(), newRunCmd(), newBalancesCmd(), newNoncesCmd())
	return root
}

// withApp builds the app under a SIGINT/SIGTERM-aware context and tears it down after fn.
func withApp(cmd *cobra.Command, fn func(context.Context, *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a, err := newApp(ctx, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func newMenuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive console (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return a.runMenu(ctx, cmd.InOrStdin())
			})
		},
	}
}

func newBalancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "Show ETH and WETH balance of every wallet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				a.printBalances(ctx)
				return nil
			})
		},
	}
}

func newNoncesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nonces",
		Short: "Show the transaction count of every wallet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				a.printNonces(ctx)
				return nil
			})
		},
	}
}

type runFlags struct {
	mode      string
	amount    string
	loops     int
	randomize bool
	recurring bool
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured swaps without the menu",
		Long: "Runs SWAP_MODE/SWAP_AMOUNT/LOOP_COUNT from the environment, with flags taking precedence.\n" +
			"The first Ctrl+C stops after the transaction in flight; a second one exits at once.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The run itself must outlive the first signal, so it gets its own context.
			a, err := newApp(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			cfg, err := a.st.RunConfig()
			if err != nil {
				return err
			}
			if cfg, err = f.apply(cmd, cfg); err != nil {
				return err
			}
			return a.runHeadless(cmd.Context(), cfg)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.mode, "mode", "", "to-wrapped | to-native | both")
	fl.StringVar(&f.amount, "amount", "", "nominal amount in ETH")
	fl.IntVar(&f.loops, "loops", 0, "loop count")
	fl.BoolVar(&f.randomize, "randomize", true, "vary each amount by ±10%")
	fl.BoolVar(&f.recurring, "recurring", false, "repeat the run every 24h")
	return cmd
}

func (f runFlags) apply(cmd *cobra.Command, cfg swap.RunConfig) (swap.RunConfig, error) {
	fl := cmd.Flags()
	if fl.Changed("mode") {
		m, err := swap.ParseMode(f.mode)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = m
	}
	if fl.Changed("amount") {
		amt, err := chain.ParseEther(f.amount)
		if err != nil {
			return cfg, err
		}
		cfg.Amount = amt
	}
	if fl.Changed("loops") {
		cfg.Loops = f.loops
	}
	if fl.Changed("randomize") {
		cfg.Randomize = f.randomize
	}
	if fl.Changed("recurring") {
		cfg.Recurring = f.recurring
	}
	return cfg, cfg.Validate()
}

func (a *app) runHeadless(ctx context.Context, cfg swap.RunConfig) error {
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	h, err := a.ctrl.Start(ctx, cfg)
	if err != nil {
		return err
	}
	return a.awaitRun(h, sig)
}

// awaitRun blocks until h ends. The first signal requests cancellation, which lets the
// transaction in flight confirm; a signal on an already cancelled run exits at once.
func (a *app) awaitRun(h *swap.RunHandle, sig <-chan os.Signal) error {
	for {
		select {
		case <-h.Done():
			_, err := h.Wait()
			return err
		case <-sig:
			if h.Cancelled() {
				a.emit(swap.SeverityError, "Interrupted")
				_ = a.log.Sync()
				os.Exit(130)
			}
			a.ctrl.RequestCancel(h)
			a.emit(swap.SeverityWarn, "Waiting for the transaction in flight, press Ctrl+C again to exit now")
		}
	}
}
