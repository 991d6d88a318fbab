package swap

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ligun0805/wethcycle/internal/chain"
)

func TestRunVisitsEveryAccountEveryLoopInOrder(t *testing.T) {
	log := &callLog{}
	accts := []Account{
		newFake(1, log, big.NewInt(0), big.NewInt(0)),
		newFake(2, log, big.NewInt(0), big.NewInt(0)),
		newFake(3, log, big.NewInt(0), big.NewInt(0)),
	}
	rec := &recorder{}
	o := instant(accts, rec)

	sum, err := o.Run(context.Background(),
		RunConfig{Mode: ModeToNative, Amount: eth(0.1), Loops: 2}, NewRunState())
	require.NoError(t, err)
	require.Equal(t, 2, sum.Loops)
	require.Equal(t, 6, sum.Visits)
	require.Equal(t, 6, sum.Skipped)
	require.False(t, sum.Cancelled)

	want := []string{
		"0001:wrapped", "0002:wrapped", "0003:wrapped",
		"0001:wrapped", "0002:wrapped", "0003:wrapped",
	}
	require.Equal(t, want, log.all())

	msgs := rec.messages()
	require.True(t, strings.HasPrefix(msgs[0], "Starting swap: Mode=to-native"))
	require.Contains(t, msgs, "Loop 1/2")
	require.Contains(t, msgs, "Loop 2/2")
	require.Equal(t, "Swaps completed: 2 loop(s), 0 confirmed, 6 skipped, 0 failed", msgs[len(msgs)-1])
}

func TestModeGatesLegs(t *testing.T) {
	t.Run("to-wrapped never withdraws", func(t *testing.T) {
		log := &callLog{}
		a := newFake(1, log, eth(1), eth(5))
		_, err := instant([]Account{a}, nil).Run(context.Background(),
			RunConfig{Mode: ModeToWrapped, Amount: eth(0.5), Loops: 2}, NewRunState())
		require.NoError(t, err)
		require.Equal(t, []string{"0001:native", "0001:deposit", "0001:native", "0001:deposit"}, log.all())
	})

	t.Run("to-native never deposits", func(t *testing.T) {
		log := &callLog{}
		a := newFake(1, log, eth(5), eth(1))
		rec := &recorder{}
		_, err := instant([]Account{a}, rec).Run(context.Background(),
			RunConfig{Mode: ModeToNative, Amount: eth(0.5), Loops: 1}, NewRunState())
		require.NoError(t, err)
		require.Equal(t, []string{"0001:wrapped", "0001:withdraw"}, log.all())
		for _, o := range rec.outcomes() {
			require.Equal(t, OpWithdraw, o.Op)
		}
	})
}

func TestBothModeScenario(t *testing.T) {
	log := &callLog{}
	a := newFake(0xa, log, eth(1.0), eth(0))
	b := newFake(0xb, log, eth(0), eth(2.0))
	rec := &recorder{}

	sum, err := instant([]Account{a, b}, rec).Run(context.Background(),
		RunConfig{Mode: ModeBoth, Amount: eth(0.5), Loops: 1}, NewRunState())
	require.NoError(t, err)
	require.Equal(t, 3, sum.Confirmed)
	require.Equal(t, 1, sum.Skipped)
	require.Zero(t, sum.Failed)

	term := rec.terminal()
	require.Len(t, term, 4)

	require.Equal(t, Confirmed, term[0].Kind)
	require.Equal(t, OpDeposit, term[0].Op)
	require.Zero(t, term[0].Amount.Cmp(eth(0.5)))

	require.Equal(t, Confirmed, term[1].Kind)
	require.Equal(t, OpWithdraw, term[1].Op)
	require.Zero(t, term[1].Amount.Cmp(eth(0.5)), "withdraws the whole wrapped balance")

	require.Equal(t, Skipped, term[2].Kind)
	require.Equal(t, OpDeposit, term[2].Op)
	require.Equal(t, b.Address(), term[2].Account)
	require.Equal(t, ReasonLowBalance, term[2].Reason)

	require.Equal(t, Confirmed, term[3].Kind)
	require.Equal(t, OpWithdraw, term[3].Op)
	require.Zero(t, term[3].Amount.Cmp(eth(2.0)))

	an, aw := a.balances()
	require.Zero(t, an.Cmp(eth(1.0)))
	require.Zero(t, aw.Sign())
	bn, bw := b.balances()
	require.Zero(t, bn.Cmp(eth(2.0)))
	require.Zero(t, bw.Sign())

	require.Contains(t, rec.messages(), "["+chain.ShortAddress(b.Address())+"] ETH->WETH Skipped: low balance")
}

func TestEverySubmissionGetsExactlyOneTerminalOutcome(t *testing.T) {
	log := &callLog{}
	accts := []Account{
		newFake(1, log, eth(3), eth(0)),
		newFake(2, log, eth(0), eth(1)),
	}
	rec := &recorder{}
	_, err := instant(accts, rec).Run(context.Background(),
		RunConfig{Mode: ModeBoth, Amount: eth(0.25), Loops: 3, Randomize: true}, NewRunState())
	require.NoError(t, err)

	submitted := map[string]int{}
	for _, o := range rec.outcomes() {
		if o.Kind == Submitted {
			submitted[o.TxHash.Hex()]++
		}
	}
	terminalByHash := map[string]int{}
	for _, o := range rec.terminal() {
		if o.Kind == Confirmed {
			terminalByHash[o.TxHash.Hex()]++
		}
	}
	require.NotEmpty(t, submitted)
	for h, n := range submitted {
		require.Equal(t, 1, n)
		require.Equal(t, 1, terminalByHash[h], h)
	}
	require.Len(t, terminalByHash, len(submitted))
}

func TestDepositFailureStillAttemptsWithdraw(t *testing.T) {
	log := &callLog{}
	a := newFake(1, log, eth(1), eth(1))
	a.depositErr = errors.New("insufficient funds for gas * price + value")
	rec := &recorder{}

	sum, err := instant([]Account{a}, rec).Run(context.Background(),
		RunConfig{Mode: ModeBoth, Amount: eth(0.5), Loops: 1}, NewRunState())
	require.NoError(t, err)
	require.Equal(t, 1, sum.Failed)
	require.Equal(t, 1, sum.Confirmed)
	require.Equal(t, []string{"0001:native", "0001:deposit", "0001:wrapped", "0001:withdraw"}, log.all())

	term := rec.terminal()
	require.Equal(t, Failed, term[0].Kind)
	var opErr *OperationError
	require.ErrorAs(t, term[0].Err, &opErr)
	require.Equal(t, OpDeposit, opErr.Op)
	require.Equal(t, a.Address(), opErr.Account)
	require.Contains(t, rec.messages(), "[0x0000...0001] ETH->WETH Failed: insufficient ETH for value + gas")
}

func TestBalanceReadFailureIsRetriedThenReported(t *testing.T) {
	log := &callLog{}
	a := newFake(1, log, eth(1), eth(0))
	a.nativeErr = errRPCDown
	b := newFake(2, log, eth(1), eth(0))
	rec := &recorder{}

	sum, err := instant([]Account{a, b}, rec).Run(context.Background(),
		RunConfig{Mode: ModeToWrapped, Amount: eth(0.5), Loops: 1}, NewRunState())
	require.NoError(t, err)
	require.Equal(t, 1, sum.Failed)
	require.Equal(t, 1, sum.Confirmed)
	require.Equal(t, []string{"0001:native", "0001:native", "0002:native", "0002:deposit"}, log.all())

	term := rec.terminal()
	require.ErrorIs(t, term[0].Err, errRPCDown)
}

func TestCancelLetsInFlightOperationConfirm(t *testing.T) {
	log := &callLog{}
	state := NewRunState()
	a := newFake(1, log, eth(1), eth(0))
	a.beforeConfirm = func() { state.Cancel() }
	b := newFake(2, log, eth(1), eth(0))
	rec := &recorder{}

	sum, err := instant([]Account{a, b}, rec).Run(context.Background(),
		RunConfig{Mode: ModeBoth, Amount: eth(0.5), Loops: 3}, state)
	require.NoError(t, err)
	require.True(t, sum.Cancelled)
	require.Equal(t, 1, sum.Loops)
	require.Equal(t, 1, sum.Confirmed)
	require.Equal(t, []string{"0001:native", "0001:deposit"}, log.all())

	term := rec.terminal()
	require.Len(t, term, 1)
	require.Equal(t, Confirmed, term[0].Kind)

	msgs := rec.messages()
	require.Equal(t, "Swaps stopped at loop 1/3: 1 confirmed, 0 skipped, 0 failed", msgs[len(msgs)-1])
}

func TestRunRejectsBadInput(t *testing.T) {
	_, err := instant(nil, nil).Run(context.Background(),
		RunConfig{Mode: ModeBoth, Amount: eth(1), Loops: 1}, NewRunState())
	require.Error(t, err)

	log := &callLog{}
	o := instant([]Account{newFake(1, log, eth(1), eth(1))}, nil)
	_, err = o.Run(context.Background(), RunConfig{Mode: ModeBoth, Amount: big.NewInt(0), Loops: 1}, NewRunState())
	require.ErrorIs(t, err, ErrNonPositiveAmount)
	require.Empty(t, log.all())
}

func TestRunStopsWhenContextDone(t *testing.T) {
	log := &callLog{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := instant([]Account{newFake(1, log, eth(1), eth(1))}, nil).Run(ctx,
		RunConfig{Mode: ModeBoth, Amount: eth(0.5), Loops: 2}, NewRunState())
	require.NoError(t, err)
	require.True(t, sum.Cancelled)
	require.Zero(t, sum.Visits)
	require.Empty(t, log.all())
}
