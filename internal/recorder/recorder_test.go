package recorder

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solido-stake/internal/domain"
	"solido-stake/internal/solana/stub"
	"solido-stake/internal/solido/solidotest"
	"solido-stake/internal/storage"
	"solido-stake/internal/storage/memory"
)

func newRecorder(t *testing.T, now func() time.Time) (*Recorder, *stub.RPCClient, *memory.ExchangeRateStore, *solidotest.Fixture) {
	t.Helper()
	rpc := stub.NewRPCClient()
	f := solidotest.New()
	f.Seed(t, rpc)
	store := memory.NewExchangeRateStore()

	r := New(Options{
		Conn:      rpc,
		Addresses: f.Addresses,
		Store:     store,
		Interval:  10 * time.Millisecond,
		Logger:    log.New(io.Discard, "", 0),
		Now:       now,
	})
	return r, rpc, store, f
}

func TestRecordOnce(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	r, _, store, f := newRecorder(t, func() time.Time { return at })

	point, err := r.RecordOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, at.UnixMilli(), point.TimestampMs)
	assert.Equal(t, f.Lido.ExchangeRate.ComputedInEpoch, point.Epoch)
	assert.Equal(t, f.Lido.ExchangeRate.SolBalance, point.SolBalance)
	assert.Equal(t, f.Lido.ExchangeRate.StSolSupply, point.StSolSupply)
	assert.InDelta(t, 1.1, point.Rate, 1e-12)
	assert.NotZero(t, point.TVL)

	latest, err := store.GetLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, point, latest)
}

func TestRecordOnce_DuplicateTimestamp(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	r, _, _, _ := newRecorder(t, func() time.Time { return at })

	_, err := r.RecordOnce(context.Background())
	require.NoError(t, err)

	point, err := r.RecordOnce(context.Background())
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	require.NotNil(t, point)
}

func TestRecordOnce_SnapshotUnavailable(t *testing.T) {
	r, rpc, store, f := newRecorder(t, nil)
	rpc.FailOn(stub.MethodGetAccountInfo, f.Addresses.InstanceID.String(), errors.New("node down"))

	_, err := r.RecordOnce(context.Background())
	assert.ErrorIs(t, err, domain.ErrSnapshotUnavailable)

	_, err = store.GetLatest(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRun_RecordsUntilCancelled(t *testing.T) {
	var tick int64
	r, _, store, _ := newRecorder(t, func() time.Time {
		tick++
		return time.UnixMilli(1_700_000_000_000 + tick)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	points, err := store.GetByTimeRange(context.Background(), 0, 1_800_000_000_000)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(points), 2)
}

func TestRun_ContinuesAfterFailure(t *testing.T) {
	var tick int64
	r, rpc, store, f := newRecorder(t, func() time.Time {
		tick++
		return time.UnixMilli(1_700_000_000_000 + tick)
	})
	rpc.FailOn(stub.MethodGetAccountInfo, f.Addresses.InstanceID.String(), errors.New("node down"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	rpc.FailOn(stub.MethodGetAccountInfo, f.Addresses.InstanceID.String(), nil)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	_, err := store.GetLatest(context.Background())
	assert.NoError(t, err)
}

func TestRun_ReportsTicks(t *testing.T) {
	rpc := stub.NewRPCClient()
	f := solidotest.New()
	f.Seed(t, rpc)
	rpc.FailOn(stub.MethodGetBalance, "", errors.New("node down"))

	ticks := make(chan error, 16)
	r := New(Options{
		Conn:      rpc,
		Addresses: f.Addresses,
		Store:     memory.NewExchangeRateStore(),
		Interval:  time.Hour,
		Logger:    log.New(io.Discard, "", 0),
		OnTick:    func(_ time.Time, err error) { ticks <- err },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case err := <-ticks:
		assert.ErrorIs(t, err, domain.ErrSnapshotUnavailable)
	case <-time.After(time.Second):
		t.Fatal("no tick reported")
	}
	cancel()
	<-done
}
