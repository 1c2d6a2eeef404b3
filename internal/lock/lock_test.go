package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKeyedMutex_SerializesSameFlight(t *testing.T) {
	k := NewKeyedMutex(0)
	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(context.Background(), 7)
			require.NoError(t, err)
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, 0, k.size())
}

func TestKeyedMutex_IndependentFlights(t *testing.T) {
	k := NewKeyedMutex(0)
	unlockA, err := k.Lock(context.Background(), 1)
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := k.Lock(ctx, 2)
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_ContextTimeout(t *testing.T) {
	k := NewKeyedMutex(0)
	unlock, err := k.Lock(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, 1)
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	unlock()
	assert.Equal(t, 0, k.size())
}

func TestKeyedMutex_WaitBudget(t *testing.T) {
	k := NewKeyedMutex(40 * time.Millisecond)
	unlock, err := k.Lock(context.Background(), 1)
	require.NoError(t, err)
	defer unlock()

	start := time.Now()
	_, err = k.Lock(context.Background(), 1)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, k.size())
}

func TestKeyedMutex_WaitBudgetCoversHandoff(t *testing.T) {
	k := NewKeyedMutex(time.Second)
	unlock, err := k.Lock(context.Background(), 1)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		unlock()
	}()

	next, err := k.Lock(context.Background(), 1)
	require.NoError(t, err)
	next()
	assert.Equal(t, 0, k.size())
}

type fakeLeases struct {
	mu        sync.Mutex
	held      map[int64]string
	failAfter int
	calls     int
	released  []string
	err       error
}

func (f *fakeLeases) AcquireFlightLock(_ context.Context, flightID int64, _ time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", false, f.err
	}
	if _, ok := f.held[flightID]; ok {
		return "", false, nil
	}
	token := "token-" + time.Now().Format(time.RFC3339Nano)
	f.held[flightID] = token
	return token, true, nil
}

func (f *fakeLeases) ReleaseFlightLock(_ context.Context, flightID int64, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[flightID] == token {
		delete(f.held, flightID)
	}
	f.released = append(f.released, token)
	return nil
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	leases := &fakeLeases{held: map[int64]string{}}
	locker := NewRedisLocker(leases, time.Second, 200*time.Millisecond, zap.NewNop())

	unlock, err := locker.Lock(context.Background(), 3)
	require.NoError(t, err)
	assert.Contains(t, leases.held, int64(3))

	unlock()
	unlock()
	assert.NotContains(t, leases.held, int64(3))
	assert.Len(t, leases.released, 1)
}

func TestRedisLocker_WaitsForRelease(t *testing.T) {
	leases := &fakeLeases{held: map[int64]string{3: "other"}}
	locker := NewRedisLocker(leases, time.Second, time.Second, zap.NewNop())

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = leases.ReleaseFlightLock(context.Background(), 3, "other")
	}()

	unlock, err := locker.Lock(context.Background(), 3)
	require.NoError(t, err)
	unlock()
	assert.Greater(t, leases.calls, 1)
}

func TestRedisLocker_TimesOut(t *testing.T) {
	leases := &fakeLeases{held: map[int64]string{3: "other"}}
	locker := NewRedisLocker(leases, time.Second, 50*time.Millisecond, zap.NewNop())

	_, err := locker.Lock(context.Background(), 3)
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestRedisLocker_BackendError(t *testing.T) {
	boom := errors.New("connection refused")
	leases := &fakeLeases{held: map[int64]string{}, err: boom}
	locker := NewRedisLocker(leases, time.Second, time.Second, zap.NewNop())

	_, err := locker.Lock(context.Background(), 3)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrLockTimeout)
	assert.Equal(t, 1, leases.calls)
}

func TestChain_ReleasesInReverseOnFailure(t *testing.T) {
	local := NewKeyedMutex(0)
	leases := &fakeLeases{held: map[int64]string{}, err: errors.New("down")}
	locker := Chain(local, NewRedisLocker(leases, time.Second, time.Second, zap.NewNop()))

	_, err := locker.Lock(context.Background(), 9)
	require.Error(t, err)
	assert.Equal(t, 0, local.size())

	ok := Chain(local)
	unlock, err := ok.Lock(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 1, local.size())
	unlock()
	assert.Equal(t, 0, local.size())
}
