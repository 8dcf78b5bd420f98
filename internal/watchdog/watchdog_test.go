package watchdog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

type fakeAPI struct {
	mu sync.Mutex

	validResults []bool
	validErr     error
	validCalls   int

	signOutCalls int

	accessInfo  *models.AccessInfo
	accessErr   error
	accessCalls int
}

func (f *fakeAPI) ValidateSession(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validCalls++
	if f.validErr != nil {
		return false, f.validErr
	}
	idx := f.validCalls - 1
	if idx >= len(f.validResults) {
		idx = len(f.validResults) - 1
	}
	return f.validResults[idx], nil
}

func (f *fakeAPI) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	return nil
}

func (f *fakeAPI) AccessStatus(ctx context.Context) (*models.AccessInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessCalls++
	if f.accessErr != nil {
		return nil, f.accessErr
	}
	return f.accessInfo, nil
}

func (f *fakeAPI) counts() (valid, signOut, access int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validCalls, f.signOutCalls, f.accessCalls
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Fail(t, "condition not met within timeout")
}

func TestWatchdog_ValidSessionKeepsRunning(t *testing.T) {
	api := &fakeAPI{validResults: []bool{true}, accessInfo: &models.AccessInfo{Subscribed: true}}
	w := New(api, newNoopLogger(), 10*time.Millisecond, 20*time.Millisecond, 30*time.Millisecond)

	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, time.Second, func() bool {
		valid, _, access := api.counts()
		return valid >= 3 && access >= 1
	})

	_, signOut, _ := api.counts()
	assert.Equal(t, 0, signOut)
}

func TestWatchdog_EvictedSessionTriggersSignOut(t *testing.T) {
	api := &fakeAPI{validResults: []bool{true, false}}

	var mu sync.Mutex
	var notices []string
	w := New(api, newNoopLogger(), 5*time.Millisecond, 15*time.Millisecond, time.Hour,
		WithSignOutHandler(func(notice string) {
			mu.Lock()
			notices = append(notices, notice)
			mu.Unlock()
		}))

	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, time.Second, func() bool {
		_, signOut, _ := api.counts()
		return signOut == 1
	})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, notices, 1)
	assert.Equal(t, SignedOutElsewhereNotice, notices[0])

	// Цикл остановлен, новых проверок не происходит.
	valid, _, _ := api.counts()
	time.Sleep(50 * time.Millisecond)
	validAfter, signOut, _ := api.counts()
	assert.Equal(t, valid, validAfter)
	assert.Equal(t, 1, signOut)
}

func TestWatchdog_CheckErrorsKeepSession(t *testing.T) {
	api := &fakeAPI{validErr: errors.New("connection refused")}
	w := New(api, newNoopLogger(), 5*time.Millisecond, 10*time.Millisecond, time.Hour)

	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, time.Second, func() bool {
		valid, _, _ := api.counts()
		return valid >= 3
	})

	_, signOut, _ := api.counts()
	assert.Equal(t, 0, signOut)
}

func TestWatchdog_AccessRefreshDeliversInfo(t *testing.T) {
	api := &fakeAPI{
		validResults: []bool{true},
		accessInfo:   &models.AccessInfo{Subscribed: true, DeviceSlots: 3},
	}

	var mu sync.Mutex
	var infos []*models.AccessInfo
	w := New(api, newNoopLogger(), 5*time.Millisecond, time.Hour, 15*time.Millisecond,
		WithAccessHandler(func(info *models.AccessInfo) {
			mu.Lock()
			infos = append(infos, info)
			mu.Unlock()
		}))

	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(infos) >= 2
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, infos[0].DeviceSlots)
}

func TestWatchdog_StopBeforeStartupDelay(t *testing.T) {
	api := &fakeAPI{validResults: []bool{true}}
	w := New(api, newNoopLogger(), time.Hour, time.Hour, time.Hour)

	w.Start(context.Background())
	w.Stop()

	valid, signOut, access := api.counts()
	assert.Equal(t, 0, valid)
	assert.Equal(t, 0, signOut)
	assert.Equal(t, 0, access)
}

func TestWatchdog_StartTwiceIsNoop(t *testing.T) {
	api := &fakeAPI{validResults: []bool{true}}
	w := New(api, newNoopLogger(), time.Hour, time.Hour, time.Hour)

	w.Start(context.Background())
	w.Start(context.Background())
	w.Stop()
	w.Stop()
}
