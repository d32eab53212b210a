package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testFactory struct {
	url string
	err error
}

func (f *testFactory) New() (*http.Request, error) {
	if f.err != nil {
		return nil, f.err
	}
	return http.NewRequest(http.MethodPost, f.url+"/v1/chat/completions", strings.NewReader(`{"model":"test"}`))
}

func TestNewSessionValidation(t *testing.T) {
	_, err := NewSession(Config{Users: 1, Duration: time.Second}, nil)
	assert.Error(t, err, "factory required")

	_, err = NewSession(Config{Factory: &testFactory{}, Users: 0, Duration: time.Second}, nil)
	assert.Error(t, err, "users must be positive")

	_, err = NewSession(Config{Factory: &testFactory{}, Users: 1, Duration: 0}, nil)
	assert.Error(t, err, "duration must be positive")

	_, err = NewSession(Config{Factory: &testFactory{err: errors.New("bad host")}, Users: 1, Duration: time.Second}, nil)
	assert.Error(t, err, "probe request failure")
}

func TestSessionCollectsStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-test-overhead-ms", "3.5")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	sess, err := NewSession(Config{
		Factory:        &testFactory{url: srv.URL},
		Users:          2,
		SpawnRate:      100,
		Duration:       300 * time.Millisecond,
		OverheadHeader: "x-test-overhead-ms",
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	raw := sess.Run(ctx)

	assert.Greater(t, raw.Requests, int64(0))
	assert.Zero(t, raw.Failures)
	assert.Equal(t, raw.Requests, raw.OverheadCount, "every response carried the signal")
	assert.InDelta(t, 3.5, raw.OverheadAvgMs, 0.2)
	assert.GreaterOrEqual(t, raw.Elapsed, 300*time.Millisecond)
	assert.Greater(t, raw.RequestsPerSecond, 0.0)
}

func TestSessionCountsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	sess, err := NewSession(Config{
		Factory:   &testFactory{url: srv.URL},
		Users:     1,
		SpawnRate: 10,
		Duration:  200 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	raw := sess.Run(context.Background())

	assert.Greater(t, raw.Requests, int64(0))
	assert.Equal(t, raw.Requests, raw.Failures)
	require.NotEmpty(t, raw.Errors)
	assert.Equal(t, "HTTP 500 Internal Server Error", raw.Errors[0].Error)
	assert.Equal(t, "POST", raw.Errors[0].Method)
	assert.Equal(t, "/v1/chat/completions", raw.Errors[0].Name)
	assert.Zero(t, raw.OverheadCount, "no signal header means no overhead samples")
}

func TestSessionGivesUpAtDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(900 * time.Millisecond)
	}))
	defer srv.Close()

	sess, err := NewSession(Config{
		Factory:   &testFactory{url: srv.URL},
		Users:     1,
		SpawnRate: 10,
		Duration:  150 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	started := time.Now()
	raw := sess.Run(ctx)

	assert.Less(t, time.Since(started), 700*time.Millisecond, "run must not wait out slow responses past the deadline")
	assert.NotNil(t, raw)
}

func TestSessionSendsSnapshots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	updates := make(UpdateChan, 64)
	sess, err := NewSession(Config{
		Factory:   &testFactory{url: srv.URL},
		Users:     1,
		SpawnRate: 10,
		Duration:  500 * time.Millisecond,
		Label:     "chat",
	}, updates)
	require.NoError(t, err)

	raw := sess.Run(context.Background())
	require.Greater(t, raw.Requests, int64(0))

	select {
	case snap := <-updates:
		assert.Equal(t, "chat", snap.Label)
		assert.Greater(t, snap.Requests, uint64(0))
		assert.Greater(t, snap.Bytes, uint64(0), "response bodies count toward the transfer figure")
		assert.Greater(t, snap.Elapsed, time.Duration(0))
	default:
		t.Fatal("expected at least one snapshot on the updates channel")
	}

	// Run has returned, so the consumer owns the channel again and may
	// close it without racing a late tick.
	close(updates)
}

func TestTickLoopStopsBeforeChannelClose(t *testing.T) {
	updates := make(UpdateChan, 8)
	sess, err := NewSession(Config{
		Factory:  &testFactory{url: "http://target:4000"},
		Users:    1,
		Duration: time.Second,
		Label:    "chat",
	}, updates)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := sess.startTickLoop(ctx, time.Millisecond, time.Now())

	select {
	case snap := <-updates:
		assert.Equal(t, "chat", snap.Label)
	case <-time.After(time.Second):
		t.Fatal("expected snapshots before cancellation")
	}

	cancel()
	<-done

	// What the run command does once the run is over. A tick goroutine
	// that outlived the join would panic on the closed channel here.
	close(updates)
	time.Sleep(10 * time.Millisecond)
}
