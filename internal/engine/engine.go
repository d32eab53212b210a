// Package engine drives closed-loop load-generation sessions: a pool of
// virtual users issuing requests back to back against one target until the
// configured duration elapses.
package engine

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"perftest/internal/stats"
)

const (
	defaultTimeout   = 30 * time.Second
	snapshotInterval = 200 * time.Millisecond
)

// RequestFactory stamps one fresh request per virtual-user iteration.
type RequestFactory interface {
	New() (*http.Request, error)
}

// Config sizes one session.
type Config struct {
	Users     int
	SpawnRate float64       // users started per second
	Duration  time.Duration // time spent issuing requests before draining
	Timeout   time.Duration // per-request client timeout, defaultTimeout if zero

	Factory RequestFactory

	// Label tags this session's snapshots so consumers watching several
	// concurrent sessions on one channel can tell them apart.
	Label string

	// OverheadHeader names an optional response header carrying the
	// gateway-added latency in milliseconds. Empty disables the signal.
	OverheadHeader string
}

// Snapshot is sent over the updates channel at a fixed tick.
type Snapshot struct {
	Label    string
	Requests uint64
	Failures uint64
	Bytes    uint64
	Inflight int64
	Elapsed  time.Duration

	// Pre-calculated percentiles for the UI (cheap copy)
	P50Ms float64
	P95Ms float64
	P99Ms float64
	MaxMs float64
}

// UpdateChan is the channel type for live snapshots
type UpdateChan chan Snapshot

// Session is a single load-generation run. Sessions are single-use: build
// one per run, call Run once.
type Session struct {
	cfg    Config
	client *http.Client
	stats  *stats.Collector

	method string
	label  string

	inflight int64
	updates  UpdateChan
}

// NewSession validates the target by building one probe request. A factory
// that cannot produce a request means the session can never start, which is
// a different failure from requests failing once the run is under way.
func NewSession(cfg Config, updates UpdateChan) (*Session, error) {
	if cfg.Factory == nil {
		return nil, errors.New("request factory is required")
	}
	if cfg.Users <= 0 {
		return nil, errors.Errorf("user count must be positive, got %d", cfg.Users)
	}
	if cfg.Duration <= 0 {
		return nil, errors.Errorf("duration must be positive, got %s", cfg.Duration)
	}
	probe, err := cfg.Factory.New()
	if err != nil {
		return nil, errors.Wrap(err, "building probe request")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(UpdateChan, 10)
	}

	return &Session{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout, Transport: t},
		stats:   stats.NewCollector(),
		method:  probe.Method,
		label:   probe.URL.Path,
		updates: updates,
	}, nil
}

// Run blocks until the duration elapses and in-flight requests drain. The
// context deadline is the hard stop: on expiry Run gives up waiting for
// stragglers and reports whatever was collected. Run never fails; a session
// where every request errored still reports its counters.
func (s *Session) Run(ctx context.Context) *stats.Raw {
	start := time.Now()

	// Consumers close the updates channel once Run returns, so the tick
	// goroutine must be fully stopped first, not just signalled.
	tickCtx, cancelTick := context.WithCancel(ctx)
	tickDone := s.startTickLoop(tickCtx, snapshotInterval, start)
	defer func() {
		cancelTick()
		<-tickDone
	}()

	var wg sync.WaitGroup
	var spawnInterval time.Duration
	if s.cfg.SpawnRate > 0 {
		spawnInterval = time.Duration(float64(time.Second) / s.cfg.SpawnRate)
	}

spawn:
	for i := 0; i < s.cfg.Users; i++ {
		if i > 0 && spawnInterval > 0 {
			select {
			case <-ctx.Done():
				break spawn
			case <-time.After(spawnInterval):
			}
		}
		if time.Since(start) > s.cfg.Duration {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if time.Since(start) > s.cfg.Duration {
					return
				}
				s.executeRequest()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.WithFields(log.Fields{
			"label":    s.label,
			"inflight": atomic.LoadInt64(&s.inflight),
		}).Warn("deadline reached before in-flight requests drained")
	}

	return s.stats.Raw(time.Since(start))
}

func (s *Session) executeRequest() {
	atomic.AddInt64(&s.inflight, 1)
	defer atomic.AddInt64(&s.inflight, -1)

	req, err := s.cfg.Factory.New()
	if err != nil {
		s.stats.Record(stats.Sample{Method: s.method, Name: s.label, Err: err})
		return
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	sample := stats.Sample{Method: s.method, Name: s.label, Latency: latency, Err: err}
	if err == nil {
		sample.Status = resp.StatusCode
		sample.Bytes = resp.ContentLength
		if s.cfg.OverheadHeader != "" {
			if v := resp.Header.Get(s.cfg.OverheadHeader); v != "" {
				if ms, perr := strconv.ParseFloat(v, 64); perr == nil {
					sample.OverheadMs = ms
					sample.HasOverhead = true
				}
			}
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	s.stats.Record(sample)
}

// startTickLoop starts a goroutine that pushes snapshots until ctx ends.
// The returned channel closes when the goroutine has exited.
func (s *Session) startTickLoop(ctx context.Context, interval time.Duration, start time.Time) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sendUpdate(start)
			}
		}
	}()
	return done
}

func (s *Session) sendUpdate(start time.Time) {
	snap := Snapshot{
		Label:    s.cfg.Label,
		Requests: s.stats.RequestCount(),
		Failures: s.stats.FailureCount(),
		Bytes:    s.stats.BytesCount(),
		Inflight: atomic.LoadInt64(&s.inflight),
		Elapsed:  time.Since(start),
		P50Ms:    s.stats.P50Ms(),
		P95Ms:    s.stats.P95Ms(),
		P99Ms:    s.stats.P99Ms(),
		MaxMs:    s.stats.MaxMs(),
	}

	// Non-blocking send; a slow consumer just misses ticks
	select {
	case s.updates <- snap:
	default:
	}
}
