// Package health implements liveness and readiness probes in the style of
// Kubernetes: each probe must fail several times in a row before the endpoint
// flips to unhealthy, so a single slow poll does not take the service out of
// rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// CheckFunc probes one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// failAfter is how many consecutive failures flip a probe to unhealthy.
// A single success flips it back.
const failAfter = 3

// probe wraps a CheckFunc with flap damping. streak counts consecutive
// results: positive for successes, negative for failures.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	mu      sync.Mutex
	streak  int
	lastErr error
}

func (p *probe) poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.check(ctx)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
	switch {
	case err != nil && p.streak > 0:
		p.streak = -1
	case err != nil:
		p.streak--
	case p.streak < 0:
		p.streak = 1
	default:
		p.streak++
	}
}

// status reports whether the probe is healthy and, if not, why. A probe that
// has never failed enough times in a row counts as healthy.
func (p *probe) status() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.streak <= -failAfter {
		return false, p.lastErr
	}
	return true, nil
}

// Health runs registered probes on a shared schedule and serves the /livez
// and /readyz endpoints from their damped state.
type Health struct {
	mu    sync.Mutex
	live  []*probe
	ready []*probe

	markedReady bool
	stop        context.CancelFunc
}

// New returns a Health with no probes. The service reports not ready until
// SetReady(true) is called.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a probe backing /livez. Liveness failures mean
// the process itself is broken, for example a goroutine leak.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.live = append(h.live, &probe{name: name, timeout: timeout, check: check})
}

// AddReadinessCheck registers a probe backing /readyz. Readiness failures
// mean a dependency is unavailable, for example the database.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = append(h.ready, &probe{name: name, timeout: timeout, check: check})
}

// Start launches a single scheduler goroutine that polls every registered
// probe once per interval. Probes added after Start are not picked up.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.stop = cancel
	probes := make([]*probe, 0, len(h.live)+len(h.ready))
	probes = append(probes, h.live...)
	probes = append(probes, h.ready...)
	h.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for _, p := range probes {
			p.poll(ctx)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, p := range probes {
					p.poll(ctx)
				}
			}
		}
	}()
}

// Stop halts the scheduler. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
}

// SetReady flips the manual readiness gate. Servers call SetReady(true) after
// startup and SetReady(false) when draining, so load balancers stop routing
// new traffic before connections are closed.
func (h *Health) SetReady(ready bool) {
	h.mu.Lock()
	h.markedReady = ready
	h.mu.Unlock()
}

// IsReady reports whether the manual gate is open and every readiness probe
// is healthy.
func (h *Health) IsReady() bool {
	h.mu.Lock()
	marked := h.markedReady
	probes := h.ready
	h.mu.Unlock()

	if !marked {
		return false
	}
	for _, p := range probes {
		if ok, _ := p.status(); !ok {
			return false
		}
	}
	return true
}

type probeReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 {"status":"ok"} while all liveness probes
// pass, 503 with per-probe errors otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	probes := append([]*probe(nil), h.live...)
	h.mu.Unlock()

	serveReport(w, failing(probes))
}

// ReadyEndpoint serves /readyz. It fails while the manual gate is closed or
// any readiness probe is unhealthy.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	marked := h.markedReady
	probes := append([]*probe(nil), h.ready...)
	h.mu.Unlock()

	failed := failing(probes)
	if !marked {
		failed["_readiness"] = "service is not ready"
	}
	serveReport(w, failed)
}

func failing(probes []*probe) map[string]string {
	failed := make(map[string]string)
	for _, p := range probes {
		ok, err := p.status()
		if ok {
			continue
		}
		if err != nil {
			failed[p.name] = err.Error()
		} else {
			failed[p.name] = "check is unhealthy"
		}
	}
	return failed
}

func serveReport(w http.ResponseWriter, failed map[string]string) {
	report := probeReport{Status: "ok"}
	code := http.StatusOK
	if len(failed) > 0 {
		report = probeReport{Status: "unhealthy", Checks: failed}
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}
