package update

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/fwupdctl/internal/observability"
	"github.com/danmuck/fwupdctl/internal/transport"
)

// ProgressFunc receives campaign progress in percent. Values only increase.
type ProgressFunc func(percent int)

type Options struct {
	Config   Config
	Progress ProgressFunc
	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Result summarises a finished campaign.
type Result struct {
	ID                string
	Kind              ErrorKind
	Code              uint8
	ActivationMethods uint16
	Sessions          int
	Failed            int
}

// DeviceStatus is a point-in-time view of one session.
type DeviceStatus struct {
	Name        string `json:"name"`
	State       string `json:"state"`
	Phase       string `json:"phase"`
	BytesServed uint64 `json:"bytes_served"`
	Done        bool   `json:"done"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Status is a point-in-time view of a campaign, safe to read from other
// goroutines.
type Status struct {
	ID                string         `json:"id"`
	Expected          int            `json:"expected"`
	Completed         int            `json:"completed"`
	Progress          int            `json:"progress"`
	Running           bool           `json:"running"`
	Done              bool           `json:"done"`
	ActivationMethods uint16         `json:"activation_methods"`
	ErrorKind         string         `json:"error_kind,omitempty"`
	Error             string         `json:"error,omitempty"`
	Devices           []DeviceStatus `json:"devices"`
}

// Campaign runs a fixed number of sessions to completion on one goroutine.
type Campaign struct {
	id         string
	cfg        Config
	expected   int
	sessions   []*Session
	completed  int
	firstErr   *SessionError
	activation uint16
	progress   int
	onProgress ProgressFunc
	logger     zerolog.Logger
	now        func() time.Time
	started    bool

	mu     sync.RWMutex
	status Status
}

func NewCampaign(expected int, opts Options) *Campaign {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	id := uuid.NewString()
	c := &Campaign{
		id:         id,
		cfg:        opts.Config.WithDefaults(),
		expected:   expected,
		sessions:   make([]*Session, 0, max(expected, 0)),
		onProgress: opts.Progress,
		logger:     logger.With().Str("campaign", id).Logger(),
		now:        now,
	}
	c.publish(false)
	return c
}

func (c *Campaign) ID() string {
	return c.id
}

func (c *Campaign) Sessions() []*Session {
	return c.sessions
}

// CreateSession adds a session for the device behind t.
func (c *Campaign) CreateSession(t transport.Transport, pkg PackageReader) (*Session, error) {
	if c.started {
		return nil, ErrCampaignStarted
	}
	if t == nil {
		return nil, ErrNilTransport
	}
	if pkg == nil || len(pkg.ComponentTable()) == 0 {
		return nil, ErrEmptyPackage
	}
	if len(c.sessions) >= c.expected {
		return nil, fmt.Errorf("%w: %d", ErrTooManySessions, c.expected)
	}
	s := newSession(c, t, pkg)
	c.sessions = append(c.sessions, s)
	c.publish(false)
	return s, nil
}

// ExecuteAll steps every session round-robin until all are complete. The
// returned error is the first session failure, or ctx.Err() when cancelled.
func (c *Campaign) ExecuteAll(ctx context.Context) (Result, error) {
	if c.started {
		return Result{}, ErrCampaignStarted
	}
	if len(c.sessions) != c.expected {
		return Result{}, fmt.Errorf("%w: %d of %d", ErrMissingSessions, len(c.sessions), c.expected)
	}
	c.started = true
	c.logger.Info().Int("sessions", c.expected).Msg("campaign start")

	for c.completed < len(c.sessions) {
		if err := ctx.Err(); err != nil {
			return c.abort(err)
		}
		busy := false
		for _, s := range c.sessions {
			if s.Done() {
				continue
			}
			s.Step()
			if !s.idle {
				busy = true
			}
			if s.Done() {
				c.fold(s)
			}
		}
		c.publish(true)
		if !busy && c.cfg.PollInterval > 0 {
			if err := c.wait(ctx); err != nil {
				return c.abort(err)
			}
		}
	}

	if c.firstErr == nil {
		c.report(100)
	}
	c.publish(false)
	res := c.result()
	if c.firstErr != nil {
		c.logger.Error().
			Str("kind", res.Kind.String()).
			Int("failed", res.Failed).
			Msg("campaign failed")
		return res, c.firstErr
	}
	c.logger.Info().Uint16("activation_methods", res.ActivationMethods).Msg("campaign complete")
	return res, nil
}

func (c *Campaign) wait(ctx context.Context) error {
	timer := time.NewTimer(c.cfg.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Campaign) abort(err error) (Result, error) {
	c.logger.Warn().Err(err).Int("completed", c.completed).Msg("campaign interrupted")
	c.publish(false)
	return c.result(), err
}

// fold merges a finished session into the campaign outcome.
func (c *Campaign) fold(s *Session) {
	c.completed++
	c.activation |= s.activation
	outcome := "success"
	if s.err != nil {
		outcome = s.err.Kind.String()
		if c.firstErr == nil {
			c.firstErr = s.err
		}
	}
	observability.RecordSessionComplete(outcome, s.finished.Sub(s.started))
	c.updateProgress()
}

// updateProgress reports Σ transferred × 99 / Σ package length. 100 is
// reserved for a successful finish.
func (c *Campaign) updateProgress() {
	var done, total uint64
	for _, s := range c.sessions {
		done += s.transferred()
		total += uint64(s.pkg.Len())
	}
	if total == 0 {
		return
	}
	c.report(int(done * 99 / total))
}

func (c *Campaign) report(percent int) {
	if percent <= c.progress {
		return
	}
	c.progress = percent
	observability.SetCampaignProgress(c.id, percent)
	if c.onProgress != nil {
		c.onProgress(percent)
	}
}

func (c *Campaign) result() Result {
	res := Result{
		ID:                c.id,
		ActivationMethods: c.activation,
		Sessions:          len(c.sessions),
	}
	for _, s := range c.sessions {
		if s.err != nil {
			res.Failed++
		}
	}
	if c.firstErr != nil {
		res.Kind = c.firstErr.Kind
		res.Code = c.firstErr.Code
	}
	return res
}

// Status returns the last published snapshot.
func (c *Campaign) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.status
	st.Devices = append([]DeviceStatus(nil), c.status.Devices...)
	return st
}

func (c *Campaign) publish(running bool) {
	st := Status{
		ID:                c.id,
		Expected:          c.expected,
		Completed:         c.completed,
		Progress:          c.progress,
		Running:           running,
		Done:              c.started && c.completed == len(c.sessions),
		ActivationMethods: c.activation,
		Devices:           make([]DeviceStatus, 0, len(c.sessions)),
	}
	if c.firstErr != nil {
		st.ErrorKind = c.firstErr.Kind.String()
		st.Error = c.firstErr.Error()
	}
	for _, s := range c.sessions {
		ds := DeviceStatus{
			Name:        s.name,
			State:       s.state.String(),
			Phase:       string(s.phase.Current()),
			BytesServed: s.served,
			Done:        s.Done(),
		}
		if s.err != nil {
			ds.ErrorKind = s.err.Kind.String()
			ds.Error = s.err.Error()
		}
		st.Devices = append(st.Devices, ds)
	}
	c.mu.Lock()
	c.status = st
	c.mu.Unlock()
}
