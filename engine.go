package goLogin

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goLogin/credential"
	"github.com/MrEthical07/goLogin/internal/countdown"
)

// Engine is the application root. It owns the session, the gateway, the
// credential cache, metrics and audit, and creates flow controllers.
//
// Engine is safe for concurrent use. Build one with New().…Build().
type Engine struct {
	config        Config
	gateway       *Gateway
	session       *SessionState
	creds         *credential.Cache
	audit         *auditDispatcher
	metrics       *Metrics
	logger        *slog.Logger
	clock         func() time.Time
	tickerFactory countdown.TickerFactory
	closed        atomic.Bool
}

// Close stops the audit dispatcher after draining it. Flows created by the
// engine must be closed by their owners.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events discarded under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of every counter and histogram.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Session returns the process-wide session state.
func (e *Engine) Session() *SessionState {
	return e.session
}

// Gateway returns the provider façade.
func (e *Engine) Gateway() *Gateway {
	return e.gateway
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.gateway == nil || e.closed.Load() {
		return ErrEngineNotReady
	}
	return nil
}

// NewSignUpFlow opens a sign-up and verification flow at StepEntry.
func (e *Engine) NewSignUpFlow() (*SignUpFlow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return &SignUpFlow{flowCore: newFlowCore(e, FlowSignUp, StepEntry)}, nil
}

// NewSignInFlow opens a sign-in flow pre-filled from the credential cache.
// A cache read failure is logged and leaves the form empty.
func (e *Engine) NewSignInFlow(ctx context.Context) (*SignInFlow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	f := &SignInFlow{flowCore: newFlowCore(e, FlowSignIn, StepEntry)}
	if rec, ok := e.loadCredential(ctx); ok {
		f.prefill = Prefill{Username: rec.Username, Password: rec.Password, Remembered: true}
		f.state.Username = rec.Username
	}
	return f, nil
}

// NewResetFlow opens a forgot-password flow at StepRequestCode. email
// pre-fills the address, typically from the sign-in form.
func (e *Engine) NewResetFlow(email string) (*ResetFlow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	f := &ResetFlow{flowCore: newFlowCore(e, FlowReset, StepRequestCode)}
	email = strings.TrimSpace(email)
	f.email = email
	f.state.Username = email
	return f, nil
}

// RememberedUsername returns the username in the credential cache.
func (e *Engine) RememberedUsername(ctx context.Context) (string, bool) {
	rec, ok := e.loadCredential(ctx)
	return rec.Username, ok
}

// RememberedCredential returns the whole cached record, including when it was
// saved. Expired records are reported absent.
func (e *Engine) RememberedCredential(ctx context.Context) (StoredCredential, bool) {
	rec, ok := e.loadCredential(ctx)
	if !ok {
		return StoredCredential{}, false
	}
	return StoredCredential{Username: rec.Username, Password: rec.Password, SavedAt: rec.SavedAt}, true
}

// ForgetCredential clears the remembered credential.
func (e *Engine) ForgetCredential(ctx context.Context) error {
	if e.creds == nil {
		return nil
	}
	if err := e.creds.Clear(ctx); err != nil {
		e.logger.WarnContext(ctx, "credential clear failed", "error", err)
		e.emitAudit(ctx, auditEventCredentialCleared, false, auditMeta{}, err, nil)
		return err
	}
	e.metricInc(MetricCredentialCleared)
	e.emitAudit(ctx, auditEventCredentialCleared, true, auditMeta{}, nil, nil)
	return nil
}

func (e *Engine) forgetCredential(ctx context.Context) {
	_ = e.ForgetCredential(ctx)
}

func (e *Engine) loadCredential(ctx context.Context) (credential.Record, bool) {
	if e.creds == nil {
		return credential.Record{}, false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	rec, ok, err := e.creds.Load(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "credential load failed", "error", err)
		return credential.Record{}, false
	}
	return rec, ok
}

// rememberCredential stores the pair for pre-fill. Failures are logged and
// counted, never surfaced to the flow.
func (e *Engine) rememberCredential(ctx context.Context, username, password string) bool {
	if e.creds == nil {
		return false
	}
	meta := auditMeta{flow: string(FlowSignIn), username: username}
	if err := e.creds.Save(ctx, username, password); err != nil {
		e.metricInc(MetricCredentialSaveFailure)
		e.logger.WarnContext(ctx, "credential save failed", "error", err)
		e.emitAudit(ctx, auditEventCredentialSaved, false, meta, err, nil)
		return false
	}
	e.metricInc(MetricCredentialSaved)
	e.emitAudit(ctx, auditEventCredentialSaved, true, meta, nil, nil)
	return true
}
