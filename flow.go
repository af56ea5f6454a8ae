package goLogin

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/MrEthical07/goLogin/internal/countdown"
	"github.com/google/uuid"
)

// FlowKind names a user journey.
type FlowKind string

const (
	FlowSignUp FlowKind = "signup"
	FlowSignIn FlowKind = "signin"
	FlowReset  FlowKind = "reset"
)

// Flow is the surface shared by every flow controller.
type Flow interface {
	ID() string
	Kind() FlowKind
	State() FlowState
	Watch(fn func(FlowState)) (cancel func())
	DismissError()
	Close()
}

// flowCore holds the loading gate, generation token, countdown and observers
// shared by the three controllers.
//
// Lock order: notifyMu, then mu. SessionState is only entered with notifyMu
// held and mu released. timerMu may be taken before mu, never while notifyMu
// or mu is held.
type flowCore struct {
	engine *Engine
	kind   FlowKind
	id     string
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	notifyMu sync.Mutex

	mu        sync.Mutex
	state     FlowState
	gen       uint64
	closed    bool
	observers map[uint64]func(FlowState)
	nextObs   uint64

	timerMu sync.Mutex
	timer   *countdown.Timer
}

func newFlowCore(e *Engine, kind FlowKind, initial Step) *flowCore {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	c := &flowCore{
		engine:    e,
		kind:      kind,
		id:        id,
		logger:    e.logger.With("flow", string(kind), "flow_id", id),
		ctx:       ctx,
		cancel:    cancel,
		state:     FlowState{Step: initial},
		observers: make(map[uint64]func(FlowState)),
		timer:     countdown.New(e.config.Flow.TickInterval, e.tickerFactory),
	}
	e.metricInc(MetricFlowOpened)
	return c
}

func (c *flowCore) ID() string     { return c.id }
func (c *flowCore) Kind() FlowKind { return c.kind }

// State returns a snapshot of the flow.
func (c *flowCore) State() FlowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Watch registers fn for every future state change. fn runs on the goroutine
// that made the change and must not call back into the flow except State.
func (c *flowCore) Watch(fn func(FlowState)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
}

// DismissError clears the pending error and nothing else.
func (c *flowCore) DismissError() {
	c.update(func(s *FlowState) bool {
		if !s.HasError() {
			return false
		}
		s.ErrorKind = KindUnknown
		s.ErrorMessage = ""
		return true
	})
}

// Close discards the flow: it cancels the in-flight call, stops the
// countdown, and turns every later completion into a no-op. Close is
// idempotent.
func (c *flowCore) Close() {
	c.notifyMu.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.notifyMu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	c.state.Loading = false
	c.state.Step = StepClosed
	snap := c.state
	obs := c.observersLocked()
	c.observers = map[uint64]func(FlowState){}
	c.mu.Unlock()

	c.cancel()
	for _, fn := range obs {
		fn(snap)
	}
	c.notifyMu.Unlock()

	c.stopCountdown()

	c.engine.metricInc(MetricFlowClosed)
	c.logger.Debug("flow closed")
}

// begin enters the loading state for one action. It returns the generation
// the action belongs to and a context cancelled by either ctx or Close.
func (c *flowCore) begin(ctx context.Context, allowed ...Step) (uint64, context.Context, context.CancelFunc, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.notifyMu.Lock()
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		c.notifyMu.Unlock()
		return 0, nil, nil, ErrFlowClosed
	case c.state.Loading:
		c.mu.Unlock()
		c.notifyMu.Unlock()
		c.engine.metricInc(MetricBusyRejected)
		return 0, nil, nil, ErrBusy
	case len(allowed) > 0 && !slices.Contains(allowed, c.state.Step):
		c.mu.Unlock()
		c.notifyMu.Unlock()
		return 0, nil, nil, ErrInvalidStep
	}
	c.state.Loading = true
	gen := c.gen
	c.publishLocked(nil)

	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	return gen, callCtx, func() {
		stop()
		cancel()
	}, nil
}

// finish leaves the loading state and applies mutate, unless the flow was
// closed since begin.
func (c *flowCore) finish(gen uint64, mutate func(s *FlowState)) bool {
	return c.finishWith(gen, mutate, nil)
}

// finishWith is finish with a side effect that belongs to the same
// completion, such as a Session update. effect runs after mu is released but
// before notifyMu is, so Close cannot interleave and a dropped completion
// drops effect too. Session observers may therefore read any flow's State.
func (c *flowCore) finishWith(gen uint64, mutate func(s *FlowState), effect func()) bool {
	c.notifyMu.Lock()
	c.mu.Lock()
	if c.closed || c.gen != gen {
		c.mu.Unlock()
		c.notifyMu.Unlock()
		c.engine.metricInc(MetricStaleCompletion)
		c.logger.Debug("dropping completion for closed flow")
		return false
	}
	if mutate != nil {
		mutate(&c.state)
	}
	c.state.Loading = false
	c.publishLocked(effect)
	return true
}

// live reports whether gen is still the current generation.
func (c *flowCore) live(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.gen == gen
}

// update applies mutate outside of an action. It is a no-op after Close or
// when mutate reports no change.
func (c *flowCore) update(mutate func(s *FlowState) bool) {
	c.notifyMu.Lock()
	c.mu.Lock()
	if c.closed || !mutate(&c.state) {
		c.mu.Unlock()
		c.notifyMu.Unlock()
		return
	}
	c.publishLocked(nil)
}

// publishLocked snapshots the state, releases mu, runs effect, notifies
// observers and releases notifyMu. Both locks must be held on entry.
func (c *flowCore) publishLocked(effect func()) {
	snap := c.state
	obs := c.observersLocked()
	c.mu.Unlock()
	if effect != nil {
		effect()
	}
	for _, fn := range obs {
		fn(snap)
	}
	c.notifyMu.Unlock()
}

func (c *flowCore) observersLocked() []func(FlowState) {
	ids := make([]uint64, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	obs := make([]func(FlowState), 0, len(ids))
	for _, id := range ids {
		obs = append(obs, c.observers[id])
	}
	return obs
}

// setError records err on s. Controller sentinels never reach FlowState.
func setError(s *FlowState, err error) {
	if err == nil {
		s.ErrorKind = KindUnknown
		s.ErrorMessage = ""
		return
	}
	s.ErrorKind = KindOf(err)
	s.ErrorMessage = MessageOf(err)
}

// armCountdown resets the countdown fields on s. It runs inside finish;
// startCountdown must follow once finish returned true.
func (c *flowCore) armCountdown(s *FlowState) {
	s.ResendCountdown = c.engine.config.Flow.CountdownTicks()
	s.ResendAvailable = s.ResendCountdown == 0
}

// startCountdown launches the timer for gen. The timer goroutine is the only
// writer of ResendCountdown until it reaches zero.
func (c *flowCore) startCountdown(gen uint64) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()

	if !c.live(gen) {
		return
	}
	c.timer.Start(c.engine.config.Flow.CountdownTicks(), func(remaining int) {
		c.update(func(s *FlowState) bool {
			if c.gen != gen {
				return false
			}
			s.ResendCountdown = remaining
			s.ResendAvailable = remaining == 0
			return true
		})
	})
}

// resend runs the shared resend contract: rejected without side effects
// while the countdown runs, otherwise send and restart the countdown.
func (c *flowCore) resend(ctx context.Context, step Step, meta auditMeta, send func(context.Context) (DeliveryInfo, error)) (DeliveryInfo, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return DeliveryInfo{}, ErrFlowClosed
	case c.state.Step != step:
		c.mu.Unlock()
		return DeliveryInfo{}, ErrInvalidStep
	case !c.state.ResendAvailable && !c.state.Loading:
		c.mu.Unlock()
		c.engine.metricInc(MetricResendRejected)
		return DeliveryInfo{}, ErrResendCooldown
	}
	c.mu.Unlock()

	gen, callCtx, release, err := c.begin(ctx, step)
	if err != nil {
		return DeliveryInfo{}, err
	}
	defer release()

	// Another resend may have completed between the check and begin.
	if st := c.State(); !st.ResendAvailable {
		c.finish(gen, nil)
		c.engine.metricInc(MetricResendRejected)
		return DeliveryInfo{}, ErrResendCooldown
	}

	info, sendErr := send(callCtx)
	e := c.engine
	if sendErr != nil {
		e.metricInc(MetricResendFailure)
		e.emitAudit(ctx, auditEventResendCode, false, meta, sendErr, nil)
		if !c.finish(gen, func(s *FlowState) { setError(s, sendErr) }) {
			return DeliveryInfo{}, ErrFlowClosed
		}
		return DeliveryInfo{}, sendErr
	}

	e.metricInc(MetricResendSent)
	e.emitAudit(ctx, auditEventResendCode, true, meta, nil, func() map[string]string {
		return deliveryMetadata(info)
	})
	if !c.finish(gen, func(s *FlowState) {
		setError(s, nil)
		c.armCountdown(s)
	}) {
		return DeliveryInfo{}, ErrFlowClosed
	}
	c.startCountdown(gen)
	return info, nil
}

func deliveryMetadata(info DeliveryInfo) map[string]string {
	if info.Medium == "" && info.Destination == "" {
		return nil
	}
	return map[string]string{
		"medium":      info.Medium,
		"destination": info.Destination,
	}
}

// logResult logs the outcome of an action at a level matching its kind.
func (c *flowCore) logResult(ctx context.Context, op string, err error) {
	if err == nil {
		c.logger.InfoContext(ctx, "flow action succeeded", "op", op)
		return
	}
	var ae *Error
	if errors.As(err, &ae) {
		c.logger.InfoContext(ctx, "flow action failed", "op", op, "kind", ae.Kind.String())
		return
	}
	c.logger.WarnContext(ctx, "flow action failed", "op", op, "error", err)
}

// stopCountdown cancels the timer once the flow no longer needs it.
func (c *flowCore) stopCountdown() {
	c.timerMu.Lock()
	c.timer.Stop()
	c.timerMu.Unlock()
}
