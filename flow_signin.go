package goLogin

import (
	"context"
	"strings"
	"sync"
)

// Prefill is what the sign-in form starts with. Remembered is true when the
// values came from the credential cache.
type Prefill struct {
	Username   string
	Password   string
	Remembered bool
}

// SignInFlow is the single-step sign-in form.
type SignInFlow struct {
	*flowCore

	prefillMu sync.Mutex
	prefill   Prefill
}

// Prefill returns the values read from the credential cache when the flow
// was created.
func (f *SignInFlow) Prefill() Prefill {
	f.prefillMu.Lock()
	defer f.prefillMu.Unlock()
	return f.prefill
}

// SubmitSignIn signs in with identifier and password. On full success the
// credential is remembered when rememberMe is set and the session becomes
// authenticated as identifier.
func (f *SignInFlow) SubmitSignIn(ctx context.Context, identifier, password string, rememberMe bool) error {
	identifier = strings.TrimSpace(identifier)

	gen, callCtx, release, err := f.begin(ctx, StepEntry)
	if err != nil {
		return err
	}
	defer release()

	return f.signIn(ctx, callCtx, gen, identifier, password, rememberMe)
}

// SubmitRememberedSignIn signs in with the cached credential.
func (f *SignInFlow) SubmitRememberedSignIn(ctx context.Context) error {
	gen, callCtx, release, err := f.begin(ctx, StepEntry)
	if err != nil {
		return err
	}
	defer release()

	p := f.Prefill()
	if !p.Remembered {
		missing := newError(KindInvalidParameter, "no remembered credential", nil)
		if !f.finish(gen, func(s *FlowState) { setError(s, missing) }) {
			return ErrFlowClosed
		}
		return missing
	}
	return f.signIn(ctx, callCtx, gen, p.Username, p.Password, true)
}

func (f *SignInFlow) signIn(ctx, callCtx context.Context, gen uint64, identifier, password string, rememberMe bool) error {
	e := f.engine
	meta := auditMeta{flow: string(FlowSignIn), flowID: f.id, username: identifier}

	complete, signInErr := e.gateway.SignIn(callCtx, identifier, password)
	if signInErr != nil {
		f.logResult(ctx, "sign_in", signInErr)
		e.metricInc(MetricSignInFailure)
		e.emitAudit(ctx, auditEventSignIn, false, meta, signInErr, nil)
		if !f.finish(gen, func(s *FlowState) { setError(s, signInErr) }) {
			return ErrFlowClosed
		}
		return signInErr
	}

	if !complete {
		incomplete := newError(KindSignInIncomplete, "", nil)
		f.logResult(ctx, "sign_in", incomplete)
		e.metricInc(MetricSignInIncomplete)
		e.emitAudit(ctx, auditEventSignIn, false, meta, incomplete, nil)
		if !f.finish(gen, func(s *FlowState) { setError(s, incomplete) }) {
			return ErrFlowClosed
		}
		return incomplete
	}

	f.logResult(ctx, "sign_in", nil)
	e.metricInc(MetricSignInSuccess)
	e.emitAudit(ctx, auditEventSignIn, true, meta, nil, func() map[string]string {
		if rememberMe {
			return map[string]string{"remember_me": "true"}
		}
		return nil
	})

	if rememberMe && f.live(gen) {
		if e.rememberCredential(callCtx, identifier, password) {
			f.prefillMu.Lock()
			f.prefill = Prefill{Username: identifier, Password: password, Remembered: true}
			f.prefillMu.Unlock()
		}
	}

	if !f.finishWith(gen, func(s *FlowState) {
		setError(s, nil)
		s.Step = StepCompleted
		s.Username = identifier
	}, func() { e.session.ApplySignedIn(identifier) }) {
		return ErrFlowClosed
	}
	return nil
}
