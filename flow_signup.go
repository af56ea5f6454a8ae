package goLogin

import (
	"context"
	"strings"
	"sync"
)

// SignUpFlow drives registration and email verification:
// Entry, then AwaitingConfirmation, then Completed.
type SignUpFlow struct {
	*flowCore

	credMu   sync.Mutex
	email    string
	password string
}

// SubmitSignUp registers email with password. The email doubles as the
// username. Mismatching passwords fail locally without a provider call.
func (f *SignUpFlow) SubmitSignUp(ctx context.Context, email, password, confirmPassword string) error {
	email = strings.TrimSpace(email)
	e := f.engine

	gen, callCtx, release, err := f.begin(ctx, StepEntry)
	if err != nil {
		return err
	}
	defer release()

	meta := auditMeta{flow: string(FlowSignUp), flowID: f.id, username: email}

	if password != confirmPassword {
		e.metricInc(MetricPasswordMismatch)
		e.emitAudit(ctx, auditEventPasswordMismatch, false, meta, ErrPasswordMismatch, nil)
		mismatch := newError(KindPasswordMismatch, "", nil)
		if !f.finish(gen, func(s *FlowState) { setError(s, mismatch) }) {
			return ErrFlowClosed
		}
		return mismatch
	}

	signUpErr := e.gateway.SignUp(callCtx, email, email, password)
	f.logResult(ctx, "sign_up", signUpErr)
	if signUpErr != nil {
		e.metricInc(MetricSignUpFailure)
		e.emitAudit(ctx, auditEventSignUpSubmit, false, meta, signUpErr, nil)
		if !f.finish(gen, func(s *FlowState) { setError(s, signUpErr) }) {
			return ErrFlowClosed
		}
		return signUpErr
	}

	e.metricInc(MetricSignUpSuccess)
	e.emitAudit(ctx, auditEventSignUpSubmit, true, meta, nil, nil)

	f.credMu.Lock()
	f.email, f.password = email, password
	f.credMu.Unlock()

	if !f.finish(gen, func(s *FlowState) {
		setError(s, nil)
		s.Step = StepAwaitingConfirmation
		s.Username = email
		s.Confirmed = false
		f.armCountdown(s)
	}) {
		return ErrFlowClosed
	}
	f.startCountdown(gen)
	return nil
}

// SubmitConfirmation confirms the emailed code and signs in with the
// credentials from SubmitSignUp. Once the code has been accepted it is never
// sent again; a failed follow-up sign-in is retried with RetrySignIn.
func (f *SignUpFlow) SubmitConfirmation(ctx context.Context, code string) error {
	if st := f.State(); st.Confirmed && st.Step == StepAwaitingConfirmation {
		return f.RetrySignIn(ctx)
	}

	gen, callCtx, release, err := f.begin(ctx, StepAwaitingConfirmation)
	if err != nil {
		return err
	}
	defer release()

	e := f.engine
	email, password := f.credentials()
	meta := auditMeta{flow: string(FlowSignUp), flowID: f.id, username: email}

	confirmErr := e.gateway.ConfirmSignUp(callCtx, email, strings.TrimSpace(code))
	f.logResult(ctx, "confirm_sign_up", confirmErr)
	if confirmErr != nil {
		e.metricInc(MetricConfirmSignUpFailure)
		e.emitAudit(ctx, auditEventSignUpConfirm, false, meta, confirmErr, nil)
		if !f.finish(gen, func(s *FlowState) { setError(s, confirmErr) }) {
			return ErrFlowClosed
		}
		return confirmErr
	}
	e.metricInc(MetricConfirmSignUpSuccess)
	e.emitAudit(ctx, auditEventSignUpConfirm, true, meta, nil, nil)

	return f.signInAfterConfirm(ctx, callCtx, gen, email, password, meta)
}

// RetrySignIn repeats only the follow-up sign-in after a confirmed code.
func (f *SignUpFlow) RetrySignIn(ctx context.Context) error {
	if st := f.State(); !st.Confirmed {
		if st.Step == StepClosed {
			return ErrFlowClosed
		}
		return ErrInvalidStep
	}

	gen, callCtx, release, err := f.begin(ctx, StepAwaitingConfirmation)
	if err != nil {
		return err
	}
	defer release()

	email, password := f.credentials()
	meta := auditMeta{flow: string(FlowSignUp), flowID: f.id, username: email}
	return f.signInAfterConfirm(ctx, callCtx, gen, email, password, meta)
}

// RequestResend sends a new confirmation code once the countdown elapsed.
func (f *SignUpFlow) RequestResend(ctx context.Context) (DeliveryInfo, error) {
	email, _ := f.credentials()
	meta := auditMeta{flow: string(FlowSignUp), flowID: f.id, username: email}
	return f.resend(ctx, StepAwaitingConfirmation, meta, func(ctx context.Context) (DeliveryInfo, error) {
		return f.engine.gateway.ResendConfirmationCode(ctx, email)
	})
}

func (f *SignUpFlow) signInAfterConfirm(ctx, callCtx context.Context, gen uint64, email, password string, meta auditMeta) error {
	e := f.engine

	complete, signInErr := e.gateway.SignIn(callCtx, email, password)
	if signInErr == nil && complete {
		e.metricInc(MetricSignInSuccess)
		e.emitAudit(ctx, auditEventFollowUpSignIn, true, meta, nil, nil)
		f.logResult(ctx, "follow_up_sign_in", nil)
		if !f.finishWith(gen, func(s *FlowState) {
			setError(s, nil)
			s.Confirmed = true
			s.Step = StepCompleted
		}, func() { e.session.ApplySignedIn(email) }) {
			return ErrFlowClosed
		}
		f.stopCountdown()
		f.forgetCredentials()
		return nil
	}

	failure := newError(KindSignInAfterConfirmFailed, "", signInErr)
	if signInErr == nil {
		failure.Detail = ErrSignInIncomplete.Kind.String()
		e.metricInc(MetricSignInIncomplete)
	}
	e.metricInc(MetricFollowUpSignInFailure)
	e.emitAudit(ctx, auditEventFollowUpSignIn, false, meta, failure, nil)
	f.logResult(ctx, "follow_up_sign_in", failure)

	if !f.finish(gen, func(s *FlowState) {
		s.Confirmed = true
		setError(s, failure)
	}) {
		return ErrFlowClosed
	}
	return failure
}

func (f *SignUpFlow) credentials() (string, string) {
	f.credMu.Lock()
	defer f.credMu.Unlock()
	return f.email, f.password
}

func (f *SignUpFlow) forgetCredentials() {
	f.credMu.Lock()
	f.password = ""
	f.credMu.Unlock()
}

// Close discards the flow and the password it held.
func (f *SignUpFlow) Close() {
	f.flowCore.Close()
	f.forgetCredentials()
}
