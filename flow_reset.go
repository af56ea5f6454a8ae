package goLogin

import (
	"context"
	"strings"
	"sync"
)

// ResetFlow drives forgot-password: RequestCode, then AwaitingReset, then
// Completed.
type ResetFlow struct {
	*flowCore

	credMu      sync.Mutex
	email       string
	newPassword string
}

// Email returns the address the flow is resetting, pre-filled or submitted.
func (f *ResetFlow) Email() string {
	f.credMu.Lock()
	defer f.credMu.Unlock()
	return f.email
}

// SubmitRequestCode asks the provider to send a reset code to email.
func (f *ResetFlow) SubmitRequestCode(ctx context.Context, email string) (DeliveryInfo, error) {
	email = strings.TrimSpace(email)

	gen, callCtx, release, err := f.begin(ctx, StepRequestCode)
	if err != nil {
		return DeliveryInfo{}, err
	}
	defer release()

	e := f.engine
	meta := auditMeta{flow: string(FlowReset), flowID: f.id, username: email}

	info, reqErr := e.gateway.RequestPasswordReset(callCtx, email)
	f.logResult(ctx, "reset_password", reqErr)
	if reqErr != nil {
		e.metricInc(MetricPasswordResetRequestFailure)
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, meta, reqErr, nil)
		if !f.finish(gen, func(s *FlowState) { setError(s, reqErr) }) {
			return DeliveryInfo{}, ErrFlowClosed
		}
		return DeliveryInfo{}, reqErr
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, meta, nil, func() map[string]string {
		return deliveryMetadata(info)
	})

	f.credMu.Lock()
	f.email = email
	f.credMu.Unlock()

	if !f.finish(gen, func(s *FlowState) {
		setError(s, nil)
		s.Step = StepAwaitingReset
		s.Username = email
		s.Confirmed = false
		f.armCountdown(s)
	}) {
		return DeliveryInfo{}, ErrFlowClosed
	}
	f.startCountdown(gen)
	return info, nil
}

// SubmitReset sets the new password with the emailed code, then signs in
// with it. A failed sign-in after an accepted code is retried with
// RetrySignIn; the code is not sent again.
func (f *ResetFlow) SubmitReset(ctx context.Context, code, newPassword, confirmPassword string) error {
	if st := f.State(); st.Confirmed && st.Step == StepAwaitingReset {
		return f.RetrySignIn(ctx)
	}

	gen, callCtx, release, err := f.begin(ctx, StepAwaitingReset)
	if err != nil {
		return err
	}
	defer release()

	e := f.engine
	email := f.Email()
	meta := auditMeta{flow: string(FlowReset), flowID: f.id, username: email}

	if newPassword != confirmPassword {
		e.metricInc(MetricPasswordMismatch)
		e.emitAudit(ctx, auditEventPasswordMismatch, false, meta, ErrPasswordMismatch, nil)
		mismatch := newError(KindPasswordMismatch, "", nil)
		if !f.finish(gen, func(s *FlowState) { setError(s, mismatch) }) {
			return ErrFlowClosed
		}
		return mismatch
	}

	confirmErr := e.gateway.ConfirmPasswordReset(callCtx, email, newPassword, strings.TrimSpace(code))
	f.logResult(ctx, "confirm_reset_password", confirmErr)
	if confirmErr != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, meta, confirmErr, nil)
		if !f.finish(gen, func(s *FlowState) { setError(s, confirmErr) }) {
			return ErrFlowClosed
		}
		return confirmErr
	}
	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, meta, nil, nil)

	f.credMu.Lock()
	f.newPassword = newPassword
	f.credMu.Unlock()

	return f.signInAfterReset(ctx, callCtx, gen, email, newPassword, meta)
}

// RetrySignIn repeats only the sign-in after the reset was accepted.
func (f *ResetFlow) RetrySignIn(ctx context.Context) error {
	if st := f.State(); !st.Confirmed {
		if st.Step == StepClosed {
			return ErrFlowClosed
		}
		return ErrInvalidStep
	}

	gen, callCtx, release, err := f.begin(ctx, StepAwaitingReset)
	if err != nil {
		return err
	}
	defer release()

	f.credMu.Lock()
	email, password := f.email, f.newPassword
	f.credMu.Unlock()

	meta := auditMeta{flow: string(FlowReset), flowID: f.id, username: email}
	return f.signInAfterReset(ctx, callCtx, gen, email, password, meta)
}

// RequestResend requests another reset code once the countdown elapsed.
func (f *ResetFlow) RequestResend(ctx context.Context) (DeliveryInfo, error) {
	email := f.Email()
	meta := auditMeta{flow: string(FlowReset), flowID: f.id, username: email}
	return f.resend(ctx, StepAwaitingReset, meta, func(ctx context.Context) (DeliveryInfo, error) {
		return f.engine.gateway.RequestPasswordReset(ctx, email)
	})
}

func (f *ResetFlow) signInAfterReset(ctx, callCtx context.Context, gen uint64, email, password string, meta auditMeta) error {
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
		f.forgetPassword()
		return nil
	}

	failure := newError(KindSignInAfterResetFailed, "", signInErr)
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

func (f *ResetFlow) forgetPassword() {
	f.credMu.Lock()
	f.newPassword = ""
	f.credMu.Unlock()
}

// Close discards the flow and the password it held.
func (f *ResetFlow) Close() {
	f.flowCore.Close()
	f.forgetPassword()
}
