package goLogin

import (
	"context"
	"errors"
	"testing"
)

func TestResetEndToEnd(t *testing.T) {
	te := newTestEngine(t)
	flow, _ := te.NewResetFlow("a@x.com")
	defer flow.Close()
	ctx := context.Background()

	if st := flow.State(); st.Step != StepRequestCode || st.Username != "a@x.com" {
		t.Fatalf("unexpected initial state %+v", st)
	}

	info, err := flow.SubmitRequestCode(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("SubmitRequestCode: %v", err)
	}
	if info.Destination == "" {
		t.Fatalf("missing delivery info %+v", info)
	}
	st := flow.State()
	if st.Step != StepAwaitingReset || st.ResendCountdown != 60 || st.ResendAvailable {
		t.Fatalf("unexpected state %+v", st)
	}
	ticker := te.nextTicker(t)

	if err := flow.SubmitReset(ctx, "654321", "New1!", "New1!"); err != nil {
		t.Fatalf("SubmitReset: %v", err)
	}
	if got := te.Session().Current(); got != (Session{Authenticated: true, DisplayName: "a@x.com"}) {
		t.Fatalf("Session = %+v", got)
	}
	if flow.State().Step != StepCompleted {
		t.Fatalf("unexpected state %+v", flow.State())
	}
	if ticker.Tick() {
		t.Fatal("countdown still running after completion")
	}
}

func TestResetRequestFailureStaysOnRequestCode(t *testing.T) {
	te := newTestEngine(t)
	te.provider.resetErr = newError(KindUserNotFound, "", nil)
	flow, _ := te.NewResetFlow("")
	defer flow.Close()

	if _, err := flow.SubmitRequestCode(context.Background(), "nobody@x.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	st := flow.State()
	if st.Step != StepRequestCode || st.ErrorKind != KindUserNotFound || st.ResendCountdown != 0 {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestResetPasswordMismatch(t *testing.T) {
	te := newTestEngine(t)
	flow, _ := te.NewResetFlow("a@x.com")
	defer flow.Close()

	_, _ = flow.SubmitRequestCode(context.Background(), "a@x.com")
	err := flow.SubmitReset(context.Background(), "654321", "New1!", "New2!")
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if te.provider.callCount("confirm_reset_password") != 0 {
		t.Fatal("mismatch reached the provider")
	}
	if st := flow.State(); st.ErrorMessage != "Passwords do not match" || st.Step != StepAwaitingReset {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestResetConfirmFailureStaysAwaitingReset(t *testing.T) {
	te := newTestEngine(t)
	te.provider.confirmResetErr = newError(KindCodeExpired, "", nil)
	flow, _ := te.NewResetFlow("a@x.com")
	defer flow.Close()

	_, _ = flow.SubmitRequestCode(context.Background(), "a@x.com")
	if err := flow.SubmitReset(context.Background(), "1", "New1!", "New1!"); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
	st := flow.State()
	if st.Step != StepAwaitingReset || st.Confirmed {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestSignInAfterResetFailure(t *testing.T) {
	te := newTestEngine(t)
	te.provider.signInErrs = []error{newError(KindNetwork, "", nil)}
	flow, _ := te.NewResetFlow("a@x.com")
	defer flow.Close()
	ctx := context.Background()

	_, _ = flow.SubmitRequestCode(ctx, "a@x.com")
	err := flow.SubmitReset(ctx, "654321", "New1!", "New1!")
	if !errors.Is(err, ErrSignInAfterResetFailed) {
		t.Fatalf("expected ErrSignInAfterResetFailed, got %v", err)
	}
	st := flow.State()
	if st.ErrorMessage != "Sign-in failed" || !st.Confirmed || st.Step != StepAwaitingReset {
		t.Fatalf("unexpected state %+v", st)
	}
	if te.Session().Current().Authenticated {
		t.Fatal("session must stay signed out")
	}

	// Resubmitting only retries the sign-in with the new password.
	if err := flow.SubmitReset(ctx, "ignored", "", ""); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if n := te.provider.callCount("confirm_reset_password"); n != 1 {
		t.Fatalf("confirm_reset_password called %d times", n)
	}
	if !te.Session().Current().Authenticated {
		t.Fatal("expected authenticated session after retry")
	}
}

func TestResetResendCooldown(t *testing.T) {
	te := newTestEngine(t)
	flow, _ := te.NewResetFlow("a@x.com")
	defer flow.Close()
	ctx := context.Background()

	_, _ = flow.SubmitRequestCode(ctx, "a@x.com")
	ticker := te.nextTicker(t)

	if _, err := flow.RequestResend(ctx); !errors.Is(err, ErrResendCooldown) {
		t.Fatalf("expected ErrResendCooldown, got %v", err)
	}
	tickN(t, flow, ticker, 60)
	if _, err := flow.RequestResend(ctx); err != nil {
		t.Fatalf("RequestResend: %v", err)
	}
	if n := te.provider.callCount("reset_password"); n != 2 {
		t.Fatalf("reset_password called %d times", n)
	}
	if got := te.metrics.Value(MetricResendRejected); got != 1 {
		t.Fatalf("MetricResendRejected = %d", got)
	}
}

func TestResetEmailIsRecorded(t *testing.T) {
	te := newTestEngine(t)
	flow, _ := te.NewResetFlow("old@x.com")
	defer flow.Close()

	if flow.Email() != "old@x.com" {
		t.Fatalf("Email = %q", flow.Email())
	}
	_, _ = flow.SubmitRequestCode(context.Background(), " new@x.com ")
	if flow.Email() != "new@x.com" || flow.State().Username != "new@x.com" {
		t.Fatalf("email not updated: %q %+v", flow.Email(), flow.State())
	}
}

func TestResetEmailIsTrimmedOnOpen(t *testing.T) {
	te := newTestEngine(t)
	flow, _ := te.NewResetFlow("  a@x.com \n")
	defer flow.Close()

	if flow.Email() != "a@x.com" || flow.State().Username != "a@x.com" {
		t.Fatalf("email not trimmed: %q %+v", flow.Email(), flow.State())
	}
}
