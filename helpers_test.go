package goLogin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goLogin/credential"
	"github.com/MrEthical07/goLogin/internal/countdown"
)

// fakeProvider is a scriptable IdentityProvider. Unset errors succeed and
// sign-in completes unless signInResults says otherwise.
type fakeProvider struct {
	mu    sync.Mutex
	calls []string

	signUpErr        error
	confirmErr       error
	resendErr        error
	resetErr         error
	confirmResetErr  error
	fetchErr         error
	currentUserErr   error
	signOutErr       error
	signInErrs       []error
	signInIncomplete []bool

	remoteSignedIn bool
	remoteUser     string

	// hold blocks the named operation until release is closed.
	hold    string
	entered chan struct{}
	release chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{}
}

func (p *fakeProvider) holdNext(op string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hold = op
	p.entered = make(chan struct{})
	p.release = make(chan struct{})
}

func (p *fakeProvider) record(ctx context.Context, op string) error {
	p.mu.Lock()
	p.calls = append(p.calls, op)
	hold := p.hold == op
	var entered, release chan struct{}
	if hold {
		p.hold = ""
		entered, release = p.entered, p.release
	}
	p.mu.Unlock()

	if hold {
		close(entered)
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *fakeProvider) callCount(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (p *fakeProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakeProvider) SignUp(ctx context.Context, req SignUpRequest) error {
	if err := p.record(ctx, "sign_up"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signUpErr
}

func (p *fakeProvider) ConfirmSignUp(ctx context.Context, username, code string) error {
	if err := p.record(ctx, "confirm_sign_up"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.confirmErr
}

func (p *fakeProvider) SignIn(ctx context.Context, username, password string) (SignInResult, error) {
	if err := p.record(ctx, "sign_in"); err != nil {
		return SignInResult{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if len(p.signInErrs) > 0 {
		err, p.signInErrs = p.signInErrs[0], p.signInErrs[1:]
	}
	incomplete := false
	if len(p.signInIncomplete) > 0 {
		incomplete, p.signInIncomplete = p.signInIncomplete[0], p.signInIncomplete[1:]
	}
	if err != nil {
		return SignInResult{}, err
	}
	if incomplete {
		return SignInResult{Complete: false, NextStep: "SMS_MFA"}, nil
	}
	p.remoteSignedIn = true
	p.remoteUser = username
	return SignInResult{Complete: true}, nil
}

func (p *fakeProvider) ResendSignUpCode(ctx context.Context, username string) (DeliveryInfo, error) {
	if err := p.record(ctx, "resend_code"); err != nil {
		return DeliveryInfo{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resendErr != nil {
		return DeliveryInfo{}, p.resendErr
	}
	return DeliveryInfo{Destination: "a***@x.com", Medium: "EMAIL", Attribute: "email"}, nil
}

func (p *fakeProvider) ResetPassword(ctx context.Context, username string) (DeliveryInfo, error) {
	if err := p.record(ctx, "reset_password"); err != nil {
		return DeliveryInfo{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resetErr != nil {
		return DeliveryInfo{}, p.resetErr
	}
	return DeliveryInfo{Destination: "a***@x.com", Medium: "EMAIL", Attribute: "email"}, nil
}

func (p *fakeProvider) ConfirmResetPassword(ctx context.Context, username, newPassword, code string) error {
	if err := p.record(ctx, "confirm_reset_password"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.confirmResetErr
}

func (p *fakeProvider) FetchSession(ctx context.Context) (bool, error) {
	if err := p.record(ctx, "fetch_session"); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fetchErr != nil {
		return false, p.fetchErr
	}
	return p.remoteSignedIn, nil
}

func (p *fakeProvider) CurrentUser(ctx context.Context) (string, error) {
	if err := p.record(ctx, "current_user"); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentUserErr != nil {
		return "", p.currentUserErr
	}
	return p.remoteUser, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	if err := p.record(ctx, "sign_out"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remoteSignedIn = false
	p.remoteUser = ""
	return p.signOutErr
}

// classifyingProvider adds ErrorClassifier to fakeProvider.
type classifyingProvider struct {
	*fakeProvider
}

var errProviderBadCode = errors.New("CodeMismatchException")

func (classifyingProvider) ClassifyError(err error) (Kind, string, bool) {
	if errors.Is(err, errProviderBadCode) {
		return KindInvalidCode, "code mismatch", true
	}
	return KindUnknown, "", false
}

type testEngine struct {
	*Engine
	provider *fakeProvider
	clock    *countdown.ManualClock
	backend  *credential.MemoryBackend
}

type testOption func(b *Builder)

func withTestConfig(mutate func(cfg *Config)) testOption {
	return func(b *Builder) {
		cfg := b.config
		mutate(&cfg)
		b.WithConfig(cfg)
	}
}

func withAuditSink(sink AuditSink) testOption {
	return func(b *Builder) {
		b.WithAuditSink(sink)
	}
}

func newTestEngine(t *testing.T, opts ...testOption) *testEngine {
	t.Helper()

	provider := newFakeProvider()
	clock := countdown.NewManualClock()
	backend := credential.NewMemoryBackend()

	b := New().
		WithProvider(provider).
		WithCredentialBackend(backend).
		withTickerFactory(clock.Factory)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{
		Engine:   engine,
		provider: provider,
		clock:    clock,
		backend:  backend,
	}
}

// nextTicker returns the ticker of the countdown started most recently.
func (te *testEngine) nextTicker(t *testing.T) *countdown.ManualTicker {
	t.Helper()
	ticker, ok := te.clock.Next(time.Second)
	if !ok {
		t.Fatal("expected a countdown to start")
	}
	return ticker
}

// tickN delivers n ticks and waits until the flow shows the expected value.
func tickN(t *testing.T, f Flow, ticker *countdown.ManualTicker, n int) {
	t.Helper()
	want := f.State().ResendCountdown - n
	for i := 0; i < n; i++ {
		if !ticker.Tick() {
			t.Fatalf("tick %d was not received", i)
		}
	}
	waitForState(t, f, func(s FlowState) bool { return s.ResendCountdown == want })
}

func waitForState(t *testing.T, f Flow, pred func(FlowState) bool) FlowState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := f.State()
		if pred(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("state condition not reached, last state %+v", s)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for provider call")
	}
}

// within fails the test if fn does not return in time.
func within(t *testing.T, what string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s did not return", what)
	}
}
