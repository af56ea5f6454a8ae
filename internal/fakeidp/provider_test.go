package fakeidp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goLogin "github.com/MrEthical07/goLogin"
)

type codeLog struct {
	mu    sync.Mutex
	codes map[string]string
}

func (l *codeLog) sink(purpose, username, code string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.codes == nil {
		l.codes = map[string]string{}
	}
	l.codes[purpose+":"+username] = code
}

func (l *codeLog) get(purpose, username string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.codes[purpose+":"+username]
}

func TestSignUpConfirmSignIn(t *testing.T) {
	log := &codeLog{}
	p := New(Options{Codes: log.sink})
	ctx := context.Background()

	if err := p.SignUp(ctx, goLogin.SignUpRequest{Email: "a@x.com", Username: "a@x.com", Password: "Passw0rd!"}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := p.SignIn(ctx, "a@x.com", "Passw0rd!"); !hasName(err, "UserNotConfirmedException") {
		t.Fatalf("expected unconfirmed, got %v", err)
	}

	code := log.get(PurposeSignUp, "a@x.com")
	if len(code) != 6 {
		t.Fatalf("code = %q", code)
	}
	if pending, ok := p.PendingCode("a@x.com", PurposeSignUp); !ok || pending != code {
		t.Fatalf("PendingCode = %q, %v", pending, ok)
	}
	if err := p.ConfirmSignUp(ctx, "a@x.com", code); err != nil {
		t.Fatalf("ConfirmSignUp: %v", err)
	}

	res, err := p.SignIn(ctx, "A@x.com", "Passw0rd!")
	if err != nil || !res.Complete {
		t.Fatalf("SignIn = %+v, %v", res, err)
	}
	if ok, _ := p.FetchSession(ctx); !ok {
		t.Fatal("expected a session")
	}
	if name, _ := p.CurrentUser(ctx); name != "a@x.com" {
		t.Fatalf("CurrentUser = %q", name)
	}

	if err := p.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := p.CurrentUser(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestDuplicateAndWeakPassword(t *testing.T) {
	p := New(Options{})
	p.AddUser("a@x.com", "Passw0rd!", true)
	ctx := context.Background()

	err := p.SignUp(ctx, goLogin.SignUpRequest{Username: "a@x.com", Password: "Passw0rd!"})
	if kind, _, _ := p.ClassifyError(err); kind != goLogin.KindAlreadyExists {
		t.Fatalf("duplicate kind = %v", kind)
	}
	err = p.SignUp(ctx, goLogin.SignUpRequest{Username: "b@x.com", Password: "short"})
	if kind, _, _ := p.ClassifyError(err); kind != goLogin.KindInvalidPassword {
		t.Fatalf("weak password kind = %v", kind)
	}
}

func TestCodeExpiryAndAttemptLimit(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := New(Options{FixedCode: "111111", CodeTTL: time.Minute, MaxCodeAttempts: 2, Now: func() time.Time { return now }})
	ctx := context.Background()
	p.AddUser("a@x.com", "Passw0rd!", true)

	if _, err := p.ResetPassword(ctx, "a@x.com"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if err := p.ConfirmResetPassword(ctx, "a@x.com", "N3wPassw0rd", "000000"); !hasName(err, "CodeMismatchException") {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := p.ConfirmResetPassword(ctx, "a@x.com", "N3wPassw0rd", "000000"); !hasName(err, "LimitExceededException") {
		t.Fatalf("expected limit, got %v", err)
	}

	_, _ = p.ResetPassword(ctx, "a@x.com")
	now = now.Add(2 * time.Minute)
	if err := p.ConfirmResetPassword(ctx, "a@x.com", "N3wPassw0rd", "111111"); !hasName(err, "ExpiredCodeException") {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestFailNextAndChallenge(t *testing.T) {
	p := New(Options{})
	p.AddUser("a@x.com", "Passw0rd!", true)
	ctx := context.Background()

	boom := errors.New("boom")
	p.FailNext("sign_in", boom)
	if _, err := p.SignIn(ctx, "a@x.com", "Passw0rd!"); !errors.Is(err, boom) {
		t.Fatalf("expected scripted failure, got %v", err)
	}

	p.RequireChallenge("a@x.com", "SMS_MFA")
	res, err := p.SignIn(ctx, "a@x.com", "Passw0rd!")
	if err != nil || res.Complete || res.NextStep != "SMS_MFA" {
		t.Fatalf("SignIn = %+v, %v", res, err)
	}
}

func TestLatencyHonorsContext(t *testing.T) {
	p := New(Options{Latency: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := p.FetchSession(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestDeliveryIsMasked(t *testing.T) {
	p := New(Options{})
	p.AddUser("alice@x.com", "Passw0rd!", false)

	info, err := p.ResendSignUpCode(context.Background(), "alice@x.com")
	if err != nil {
		t.Fatalf("ResendSignUpCode: %v", err)
	}
	if info.Destination != "a***@x.com" || info.Medium != "EMAIL" {
		t.Fatalf("info = %+v", info)
	}
}

func TestEngineAgainstFakePool(t *testing.T) {
	log := &codeLog{}
	p := New(Options{Codes: log.sink})
	engine, err := goLogin.New().WithProvider(p).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()
	ctx := context.Background()

	flow, _ := engine.NewSignUpFlow()
	defer flow.Close()
	if err := flow.SubmitSignUp(ctx, "a@x.com", "Passw0rd!", "Passw0rd!"); err != nil {
		t.Fatalf("SubmitSignUp: %v", err)
	}
	if err := flow.SubmitConfirmation(ctx, "000000"); !errors.Is(err, goLogin.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode through the classifier, got %v", err)
	}
	if err := flow.SubmitConfirmation(ctx, log.get(PurposeSignUp, "a@x.com")); err != nil {
		t.Fatalf("SubmitConfirmation: %v", err)
	}
	if got := engine.Session().Current(); !got.Authenticated || got.DisplayName != "a@x.com" {
		t.Fatalf("Session = %+v", got)
	}

	engine.Session().SignOut(ctx)
	if got := engine.Session().Refresh(ctx); got.Authenticated {
		t.Fatalf("Refresh after sign-out = %+v", got)
	}
}

func hasName(err error, name string) bool {
	var ex *Exception
	return errors.As(err, &ex) && ex.Name == name
}
