// Package fakeidp is an in-memory identity provider. It follows the user-pool
// rules the login screens depend on (unconfirmed users cannot sign in, codes
// expire and lock after repeated misses) and hands every code it "sends" to
// a CodeSink instead of delivering email.
package fakeidp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	goLogin "github.com/MrEthical07/goLogin"
	"github.com/MrEthical07/goLogin/internal"
)

// Exception is a provider failure named like the managed service's
// exception types.
type Exception struct {
	Name    string
	Message string
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Name + ": " + e.Message
}

var exceptionKinds = map[string]goLogin.Kind{
	"NotAuthorizedException":         goLogin.KindInvalidCredentials,
	"UserNotConfirmedException":      goLogin.KindUserNotConfirmed,
	"UserNotFoundException":          goLogin.KindUserNotFound,
	"CodeMismatchException":          goLogin.KindInvalidCode,
	"ExpiredCodeException":           goLogin.KindCodeExpired,
	"UsernameExistsException":        goLogin.KindAlreadyExists,
	"InvalidPasswordException":       goLogin.KindInvalidPassword,
	"InvalidParameterException":      goLogin.KindInvalidParameter,
	"LimitExceededException":         goLogin.KindTooManyRequests,
	"TooManyFailedAttemptsException": goLogin.KindTooManyRequests,
}

func exception(name, msg string) error {
	return &Exception{Name: name, Message: msg}
}

// ErrNoSession is returned by CurrentUser when nobody is signed in.
var ErrNoSession = errors.New("fakeidp: no session")

// CodeSink receives every code the provider would have emailed.
type CodeSink func(purpose, username, code string)

// Options tunes the fake pool. Zero values get defaults.
type Options struct {
	CodeTTL           time.Duration
	MaxCodeAttempts   int
	MinPasswordLength int
	CodeDigits        int
	// FixedCode replaces random codes, for scripted runs.
	FixedCode string
	// Latency delays every call, honoring ctx.
	Latency time.Duration
	Codes   CodeSink
	Now     func() time.Time
}

const (
	PurposeSignUp = "sign_up"
	PurposeReset  = "reset_password"
)

type pendingCode struct {
	code      string
	expiresAt time.Time
	attempts  int
}

type user struct {
	username  string
	email     string
	password  string
	confirmed bool
	challenge string
	codes     map[string]*pendingCode
}

// Provider implements goLogin.IdentityProvider and goLogin.ErrorClassifier.
type Provider struct {
	opts Options

	mu       sync.Mutex
	users    map[string]*user
	session  string
	token    string
	failures map[string][]error
}

var (
	_ goLogin.IdentityProvider = (*Provider)(nil)
	_ goLogin.ErrorClassifier  = (*Provider)(nil)
)

func New(opts Options) *Provider {
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = 24 * time.Hour
	}
	if opts.MaxCodeAttempts <= 0 {
		opts.MaxCodeAttempts = 5
	}
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 8
	}
	if opts.CodeDigits == 0 {
		opts.CodeDigits = 6
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Provider{
		opts:     opts,
		users:    make(map[string]*user),
		failures: make(map[string][]error),
	}
}

// AddUser seeds an account.
func (p *Provider) AddUser(username, password string, confirmed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[key(username)] = &user{
		username:  username,
		email:     username,
		password:  password,
		confirmed: confirmed,
		codes:     make(map[string]*pendingCode),
	}
}

// RequireChallenge makes the next password sign-in of username stop at step.
func (p *Provider) RequireChallenge(username, step string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if u, ok := p.users[key(username)]; ok {
		u.challenge = step
	}
}

// FailNext queues err as the result of the next call to op. Op names match
// the gateway's: sign_up, confirm_sign_up, sign_in, resend_code,
// reset_password, confirm_reset_password, fetch_session, current_user,
// sign_out.
func (p *Provider) FailNext(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = append(p.failures[op], err)
}

// PendingCode returns the outstanding code for username and purpose.
func (p *Provider) PendingCode(username, purpose string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[key(username)]
	if !ok {
		return "", false
	}
	c, ok := u.codes[purpose]
	if !ok {
		return "", false
	}
	return c.code, true
}

// Confirmed reports whether username exists and is confirmed.
func (p *Provider) Confirmed(username string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[key(username)]
	return ok && u.confirmed
}

func (p *Provider) SignUp(ctx context.Context, req goLogin.SignUpRequest) error {
	var sent func()
	err := p.call(ctx, "sign_up", func() error {
		if strings.TrimSpace(req.Username) == "" {
			return exception("InvalidParameterException", "username is required")
		}
		if _, exists := p.users[key(req.Username)]; exists {
			return exception("UsernameExistsException", "User already exists")
		}
		if len(req.Password) < p.opts.MinPasswordLength {
			return exception("InvalidPasswordException", "Password did not conform with policy")
		}
		u := &user{
			username: req.Username,
			email:    req.Email,
			password: req.Password,
			codes:    make(map[string]*pendingCode),
		}
		p.users[key(req.Username)] = u
		var err error
		sent, err = p.issueLocked(u, PurposeSignUp)
		return err
	})
	if err == nil && sent != nil {
		sent()
	}
	return err
}

func (p *Provider) ConfirmSignUp(ctx context.Context, username, code string) error {
	return p.call(ctx, "confirm_sign_up", func() error {
		u, ok := p.users[key(username)]
		if !ok {
			return exception("UserNotFoundException", "Username/client id combination not found.")
		}
		if u.confirmed {
			return exception("NotAuthorizedException", "User cannot be confirmed. Current status is CONFIRMED")
		}
		if err := p.consumeLocked(u, PurposeSignUp, code); err != nil {
			return err
		}
		u.confirmed = true
		return nil
	})
}

func (p *Provider) SignIn(ctx context.Context, username, password string) (goLogin.SignInResult, error) {
	var res goLogin.SignInResult
	err := p.call(ctx, "sign_in", func() error {
		u, ok := p.users[key(username)]
		if !ok || u.password != password {
			return exception("NotAuthorizedException", "Incorrect username or password.")
		}
		if !u.confirmed {
			return exception("UserNotConfirmedException", "User is not confirmed.")
		}
		if u.challenge != "" {
			res = goLogin.SignInResult{Complete: false, NextStep: u.challenge}
			return nil
		}
		token, err := internal.NewToken(32)
		if err != nil {
			return err
		}
		p.session, p.token = u.username, token
		res = goLogin.SignInResult{Complete: true}
		return nil
	})
	return res, err
}

func (p *Provider) ResendSignUpCode(ctx context.Context, username string) (goLogin.DeliveryInfo, error) {
	return p.deliver(ctx, "resend_code", username, PurposeSignUp, func(u *user) error {
		if u.confirmed {
			return exception("InvalidParameterException", "User is already confirmed.")
		}
		return nil
	})
}

func (p *Provider) ResetPassword(ctx context.Context, username string) (goLogin.DeliveryInfo, error) {
	return p.deliver(ctx, "reset_password", username, PurposeReset, nil)
}

func (p *Provider) ConfirmResetPassword(ctx context.Context, username, newPassword, code string) error {
	return p.call(ctx, "confirm_reset_password", func() error {
		u, ok := p.users[key(username)]
		if !ok {
			return exception("UserNotFoundException", "Username/client id combination not found.")
		}
		if len(newPassword) < p.opts.MinPasswordLength {
			return exception("InvalidPasswordException", "Password did not conform with policy")
		}
		if err := p.consumeLocked(u, PurposeReset, code); err != nil {
			return err
		}
		u.password = newPassword
		u.confirmed = true
		return nil
	})
}

func (p *Provider) FetchSession(ctx context.Context) (bool, error) {
	var signedIn bool
	err := p.call(ctx, "fetch_session", func() error {
		signedIn = p.session != ""
		return nil
	})
	return signedIn, err
}

func (p *Provider) CurrentUser(ctx context.Context) (string, error) {
	var name string
	err := p.call(ctx, "current_user", func() error {
		if p.session == "" {
			return ErrNoSession
		}
		name = p.session
		return nil
	})
	return name, err
}

// SignOut drops the session even when a failure is scripted.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.session, p.token = "", ""
	p.mu.Unlock()
	return p.call(ctx, "sign_out", func() error { return nil })
}

// ClassifyError maps Exception names onto goLogin kinds.
func (p *Provider) ClassifyError(err error) (goLogin.Kind, string, bool) {
	var ex *Exception
	if !errors.As(err, &ex) {
		return goLogin.KindUnknown, "", false
	}
	kind, ok := exceptionKinds[ex.Name]
	if !ok {
		return goLogin.KindUnknown, ex.Error(), true
	}
	return kind, ex.Message, true
}

func (p *Provider) deliver(ctx context.Context, op, username, purpose string, check func(*user) error) (goLogin.DeliveryInfo, error) {
	var info goLogin.DeliveryInfo
	var sent func()
	err := p.call(ctx, op, func() error {
		u, ok := p.users[key(username)]
		if !ok {
			return exception("UserNotFoundException", "Username/client id combination not found.")
		}
		if check != nil {
			if err := check(u); err != nil {
				return err
			}
		}
		var err error
		sent, err = p.issueLocked(u, purpose)
		if err != nil {
			return err
		}
		info = goLogin.DeliveryInfo{Destination: maskEmail(u.email), Medium: "EMAIL", Attribute: "email"}
		return nil
	})
	if err == nil && sent != nil {
		sent()
	}
	return info, err
}

// call waits the configured latency, applies a scripted failure, then runs
// fn with the lock held.
func (p *Provider) call(ctx context.Context, op string, fn func() error) error {
	if p.opts.Latency > 0 {
		t := time.NewTimer(p.opts.Latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if queued := p.failures[op]; len(queued) > 0 {
		p.failures[op] = queued[1:]
		return queued[0]
	}
	return fn()
}

// issueLocked replaces the pending code for purpose and returns the sink
// call to run once the lock is released.
func (p *Provider) issueLocked(u *user, purpose string) (func(), error) {
	code := p.opts.FixedCode
	if code == "" {
		var err error
		code, err = internal.NewOTP(p.opts.CodeDigits)
		if err != nil {
			return nil, err
		}
	}
	u.codes[purpose] = &pendingCode{code: code, expiresAt: p.opts.Now().Add(p.opts.CodeTTL)}

	sink, name := p.opts.Codes, u.username
	if sink == nil {
		return nil, nil
	}
	return func() { sink(purpose, name, code) }, nil
}

func (p *Provider) consumeLocked(u *user, purpose, code string) error {
	pending, ok := u.codes[purpose]
	if !ok {
		return exception("ExpiredCodeException", "Invalid code provided, please request a code again.")
	}
	if p.opts.Now().After(pending.expiresAt) {
		delete(u.codes, purpose)
		return exception("ExpiredCodeException", "Invalid code provided, please request a code again.")
	}
	if pending.code != strings.TrimSpace(code) {
		pending.attempts++
		if pending.attempts >= p.opts.MaxCodeAttempts {
			delete(u.codes, purpose)
			return exception("LimitExceededException", "Attempt limit exceeded, please try after some time.")
		}
		return exception("CodeMismatchException", "Invalid verification code provided, please try again.")
	}
	delete(u.codes, purpose)
	return nil
}

func key(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// maskEmail renders a@example.com as a***@example.com.
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return email
	}
	return email[:1] + "***" + email[at:]
}
