package cognito

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goLogin "github.com/MrEthical07/goLogin"
	"github.com/golang-jwt/jwt/v5"
)

type recordedCall struct {
	target string
	body   map[string]any
}

type fakePool struct {
	t     *testing.T
	mu    sync.Mutex
	calls []recordedCall
	reply func(target string, body map[string]any) (int, any)
}

func (p *fakePool) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		p.t.Errorf("method = %q, want POST", r.Method)
	}
	if got := r.Header.Get("Content-Type"); got != contentType {
		p.t.Errorf("Content-Type = %q, want %q", got, contentType)
	}
	target := r.Header.Get("X-Amz-Target")
	if !strings.HasPrefix(target, targetPrefix) {
		p.t.Errorf("X-Amz-Target = %q, want prefix %q", target, targetPrefix)
	}
	op := strings.TrimPrefix(target, targetPrefix)

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		p.t.Errorf("decode body: %v", err)
	}

	p.mu.Lock()
	p.calls = append(p.calls, recordedCall{target: op, body: body})
	p.mu.Unlock()

	status, out := p.reply(op, body)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if out != nil {
		_ = json.NewEncoder(w).Encode(out)
	}
}

func (p *fakePool) lastCall() recordedCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return recordedCall{}
	}
	return p.calls[len(p.calls)-1]
}

func (p *fakePool) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func newTestClient(t *testing.T, secret string, reply func(string, map[string]any) (int, any)) (*Client, *fakePool) {
	t.Helper()
	pool := &fakePool{t: t, reply: reply}
	srv := httptest.NewServer(pool)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		ClientID:     "client-1",
		ClientSecret: secret,
		Endpoint:     srv.URL,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, pool
}

func idToken(t *testing.T, username string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"cognito:username": username,
		"exp":              exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-only"))
	if err != nil {
		t.Fatalf("sign id token: %v", err)
	}
	return s
}

func apiError(typ, msg string) any {
	return map[string]string{"__type": typ, "message": msg}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{Region: "eu-west-1"}); err == nil {
		t.Fatal("expected error without client id")
	}
	if _, err := New(Config{ClientID: "c"}); err == nil {
		t.Fatal("expected error without region or endpoint")
	}
	c, err := New(Config{ClientID: "c", Region: "eu-west-1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.endpoint != "https://cognito-idp.eu-west-1.amazonaws.com/" {
		t.Errorf("endpoint = %q", c.endpoint)
	}
	if c.http.Timeout != defaultTimeout {
		t.Errorf("timeout = %v, want %v", c.http.Timeout, defaultTimeout)
	}
}

func TestSignUpSendsEmailAttributeAndSecretHash(t *testing.T) {
	c, pool := newTestClient(t, "s3cret", func(string, map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"UserConfirmed": false, "UserSub": "sub-1"}
	})

	err := c.SignUp(context.Background(), goLogin.SignUpRequest{
		Email:    "a@x.com",
		Username: "a@x.com",
		Password: "P1!",
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	call := pool.lastCall()
	if call.target != "SignUp" {
		t.Fatalf("target = %q, want SignUp", call.target)
	}
	if call.body["ClientId"] != "client-1" || call.body["Username"] != "a@x.com" {
		t.Fatalf("unexpected body %v", call.body)
	}

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write([]byte("a@x.com" + "client-1"))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if call.body["SecretHash"] != want {
		t.Fatalf("SecretHash = %v, want %s", call.body["SecretHash"], want)
	}

	attrs, _ := call.body["UserAttributes"].([]any)
	if len(attrs) != 1 {
		t.Fatalf("expected one attribute, got %v", call.body["UserAttributes"])
	}
	attr := attrs[0].(map[string]any)
	if attr["Name"] != "email" || attr["Value"] != "a@x.com" {
		t.Fatalf("unexpected attribute %v", attr)
	}
}

func TestNoSecretHashWithoutClientSecret(t *testing.T) {
	c, pool := newTestClient(t, "", func(string, map[string]any) (int, any) {
		return http.StatusOK, map[string]any{}
	})
	if err := c.ConfirmSignUp(context.Background(), "a@x.com", "123456"); err != nil {
		t.Fatalf("ConfirmSignUp: %v", err)
	}
	call := pool.lastCall()
	if _, ok := call.body["SecretHash"]; ok {
		t.Fatal("expected no SecretHash")
	}
	if call.body["ConfirmationCode"] != "123456" {
		t.Fatalf("unexpected body %v", call.body)
	}
}

func TestSignInStoresSessionFromIDToken(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	c, pool := newTestClient(t, "", func(op string, body map[string]any) (int, any) {
		if op != "InitiateAuth" {
			t.Errorf("unexpected op %q", op)
		}
		if body["AuthFlow"] != flowUserPassword {
			t.Errorf("AuthFlow = %v", body["AuthFlow"])
		}
		return http.StatusOK, map[string]any{
			"AuthenticationResult": map[string]any{
				"AccessToken":  "access-1",
				"IdToken":      idToken(t, "a@x.com", exp),
				"RefreshToken": "refresh-1",
				"ExpiresIn":    3600,
			},
		}
	})
	ctx := context.Background()

	res, err := c.SignIn(ctx, "a@x.com", "P1!")
	if err != nil || !res.Complete {
		t.Fatalf("SignIn: %+v %v", res, err)
	}

	params := pool.lastCall().body["AuthParameters"].(map[string]any)
	if params["USERNAME"] != "a@x.com" || params["PASSWORD"] != "P1!" {
		t.Fatalf("unexpected auth parameters %v", params)
	}

	ok, err := c.FetchSession(ctx)
	if err != nil || !ok {
		t.Fatalf("FetchSession: %v %v", ok, err)
	}
	name, err := c.CurrentUser(ctx)
	if err != nil || name != "a@x.com" {
		t.Fatalf("CurrentUser: %q %v", name, err)
	}
	if pool.callCount() != 1 {
		t.Fatalf("expected session reads to stay local, got %d calls", pool.callCount())
	}
}

func TestSignInChallengeIsIncomplete(t *testing.T) {
	c, _ := newTestClient(t, "", func(string, map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"ChallengeName": "SMS_MFA", "Session": "s"}
	})
	res, err := c.SignIn(context.Background(), "a@x.com", "P1!")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if res.Complete || res.NextStep != "SMS_MFA" {
		t.Fatalf("unexpected result %+v", res)
	}
	if ok, _ := c.FetchSession(context.Background()); ok {
		t.Fatal("expected no session after a challenge")
	}
}

func TestFetchSessionRefreshesExpiredTokens(t *testing.T) {
	now := time.Now()
	c, pool := newTestClient(t, "", func(op string, body map[string]any) (int, any) {
		if flow, _ := body["AuthFlow"].(string); flow == flowRefreshToken {
			params := body["AuthParameters"].(map[string]any)
			if params["REFRESH_TOKEN"] != "refresh-1" {
				t.Errorf("REFRESH_TOKEN = %v", params["REFRESH_TOKEN"])
			}
			return http.StatusOK, map[string]any{
				"AuthenticationResult": map[string]any{
					"AccessToken": "access-2",
					"IdToken":     idToken(t, "a@x.com", now.Add(time.Hour)),
				},
			}
		}
		return http.StatusOK, map[string]any{
			"AuthenticationResult": map[string]any{
				"AccessToken":  "access-1",
				"IdToken":      idToken(t, "a@x.com", now.Add(10*time.Second)),
				"RefreshToken": "refresh-1",
			},
		}
	})
	ctx := context.Background()

	if _, err := c.SignIn(ctx, "a@x.com", "P1!"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	ok, err := c.FetchSession(ctx)
	if err != nil || !ok {
		t.Fatalf("FetchSession: %v %v", ok, err)
	}
	if pool.callCount() != 2 || pool.lastCall().body["AuthFlow"] != flowRefreshToken {
		t.Fatalf("expected a refresh, got %d calls", pool.callCount())
	}
	tok, _ := c.session.get()
	if tok.accessToken != "access-2" || tok.refreshToken != "refresh-1" {
		t.Fatalf("unexpected tokens after refresh %+v", tok)
	}
}

func TestFetchSessionWithoutTokens(t *testing.T) {
	c, pool := newTestClient(t, "", func(string, map[string]any) (int, any) {
		return http.StatusOK, nil
	})
	ok, err := c.FetchSession(context.Background())
	if ok || err != nil {
		t.Fatalf("FetchSession: %v %v", ok, err)
	}
	if _, err := c.CurrentUser(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if pool.callCount() != 0 {
		t.Fatalf("expected no calls, got %d", pool.callCount())
	}
}

func TestSignOutClearsLocalSessionOnRemoteFailure(t *testing.T) {
	c, pool := newTestClient(t, "", func(op string, _ map[string]any) (int, any) {
		if op == "GlobalSignOut" {
			return http.StatusInternalServerError, apiError("InternalErrorException", "boom")
		}
		return http.StatusOK, map[string]any{
			"AuthenticationResult": map[string]any{
				"AccessToken": "access-1",
				"IdToken":     idToken(t, "a@x.com", time.Now().Add(time.Hour)),
			},
		}
	})
	ctx := context.Background()

	if _, err := c.SignIn(ctx, "a@x.com", "P1!"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if err := c.SignOut(ctx); err == nil {
		t.Fatal("expected remote error")
	}
	if pool.lastCall().body["AccessToken"] != "access-1" {
		t.Fatalf("unexpected sign-out body %v", pool.lastCall().body)
	}
	if ok, _ := c.FetchSession(ctx); ok {
		t.Fatal("expected local session cleared")
	}
}

func TestDeliveryDetails(t *testing.T) {
	c, pool := newTestClient(t, "", func(string, map[string]any) (int, any) {
		return http.StatusOK, map[string]any{
			"CodeDeliveryDetails": map[string]any{
				"Destination":    "a***@x.com",
				"DeliveryMedium": "EMAIL",
				"AttributeName":  "email",
			},
		}
	})
	ctx := context.Background()

	info, err := c.ResendSignUpCode(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("ResendSignUpCode: %v", err)
	}
	if info.Destination != "a***@x.com" || info.Medium != "EMAIL" || info.Attribute != "email" {
		t.Fatalf("unexpected delivery %+v", info)
	}
	if pool.lastCall().target != "ResendConfirmationCode" {
		t.Fatalf("target = %q", pool.lastCall().target)
	}

	if _, err := c.ResetPassword(ctx, "a@x.com"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if pool.lastCall().target != "ForgotPassword" {
		t.Fatalf("target = %q", pool.lastCall().target)
	}

	if err := c.ConfirmResetPassword(ctx, "a@x.com", "Q2@", "123456"); err != nil {
		t.Fatalf("ConfirmResetPassword: %v", err)
	}
	call := pool.lastCall()
	if call.target != "ConfirmForgotPassword" || call.body["Password"] != "Q2@" || call.body["ConfirmationCode"] != "123456" {
		t.Fatalf("unexpected call %+v", call)
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name   string
		status int
		typ    string
		want   goLogin.Kind
	}{
		{"exists", http.StatusBadRequest, "UsernameExistsException", goLogin.KindAlreadyExists},
		{"namespaced", http.StatusBadRequest, "com.amazonaws.cognito#CodeMismatchException", goLogin.KindInvalidCode},
		{"expired", http.StatusBadRequest, "ExpiredCodeException", goLogin.KindCodeExpired},
		{"password", http.StatusBadRequest, "InvalidPasswordException", goLogin.KindInvalidPassword},
		{"param", http.StatusBadRequest, "InvalidParameterException", goLogin.KindInvalidParameter},
		{"not authorized", http.StatusBadRequest, "NotAuthorizedException", goLogin.KindInvalidCredentials},
		{"not confirmed", http.StatusBadRequest, "UserNotConfirmedException", goLogin.KindUserNotConfirmed},
		{"throttled", http.StatusBadRequest, "TooManyRequestsException", goLogin.KindTooManyRequests},
		{"server", http.StatusServiceUnavailable, "ServiceUnavailable", goLogin.KindNetwork},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, "", func(string, map[string]any) (int, any) {
				return tc.status, apiError(tc.typ, "provider says no")
			})
			err := c.ConfirmSignUp(context.Background(), "a@x.com", "000000")
			if err == nil {
				t.Fatal("expected error")
			}
			kind, _, ok := c.ClassifyError(err)
			if !ok || kind != tc.want {
				t.Fatalf("ClassifyError = %v %v, want %v", kind, ok, tc.want)
			}
		})
	}
}

func TestClassifyErrorUnknownExceptionKeepsMessage(t *testing.T) {
	c, _ := newTestClient(t, "", func(string, map[string]any) (int, any) {
		return http.StatusBadRequest, apiError("SomethingNewException", "new failure")
	})
	err := c.ConfirmSignUp(context.Background(), "a@x.com", "000000")
	kind, detail, ok := c.ClassifyError(err)
	if !ok || kind != goLogin.KindUnknown || detail != "new failure" {
		t.Fatalf("ClassifyError = %v %q %v", kind, detail, ok)
	}

	if _, _, ok := c.ClassifyError(errors.New("plain")); ok {
		t.Fatal("expected plain errors to be unclassified")
	}
}

func TestErrorTypeFromHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Amzn-ErrorType", "ExpiredCodeException:http://internal.amazon.com/")
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := New(Config{ClientID: "c", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = c.ConfirmSignUp(context.Background(), "a@x.com", "000000")
	var ae *APIError
	if !errors.As(err, &ae) || ae.Type != "ExpiredCodeException" {
		t.Fatalf("expected ExpiredCodeException, got %v", err)
	}
}

func TestGatewayNormalizesThroughClassifier(t *testing.T) {
	c, _ := newTestClient(t, "", func(string, map[string]any) (int, any) {
		return http.StatusBadRequest, apiError("NotAuthorizedException", "Incorrect username or password.")
	})

	engine, err := goLogin.New().WithProvider(c).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	_, err = engine.Gateway().SignIn(context.Background(), "a@x.com", "wrong")
	if !errors.Is(err, goLogin.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
