package cognito

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goLogin "github.com/MrEthical07/goLogin"
	"golang.org/x/time/rate"
)

const (
	targetPrefix = "AWSCognitoIdentityProviderService."
	contentType  = "application/x-amz-json-1.1"

	flowUserPassword = "USER_PASSWORD_AUTH"
	flowRefreshToken = "REFRESH_TOKEN_AUTH"

	// refreshSkew renews tokens slightly before they expire.
	refreshSkew = 30 * time.Second
)

// Client is a Cognito user-pool client for a single app client.
type Client struct {
	cfg      Config
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	now      func() time.Time
	session  tokenStore
}

var (
	_ goLogin.IdentityProvider = (*Client)(nil)
	_ goLogin.ErrorClassifier  = (*Client)(nil)
)

// New returns a client for cfg.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:      cfg,
		endpoint: cfg.endpoint(),
		http:     cfg.HTTPClient,
		now:      cfg.Now,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

// SignUp registers req.Username with req.Email as the email attribute.
func (c *Client) SignUp(ctx context.Context, req goLogin.SignUpRequest) error {
	in := signUpInput{
		ClientID:   c.cfg.ClientID,
		SecretHash: c.secretHash(req.Username),
		Username:   req.Username,
		Password:   req.Password,
	}
	if req.Email != "" {
		in.UserAttributes = []attributeType{{Name: "email", Value: req.Email}}
	}
	var out signUpOutput
	return c.do(ctx, "SignUp", in, &out)
}

func (c *Client) ConfirmSignUp(ctx context.Context, username, code string) error {
	return c.do(ctx, "ConfirmSignUp", confirmSignUpInput{
		ClientID:         c.cfg.ClientID,
		SecretHash:       c.secretHash(username),
		Username:         username,
		ConfirmationCode: code,
	}, nil)
}

// SignIn runs USER_PASSWORD_AUTH. A challenge answer (MFA, new password)
// is reported as an incomplete sign-in and no session is kept.
func (c *Client) SignIn(ctx context.Context, username, password string) (goLogin.SignInResult, error) {
	params := map[string]string{
		"USERNAME": username,
		"PASSWORD": password,
	}
	if h := c.secretHash(username); h != "" {
		params["SECRET_HASH"] = h
	}

	var out initiateAuthOutput
	if err := c.do(ctx, "InitiateAuth", initiateAuthInput{
		AuthFlow:       flowUserPassword,
		ClientID:       c.cfg.ClientID,
		AuthParameters: params,
	}, &out); err != nil {
		return goLogin.SignInResult{}, err
	}

	if out.AuthenticationResult == nil {
		return goLogin.SignInResult{Complete: false, NextStep: out.ChallengeName}, nil
	}
	if err := c.storeResult(out.AuthenticationResult, username, ""); err != nil {
		return goLogin.SignInResult{}, err
	}
	return goLogin.SignInResult{Complete: true}, nil
}

func (c *Client) ResendSignUpCode(ctx context.Context, username string) (goLogin.DeliveryInfo, error) {
	var out deliveryOutput
	if err := c.do(ctx, "ResendConfirmationCode", c.usernameInput(username), &out); err != nil {
		return goLogin.DeliveryInfo{}, err
	}
	return toDeliveryInfo(out.CodeDeliveryDetails), nil
}

func (c *Client) ResetPassword(ctx context.Context, username string) (goLogin.DeliveryInfo, error) {
	var out deliveryOutput
	if err := c.do(ctx, "ForgotPassword", c.usernameInput(username), &out); err != nil {
		return goLogin.DeliveryInfo{}, err
	}
	return toDeliveryInfo(out.CodeDeliveryDetails), nil
}

func (c *Client) ConfirmResetPassword(ctx context.Context, username, newPassword, code string) error {
	return c.do(ctx, "ConfirmForgotPassword", confirmForgotPasswordInput{
		ClientID:         c.cfg.ClientID,
		SecretHash:       c.secretHash(username),
		Username:         username,
		ConfirmationCode: code,
		Password:         newPassword,
	}, nil)
}

// FetchSession reports whether a usable session exists, refreshing expired
// tokens with the refresh token when possible.
func (c *Client) FetchSession(ctx context.Context) (bool, error) {
	t, ok := c.session.get()
	if !ok {
		return false, nil
	}
	if t.expiresAt.IsZero() || c.now().Add(refreshSkew).Before(t.expiresAt) {
		return true, nil
	}
	if t.refreshToken == "" {
		c.session.clear()
		return false, nil
	}
	if err := c.refresh(ctx, t); err != nil {
		c.session.clear()
		return false, err
	}
	return true, nil
}

// CurrentUser returns the username of the signed-in user. It asks the pool
// when the ID token did not carry one.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	t, ok := c.session.get()
	if !ok {
		return "", ErrNoSession
	}
	if t.username != "" {
		return t.username, nil
	}

	var out getUserOutput
	if err := c.do(ctx, "GetUser", accessTokenInput{AccessToken: t.accessToken}, &out); err != nil {
		return "", err
	}
	t.username = out.Username
	c.session.set(t)
	return out.Username, nil
}

// SignOut revokes the tokens with GlobalSignOut. The local session is
// dropped whatever the outcome.
func (c *Client) SignOut(ctx context.Context) error {
	t, ok := c.session.get()
	c.session.clear()
	if !ok || t.accessToken == "" {
		return nil
	}
	return c.do(ctx, "GlobalSignOut", accessTokenInput{AccessToken: t.accessToken}, nil)
}

func (c *Client) refresh(ctx context.Context, t tokens) error {
	params := map[string]string{"REFRESH_TOKEN": t.refreshToken}
	if h := c.secretHash(t.username); h != "" {
		params["SECRET_HASH"] = h
	}

	var out initiateAuthOutput
	if err := c.do(ctx, "InitiateAuth", initiateAuthInput{
		AuthFlow:       flowRefreshToken,
		ClientID:       c.cfg.ClientID,
		AuthParameters: params,
	}, &out); err != nil {
		return err
	}
	if out.AuthenticationResult == nil {
		return fmt.Errorf("cognito: refresh returned challenge %q", out.ChallengeName)
	}
	// Refresh responses do not carry a new refresh token.
	return c.storeResult(out.AuthenticationResult, t.username, t.refreshToken)
}

func (c *Client) storeResult(res *authenticationResult, username, refreshToken string) error {
	t := tokens{
		idToken:      res.IDToken,
		accessToken:  res.AccessToken,
		refreshToken: res.RefreshToken,
		username:     username,
	}
	if t.refreshToken == "" {
		t.refreshToken = refreshToken
	}
	if res.ExpiresIn > 0 {
		t.expiresAt = c.now().Add(time.Duration(res.ExpiresIn) * time.Second)
	}
	if res.IDToken != "" {
		name, exp, err := readIDToken(res.IDToken)
		if err != nil {
			return fmt.Errorf("cognito: read id token: %w", err)
		}
		if name != "" {
			t.username = name
		}
		if !exp.IsZero() {
			t.expiresAt = exp
		}
	}
	c.session.set(t)
	return nil
}

func (c *Client) usernameInput(username string) usernameInput {
	return usernameInput{
		ClientID:   c.cfg.ClientID,
		SecretHash: c.secretHash(username),
		Username:   username,
	}
}

// secretHash is Base64(HMAC-SHA256(secret, username + clientID)), or empty
// when the app client has no secret.
func (c *Client) secretHash(username string) string {
	if c.cfg.ClientSecret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(c.cfg.ClientSecret))
	mac.Write([]byte(username + c.cfg.ClientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// do posts in to operation op and decodes the response into out when set.
func (c *Client) do(ctx context.Context, op string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Amz-Target", targetPrefix+op)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp, body)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("cognito: decode %s response: %w", op, err)
	}
	return nil
}

func decodeError(resp *http.Response, body []byte) error {
	ae := &APIError{StatusCode: resp.StatusCode}

	var doc errorDocument
	if err := json.Unmarshal(body, &doc); err == nil {
		ae.Type = exceptionName(doc.Type)
		ae.Message = doc.Message
		if ae.Message == "" {
			ae.Message = doc.MessageAlt
		}
	}
	if ae.Type == "" {
		ae.Type = exceptionName(resp.Header.Get("X-Amzn-ErrorType"))
	}
	if ae.Type == "" {
		ae.Type = strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "")
	}
	return ae
}

func toDeliveryInfo(d codeDeliveryDetails) goLogin.DeliveryInfo {
	return goLogin.DeliveryInfo{
		Destination: d.Destination,
		Medium:      d.DeliveryMedium,
		Attribute:   d.AttributeName,
	}
}
