package goLogin

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"time"
)

// Gateway is the façade flow controllers use to reach the identity
// provider. Every failure it returns is an *Error.
type Gateway struct {
	provider   IdentityProvider
	classifier ErrorClassifier
	cfg        GatewayConfig
	metrics    *Metrics
	logger     *slog.Logger
}

func newGateway(provider IdentityProvider, cfg GatewayConfig, metrics *Metrics, logger *slog.Logger) *Gateway {
	g := &Gateway{
		provider: provider,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
	}
	if c, ok := provider.(ErrorClassifier); ok {
		g.classifier = c
	}
	if g.logger == nil {
		g.logger = discardLogger()
	}
	return g
}

// SignUp registers a new identity. The provider sends a confirmation code
// out of band.
func (g *Gateway) SignUp(ctx context.Context, email, username, password string) error {
	return g.call(ctx, "sign_up", g.cfg.CallTimeout, func(ctx context.Context) error {
		return g.provider.SignUp(ctx, SignUpRequest{
			Email:    email,
			Username: username,
			Password: password,
		})
	})
}

func (g *Gateway) ConfirmSignUp(ctx context.Context, username, code string) error {
	return g.call(ctx, "confirm_sign_up", g.cfg.CallTimeout, func(ctx context.Context) error {
		return g.provider.ConfirmSignUp(ctx, username, code)
	})
}

// SignIn reports whether the provider considers the user fully signed in.
// complete is false without an error when another challenge is required.
func (g *Gateway) SignIn(ctx context.Context, username, password string) (complete bool, err error) {
	var res SignInResult
	err = g.call(ctx, "sign_in", g.cfg.CallTimeout, func(ctx context.Context) error {
		var callErr error
		res, callErr = g.provider.SignIn(ctx, username, password)
		return callErr
	})
	if err != nil {
		return false, err
	}
	if !res.Complete {
		g.logger.InfoContext(ctx, "sign-in requires another step", "op", "sign_in", "next_step", res.NextStep)
	}
	return res.Complete, nil
}

func (g *Gateway) ResendConfirmationCode(ctx context.Context, username string) (DeliveryInfo, error) {
	var info DeliveryInfo
	err := g.call(ctx, "resend_code", g.cfg.CallTimeout, func(ctx context.Context) error {
		var callErr error
		info, callErr = g.provider.ResendSignUpCode(ctx, username)
		return callErr
	})
	return info, err
}

func (g *Gateway) RequestPasswordReset(ctx context.Context, username string) (DeliveryInfo, error) {
	var info DeliveryInfo
	err := g.call(ctx, "reset_password", g.cfg.CallTimeout, func(ctx context.Context) error {
		var callErr error
		info, callErr = g.provider.ResetPassword(ctx, username)
		return callErr
	})
	return info, err
}

func (g *Gateway) ConfirmPasswordReset(ctx context.Context, username, newPassword, code string) error {
	return g.call(ctx, "confirm_reset_password", g.cfg.CallTimeout, func(ctx context.Context) error {
		return g.provider.ConfirmResetPassword(ctx, username, newPassword, code)
	})
}

// FetchSession never fails outward; any error means "not signed in".
func (g *Gateway) FetchSession(ctx context.Context) bool {
	var signedIn bool
	err := g.call(ctx, "fetch_session", g.cfg.CallTimeout, func(ctx context.Context) error {
		var callErr error
		signedIn, callErr = g.provider.FetchSession(ctx)
		return callErr
	})
	return err == nil && signedIn
}

// CurrentUsername is only meaningful after FetchSession returned true.
func (g *Gateway) CurrentUsername(ctx context.Context) (string, bool) {
	var name string
	err := g.call(ctx, "current_user", g.cfg.CallTimeout, func(ctx context.Context) error {
		var callErr error
		name, callErr = g.provider.CurrentUser(ctx)
		return callErr
	})
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

// SignOut is best-effort. The returned error is informational; callers
// clear local state regardless.
func (g *Gateway) SignOut(ctx context.Context) error {
	return g.call(ctx, "sign_out", g.cfg.SignOutTimeout, g.provider.SignOut)
}

func (g *Gateway) call(ctx context.Context, op string, timeout time.Duration, fn func(context.Context) error) error {
	if g == nil || g.provider == nil {
		return newError(KindUnknown, ErrEngineNotReady.Error(), ErrEngineNotReady)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	g.metrics.Observe(MetricGatewayLatency, elapsed)

	if err == nil {
		g.logger.DebugContext(ctx, "provider call ok", "op", op, "duration", elapsed)
		return nil
	}

	ne := g.normalize(err)
	if ne.Kind == KindNetwork {
		g.metrics.Inc(MetricGatewayNetworkError)
	}
	g.logger.WarnContext(ctx, "provider call failed",
		"op", op,
		"kind", ne.Kind.String(),
		"duration", elapsed,
		"error", ne.Detail,
	)
	return ne
}

// normalize maps err onto the error taxonomy. Already-normalized errors pass
// through, transport failures become KindNetwork, and the provider gets the
// first say on everything else.
func (g *Gateway) normalize(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(KindNetwork, err.Error(), err)
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return newError(KindNetwork, err.Error(), err)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return newError(KindNetwork, err.Error(), err)
	}

	if g.classifier != nil {
		if kind, detail, ok := g.classifier.ClassifyError(err); ok {
			if detail == "" {
				detail = err.Error()
			}
			return newError(kind, detail, err)
		}
	}
	return newError(KindUnknown, err.Error(), err)
}
