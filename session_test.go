package goLogin

import (
	"context"
	"errors"
	"testing"
)

func TestSessionDefaultsToSignedOut(t *testing.T) {
	te := newTestEngine(t)
	if got := te.Session().Current(); got != (Session{}) {
		t.Fatalf("Session = %+v", got)
	}
}

func TestRefreshMirrorsProvider(t *testing.T) {
	te := newTestEngine(t)
	te.provider.remoteSignedIn = true
	te.provider.remoteUser = "bob"

	got := te.Session().Refresh(context.Background())
	if got != (Session{Authenticated: true, DisplayName: "bob"}) {
		t.Fatalf("Refresh = %+v", got)
	}
	if te.Session().Current() != got {
		t.Fatal("Current disagrees with Refresh")
	}

	// Idempotent with no change upstream.
	again := te.Session().Refresh(context.Background())
	if again != got {
		t.Fatalf("second Refresh = %+v", again)
	}
	if got := te.metrics.Value(MetricSessionRefresh); got != 2 {
		t.Fatalf("MetricSessionRefresh = %d", got)
	}
}

func TestRefreshWithoutSessionSignsOut(t *testing.T) {
	te := newTestEngine(t)
	te.Session().ApplySignedIn("stale")

	if got := te.Session().Refresh(context.Background()); got.Authenticated {
		t.Fatalf("Refresh = %+v", got)
	}
	if te.provider.callCount("current_user") != 0 {
		t.Fatal("current_user asked without a session")
	}
}

func TestRefreshFailuresMeanSignedOut(t *testing.T) {
	cases := []struct {
		name  string
		setup func(p *fakeProvider)
	}{
		{"fetch fails", func(p *fakeProvider) {
			p.remoteSignedIn = true
			p.remoteUser = "bob"
			p.fetchErr = errors.New("boom")
		}},
		{"user lookup fails", func(p *fakeProvider) {
			p.remoteSignedIn = true
			p.currentUserErr = errors.New("boom")
		}},
		{"empty username", func(p *fakeProvider) {
			p.remoteSignedIn = true
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			te := newTestEngine(t)
			tc.setup(te.provider)
			te.Session().ApplySignedIn("stale")

			got := te.Session().Refresh(context.Background())
			if got != (Session{}) {
				t.Fatalf("Refresh = %+v", got)
			}
		})
	}
}

func TestSignOutAlwaysClearsLocalSession(t *testing.T) {
	te := newTestEngine(t)
	te.provider.signOutErr = newError(KindNetwork, "offline", nil)
	te.Session().ApplySignedIn("bob")

	te.Session().SignOut(context.Background())

	if got := te.Session().Current(); got != (Session{}) {
		t.Fatalf("Session = %+v", got)
	}
	if got := te.metrics.Value(MetricSignOutRemoteFailure); got != 1 {
		t.Fatalf("MetricSignOutRemoteFailure = %d", got)
	}
	if got := te.metrics.Value(MetricSignOut); got != 1 {
		t.Fatalf("MetricSignOut = %d", got)
	}
}

func TestSignOutKeepsCredentialByDefault(t *testing.T) {
	te := newTestEngine(t)
	flow, _ := te.NewSignInFlow(context.Background())
	_ = flow.SubmitSignIn(context.Background(), "bob", "pw", true)
	flow.Close()

	te.Session().SignOut(context.Background())
	if _, ok := te.RememberedUsername(context.Background()); !ok {
		t.Fatal("credential cleared on sign-out")
	}
}

func TestSignOutForgetsCredentialWhenConfigured(t *testing.T) {
	te := newTestEngine(t, withTestConfig(func(cfg *Config) {
		cfg.Credentials.ForgetOnSignOut = true
	}))
	flow, _ := te.NewSignInFlow(context.Background())
	_ = flow.SubmitSignIn(context.Background(), "bob", "pw", true)
	flow.Close()

	te.Session().SignOut(context.Background())
	if _, ok := te.RememberedUsername(context.Background()); ok {
		t.Fatal("credential kept after sign-out")
	}
	if got := te.metrics.Value(MetricCredentialCleared); got != 1 {
		t.Fatalf("MetricCredentialCleared = %d", got)
	}
}

func TestSessionWatchSeesEveryCommitInOrder(t *testing.T) {
	te := newTestEngine(t)

	var seen []Session
	cancel := te.Session().Watch(func(s Session) { seen = append(seen, s) })

	te.Session().ApplySignedIn("a")
	te.Session().ApplySignedIn("b")
	te.Session().ApplySignedOut()
	cancel()
	te.Session().ApplySignedIn("c")

	want := []Session{
		{Authenticated: true, DisplayName: "a"},
		{Authenticated: true, DisplayName: "b"},
		{},
	}
	if len(seen) != len(want) {
		t.Fatalf("seen = %+v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen = %+v, want %+v", seen, want)
		}
	}
}

func TestSessionObserverMayReadCurrent(t *testing.T) {
	te := newTestEngine(t)
	var inside Session
	te.Session().Watch(func(Session) { inside = te.Session().Current() })

	te.Session().ApplySignedIn("bob")
	if inside.DisplayName != "bob" {
		t.Fatalf("observer read %+v", inside)
	}
}

func TestSignInAndSignOutThroughFlows(t *testing.T) {
	te := newTestEngine(t)

	var seen []Session
	te.Session().Watch(func(s Session) { seen = append(seen, s) })

	flow, _ := te.NewSignInFlow(context.Background())
	defer flow.Close()
	_ = flow.SubmitSignIn(context.Background(), "bob", "pw", false)
	te.Session().SignOut(context.Background())

	if len(seen) != 2 || !seen[0].Authenticated || seen[1].Authenticated {
		t.Fatalf("seen = %+v", seen)
	}
	if te.provider.callCount("sign_out") != 1 {
		t.Fatal("expected a remote sign-out")
	}
}

func TestRefreshDoesNotBlockCommitsDuringRemoteCall(t *testing.T) {
	te := newTestEngine(t)
	te.provider.holdNext("fetch_session")

	done := make(chan Session, 1)
	go func() { done <- te.Session().Refresh(context.Background()) }()
	waitClosed(t, te.provider.entered)

	within(t, "ApplySignedIn during refresh", func() { te.Session().ApplySignedIn("bob") })

	close(te.provider.release)
	got := <-done
	// The provider reported no session, but the newer commit wins.
	if got != (Session{Authenticated: true, DisplayName: "bob"}) {
		t.Fatalf("Refresh = %+v", got)
	}
	if te.Session().Current() != got {
		t.Fatalf("Current = %+v", te.Session().Current())
	}
}

func TestSignOutDoesNotBlockCommitsDuringRemoteCall(t *testing.T) {
	te := newTestEngine(t)
	te.Session().ApplySignedIn("bob")
	te.provider.holdNext("sign_out")

	done := make(chan struct{})
	go func() {
		te.Session().SignOut(context.Background())
		close(done)
	}()
	waitClosed(t, te.provider.entered)

	within(t, "Current during sign-out", func() { _ = te.Session().Current() })
	within(t, "ApplySignedIn during sign-out", func() { te.Session().ApplySignedIn("bob") })

	close(te.provider.release)
	<-done
	if got := te.Session().Current(); got != (Session{}) {
		t.Fatalf("Session = %+v", got)
	}
}

func TestRememberedCredentialCarriesSavedAt(t *testing.T) {
	te := newTestEngine(t)
	if _, ok := te.RememberedCredential(context.Background()); ok {
		t.Fatal("credential reported before sign-in")
	}

	flow, _ := te.NewSignInFlow(context.Background())
	_ = flow.SubmitSignIn(context.Background(), "bob", "pw", true)
	flow.Close()

	cred, ok := te.RememberedCredential(context.Background())
	if !ok || cred.Username != "bob" || cred.Password != "pw" || cred.SavedAt.IsZero() {
		t.Fatalf("RememberedCredential = %+v, %v", cred, ok)
	}
}
