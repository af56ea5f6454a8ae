// Package shell is a line-oriented terminal front-end for the goLogin flows.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	goLogin "github.com/MrEthical07/goLogin"
)

const prompt = "> "

var errQuit = errors.New("quit")

// Shell drives one flow at a time. Starting a flow closes the previous one.
type Shell struct {
	engine *goLogin.Engine
	in     io.Reader
	out    io.Writer

	current goLogin.Flow
}

func New(engine *goLogin.Engine, in io.Reader, out io.Writer) *Shell {
	return &Shell{engine: engine, in: in, out: out}
}

// Run reads commands until quit, EOF or ctx cancellation.
func (s *Shell) Run(ctx context.Context) error {
	ctx = goLogin.WithSurface(ctx, "shell")
	stopWatch := s.engine.Session().Watch(func(sess goLogin.Session) {
		if sess.Authenticated {
			fmt.Fprintf(s.out, "* signed in as %s\n", sess.DisplayName)
		} else {
			fmt.Fprintln(s.out, "* signed out")
		}
	})
	defer stopWatch()
	defer s.closeCurrent()

	fmt.Fprintln(s.out, "goLogin shell. Type help for commands.")
	scanner := bufio.NewScanner(s.in)
	for {
		fmt.Fprint(s.out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		err := s.exec(ctx, fields[0], fields[1:])
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "! %v\n", err)
		}
	}
}

func (s *Shell) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "?":
		s.help()
		return nil
	case "quit", "exit":
		return errQuit
	case "signup":
		return s.signUp(ctx, args)
	case "confirm":
		return s.confirm(ctx, args)
	case "resend":
		return s.resend(ctx)
	case "retry":
		return s.retry(ctx)
	case "signin":
		return s.signIn(ctx, args)
	case "forgot":
		return s.forgot(ctx, args)
	case "reset":
		return s.reset(ctx, args)
	case "whoami":
		sess := s.engine.Session().Refresh(ctx)
		if !sess.Authenticated {
			fmt.Fprintln(s.out, "not signed in")
			return nil
		}
		fmt.Fprintln(s.out, sess.DisplayName)
		return nil
	case "signout":
		s.engine.Session().SignOut(ctx)
		return nil
	case "forget":
		if err := s.engine.ForgetCredential(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "remembered credential cleared")
		return nil
	case "dismiss":
		if s.current == nil {
			return errNoFlow
		}
		s.current.DismissError()
		s.render(s.current.State())
		return nil
	case "state":
		if s.current == nil {
			return errNoFlow
		}
		s.render(s.current.State())
		return nil
	}
	return fmt.Errorf("unknown command %q (try help)", cmd)
}

var errNoFlow = errors.New("no flow in progress")

func usage(form string) error {
	return fmt.Errorf("usage: %s", form)
}

func (s *Shell) start(f goLogin.Flow) {
	s.closeCurrent()
	s.current = f
}

func (s *Shell) closeCurrent() {
	if s.current != nil {
		s.current.Close()
		s.current = nil
	}
}

func (s *Shell) signUp(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usage("signup <email> <password> <confirm-password>")
	}
	f, err := s.engine.NewSignUpFlow()
	if err != nil {
		return err
	}
	s.start(f)
	return s.result(f, f.SubmitSignUp(ctx, args[0], args[1], args[2]))
}

func (s *Shell) confirm(ctx context.Context, args []string) error {
	f, ok := s.current.(*goLogin.SignUpFlow)
	if !ok {
		return errors.New("confirm needs a sign-up in progress")
	}
	if len(args) != 1 {
		return usage("confirm <code>")
	}
	return s.result(f, f.SubmitConfirmation(ctx, args[0]))
}

func (s *Shell) resend(ctx context.Context) error {
	var (
		info goLogin.DeliveryInfo
		err  error
	)
	switch f := s.current.(type) {
	case *goLogin.SignUpFlow:
		info, err = f.RequestResend(ctx)
	case *goLogin.ResetFlow:
		info, err = f.RequestResend(ctx)
	default:
		return errors.New("resend needs a sign-up or reset in progress")
	}
	if err == nil {
		s.delivery(info)
	}
	return s.result(s.current, err)
}

func (s *Shell) retry(ctx context.Context) error {
	switch f := s.current.(type) {
	case *goLogin.SignUpFlow:
		return s.result(f, f.RetrySignIn(ctx))
	case *goLogin.ResetFlow:
		return s.result(f, f.RetrySignIn(ctx))
	}
	return errors.New("retry needs a confirmed sign-up or reset")
}

func (s *Shell) signIn(ctx context.Context, args []string) error {
	f, err := s.engine.NewSignInFlow(ctx)
	if err != nil {
		return err
	}
	s.start(f)

	switch len(args) {
	case 0:
		p := f.Prefill()
		if !p.Remembered {
			return usage("signin <username> <password> [remember]")
		}
		fmt.Fprintf(s.out, "using remembered credential for %s\n", p.Username)
		return s.result(f, f.SubmitRememberedSignIn(ctx))
	case 2, 3:
		remember := len(args) == 3 && args[2] == "remember"
		return s.result(f, f.SubmitSignIn(ctx, args[0], args[1], remember))
	}
	return usage("signin <username> <password> [remember]")
}

func (s *Shell) forgot(ctx context.Context, args []string) error {
	email := ""
	if len(args) == 1 {
		email = args[0]
	} else if name, ok := s.engine.RememberedUsername(ctx); ok {
		email = name
	}
	if email == "" {
		return usage("forgot <email>")
	}
	f, err := s.engine.NewResetFlow(email)
	if err != nil {
		return err
	}
	s.start(f)

	info, err := f.SubmitRequestCode(ctx, email)
	if err == nil {
		s.delivery(info)
	}
	return s.result(f, err)
}

func (s *Shell) reset(ctx context.Context, args []string) error {
	f, ok := s.current.(*goLogin.ResetFlow)
	if !ok {
		return errors.New("reset needs a forgot-password request in progress")
	}
	if f.State().Confirmed {
		return s.result(f, f.RetrySignIn(ctx))
	}
	if len(args) != 3 {
		return usage("reset <code> <new-password> <confirm-password>")
	}
	return s.result(f, f.SubmitReset(ctx, args[0], args[1], args[2]))
}

// result prints the flow state. Failures shown in the state are not
// returned again.
func (s *Shell) result(f goLogin.Flow, err error) error {
	if err != nil && !isStateError(err) {
		return err
	}
	s.render(f.State())
	return nil
}

func isStateError(err error) bool {
	var e *goLogin.Error
	return errors.As(err, &e)
}

func (s *Shell) delivery(info goLogin.DeliveryInfo) {
	if info.Destination == "" {
		fmt.Fprintln(s.out, "code sent")
		return
	}
	fmt.Fprintf(s.out, "code sent to %s\n", info.Destination)
}

func (s *Shell) render(st goLogin.FlowState) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", st.Step)
	if st.Username != "" {
		fmt.Fprintf(&b, " %s", st.Username)
	}
	switch st.Step {
	case goLogin.StepAwaitingConfirmation, goLogin.StepAwaitingReset:
		if st.ResendAvailable {
			b.WriteString(" resend available")
		} else {
			fmt.Fprintf(&b, " resend in %ds", st.ResendCountdown)
		}
	}
	fmt.Fprintln(s.out, b.String())
	if st.HasError() {
		fmt.Fprintf(s.out, "! %s\n", st.ErrorMessage)
	}
}

func (s *Shell) help() {
	fmt.Fprint(s.out, `commands:
  signup <email> <password> <confirm>   register and send a code
  confirm <code>                        confirm the sign-up
  resend                                send the code again
  retry                                 retry the sign-in after confirm/reset
  signin <user> <password> [remember]   sign in
  signin                                sign in with the remembered credential
  forgot [email]                        request a password reset code
  reset <code> <new> <confirm>          set a new password
  whoami                                refresh and show the session
  signout                               sign out
  forget                                clear the remembered credential
  dismiss                               clear the current error
  state                                 show the current flow
  quit
`)
}
