package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	goLogin "github.com/MrEthical07/goLogin"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 16 << 10

type createFlowRequest struct {
	// Email pre-fills a reset flow.
	Email string `json:"email"`
}

type submitRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	RememberMe      bool   `json:"remember_me"`
}

type confirmRequest struct {
	Code            string `json:"code"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// decode reads an optional JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) createFlow(w http.ResponseWriter, r *http.Request) {
	var req createFlowRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	var (
		flow goLogin.Flow
		resp flowResponse
		err  error
	)
	switch goLogin.FlowKind(chi.URLParam(r, "kind")) {
	case goLogin.FlowSignUp:
		flow, err = s.engine.NewSignUpFlow()
	case goLogin.FlowSignIn:
		var f *goLogin.SignInFlow
		f, err = s.engine.NewSignInFlow(r.Context())
		if err == nil {
			if p := f.Prefill(); p.Remembered {
				resp.Prefill = &prefillBody{Username: p.Username, Remembered: true}
			}
			flow = f
		}
	case goLogin.FlowReset:
		flow, err = s.engine.NewResetFlow(req.Email)
	}
	if err != nil {
		writeControllerError(w, err)
		return
	}
	if err := s.flows.add(flow); err != nil {
		flow.Close()
		writeControllerError(w, err)
		return
	}

	resp.ID = flow.ID()
	resp.Kind = flow.Kind()
	resp.State = flow.State()
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) getFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := s.flows.get(chi.URLParam(r, "id"))
	if err != nil {
		writeControllerError(w, err)
		return
	}
	writeFlow(w, flow, flowResponse{}, nil)
}

func (s *Server) closeFlow(w http.ResponseWriter, r *http.Request) {
	if _, err := s.flows.close(chi.URLParam(r, "id")); err != nil {
		writeControllerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) flowAction(w http.ResponseWriter, r *http.Request) {
	flow, err := s.flows.get(chi.URLParam(r, "id"))
	if err != nil {
		writeControllerError(w, err)
		return
	}

	action := chi.URLParam(r, "action")
	if action == "dismiss" {
		flow.DismissError()
		writeFlow(w, flow, flowResponse{}, nil)
		return
	}

	var handled bool
	var resp flowResponse
	switch f := flow.(type) {
	case *goLogin.SignUpFlow:
		handled, resp, err = s.signUpAction(r, f, action)
	case *goLogin.SignInFlow:
		handled, resp, err = s.signInAction(r, f, action)
	case *goLogin.ResetFlow:
		handled, resp, err = s.resetAction(r, f, action)
	}
	if errors.Is(err, errBadBody) {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if !handled {
		writeError(w, http.StatusNotFound, "unknown_action", "action not supported by this flow")
		return
	}
	writeFlow(w, flow, resp, err)
}

var errBadBody = errors.New("bad body")

func (s *Server) signUpAction(r *http.Request, f *goLogin.SignUpFlow, action string) (bool, flowResponse, error) {
	ctx := r.Context()
	switch action {
	case "submit":
		var req submitRequest
		if decode(r, &req) != nil {
			return true, flowResponse{}, errBadBody
		}
		return true, flowResponse{}, f.SubmitSignUp(ctx, req.Email, req.Password, req.ConfirmPassword)
	case "confirm":
		var req confirmRequest
		if decode(r, &req) != nil {
			return true, flowResponse{}, errBadBody
		}
		return true, flowResponse{}, f.SubmitConfirmation(ctx, req.Code)
	case "resend":
		info, err := f.RequestResend(ctx)
		return true, deliveryResponse(info, err), err
	case "retry-sign-in":
		return true, flowResponse{}, f.RetrySignIn(ctx)
	}
	return false, flowResponse{}, nil
}

func (s *Server) signInAction(r *http.Request, f *goLogin.SignInFlow, action string) (bool, flowResponse, error) {
	ctx := r.Context()
	switch action {
	case "submit":
		var req submitRequest
		if decode(r, &req) != nil {
			return true, flowResponse{}, errBadBody
		}
		identifier := req.Username
		if identifier == "" {
			identifier = req.Email
		}
		return true, flowResponse{}, f.SubmitSignIn(ctx, identifier, req.Password, req.RememberMe)
	case "remembered":
		return true, flowResponse{}, f.SubmitRememberedSignIn(ctx)
	}
	return false, flowResponse{}, nil
}

func (s *Server) resetAction(r *http.Request, f *goLogin.ResetFlow, action string) (bool, flowResponse, error) {
	ctx := r.Context()
	switch action {
	case "submit":
		var req submitRequest
		if decode(r, &req) != nil {
			return true, flowResponse{}, errBadBody
		}
		email := req.Email
		if email == "" {
			email = f.Email()
		}
		info, err := f.SubmitRequestCode(ctx, email)
		return true, deliveryResponse(info, err), err
	case "confirm":
		var req confirmRequest
		if decode(r, &req) != nil {
			return true, flowResponse{}, errBadBody
		}
		return true, flowResponse{}, f.SubmitReset(ctx, req.Code, req.NewPassword, req.ConfirmPassword)
	case "resend":
		info, err := f.RequestResend(ctx)
		return true, deliveryResponse(info, err), err
	case "retry-sign-in":
		return true, flowResponse{}, f.RetrySignIn(ctx)
	}
	return false, flowResponse{}, nil
}

func deliveryResponse(info goLogin.DeliveryInfo, err error) flowResponse {
	if err != nil || info == (goLogin.DeliveryInfo{}) {
		return flowResponse{}
	}
	return flowResponse{Delivery: &info}
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Session().Current())
}

func (s *Server) refreshSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Session().Refresh(r.Context()))
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	s.engine.Session().SignOut(r.Context())
	writeJSON(w, http.StatusOK, s.engine.Session().Current())
}

func (s *Server) forgetCredential(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ForgetCredential(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "credential clear failed", "error", err)
		writeError(w, http.StatusInternalServerError, "credential_clear_failed", "could not clear the remembered credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
