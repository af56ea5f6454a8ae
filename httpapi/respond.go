package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	goLogin "github.com/MrEthical07/goLogin"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type flowErrorBody struct {
	Kind    goLogin.Kind `json:"kind"`
	Message string       `json:"message"`
}

type flowResponse struct {
	ID       string                `json:"id"`
	Kind     goLogin.FlowKind      `json:"kind"`
	State    goLogin.FlowState     `json:"state"`
	Delivery *goLogin.DeliveryInfo `json:"delivery,omitempty"`
	Prefill  *prefillBody          `json:"prefill,omitempty"`
	Error    *flowErrorBody        `json:"error,omitempty"`
}

// prefillBody never carries the remembered password.
type prefillBody struct {
	Username   string `json:"username"`
	Remembered bool   `json:"remembered"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

// controllerStatus maps errors that are not part of the flow state.
func controllerStatus(err error) (status int, code string, ok bool) {
	switch {
	case errors.Is(err, goLogin.ErrBusy):
		return http.StatusConflict, "busy", true
	case errors.Is(err, goLogin.ErrInvalidStep):
		return http.StatusConflict, "invalid_step", true
	case errors.Is(err, goLogin.ErrResendCooldown):
		return http.StatusConflict, "resend_cooldown", true
	case errors.Is(err, goLogin.ErrFlowClosed):
		return http.StatusGone, "flow_closed", true
	case errors.Is(err, errFlowNotFound):
		return http.StatusNotFound, "flow_not_found", true
	case errors.Is(err, errRegistryFull):
		return http.StatusServiceUnavailable, "too_many_flows", true
	case errors.Is(err, errServerStopped), errors.Is(err, goLogin.ErrEngineNotReady):
		return http.StatusServiceUnavailable, "unavailable", true
	}
	return 0, "", false
}

func writeControllerError(w http.ResponseWriter, err error) {
	status, code, ok := controllerStatus(err)
	if !ok {
		status, code = http.StatusInternalServerError, "internal"
	}
	writeError(w, status, code, err.Error())
}

// writeFlow answers an action on f. err is the action result; failures that
// live in the flow state are reported with 200.
func writeFlow(w http.ResponseWriter, f goLogin.Flow, resp flowResponse, err error) {
	if _, _, ok := controllerStatus(err); ok {
		writeControllerError(w, err)
		return
	}
	resp.ID = f.ID()
	resp.Kind = f.Kind()
	resp.State = f.State()
	if err != nil {
		resp.Error = &flowErrorBody{Kind: goLogin.KindOf(err), Message: goLogin.MessageOf(err)}
	}
	writeJSON(w, http.StatusOK, resp)
}
