// Package internaldefs holds the metric names shared by the exporters.
package internaldefs

import (
	goLogin "github.com/MrEthical07/goLogin"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goLogin.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goLogin.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported beside the engine counters.
const (
	AuditDroppedName = "gologin_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

var CounterDefs = []CounterDef{
	{ID: goLogin.MetricSignUpSuccess, Name: "gologin_sign_up_success_total", Help: "Accepted sign-up submissions."},
	{ID: goLogin.MetricSignUpFailure, Name: "gologin_sign_up_failure_total", Help: "Rejected sign-up submissions."},
	{ID: goLogin.MetricConfirmSignUpSuccess, Name: "gologin_confirm_sign_up_success_total", Help: "Accepted confirmation codes."},
	{ID: goLogin.MetricConfirmSignUpFailure, Name: "gologin_confirm_sign_up_failure_total", Help: "Rejected confirmation codes."},
	{ID: goLogin.MetricSignInSuccess, Name: "gologin_sign_in_success_total", Help: "Completed sign-ins, including follow-up sign-ins."},
	{ID: goLogin.MetricSignInFailure, Name: "gologin_sign_in_failure_total", Help: "Failed sign-in form submissions."},
	{ID: goLogin.MetricSignInIncomplete, Name: "gologin_sign_in_incomplete_total", Help: "Sign-ins that required another challenge step."},
	{ID: goLogin.MetricFollowUpSignInFailure, Name: "gologin_follow_up_sign_in_failure_total", Help: "Failed sign-ins after a confirmation or reset."},
	{ID: goLogin.MetricPasswordMismatch, Name: "gologin_password_mismatch_total", Help: "Submissions rejected locally for mismatching passwords."},
	{ID: goLogin.MetricResendSent, Name: "gologin_resend_sent_total", Help: "Codes resent."},
	{ID: goLogin.MetricResendFailure, Name: "gologin_resend_failure_total", Help: "Failed resend requests."},
	{ID: goLogin.MetricResendRejected, Name: "gologin_resend_rejected_total", Help: "Resend requests rejected during the cooldown."},
	{ID: goLogin.MetricPasswordResetRequest, Name: "gologin_password_reset_request_total", Help: "Password reset codes requested."},
	{ID: goLogin.MetricPasswordResetRequestFailure, Name: "gologin_password_reset_request_failure_total", Help: "Failed password reset requests."},
	{ID: goLogin.MetricPasswordResetConfirmSuccess, Name: "gologin_password_reset_confirm_success_total", Help: "Accepted password resets."},
	{ID: goLogin.MetricPasswordResetConfirmFailure, Name: "gologin_password_reset_confirm_failure_total", Help: "Rejected password resets."},
	{ID: goLogin.MetricSessionRefresh, Name: "gologin_session_refresh_total", Help: "Session refreshes."},
	{ID: goLogin.MetricSignOut, Name: "gologin_sign_out_total", Help: "Sign-outs."},
	{ID: goLogin.MetricSignOutRemoteFailure, Name: "gologin_sign_out_remote_failure_total", Help: "Sign-outs whose remote call failed."},
	{ID: goLogin.MetricCredentialSaved, Name: "gologin_credential_saved_total", Help: "Remembered credentials stored."},
	{ID: goLogin.MetricCredentialSaveFailure, Name: "gologin_credential_save_failure_total", Help: "Failed credential stores."},
	{ID: goLogin.MetricCredentialCleared, Name: "gologin_credential_cleared_total", Help: "Remembered credentials cleared."},
	{ID: goLogin.MetricFlowOpened, Name: "gologin_flow_opened_total", Help: "Flow controllers created."},
	{ID: goLogin.MetricFlowClosed, Name: "gologin_flow_closed_total", Help: "Flow controllers closed."},
	{ID: goLogin.MetricBusyRejected, Name: "gologin_busy_rejected_total", Help: "Submissions rejected while a call was in flight."},
	{ID: goLogin.MetricStaleCompletion, Name: "gologin_stale_completion_total", Help: "Provider answers dropped because their flow was closed."},
	{ID: goLogin.MetricGatewayNetworkError, Name: "gologin_gateway_network_error_total", Help: "Provider calls that failed in transport."},
}

var HistogramDefs = []HistogramDef{
	{ID: goLogin.MetricGatewayLatency, Name: "gologin_gateway_latency_seconds", Help: "Identity provider call latency."},
}

// HistogramBounds are the upper bounds of the engine latency buckets, in
// seconds. The last bucket is unbounded.
var HistogramBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the eight engine buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
