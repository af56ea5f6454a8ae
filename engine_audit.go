package goLogin

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	auditEventSignUpSubmit         = "sign_up_submit"
	auditEventSignUpConfirm        = "sign_up_confirm"
	auditEventSignIn               = "sign_in"
	auditEventFollowUpSignIn       = "follow_up_sign_in"
	auditEventResendCode           = "resend_code"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventPasswordMismatch     = "password_mismatch"
	auditEventSessionRefresh       = "session_refresh"
	auditEventSignOut              = "sign_out"
	auditEventCredentialSaved      = "credential_saved"
	auditEventCredentialCleared    = "credential_cleared"
)

// auditMeta identifies the flow an event belongs to.
type auditMeta struct {
	flow     string
	flowID   string
	username string
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	meta auditMeta,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Flow:      meta.flow,
		FlowID:    meta.flowID,
		Username:  meta.username,
		Surface:   surfaceFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = code
	}

	e.audit.Emit(ctx, event)
}

// auditErrorCode reduces err to a stable code. Provider detail strings are
// not copied into events.
func auditErrorCode(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrFlowClosed):
		return "flow_closed"
	}

	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae.Kind.String()
	}
	return "internal_error"
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}
