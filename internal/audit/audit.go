// Package audit emits structured security events. Delivery is fire-and-forget:
// a slow or broken sink must never block or fail an auth operation.
package audit

import (
	"context"
	"time"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event actions emitted by the auth core.
const (
	ActionLogin          = "auth.login"
	ActionRegister       = "auth.register"
	ActionRefresh        = "auth.refresh"
	ActionAccountLock    = "auth.account_lock"
	ActionReauthRequest  = "auth.reauth_request"
	ActionReauthVerify   = "auth.reauth_verify"
	ActionCodeDelivery   = "auth.code_delivery"
	ActionStepUp         = "auth.step_up"
	ActionEmailChange    = "auth.email_change"
	ActionPasswordChange = "auth.password_change"
)

type Event struct {
	Timestamp   time.Time         `json:"timestamp"`
	Action      string            `json:"action"`
	Outcome     string            `json:"outcome"`
	AccountID   string            `json:"account_id,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Sink is the downstream transport. Errors are an operational signal only;
// callers go through a Recorder and never see them.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// Recorder is what the auth core holds: a non-blocking, never-failing emit.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// NopRecorder drops events. Used when auditing is disabled and in tests.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Event) {}
