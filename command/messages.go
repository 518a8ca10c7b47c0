package command

import (
	"strings"
	"time"

	"github.com/goliatone/go-onboarding/actions"
	"github.com/goliatone/go-onboarding/credentials"
	"github.com/goliatone/go-onboarding/workflow"
)

const (
	TypeDispatchWorkflow     = "onboarding.command.workflow.dispatch"
	TypeSaveCheckpoint       = "onboarding.command.workflow.checkpoint.save"
	TypeRestoreCheckpoint    = "onboarding.command.workflow.checkpoint.restore"
	TypeInitiateVerification = "onboarding.command.verification.initiate"
	TypeResendVerification   = "onboarding.command.verification.resend"
	TypeCancelVerification   = "onboarding.command.verification.cancel"
	TypeOpenVerificationURL  = "onboarding.command.verification.open_url"
	TypeSetCredentials       = "onboarding.command.credentials.set"
	TypeRefreshCredentials   = "onboarding.command.credentials.refresh"
	TypeLogout               = "onboarding.command.credentials.logout"
	TypeExecuteAction        = "onboarding.command.action.execute"
	TypeRetryAction          = "onboarding.command.action.retry"
)

type DispatchWorkflowMessage struct {
	Action workflow.Action
}

func (DispatchWorkflowMessage) Type() string { return TypeDispatchWorkflow }

func (m DispatchWorkflowMessage) Validate() error {
	if m.Action == nil {
		return commandValidationError("action", "workflow action is required")
	}
	return commandWrapValidation(m.Action.Validate(), "command: invalid workflow action")
}

type SaveCheckpointMessage struct {
	Label string
}

func (SaveCheckpointMessage) Type() string { return TypeSaveCheckpoint }

func (m SaveCheckpointMessage) Validate() error {
	return validateLabel(m.Label)
}

type RestoreCheckpointMessage struct {
	Label string
}

func (RestoreCheckpointMessage) Type() string { return TypeRestoreCheckpoint }

func (m RestoreCheckpointMessage) Validate() error {
	return validateLabel(m.Label)
}

type InitiateVerificationMessage struct {
	SubjectID string
}

func (InitiateVerificationMessage) Type() string { return TypeInitiateVerification }

func (m InitiateVerificationMessage) Validate() error {
	return validateSubject(m.SubjectID)
}

type ResendVerificationMessage struct {
	SubjectID string
}

func (ResendVerificationMessage) Type() string { return TypeResendVerification }

func (m ResendVerificationMessage) Validate() error {
	return validateSubject(m.SubjectID)
}

type CancelVerificationMessage struct{}

func (CancelVerificationMessage) Type() string    { return TypeCancelVerification }
func (CancelVerificationMessage) Validate() error { return nil }

type OpenVerificationURLMessage struct{}

func (OpenVerificationURLMessage) Type() string    { return TypeOpenVerificationURL }
func (OpenVerificationURLMessage) Validate() error { return nil }

type SetCredentialsMessage struct {
	Pair credentials.Pair
}

func (SetCredentialsMessage) Type() string { return TypeSetCredentials }

func (m SetCredentialsMessage) Validate() error {
	if strings.TrimSpace(m.Pair.AccessToken) == "" {
		return commandValidationError("accessToken", "access token is required")
	}
	return nil
}

type RefreshCredentialsMessage struct{}

func (RefreshCredentialsMessage) Type() string    { return TypeRefreshCredentials }
func (RefreshCredentialsMessage) Validate() error { return nil }

type LogoutMessage struct{}

func (LogoutMessage) Type() string    { return TypeLogout }
func (LogoutMessage) Validate() error { return nil }

// ExecuteActionMessage runs Operation under ActionID. A positive Debounce
// coalesces calls arriving within the window.
type ExecuteActionMessage struct {
	ActionID  string
	Operation actions.Operation
	Debounce  time.Duration
	Apply     func()
	Revert    func()
}

func (ExecuteActionMessage) Type() string { return TypeExecuteAction }

func (m ExecuteActionMessage) Validate() error {
	if err := validateActionID(m.ActionID); err != nil {
		return err
	}
	if m.Operation == nil {
		return commandValidationError("operation", "operation is required")
	}
	if m.Debounce < 0 {
		return commandValidationError("debounce", "debounce must not be negative")
	}
	return nil
}

type RetryActionMessage struct {
	ActionID  string
	Operation actions.Operation
}

func (RetryActionMessage) Type() string { return TypeRetryAction }

func (m RetryActionMessage) Validate() error {
	if err := validateActionID(m.ActionID); err != nil {
		return err
	}
	if m.Operation == nil {
		return commandValidationError("operation", "operation is required")
	}
	return nil
}

func validateLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return commandValidationError("label", "checkpoint label is required")
	}
	return nil
}

func validateSubject(subjectID string) error {
	if strings.TrimSpace(subjectID) == "" {
		return commandValidationError("subjectId", "subject id is required")
	}
	return nil
}

func validateActionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return commandValidationError("actionId", "action id is required")
	}
	return nil
}
