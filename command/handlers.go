package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-onboarding/actions"
	"github.com/goliatone/go-onboarding/core"
	"github.com/goliatone/go-onboarding/credentials"
	"github.com/goliatone/go-onboarding/verification"
	"github.com/goliatone/go-onboarding/workflow"
)

type WorkflowService interface {
	Dispatch(ctx context.Context, action workflow.Action) (workflow.State, error)
	Checkpoint(ctx context.Context, label string) error
	RestoreCheckpoint(ctx context.Context, label string) (workflow.State, error)
}

type VerificationService interface {
	Initiate(ctx context.Context, subjectID string) (verification.Session, error)
	Resend(ctx context.Context, subjectID string) (verification.Session, error)
	Cleanup()
	OpenExternalURL(ctx context.Context) error
}

type CredentialService interface {
	SetCredentials(ctx context.Context, pair credentials.Pair) error
	Refresh(ctx context.Context) (credentials.Pair, error)
	Logout(ctx context.Context) core.LoggedOutEvent
}

type ActionService interface {
	Execute(ctx context.Context, id string, op actions.Operation, opts ...actions.ExecuteOption) error
	Retry(ctx context.Context, id string, op actions.Operation) error
}

type DispatchWorkflowCommand struct {
	service WorkflowService
}

func NewDispatchWorkflowCommand(service WorkflowService) *DispatchWorkflowCommand {
	return &DispatchWorkflowCommand{service: service}
}

func (c *DispatchWorkflowCommand) Execute(ctx context.Context, msg DispatchWorkflowMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: workflow service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	state, err := c.service.Dispatch(ctx, msg.Action)
	if err != nil {
		return err
	}
	storeResult(ctx, state)
	return nil
}

type SaveCheckpointCommand struct {
	service WorkflowService
}

func NewSaveCheckpointCommand(service WorkflowService) *SaveCheckpointCommand {
	return &SaveCheckpointCommand{service: service}
}

func (c *SaveCheckpointCommand) Execute(ctx context.Context, msg SaveCheckpointMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: workflow service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.Checkpoint(ctx, msg.Label)
}

type RestoreCheckpointCommand struct {
	service WorkflowService
}

func NewRestoreCheckpointCommand(service WorkflowService) *RestoreCheckpointCommand {
	return &RestoreCheckpointCommand{service: service}
}

func (c *RestoreCheckpointCommand) Execute(ctx context.Context, msg RestoreCheckpointMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: workflow service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	state, err := c.service.RestoreCheckpoint(ctx, msg.Label)
	if err != nil {
		return err
	}
	storeResult(ctx, state)
	return nil
}

type InitiateVerificationCommand struct {
	service VerificationService
}

func NewInitiateVerificationCommand(service VerificationService) *InitiateVerificationCommand {
	return &InitiateVerificationCommand{service: service}
}

func (c *InitiateVerificationCommand) Execute(ctx context.Context, msg InitiateVerificationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: verification service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	session, err := c.service.Initiate(ctx, msg.SubjectID)
	if err != nil {
		return err
	}
	storeResult(ctx, session)
	return nil
}

type ResendVerificationCommand struct {
	service VerificationService
}

func NewResendVerificationCommand(service VerificationService) *ResendVerificationCommand {
	return &ResendVerificationCommand{service: service}
}

func (c *ResendVerificationCommand) Execute(ctx context.Context, msg ResendVerificationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: verification service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	session, err := c.service.Resend(ctx, msg.SubjectID)
	if err != nil {
		return err
	}
	storeResult(ctx, session)
	return nil
}

type CancelVerificationCommand struct {
	service VerificationService
}

func NewCancelVerificationCommand(service VerificationService) *CancelVerificationCommand {
	return &CancelVerificationCommand{service: service}
}

func (c *CancelVerificationCommand) Execute(_ context.Context, _ CancelVerificationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: verification service is required")
	}
	c.service.Cleanup()
	return nil
}

type OpenVerificationURLCommand struct {
	service VerificationService
}

func NewOpenVerificationURLCommand(service VerificationService) *OpenVerificationURLCommand {
	return &OpenVerificationURLCommand{service: service}
}

func (c *OpenVerificationURLCommand) Execute(ctx context.Context, _ OpenVerificationURLMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: verification service is required")
	}
	return c.service.OpenExternalURL(ctx)
}

type SetCredentialsCommand struct {
	service CredentialService
}

func NewSetCredentialsCommand(service CredentialService) *SetCredentialsCommand {
	return &SetCredentialsCommand{service: service}
}

func (c *SetCredentialsCommand) Execute(ctx context.Context, msg SetCredentialsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.SetCredentials(ctx, msg.Pair)
}

type RefreshCredentialsCommand struct {
	service CredentialService
}

func NewRefreshCredentialsCommand(service CredentialService) *RefreshCredentialsCommand {
	return &RefreshCredentialsCommand{service: service}
}

func (c *RefreshCredentialsCommand) Execute(ctx context.Context, _ RefreshCredentialsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	pair, err := c.service.Refresh(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, pair)
	return nil
}

type LogoutCommand struct {
	service CredentialService
}

func NewLogoutCommand(service CredentialService) *LogoutCommand {
	return &LogoutCommand{service: service}
}

func (c *LogoutCommand) Execute(ctx context.Context, _ LogoutMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	storeResult(ctx, c.service.Logout(ctx))
	return nil
}

type ExecuteActionCommand struct {
	service ActionService
}

func NewExecuteActionCommand(service ActionService) *ExecuteActionCommand {
	return &ExecuteActionCommand{service: service}
}

func (c *ExecuteActionCommand) Execute(ctx context.Context, msg ExecuteActionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: action service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	var opts []actions.ExecuteOption
	if msg.Debounce > 0 {
		opts = append(opts, actions.Debounce(msg.Debounce))
	}
	if msg.Apply != nil || msg.Revert != nil {
		opts = append(opts, actions.Optimistic(msg.Apply, msg.Revert))
	}
	return c.service.Execute(ctx, msg.ActionID, msg.Operation, opts...)
}

type RetryActionCommand struct {
	service ActionService
}

func NewRetryActionCommand(service ActionService) *RetryActionCommand {
	return &RetryActionCommand{service: service}
}

func (c *RetryActionCommand) Execute(ctx context.Context, msg RetryActionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: action service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.Retry(ctx, msg.ActionID, msg.Operation)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
