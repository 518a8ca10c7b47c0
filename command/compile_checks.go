package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-onboarding/actions"
	"github.com/goliatone/go-onboarding/credentials"
	"github.com/goliatone/go-onboarding/verification"
	"github.com/goliatone/go-onboarding/workflow"
)

var (
	_ gocmd.Commander[DispatchWorkflowMessage]     = (*DispatchWorkflowCommand)(nil)
	_ gocmd.Commander[SaveCheckpointMessage]       = (*SaveCheckpointCommand)(nil)
	_ gocmd.Commander[RestoreCheckpointMessage]    = (*RestoreCheckpointCommand)(nil)
	_ gocmd.Commander[InitiateVerificationMessage] = (*InitiateVerificationCommand)(nil)
	_ gocmd.Commander[ResendVerificationMessage]   = (*ResendVerificationCommand)(nil)
	_ gocmd.Commander[CancelVerificationMessage]   = (*CancelVerificationCommand)(nil)
	_ gocmd.Commander[OpenVerificationURLMessage]  = (*OpenVerificationURLCommand)(nil)
	_ gocmd.Commander[SetCredentialsMessage]       = (*SetCredentialsCommand)(nil)
	_ gocmd.Commander[RefreshCredentialsMessage]   = (*RefreshCredentialsCommand)(nil)
	_ gocmd.Commander[LogoutMessage]               = (*LogoutCommand)(nil)
	_ gocmd.Commander[ExecuteActionMessage]        = (*ExecuteActionCommand)(nil)
	_ gocmd.Commander[RetryActionMessage]          = (*RetryActionCommand)(nil)

	_ WorkflowService     = (*workflow.Store)(nil)
	_ VerificationService = (*verification.Manager)(nil)
	_ CredentialService   = (*credentials.Manager)(nil)
	_ ActionService       = (*actions.Coordinator)(nil)
)
