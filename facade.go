package onboarding

import (
	"fmt"

	onboardingcommand "github.com/goliatone/go-onboarding/command"
	onboardingquery "github.com/goliatone/go-onboarding/query"
)

type WorkflowService interface {
	onboardingcommand.WorkflowService
	onboardingquery.WorkflowReader
}

type VerificationService interface {
	onboardingcommand.VerificationService
	onboardingquery.VerificationReader
}

type CredentialService interface {
	onboardingcommand.CredentialService
	onboardingquery.AuthenticationReader
}

type ActionService interface {
	onboardingcommand.ActionService
	onboardingquery.ActionReader
}

// FacadeDependencies lists the services the command and query handlers
// delegate to. Only Workflow is required; handlers for a missing service
// report a dependency error when executed.
type FacadeDependencies struct {
	Workflow     WorkflowService
	Guard        onboardingquery.RouteChecker
	Verification VerificationService
	Credentials  CredentialService
	Actions      ActionService
	Timers       onboardingquery.TimerReader
}

type Commands struct {
	DispatchWorkflow     *onboardingcommand.DispatchWorkflowCommand
	SaveCheckpoint       *onboardingcommand.SaveCheckpointCommand
	RestoreCheckpoint    *onboardingcommand.RestoreCheckpointCommand
	InitiateVerification *onboardingcommand.InitiateVerificationCommand
	ResendVerification   *onboardingcommand.ResendVerificationCommand
	CancelVerification   *onboardingcommand.CancelVerificationCommand
	OpenVerificationURL  *onboardingcommand.OpenVerificationURLCommand
	SetCredentials       *onboardingcommand.SetCredentialsCommand
	RefreshCredentials   *onboardingcommand.RefreshCredentialsCommand
	Logout               *onboardingcommand.LogoutCommand
	ExecuteAction        *onboardingcommand.ExecuteActionCommand
	RetryAction          *onboardingcommand.RetryActionCommand
}

type Queries struct {
	WorkflowState       *onboardingquery.WorkflowStateQuery
	CanAdvance          *onboardingquery.CanAdvanceQuery
	RouteDecision       *onboardingquery.RouteDecisionQuery
	ListCheckpoints     *onboardingquery.ListCheckpointsQuery
	VerificationSession *onboardingquery.VerificationSessionQuery
	ActionStatus        *onboardingquery.ActionStatusQuery
	AnyActionPending    *onboardingquery.AnyActionPendingQuery
	Authentication      *onboardingquery.AuthenticationQuery
	ActiveTimers        *onboardingquery.ActiveTimersQuery
}

type Facade struct {
	commands Commands
	queries  Queries
}

func NewFacade(deps FacadeDependencies) (*Facade, error) {
	if deps.Workflow == nil {
		return nil, fmt.Errorf("onboarding: workflow service is required")
	}

	facade := &Facade{}
	facade.commands = Commands{
		DispatchWorkflow:  onboardingcommand.NewDispatchWorkflowCommand(deps.Workflow),
		SaveCheckpoint:    onboardingcommand.NewSaveCheckpointCommand(deps.Workflow),
		RestoreCheckpoint: onboardingcommand.NewRestoreCheckpointCommand(deps.Workflow),
		ExecuteAction:     onboardingcommand.NewExecuteActionCommand(deps.Actions),
		RetryAction:       onboardingcommand.NewRetryActionCommand(deps.Actions),
	}
	facade.queries = Queries{
		WorkflowState:    onboardingquery.NewWorkflowStateQuery(deps.Workflow),
		CanAdvance:       onboardingquery.NewCanAdvanceQuery(deps.Workflow),
		ListCheckpoints:  onboardingquery.NewListCheckpointsQuery(deps.Workflow),
		ActionStatus:     onboardingquery.NewActionStatusQuery(deps.Actions),
		AnyActionPending: onboardingquery.NewAnyActionPendingQuery(deps.Actions),
	}
	if deps.Guard != nil {
		facade.queries.RouteDecision = onboardingquery.NewRouteDecisionQuery(deps.Guard)
	}
	if deps.Verification != nil {
		facade.commands.InitiateVerification = onboardingcommand.NewInitiateVerificationCommand(deps.Verification)
		facade.commands.ResendVerification = onboardingcommand.NewResendVerificationCommand(deps.Verification)
		facade.commands.CancelVerification = onboardingcommand.NewCancelVerificationCommand(deps.Verification)
		facade.commands.OpenVerificationURL = onboardingcommand.NewOpenVerificationURLCommand(deps.Verification)
		facade.queries.VerificationSession = onboardingquery.NewVerificationSessionQuery(deps.Verification)
	}
	if deps.Credentials != nil {
		facade.commands.SetCredentials = onboardingcommand.NewSetCredentialsCommand(deps.Credentials)
		facade.commands.RefreshCredentials = onboardingcommand.NewRefreshCredentialsCommand(deps.Credentials)
		facade.commands.Logout = onboardingcommand.NewLogoutCommand(deps.Credentials)
		facade.queries.Authentication = onboardingquery.NewAuthenticationQuery(deps.Credentials)
	}
	if deps.Timers != nil {
		facade.queries.ActiveTimers = onboardingquery.NewActiveTimersQuery(deps.Timers)
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}
