package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-onboarding/actions"
	"github.com/goliatone/go-onboarding/credentials"
	"github.com/goliatone/go-onboarding/timers"
	"github.com/goliatone/go-onboarding/verification"
	"github.com/goliatone/go-onboarding/workflow"
)

var (
	_ gocmd.Querier[WorkflowStateMessage, workflow.State]    = (*WorkflowStateQuery)(nil)
	_ gocmd.Querier[CanAdvanceMessage, bool]                 = (*CanAdvanceQuery)(nil)
	_ gocmd.Querier[RouteDecisionMessage, workflow.Decision] = (*RouteDecisionQuery)(nil)
	_ gocmd.Querier[ListCheckpointsMessage, []string]        = (*ListCheckpointsQuery)(nil)
	_ gocmd.Querier[VerificationSessionMessage, SessionView] = (*VerificationSessionQuery)(nil)
	_ gocmd.Querier[ActionStatusMessage, actions.Status]     = (*ActionStatusQuery)(nil)
	_ gocmd.Querier[AnyActionPendingMessage, bool]           = (*AnyActionPendingQuery)(nil)
	_ gocmd.Querier[AuthenticationMessage, bool]             = (*AuthenticationQuery)(nil)
	_ gocmd.Querier[ActiveTimersMessage, []string]           = (*ActiveTimersQuery)(nil)

	_ WorkflowReader       = (*workflow.Store)(nil)
	_ RouteChecker         = (*workflow.RouteGuard)(nil)
	_ VerificationReader   = (*verification.Manager)(nil)
	_ ActionReader         = (*actions.Coordinator)(nil)
	_ AuthenticationReader = (*credentials.Manager)(nil)
	_ TimerReader          = (*timers.Registry)(nil)
)
