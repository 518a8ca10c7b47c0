package query

import (
	"strings"

	"github.com/goliatone/go-onboarding/workflow"
)

const (
	TypeWorkflowState     = "onboarding.query.workflow.state"
	TypeCanAdvance        = "onboarding.query.workflow.can_advance"
	TypeRouteDecision     = "onboarding.query.workflow.route_decision"
	TypeListCheckpoints   = "onboarding.query.workflow.checkpoints"
	TypeVerificationState = "onboarding.query.verification.session"
	TypeActionStatus      = "onboarding.query.action.status"
	TypeAnyActionPending  = "onboarding.query.action.any_pending"
	TypeAuthentication    = "onboarding.query.credentials.authenticated"
	TypeActiveTimers      = "onboarding.query.timers.active"
)

type WorkflowStateMessage struct{}

func (WorkflowStateMessage) Type() string { return TypeWorkflowState }

func (WorkflowStateMessage) Validate() error { return nil }

type CanAdvanceMessage struct {
	Step workflow.Step
}

func (CanAdvanceMessage) Type() string { return TypeCanAdvance }

func (m CanAdvanceMessage) Validate() error {
	if strings.TrimSpace(string(m.Step)) == "" {
		return queryValidationError("step", "step is required")
	}
	if _, ok := workflow.ParseStep(string(m.Step)); !ok {
		return queryInvalidInputError("query: unknown step " + string(m.Step))
	}
	return nil
}

// RouteDecisionMessage asks the route guard about either a step or a path.
// Path wins when both are set.
type RouteDecisionMessage struct {
	Step workflow.Step
	Path string
}

func (RouteDecisionMessage) Type() string { return TypeRouteDecision }

func (m RouteDecisionMessage) Validate() error {
	if strings.TrimSpace(m.Path) == "" && strings.TrimSpace(string(m.Step)) == "" {
		return queryValidationError("path", "path or step is required")
	}
	return nil
}

type ListCheckpointsMessage struct{}

func (ListCheckpointsMessage) Type() string { return TypeListCheckpoints }

func (ListCheckpointsMessage) Validate() error { return nil }

type VerificationSessionMessage struct{}

func (VerificationSessionMessage) Type() string { return TypeVerificationState }

func (VerificationSessionMessage) Validate() error { return nil }

type ActionStatusMessage struct {
	ActionID string
}

func (ActionStatusMessage) Type() string { return TypeActionStatus }

func (m ActionStatusMessage) Validate() error {
	if strings.TrimSpace(m.ActionID) == "" {
		return queryValidationError("action_id", "action id is required")
	}
	return nil
}

type AnyActionPendingMessage struct{}

func (AnyActionPendingMessage) Type() string { return TypeAnyActionPending }

func (AnyActionPendingMessage) Validate() error { return nil }

type AuthenticationMessage struct{}

func (AuthenticationMessage) Type() string { return TypeAuthentication }

func (AuthenticationMessage) Validate() error { return nil }

type ActiveTimersMessage struct{}

func (ActiveTimersMessage) Type() string { return TypeActiveTimers }

func (ActiveTimersMessage) Validate() error { return nil }
