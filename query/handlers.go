package query

import (
	"context"

	"github.com/goliatone/go-onboarding/actions"
	"github.com/goliatone/go-onboarding/verification"
	"github.com/goliatone/go-onboarding/workflow"
)

type WorkflowReader interface {
	State() workflow.State
	Checkpoints(ctx context.Context) ([]string, error)
}

type RouteChecker interface {
	Check(step workflow.Step) workflow.Decision
	CheckPath(path string) (workflow.Decision, bool)
}

type VerificationReader interface {
	Session() (verification.Session, bool)
}

type ActionReader interface {
	Status(id string) actions.Status
	IsAnyPending() bool
}

type AuthenticationReader interface {
	IsAuthenticated() bool
}

type TimerReader interface {
	Active() []string
}

// SessionView reports the active verification session, if any.
type SessionView struct {
	Active  bool
	Session verification.Session
}

type WorkflowStateQuery struct {
	reader WorkflowReader
}

func NewWorkflowStateQuery(reader WorkflowReader) *WorkflowStateQuery {
	return &WorkflowStateQuery{reader: reader}
}

func (q *WorkflowStateQuery) Query(_ context.Context, msg WorkflowStateMessage) (workflow.State, error) {
	if q == nil || q.reader == nil {
		return workflow.State{}, queryDependencyError("query: workflow reader is required")
	}
	if err := msg.Validate(); err != nil {
		return workflow.State{}, err
	}
	return q.reader.State(), nil
}

type CanAdvanceQuery struct {
	reader WorkflowReader
}

func NewCanAdvanceQuery(reader WorkflowReader) *CanAdvanceQuery {
	return &CanAdvanceQuery{reader: reader}
}

func (q *CanAdvanceQuery) Query(_ context.Context, msg CanAdvanceMessage) (bool, error) {
	if q == nil || q.reader == nil {
		return false, queryDependencyError("query: workflow reader is required")
	}
	if err := msg.Validate(); err != nil {
		return false, err
	}
	step, _ := workflow.ParseStep(string(msg.Step))
	return workflow.CanAdvanceTo(q.reader.State(), step), nil
}

type RouteDecisionQuery struct {
	guard RouteChecker
}

func NewRouteDecisionQuery(guard RouteChecker) *RouteDecisionQuery {
	return &RouteDecisionQuery{guard: guard}
}

func (q *RouteDecisionQuery) Query(_ context.Context, msg RouteDecisionMessage) (workflow.Decision, error) {
	if q == nil || q.guard == nil {
		return workflow.Decision{}, queryDependencyError("query: route guard is required")
	}
	if err := msg.Validate(); err != nil {
		return workflow.Decision{}, err
	}
	if msg.Path != "" {
		decision, ok := q.guard.CheckPath(msg.Path)
		if !ok {
			return workflow.Decision{}, queryInvalidInputError("query: path is not a workflow route: " + msg.Path)
		}
		return decision, nil
	}
	step, ok := workflow.ParseStep(string(msg.Step))
	if !ok {
		return workflow.Decision{}, queryInvalidInputError("query: unknown step " + string(msg.Step))
	}
	return q.guard.Check(step), nil
}

type ListCheckpointsQuery struct {
	reader WorkflowReader
}

func NewListCheckpointsQuery(reader WorkflowReader) *ListCheckpointsQuery {
	return &ListCheckpointsQuery{reader: reader}
}

func (q *ListCheckpointsQuery) Query(ctx context.Context, msg ListCheckpointsMessage) ([]string, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: workflow reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.Checkpoints(ctx)
}

type VerificationSessionQuery struct {
	reader VerificationReader
}

func NewVerificationSessionQuery(reader VerificationReader) *VerificationSessionQuery {
	return &VerificationSessionQuery{reader: reader}
}

func (q *VerificationSessionQuery) Query(_ context.Context, msg VerificationSessionMessage) (SessionView, error) {
	if q == nil || q.reader == nil {
		return SessionView{}, queryDependencyError("query: verification reader is required")
	}
	if err := msg.Validate(); err != nil {
		return SessionView{}, err
	}
	session, ok := q.reader.Session()
	return SessionView{Active: ok, Session: session}, nil
}

type ActionStatusQuery struct {
	reader ActionReader
}

func NewActionStatusQuery(reader ActionReader) *ActionStatusQuery {
	return &ActionStatusQuery{reader: reader}
}

func (q *ActionStatusQuery) Query(_ context.Context, msg ActionStatusMessage) (actions.Status, error) {
	if q == nil || q.reader == nil {
		return actions.Status{}, queryDependencyError("query: action reader is required")
	}
	if err := msg.Validate(); err != nil {
		return actions.Status{}, err
	}
	return q.reader.Status(msg.ActionID), nil
}

type AnyActionPendingQuery struct {
	reader ActionReader
}

func NewAnyActionPendingQuery(reader ActionReader) *AnyActionPendingQuery {
	return &AnyActionPendingQuery{reader: reader}
}

func (q *AnyActionPendingQuery) Query(_ context.Context, msg AnyActionPendingMessage) (bool, error) {
	if q == nil || q.reader == nil {
		return false, queryDependencyError("query: action reader is required")
	}
	if err := msg.Validate(); err != nil {
		return false, err
	}
	return q.reader.IsAnyPending(), nil
}

type AuthenticationQuery struct {
	reader AuthenticationReader
}

func NewAuthenticationQuery(reader AuthenticationReader) *AuthenticationQuery {
	return &AuthenticationQuery{reader: reader}
}

func (q *AuthenticationQuery) Query(_ context.Context, msg AuthenticationMessage) (bool, error) {
	if q == nil || q.reader == nil {
		return false, queryDependencyError("query: authentication reader is required")
	}
	if err := msg.Validate(); err != nil {
		return false, err
	}
	return q.reader.IsAuthenticated(), nil
}

type ActiveTimersQuery struct {
	reader TimerReader
}

func NewActiveTimersQuery(reader TimerReader) *ActiveTimersQuery {
	return &ActiveTimersQuery{reader: reader}
}

func (q *ActiveTimersQuery) Query(_ context.Context, msg ActiveTimersMessage) ([]string, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: timer reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.Active(), nil
}
