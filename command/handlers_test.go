package command

import (
	"context"
	"errors"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-onboarding/actions"
	"github.com/goliatone/go-onboarding/clock"
	"github.com/goliatone/go-onboarding/core"
	"github.com/goliatone/go-onboarding/credentials"
	"github.com/goliatone/go-onboarding/verification"
	"github.com/goliatone/go-onboarding/workflow"
)

type stubVerificationService struct {
	initiated []string
	resent    []string
	cleanups  int
	opened    int
	err       error
}

func (s *stubVerificationService) Initiate(_ context.Context, subjectID string) (verification.Session, error) {
	s.initiated = append(s.initiated, subjectID)
	return verification.Session{RequestID: "req_1", SubjectID: subjectID}, s.err
}

func (s *stubVerificationService) Resend(_ context.Context, subjectID string) (verification.Session, error) {
	s.resent = append(s.resent, subjectID)
	return verification.Session{RequestID: "req_2", SubjectID: subjectID}, s.err
}

func (s *stubVerificationService) Cleanup() { s.cleanups++ }

func (s *stubVerificationService) OpenExternalURL(context.Context) error {
	s.opened++
	return s.err
}

type stubCredentialService struct {
	pair    credentials.Pair
	logouts int
	err     error
}

func (s *stubCredentialService) SetCredentials(_ context.Context, pair credentials.Pair) error {
	s.pair = pair
	return s.err
}

func (s *stubCredentialService) Refresh(context.Context) (credentials.Pair, error) {
	return credentials.Pair{AccessToken: "access-2", RefreshToken: "refresh-2"}, s.err
}

func (s *stubCredentialService) Logout(context.Context) core.LoggedOutEvent {
	s.logouts++
	return core.LoggedOutEvent{Reason: "logout"}
}

func TestDispatchWorkflowCommand_StoresResultingState(t *testing.T) {
	store := workflow.NewStore()
	cmd := NewDispatchWorkflowCommand(store)
	collector := gocmd.NewResult[workflow.State]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, DispatchWorkflowMessage{
		Action: workflow.SetField{Field: workflow.FieldBusinessCategory, Value: "retail"},
	})
	if err != nil {
		t.Fatalf("execute dispatch: %v", err)
	}
	state, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if state.Data.BusinessCategory != "retail" {
		t.Fatalf("unexpected state %+v", state.Data)
	}
}

func TestDispatchWorkflowMessage_ValidateReturnsRichError(t *testing.T) {
	err := DispatchWorkflowMessage{}.Validate()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation || rich.TextCode != core.ErrorBadInput {
		t.Fatalf("unexpected envelope %v/%s", rich.Category, rich.TextCode)
	}

	err = DispatchWorkflowMessage{Action: workflow.SetStep{Step: workflow.StepGlobalScreening}}.Validate()
	if err == nil || !goerrors.As(err, &rich) {
		t.Fatalf("expected wrapped validation error, got %v", err)
	}
}

func TestCheckpointCommands_SaveAndRestore(t *testing.T) {
	store := workflow.NewStore()
	ctx := context.Background()
	if _, err := store.Dispatch(ctx, workflow.SetField{Field: workflow.FieldBusinessCategory, Value: "retail"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := NewSaveCheckpointCommand(store).Execute(ctx, SaveCheckpointMessage{Label: "category"}); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}
	if _, err := store.Dispatch(ctx, workflow.Reset{}); err != nil {
		t.Fatalf("reset: %v", err)
	}

	collector := gocmd.NewResult[workflow.State]()
	err := NewRestoreCheckpointCommand(store).Execute(gocmd.ContextWithResult(ctx, collector), RestoreCheckpointMessage{Label: "category"})
	if err != nil {
		t.Fatalf("restore checkpoint: %v", err)
	}
	if state, _ := collector.Load(); state.Data.BusinessCategory != "retail" {
		t.Fatalf("unexpected restored state %+v", state.Data)
	}
	if err := NewSaveCheckpointCommand(store).Execute(ctx, SaveCheckpointMessage{}); err == nil {
		t.Fatalf("expected empty label to fail")
	}
}

func TestVerificationCommands_DelegateToService(t *testing.T) {
	svc := &stubVerificationService{}
	collector := gocmd.NewResult[verification.Session]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := NewInitiateVerificationCommand(svc).Execute(ctx, InitiateVerificationMessage{SubjectID: "1012345678"}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if session, _ := collector.Load(); session.RequestID != "req_1" {
		t.Fatalf("unexpected session %+v", session)
	}
	if err := NewResendVerificationCommand(svc).Execute(ctx, ResendVerificationMessage{SubjectID: "1012345678"}); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if err := NewCancelVerificationCommand(svc).Execute(ctx, CancelVerificationMessage{}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := NewOpenVerificationURLCommand(svc).Execute(ctx, OpenVerificationURLMessage{}); err != nil {
		t.Fatalf("open url: %v", err)
	}
	if len(svc.initiated) != 1 || len(svc.resent) != 1 || svc.cleanups != 1 || svc.opened != 1 {
		t.Fatalf("unexpected delegation %+v", svc)
	}
	if err := NewInitiateVerificationCommand(svc).Execute(ctx, InitiateVerificationMessage{}); err == nil {
		t.Fatalf("expected empty subject to fail")
	}
	if len(svc.initiated) != 1 {
		t.Fatalf("expected invalid message to stop before the service")
	}
}

func TestCredentialCommands_DelegateToService(t *testing.T) {
	svc := &stubCredentialService{}
	ctx := context.Background()

	if err := NewSetCredentialsCommand(svc).Execute(ctx, SetCredentialsMessage{Pair: credentials.Pair{AccessToken: "a", RefreshToken: "r"}}); err != nil {
		t.Fatalf("set credentials: %v", err)
	}
	if svc.pair.AccessToken != "a" {
		t.Fatalf("expected pair forwarded")
	}
	if err := NewSetCredentialsCommand(svc).Execute(ctx, SetCredentialsMessage{}); err == nil {
		t.Fatalf("expected empty access token to fail")
	}

	pairs := gocmd.NewResult[credentials.Pair]()
	if err := NewRefreshCredentialsCommand(svc).Execute(gocmd.ContextWithResult(ctx, pairs), RefreshCredentialsMessage{}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pair, _ := pairs.Load(); pair.AccessToken != "access-2" {
		t.Fatalf("unexpected refreshed pair %+v", pair)
	}

	events := gocmd.NewResult[core.LoggedOutEvent]()
	if err := NewLogoutCommand(svc).Execute(gocmd.ContextWithResult(ctx, events), LogoutMessage{}); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if event, ok := events.Load(); !ok || event.Reason != "logout" || svc.logouts != 1 {
		t.Fatalf("unexpected logout result %+v", event)
	}

	svc.err = errors.New("refresh rejected")
	if err := NewRefreshCredentialsCommand(svc).Execute(ctx, RefreshCredentialsMessage{}); err == nil {
		t.Fatalf("expected refresh error to propagate")
	}
}

func TestActionCommands_UseCoordinator(t *testing.T) {
	manual := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	coordinator := actions.NewCoordinator(actions.WithClock(manual))
	ctx := context.Background()

	var order []string
	err := NewExecuteActionCommand(coordinator).Execute(ctx, ExecuteActionMessage{
		ActionID:  "submit-phone",
		Operation: func(context.Context) error { order = append(order, "run"); return errors.New("rejected") },
		Apply:     func() { order = append(order, "apply") },
		Revert:    func() { order = append(order, "revert") },
	})
	if err == nil {
		t.Fatalf("expected operation error")
	}
	if len(order) != 3 || order[0] != "apply" || order[1] != "run" || order[2] != "revert" {
		t.Fatalf("unexpected order %v", order)
	}
	if status := coordinator.Status("submit-phone"); status.RetryCount != 1 {
		t.Fatalf("expected one recorded failure, got %+v", status)
	}

	err = NewRetryActionCommand(coordinator).Execute(ctx, RetryActionMessage{
		ActionID:  "submit-phone",
		Operation: func(context.Context) error { return nil },
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if status := coordinator.Status("submit-phone"); status.RetryCount != 0 {
		t.Fatalf("expected success to reset retries, got %+v", status)
	}

	if err := NewExecuteActionCommand(coordinator).Execute(ctx, ExecuteActionMessage{ActionID: "x"}); err == nil {
		t.Fatalf("expected missing operation to fail")
	}
}

func TestCommands_NilServiceReturnsRichError(t *testing.T) {
	var cmd *DispatchWorkflowCommand
	err := cmd.Execute(context.Background(), DispatchWorkflowMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %v", rich.Category)
	}
}
