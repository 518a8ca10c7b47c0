package workflow

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-onboarding/core"
)

const (
	TypeSetField             = "onboarding.workflow.set_field"
	TypeMarkVerified         = "onboarding.workflow.mark_verified"
	TypeAdvance              = "onboarding.workflow.advance"
	TypeSetStep              = "onboarding.workflow.set_step"
	TypeSetValidationError   = "onboarding.workflow.validation_error.set"
	TypeClearValidationError = "onboarding.workflow.validation_error.clear"
	TypeSetLoading           = "onboarding.workflow.set_loading"
	TypeReset                = "onboarding.workflow.reset"
)

// Action is the closed set of state transitions accepted by Reduce.
type Action interface {
	Type() string
	Validate() error
	isAction()
}

type Field string

const (
	FieldBusinessCategory      Field = "businessCategory"
	FieldPhoneNumber           Field = "phoneNumber"
	FieldNationalID            Field = "nationalId"
	FieldVerificationStatus    Field = "verificationStatus"
	FieldVerificationRequestID Field = "verificationRequestId"
	FieldBusinessProfile       Field = "businessProfile"
)

type Flag string

const (
	FlagOTPVerified Flag = "otpVerified"
	FlagIDVerified  Flag = "idVerified"
	FlagCRVerified  Flag = "crVerified"
	FlagPasswordSet Flag = "passwordSet"
)

// SetField stores a collected value. Value must be a string, except for
// FieldVerificationStatus (core.VerificationStatus or string) and
// FieldBusinessProfile (BusinessProfile, *BusinessProfile or nil).
type SetField struct {
	Field Field
	Value any
}

func (SetField) Type() string { return TypeSetField }
func (SetField) isAction()    {}

func (a SetField) Validate() error {
	switch a.Field {
	case FieldBusinessCategory, FieldPhoneNumber, FieldNationalID, FieldVerificationRequestID:
		if _, ok := a.Value.(string); !ok {
			return core.NewValidationError(string(a.Field), "value must be a string")
		}
	case FieldVerificationStatus:
		if _, ok := verificationStatusValue(a.Value); !ok {
			return core.NewValidationError(string(a.Field), "value must be a known verification status")
		}
	case FieldBusinessProfile:
		if _, ok := businessProfileValue(a.Value); !ok {
			return core.NewValidationError(string(a.Field), "value must be a business profile")
		}
	default:
		return core.NewBadInputError(fmt.Sprintf("workflow: unknown field %q", a.Field))
	}
	return nil
}

// MarkVerified sets a verification flag and clears the validation error
// recorded under the flag name.
type MarkVerified struct {
	Flag Flag
}

func (MarkVerified) Type() string { return TypeMarkVerified }
func (MarkVerified) isAction()    {}

func (a MarkVerified) Validate() error {
	switch a.Flag {
	case FlagOTPVerified, FlagIDVerified, FlagCRVerified, FlagPasswordSet:
		return nil
	default:
		return core.NewBadInputError(fmt.Sprintf("workflow: unknown flag %q", a.Flag))
	}
}

// Advance completes the current step and moves to the next one, provided
// the next step's guard passes.
type Advance struct{}

func (Advance) Type() string    { return TypeAdvance }
func (Advance) isAction()       {}
func (Advance) Validate() error { return nil }

type SetStep struct {
	Step Step
}

func (SetStep) Type() string { return TypeSetStep }
func (SetStep) isAction()    {}

func (a SetStep) Validate() error {
	if !a.Step.Valid() {
		return core.NewBadInputError(fmt.Sprintf("workflow: unknown step %q", a.Step))
	}
	return nil
}

type SetValidationError struct {
	Field   string
	Message string
}

func (SetValidationError) Type() string { return TypeSetValidationError }
func (SetValidationError) isAction()    {}

func (a SetValidationError) Validate() error {
	if strings.TrimSpace(a.Field) == "" {
		return core.NewBadInputError("workflow: validation error field is required")
	}
	if strings.TrimSpace(a.Message) == "" {
		return core.NewBadInputError("workflow: validation error message is required")
	}
	return nil
}

// ClearValidationError removes the error for Field, or every error when
// Field is empty.
type ClearValidationError struct {
	Field string
}

func (ClearValidationError) Type() string    { return TypeClearValidationError }
func (ClearValidationError) isAction()       {}
func (ClearValidationError) Validate() error { return nil }

type SetLoading struct {
	Loading bool
}

func (SetLoading) Type() string    { return TypeSetLoading }
func (SetLoading) isAction()       {}
func (SetLoading) Validate() error { return nil }

type Reset struct{}

func (Reset) Type() string    { return TypeReset }
func (Reset) isAction()       {}
func (Reset) Validate() error { return nil }

func verificationStatusValue(value any) (core.VerificationStatus, bool) {
	switch typed := value.(type) {
	case core.VerificationStatus:
		return typed, typed.Valid()
	case string:
		return core.ParseVerificationStatus(typed)
	default:
		return "", false
	}
}

func businessProfileValue(value any) (*BusinessProfile, bool) {
	switch typed := value.(type) {
	case nil:
		return nil, true
	case BusinessProfile:
		return &typed, true
	case *BusinessProfile:
		if typed == nil {
			return nil, true
		}
		profile := *typed
		return &profile, true
	default:
		return nil, false
	}
}
