package workflow

import (
	"strings"

	"github.com/goliatone/go-onboarding/core"
)

type guard func(Data) bool

// Each guard checks only its own step's precondition.
var guards = map[Step]guard{
	StepBusinessCategory: func(Data) bool { return true },
	StepPhoneNumber: func(d Data) bool {
		return strings.TrimSpace(d.BusinessCategory) != ""
	},
	StepOTPVerification: func(d Data) bool {
		return strings.TrimSpace(d.PhoneNumber) != ""
	},
	StepIdentityNumber:       func(d Data) bool { return d.OTPVerified },
	StepIdentityVerification: func(d Data) bool { return d.IDVerified },
	StepKYB:                  kybGuard,
	StepGlobalScreening:      kybGuard,
	StepPassword: func(d Data) bool {
		return d.CRVerified && d.BusinessProfile != nil
	},
	StepDone: func(d Data) bool { return d.PasswordSet },
}

func kybGuard(d Data) bool {
	return d.VerificationStatus == core.VerificationStatusReceived
}

// CanAdvanceTo reports whether the precondition of target holds for state.
// Unknown steps never pass.
func CanAdvanceTo(state State, target Step) bool {
	check, ok := guards[target]
	if !ok {
		return false
	}
	return check(state.Data)
}

// FurthestAccessible scans the step order from the end and returns the first
// step whose guard passes. The first step always passes.
func FurthestAccessible(state State) Step {
	for i := len(order) - 1; i >= 0; i-- {
		if CanAdvanceTo(state, order[i]) {
			return order[i]
		}
	}
	return FirstStep()
}
