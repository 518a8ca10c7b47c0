package workflow

import "strings"

// Reduce applies action to state and returns the next state. It never
// mutates its input. Invalid actions leave the state unchanged.
func Reduce(state State, action Action) State {
	next := state.Clone()
	if action == nil || action.Validate() != nil {
		return next
	}

	switch a := action.(type) {
	case SetField:
		applyField(&next.Data, a)
	case MarkVerified:
		applyFlag(&next.Data, a.Flag)
		delete(next.ValidationErrors, string(a.Flag))
	case Advance:
		if next.CurrentStep.IsTerminal() {
			return next
		}
		target := next.CurrentStep.Next()
		if !CanAdvanceTo(next, target) {
			return next
		}
		next.CompletedSteps.Add(next.CurrentStep)
		next.CurrentStep = target
	case SetStep:
		next.CurrentStep = a.Step
	case SetValidationError:
		next.ValidationErrors[strings.TrimSpace(a.Field)] = a.Message
	case ClearValidationError:
		field := strings.TrimSpace(a.Field)
		if field == "" {
			next.ValidationErrors = map[string]string{}
		} else {
			delete(next.ValidationErrors, field)
		}
	case SetLoading:
		next.IsLoading = a.Loading
	case Reset:
		return InitialState()
	}
	return next
}

func applyField(data *Data, action SetField) {
	switch action.Field {
	case FieldBusinessCategory:
		data.BusinessCategory = strings.TrimSpace(action.Value.(string))
	case FieldPhoneNumber:
		data.PhoneNumber = strings.TrimSpace(action.Value.(string))
	case FieldNationalID:
		data.NationalID = strings.TrimSpace(action.Value.(string))
	case FieldVerificationRequestID:
		data.VerificationRequestID = strings.TrimSpace(action.Value.(string))
	case FieldVerificationStatus:
		status, _ := verificationStatusValue(action.Value)
		data.VerificationStatus = status
	case FieldBusinessProfile:
		profile, _ := businessProfileValue(action.Value)
		data.BusinessProfile = profile
	}
}

func applyFlag(data *Data, flag Flag) {
	switch flag {
	case FlagOTPVerified:
		data.OTPVerified = true
	case FlagIDVerified:
		data.IDVerified = true
	case FlagCRVerified:
		data.CRVerified = true
	case FlagPasswordSet:
		data.PasswordSet = true
	}
}
