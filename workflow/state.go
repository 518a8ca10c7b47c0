package workflow

import "github.com/goliatone/go-onboarding/core"

// BusinessProfile is the commercial registration record returned by the KYB
// lookup.
type BusinessProfile struct {
	CRNumber     string `json:"crNumber"`
	LegalName    string `json:"legalName"`
	TradeName    string `json:"tradeName,omitempty"`
	Activity     string `json:"activity,omitempty"`
	City         string `json:"city,omitempty"`
	OwnerIDMatch bool   `json:"ownerIdMatch"`
}

// Data holds the facts accumulated across steps.
type Data struct {
	BusinessCategory      string                  `json:"businessCategory,omitempty"`
	PhoneNumber           string                  `json:"phoneNumber,omitempty"`
	NationalID            string                  `json:"nationalId,omitempty"`
	OTPVerified           bool                    `json:"otpVerified"`
	IDVerified            bool                    `json:"idVerified"`
	CRVerified            bool                    `json:"crVerified"`
	VerificationStatus    core.VerificationStatus `json:"verificationStatus,omitempty"`
	VerificationRequestID string                  `json:"verificationRequestId,omitempty"`
	BusinessProfile       *BusinessProfile        `json:"businessProfile,omitempty"`
	PasswordSet           bool                    `json:"passwordSet"`
}

func (d Data) Clone() Data {
	out := d
	if d.BusinessProfile != nil {
		profile := *d.BusinessProfile
		out.BusinessProfile = &profile
	}
	return out
}

type State struct {
	CurrentStep      Step
	CompletedSteps   StepSet
	Data             Data
	ValidationErrors map[string]string
	IsLoading        bool
}

func InitialState() State {
	return State{
		CurrentStep:      FirstStep(),
		CompletedSteps:   NewStepSet(),
		ValidationErrors: map[string]string{},
	}
}

// Clone returns a deep copy so readers never share maps with the store.
func (s State) Clone() State {
	out := s
	out.CompletedSteps = s.CompletedSteps.Clone()
	out.Data = s.Data.Clone()
	out.ValidationErrors = make(map[string]string, len(s.ValidationErrors))
	for field, message := range s.ValidationErrors {
		out.ValidationErrors[field] = message
	}
	return out
}

func (s State) IsComplete(step Step) bool {
	return s.CompletedSteps.Has(step)
}
