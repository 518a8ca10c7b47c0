package workflow

import (
	"sort"
	"strings"
)

type Step string

const (
	StepBusinessCategory     Step = "business-category"
	StepPhoneNumber          Step = "phone-number"
	StepOTPVerification      Step = "otp-verification"
	StepIdentityNumber       Step = "identity-number"
	StepIdentityVerification Step = "identity-verification"
	StepKYB                  Step = "kyb"
	StepPassword             Step = "password"
	StepDone                 Step = "done"

	// StepGlobalScreening is reachable by route only. It is not part of the
	// ordered sequence and shares the KYB guard.
	StepGlobalScreening Step = "global-screening"
)

var order = []Step{
	StepBusinessCategory,
	StepPhoneNumber,
	StepOTPVerification,
	StepIdentityNumber,
	StepIdentityVerification,
	StepKYB,
	StepPassword,
	StepDone,
}

// Steps returns the fixed step order, ending with the terminal done step.
func Steps() []Step {
	return append([]Step(nil), order...)
}

func FirstStep() Step {
	return order[0]
}

// Index returns the position of step in the order, or -1 for route only and
// unknown steps.
func (s Step) Index() int {
	for i, candidate := range order {
		if candidate == s {
			return i
		}
	}
	return -1
}

func (s Step) Valid() bool {
	return s.Index() >= 0
}

func (s Step) IsTerminal() bool {
	return s == StepDone
}

// Next returns the step that follows s. Done is its own successor.
func (s Step) Next() Step {
	index := s.Index()
	if index < 0 || index+1 >= len(order) {
		return StepDone
	}
	return order[index+1]
}

func (s Step) String() string {
	return string(s)
}

func ParseStep(raw string) (Step, bool) {
	step := Step(strings.ToLower(strings.TrimSpace(raw)))
	if step == StepGlobalScreening {
		return step, true
	}
	return step, step.Valid()
}

// StepSet is an unordered set of steps. Its zero value is empty and
// read-only; use Add on a set created with NewStepSet.
type StepSet map[Step]struct{}

func NewStepSet(steps ...Step) StepSet {
	set := make(StepSet, len(steps))
	for _, step := range steps {
		set[step] = struct{}{}
	}
	return set
}

func (s StepSet) Add(step Step) {
	s[step] = struct{}{}
}

func (s StepSet) Has(step Step) bool {
	_, ok := s[step]
	return ok
}

func (s StepSet) Len() int {
	return len(s)
}

// List returns the members in step order.
func (s StepSet) List() []Step {
	out := make([]Step, 0, len(s))
	for step := range s {
		out = append(out, step)
	}
	sort.SliceStable(out, func(i, j int) bool {
		left, right := out[i].Index(), out[j].Index()
		if left != right {
			return left < right
		}
		return out[i] < out[j]
	})
	return out
}

func (s StepSet) Clone() StepSet {
	out := make(StepSet, len(s))
	for step := range s {
		out[step] = struct{}{}
	}
	return out
}

func (s StepSet) Equal(other StepSet) bool {
	if len(s) != len(other) {
		return false
	}
	for step := range s {
		if !other.Has(step) {
			return false
		}
	}
	return true
}
