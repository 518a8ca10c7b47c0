// Package onboarding is the client side core of the merchant onboarding
// wizard: the step workflow, the identity verification session, the
// credential lifecycle and the action and timer plumbing around them.
package onboarding

import (
	"github.com/goliatone/go-onboarding/core"
	"github.com/goliatone/go-onboarding/workflow"
)

type Config = core.Config

type Step = workflow.Step

type State = workflow.State

type Action = workflow.Action

func DefaultConfig() Config {
	return core.DefaultConfig()
}
