// Package core holds the contracts shared by the onboarding components: the
// error envelope, configuration, logger and metrics contracts, transport
// contracts and typed observers. Component packages depend on core; core
// depends on none of them.
package core
