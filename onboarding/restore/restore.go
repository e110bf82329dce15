// Package restore is the restore-wallet flow. It lets the user pick a restore
// method, runs the matching child flow and finishes with security setup.
//
// Child flows are embedded in the parent's states. While a child runs, the
// parent only forwards its events; once the child finishes, its result is
// lifted into the next parent state and the finished child state is dropped.
package restore

import (
	"context"

	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/onboarding/restore/custom"
	"github.com/keyapp-labs/flowkit/onboarding/restore/icloud"
	"github.com/keyapp-labs/flowkit/onboarding/restore/seed"
	"github.com/keyapp-labs/flowkit/onboarding/restore/social"
	"github.com/keyapp-labs/flowkit/onboarding/securitysetup"
	"github.com/keyapp-labs/flowkit/optional"
	"github.com/keyapp-labs/flowkit/statemachine"
)

// FlowName labels restore machines in logs, spans and metrics.
const FlowName = "restore"

// Stages of the flow, in progress order.
const (
	StageRestore statemachine.Stage = iota + 1
	StageICloud
	StageSeed
	StageSocialBeforeCustom
	StageCustom
	StageSocialAfterCustom
	StageSecuritySetup
	StageFinished
)

// Container holds every collaborator the flow and its children need.
// DeviceShare is the share stored on this device, if any.
type Container struct {
	TKey        onboarding.TKeyFacade
	APIGateway  onboarding.APIGatewayClient
	Auth        onboarding.SocialAuthService
	Keys        onboarding.KeyService
	ICloud      onboarding.ICloudAccountProvider
	Biometry    onboarding.Biometry
	DeviceShare optional.Value[string]
	Clock       onboarding.Clock
}

func (c Container) icloud() icloud.Container {
	return icloud.Container{Accounts: c.ICloud}
}

func (c Container) social(option social.Option) social.Container {
	return social.Container{Option: option, TKey: c.TKey, Auth: c.Auth}
}

func (c Container) custom() custom.Container {
	return custom.Container{
		TKey:        c.TKey,
		APIGateway:  c.APIGateway,
		Auth:        c.Auth,
		Keys:        c.Keys,
		DeviceShare: c.DeviceShare,
		Clock:       c.Clock,
	}
}

func (c Container) security() securitysetup.Container {
	return securitysetup.Container{Biometry: c.Biometry}
}

// RestoreWalletData is what a successful restore produces.
type RestoreWalletData struct {
	ETHAddress optional.Value[string]                    `json:"ethAddress"`
	Wallet     onboarding.Wallet                         `json:"wallet"`
	Security   securitysetup.Data                        `json:"security"`
	Metadata   optional.Value[onboarding.WalletMetadata] `json:"metadata"`
}

// Result of a finished flow.
type Result interface{ isResult() }

type (
	Successful   struct{ Data RestoreWalletData }
	BreakProcess struct{}
)

func (Successful) isResult()   {}
func (BreakProcess) isResult() {}

// State of the flow.
type State interface {
	isState()
	Name() string
	Step() float64
	Continuable() bool
}

type (
	// Restore lists the restore methods.
	Restore       struct{}
	RestoreICloud struct{ Inner icloud.State }
	RestoreSeed   struct{ Inner seed.State }
	// RestoreSocial runs the social child. Option records whether it was
	// entered directly or after the phone restore.
	RestoreSocial struct {
		Inner  social.State
		Option social.Option
	}
	RestoreCustom struct{ Inner custom.State }
	SecuritySetup struct {
		Wallet       onboarding.Wallet
		ETHPublicKey optional.Value[string]
		Metadata     optional.Value[onboarding.WalletMetadata]
		Inner        securitysetup.State
	}
	Finished struct{ Result Result }
)

// Initial is the state a restore starts in.
func Initial() State { return Restore{} }

func (Restore) isState()       {}
func (RestoreICloud) isState() {}
func (RestoreSeed) isState()   {}
func (RestoreSocial) isState() {}
func (RestoreCustom) isState() {}
func (SecuritySetup) isState() {}
func (Finished) isState()      {}

func (Restore) Name() string         { return "restore" }
func (s RestoreICloud) Name() string { return "restore_icloud." + statemachine.NameOf(s.Inner) }
func (s RestoreSeed) Name() string   { return "restore_seed." + statemachine.NameOf(s.Inner) }
func (s RestoreSocial) Name() string { return "restore_social." + statemachine.NameOf(s.Inner) }
func (s RestoreCustom) Name() string { return "restore_custom." + statemachine.NameOf(s.Inner) }
func (s SecuritySetup) Name() string { return "security_setup." + statemachine.NameOf(s.Inner) }
func (Finished) Name() string        { return "finished" }

func (Restore) Step() float64         { return StageRestore.Progress(0) }
func (s RestoreICloud) Step() float64 { return StageICloud.Progress(statemachine.StepOf(s.Inner)) }
func (s RestoreSeed) Step() float64   { return StageSeed.Progress(statemachine.StepOf(s.Inner)) }
func (s RestoreCustom) Step() float64 { return StageCustom.Progress(statemachine.StepOf(s.Inner)) }
func (s SecuritySetup) Step() float64 {
	return StageSecuritySetup.Progress(statemachine.StepOf(s.Inner))
}
func (Finished) Step() float64 { return StageFinished.Progress(0) }

func (s RestoreSocial) Step() float64 {
	return s.Stage().Progress(statemachine.StepOf(s.Inner))
}

// Stage places the social child before the phone restore when it was entered
// directly and after it otherwise.
func (s RestoreSocial) Stage() statemachine.Stage {
	switch s.Inner.(type) {
	case social.SignIn, social.NotFoundSocial:
		return StageSocialBeforeCustom
	case social.NotFoundDevice, social.SignInProgress:
		if s.Option == social.Device {
			return StageSocialBeforeCustom
		}
	}

	return StageSocialAfterCustom
}

func (Restore) Continuable() bool         { return false }
func (s RestoreICloud) Continuable() bool { return statemachine.ContinuableOf(s.Inner) }
func (s RestoreSeed) Continuable() bool   { return statemachine.ContinuableOf(s.Inner) }
func (s RestoreSocial) Continuable() bool { return statemachine.ContinuableOf(s.Inner) }
func (s RestoreCustom) Continuable() bool { return statemachine.ContinuableOf(s.Inner) }
func (s SecuritySetup) Continuable() bool { return statemachine.ContinuableOf(s.Inner) }
func (Finished) Continuable() bool        { return false }

func (Finished) Terminal() bool { return true }

// Event of the flow. Child events travel wrapped in the matching variant.
type Event interface {
	isEvent()
	Name() string
}

type (
	Back          struct{}
	Start         struct{}
	ICloudEvent   struct{ Event icloud.Event }
	SeedEvent     struct{ Event seed.Event }
	SocialEvent   struct{ Event social.Event }
	CustomEvent   struct{ Event custom.Event }
	SecurityEvent struct{ Event securitysetup.Event }
)

func (Back) isEvent()          {}
func (Start) isEvent()         {}
func (ICloudEvent) isEvent()   {}
func (SeedEvent) isEvent()     {}
func (SocialEvent) isEvent()   {}
func (CustomEvent) isEvent()   {}
func (SecurityEvent) isEvent() {}

func (Back) Name() string            { return "back" }
func (Start) Name() string           { return "start" }
func (e ICloudEvent) Name() string   { return "icloud." + statemachine.NameOf(e.Event) }
func (e SeedEvent) Name() string     { return "seed." + statemachine.NameOf(e.Event) }
func (e SocialEvent) Name() string   { return "social." + statemachine.NameOf(e.Event) }
func (e CustomEvent) Name() string   { return "custom." + statemachine.NameOf(e.Event) }
func (e SecurityEvent) Name() string { return "security." + statemachine.NameOf(e.Event) }

// New starts a restore machine in Initial.
func New(ctx context.Context, c Container, opts ...statemachine.Option) *statemachine.Machine[State, Event, Container] {
	opts = append([]statemachine.Option{statemachine.WithName(FlowName)}, opts...)

	return statemachine.New(ctx, Initial(), c, Accept, opts...)
}
