package services

import (
	"github.com/go-faster/errors"

	"github.com/iota-uz/flockdesk/modules/dashboard/domain/entity"
	"github.com/iota-uz/flockdesk/pkg/configuration"
)

type Fallback int

const (
	// FallbackPlaceholder renders a generic detail modal shell.
	FallbackPlaceholder Fallback = iota + 1
	// FallbackToast shows an error toast and opens nothing.
	FallbackToast
)

func (f Fallback) String() string {
	switch f {
	case FallbackPlaceholder:
		return configuration.FallbackPlaceholder
	case FallbackToast:
		return configuration.FallbackToast
	default:
		return "unknown"
	}
}

// FallbackPolicy decides, per kind, what a failed detail load shows.
type FallbackPolicy map[entity.Kind]Fallback

// NewFallbackPolicy builds the policy for one of the configured modes.
func NewFallbackPolicy(mode string) (FallbackPolicy, error) {
	policy := FallbackPolicy{}
	switch mode {
	case "", configuration.FallbackLegacy:
		for _, k := range entity.Kinds() {
			policy[k] = FallbackPlaceholder
		}
		policy[entity.Member] = FallbackToast
		policy[entity.Family] = FallbackToast
	case configuration.FallbackPlaceholder:
		for _, k := range entity.Kinds() {
			policy[k] = FallbackPlaceholder
		}
	case configuration.FallbackToast:
		for _, k := range entity.Kinds() {
			policy[k] = FallbackToast
		}
	default:
		return nil, errors.Errorf("unknown detail fallback mode %q", mode)
	}
	return policy, nil
}

func (p FallbackPolicy) For(kind entity.Kind) Fallback {
	if f, ok := p[kind]; ok {
		return f
	}
	return FallbackToast
}
