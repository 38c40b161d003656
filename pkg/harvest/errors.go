package harvest

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/promoscout/pkg/fetcher"
	"github.com/jmylchreest/promoscout/pkg/flow"
	"github.com/jmylchreest/promoscout/pkg/page"
)

// Category classifies a fatal run failure.
type Category string

const (
	CategoryAuthTriggerNotFound Category = "auth_trigger_not_found"
	CategorySessionStateInvalid Category = "session_state_invalid"
	CategoryNavigationFailed    Category = "navigation_failed"
	CategoryInteractionFailed   Category = "interaction_failed"
	CategoryBrowserUnavailable  Category = "browser_unavailable"
	CategoryPreflightFailed     Category = "preflight_failed"
	CategoryCanceled            Category = "canceled"
	CategoryInternal            Category = "internal"
)

// Phase names the stage of a run.
type Phase string

const (
	PhasePreflight    Phase = "preflight"
	PhaseLaunch       Phase = "launch"
	PhaseAuthenticate Phase = "authenticate"
	PhaseNavigate     Phase = "navigate"
	PhaseHarvest      Phase = "harvest"
)

// RunError is the fatal failure of a run.
// Use errors.As to inspect it, or CategoryOf for the category alone.
type RunError struct {
	Category Category
	Phase    Phase
	Err      error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Phase, e.Category, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// CategoryOf returns the category of a run failure. Errors that did not come
// from a run are CategoryInternal; nil has no category.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var re *RunError
	if errors.As(err, &re) {
		return re.Category
	}
	return CategoryInternal
}

func newRunError(ctx context.Context, phase Phase, err error) *RunError {
	return &RunError{Category: categorize(ctx, phase, err), Phase: phase, Err: err}
}

func categorize(ctx context.Context, phase Phase, err error) Category {
	switch {
	case ctx.Err() != nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return CategoryCanceled
	case errors.Is(err, flow.ErrAuthTriggerNotFound):
		return CategoryAuthTriggerNotFound
	case errors.Is(err, flow.ErrSessionStateInvalid):
		return CategorySessionStateInvalid
	case errors.Is(err, flow.ErrNavigationFailed):
		return CategoryNavigationFailed
	case errors.Is(err, flow.ErrInteraction):
		return CategoryInteractionFailed
	case errors.Is(err, page.ErrClosed):
		return CategoryBrowserUnavailable
	case errors.Is(err, fetcher.ErrAntiBot),
		errors.Is(err, fetcher.ErrCaptchaChallenge),
		errors.Is(err, fetcher.ErrUnavailable):
		return CategoryPreflightFailed
	}

	switch phase {
	case PhasePreflight:
		return CategoryPreflightFailed
	case PhaseLaunch:
		return CategoryBrowserUnavailable
	}
	return CategoryInternal
}
