package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/register_backend/models"
	"bitbucket.org/mmdatafocus/register_backend/utils"
)

// Guard walks the mandatory steps in front of a RAZ. Steps only ever move
// forward within one (session, local date) key; the key change at local
// midnight is what re-arms the gate, never a backward transition.
type Guard struct {
	Now func() time.Time
}

func NewGuard() *Guard {
	return &Guard{Now: time.Now}
}

func (g *Guard) state(ctx context.Context, sessionId string) (*models.RAZGuardState, error) {
	return models.GetRAZGuardState(ctx, sessionId, models.LocalDateKey(g.Now()))
}

// View marks the reset screen as seen. Always allowed, never un-set.
func (g *Guard) View(ctx context.Context, sessionId string) (*models.RAZGuardState, error) {
	state, err := g.state(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if state.Viewed {
		return state, nil
	}
	state.Viewed = true
	return state, models.SaveRAZGuardState(ctx, state)
}

// Print records the report print. Printing implies looking at the report,
// so an unseen state is forced to viewed rather than refused.
func (g *Guard) Print(ctx context.Context, sessionId string) (*models.RAZGuardState, error) {
	state, err := g.state(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if state.Viewed && state.Printed {
		return state, nil
	}
	state.Viewed = true
	state.Printed = true
	return state, models.SaveRAZGuardState(ctx, state)
}

// Notify records the emailed report. Refused until the print step is done.
func (g *Guard) Notify(ctx context.Context, sessionId string) (*models.RAZGuardState, error) {
	state, err := g.state(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if !state.Printed {
		return nil, &utils.GuardViolation{Missing: "print"}
	}
	if state.EmailSent {
		return state, nil
	}
	state.EmailSent = true
	return state, models.SaveRAZGuardState(ctx, state)
}

// requireArmed returns the guard row if every pre-reset step is done, or a
// GuardViolation naming the first missing one.
func (g *Guard) requireArmed(ctx context.Context, sessionId string) (*models.RAZGuardState, error) {
	state, err := g.state(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	switch {
	case !state.Viewed:
		return nil, &utils.GuardViolation{Missing: "view"}
	case !state.Printed:
		return nil, &utils.GuardViolation{Missing: "print"}
	case !state.EmailSent:
		return nil, &utils.GuardViolation{Missing: "notify"}
	}
	return state, nil
}

func (g *Guard) markExecuted(ctx context.Context, state *models.RAZGuardState) error {
	now := g.Now()
	state.Executed = true
	state.ExecutedAt = &now
	return models.SaveRAZGuardState(ctx, state)
}

// Ack writes the once-per-day confirmation key. In always-prompt mode the
// key is never written, so the prompt reappears on every screen open.
func (g *Guard) Ack(ctx context.Context, sessionId string) (*models.RAZGuardState, error) {
	mode, err := models.GetGuardMode(ctx)
	if err != nil {
		return nil, err
	}

	state, err := g.state(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if mode == models.GuardModeAlwaysPrompt || state.Acked {
		return state, nil
	}
	state.Acked = true
	return state, models.SaveRAZGuardState(ctx, state)
}

// NeedsAckPrompt reports whether the reset screen must show the
// confirmation prompt right now.
func (g *Guard) NeedsAckPrompt(ctx context.Context, sessionId string) (bool, error) {
	mode, err := models.GetGuardMode(ctx)
	if err != nil {
		return false, err
	}
	if mode == models.GuardModeAlwaysPrompt {
		return true, nil
	}
	state, err := g.state(ctx, sessionId)
	if err != nil {
		return false, err
	}
	return !state.Acked, nil
}

// SetMode changes the ack display mode and restarts the gate from scratch
// for the session.
func (g *Guard) SetMode(ctx context.Context, sessionId string, mode models.GuardMode) error {
	switch mode {
	case models.GuardModeAlwaysPrompt, models.GuardModeOncePerDay:
	default:
		return &utils.ValidationError{Field: "mode", Reason: "must be always-prompt or once-per-day"}
	}
	if err := models.SetGuardMode(ctx, mode); err != nil {
		return err
	}
	return models.ClearRAZGuardStates(ctx, sessionId)
}
