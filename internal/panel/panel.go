// Package panel drives the maintenance control panel: it loads the current
// status, flips it and reports outcomes the way the HTML panel does.
package panel

import (
	"context"
	"errors"

	"github.com/n3tuk/maintenance-gate/internal/model"
)

// Panel holds the control panel state between actions.
type Panel struct {
	client Client

	// Status is the last loaded status, nil until Load succeeds.
	Status *model.AdminStatus

	// Draft is the message that the next activation or deactivation sends.
	Draft string

	// Error and Success are the banners from the last action.
	Error   string
	Success string

	// Loading is set while a write is in flight.
	Loading bool
}

// New creates a panel over client.
func New(client Client) *Panel {
	return &Panel{client: client}
}

// Load fetches the current status and copies its message into the draft.
func (p *Panel) Load(ctx context.Context) error {
	status, err := p.client.GetStatus(ctx)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			p.Error = model.ErrLoadStatus
		} else {
			p.Error = model.ErrConnection
		}
		return err
	}

	p.Status = status
	p.Draft = status.Message
	return nil
}

// Activate turns maintenance on with message, or the default page message
// when message is blank.
func (p *Panel) Activate(ctx context.Context, message string) error {
	return p.change(ctx, true, message)
}

// Deactivate turns maintenance off, sending the current draft.
func (p *Panel) Deactivate(ctx context.Context) error {
	return p.change(ctx, false, p.Draft)
}

func (p *Panel) change(ctx context.Context, active bool, message string) error {
	p.Loading = true
	p.Error = ""
	p.Success = ""
	defer func() { p.Loading = false }()

	msg, err := p.client.SetStatus(ctx, model.StatusUpdate{
		Active:    active,
		Message:   model.MessageOrDefault(message, model.DefaultPageMessage),
		CreatedBy: model.ActorAdmin,
	})
	if err != nil {
		var apiErr *APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.Message != "":
			p.Error = apiErr.Message
		case errors.As(err, &apiErr):
			p.Error = model.ErrChangeStatus
		default:
			p.Error = model.ErrConnection
		}
		return err
	}

	p.Success = msg
	return p.Load(ctx)
}

// CanActivate reports whether the activate control is enabled.
func (p *Panel) CanActivate() bool {
	return !p.Loading && p.Status != nil && !p.Status.Active
}

// CanDeactivate reports whether the deactivate control is enabled.
func (p *Panel) CanDeactivate() bool {
	return !p.Loading && p.Status != nil && p.Status.Active
}

// Preview returns the message visitors would see for the current draft.
func (p *Panel) Preview() string {
	return model.MessageOrDefault(p.Draft, model.DefaultPageMessage)
}
