package handlers

import (
	"context"

	"github.com/gdg-garage/club-booking-api/internal/ledger"
	"github.com/gdg-garage/club-booking-api/internal/models"
)

type RegistrationHandler struct {
	ledger *ledger.Ledger
}

func NewRegistrationHandler(l *ledger.Ledger) *RegistrationHandler {
	return &RegistrationHandler{ledger: l}
}

type RegistrationRequest struct {
	ID   string `path:"id" doc:"Event ID"`
	Body struct {
		Name  string `json:"name" maxLength:"200" doc:"Attendee name"`
		Email string `json:"email" maxLength:"254" doc:"Attendee email, unique per event"`
		Phone string `json:"phone,omitempty" maxLength:"32" doc:"Contact phone"`
	}
}

type RegistrationResponse struct {
	Body *models.EventRegistration
}

type RegistrationListRequest struct {
	ID string `path:"id" doc:"Event ID"`
}

type RegistrationListResponse struct {
	Body []models.EventRegistration
}

type CancelRegistrationRequest struct {
	ID    string `path:"id" doc:"Event ID"`
	Email string `path:"email" doc:"Attendee email"`
}

// HandleRegister is public; no principal is needed to register for an approved event.
func (h *RegistrationHandler) HandleRegister(ctx context.Context, input *RegistrationRequest) (*RegistrationResponse, error) {
	reg, err := h.ledger.RegisterForEvent(ctx, input.ID, ledger.Attendee{
		Name:  input.Body.Name,
		Email: input.Body.Email,
		Phone: input.Body.Phone,
	})
	if err != nil {
		return nil, httpError(err)
	}
	return &RegistrationResponse{Body: reg}, nil
}

func (h *RegistrationHandler) HandleList(ctx context.Context, input *RegistrationListRequest) (*RegistrationListResponse, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	regs, err := h.ledger.ListRegistrations(ctx, input.ID, p)
	if err != nil {
		return nil, httpError(err)
	}
	return &RegistrationListResponse{Body: regs}, nil
}

func (h *RegistrationHandler) HandleCancel(ctx context.Context, input *CancelRegistrationRequest) (*struct{}, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.ledger.CancelRegistration(ctx, input.ID, input.Email, p); err != nil {
		return nil, httpError(err)
	}
	return nil, nil
}
