package handlers

import (
	"context"

	"github.com/gdg-garage/club-booking-api/internal/ledger"
	"github.com/gdg-garage/club-booking-api/internal/models"
	"github.com/gdg-garage/club-booking-api/internal/scheduling"
)

type SlotHandler struct {
	catalog *scheduling.Catalog
	ledger  *ledger.Ledger
}

func NewSlotHandler(catalog *scheduling.Catalog, l *ledger.Ledger) *SlotHandler {
	return &SlotHandler{catalog: catalog, ledger: l}
}

type SlotBody struct {
	Title     string `json:"title" maxLength:"200" doc:"Session title"`
	Date      string `json:"date" example:"2025-01-10" doc:"Calendar date (YYYY-MM-DD)"`
	StartTime string `json:"start_time" example:"10:00" doc:"Start time (HH:mm)"`
	EndTime   string `json:"end_time" example:"11:00" doc:"End time (HH:mm), after start_time"`
	Venue     string `json:"venue" maxLength:"200" doc:"Venue name, compared exactly"`
	Capacity  int    `json:"capacity,omitempty" minimum:"0" doc:"Seats; 0 or omitted uses the club default"`
}

func (b SlotBody) details() scheduling.SlotDetails {
	return scheduling.SlotDetails{
		Title:     b.Title,
		Date:      b.Date,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Venue:     b.Venue,
		Capacity:  b.Capacity,
	}
}

type SlotRequest struct {
	Body SlotBody
}

type SlotUpdateRequest struct {
	ID   string `path:"id" doc:"Slot ID"`
	Body SlotBody
}

type SlotIDRequest struct {
	ID string `path:"id" doc:"Slot ID"`
}

type SlotListRequest struct {
	Venue string `query:"venue" doc:"Only slots at this venue"`
	Date  string `query:"date" doc:"Only slots on this date (YYYY-MM-DD)"`
}

type SlotResponse struct {
	Body *models.Slot
}

type SlotListResponse struct {
	Body []models.Slot
}

func (h *SlotHandler) HandleList(ctx context.Context, input *SlotListRequest) (*SlotListResponse, error) {
	if _, err := requirePrincipal(ctx); err != nil {
		return nil, err
	}
	slots, err := h.catalog.ListSlots(ctx, scheduling.Filter{Venue: input.Venue, Date: input.Date})
	if err != nil {
		return nil, httpError(err)
	}
	return &SlotListResponse{Body: slots}, nil
}

func (h *SlotHandler) HandleListMine(ctx context.Context, _ *struct{}) (*SlotListResponse, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	slots, err := h.catalog.ListOwnSlots(ctx, p.ID)
	if err != nil {
		return nil, httpError(err)
	}
	return &SlotListResponse{Body: slots}, nil
}

func (h *SlotHandler) HandleListEnrolled(ctx context.Context, _ *struct{}) (*SlotListResponse, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	slots, err := h.ledger.ListEnrollments(ctx, p.ID)
	if err != nil {
		return nil, httpError(err)
	}
	return &SlotListResponse{Body: slots}, nil
}

func (h *SlotHandler) HandleGet(ctx context.Context, input *SlotIDRequest) (*SlotResponse, error) {
	if _, err := requirePrincipal(ctx); err != nil {
		return nil, err
	}
	slot, err := h.catalog.GetSlot(ctx, input.ID)
	if err != nil {
		return nil, httpError(err)
	}
	return &SlotResponse{Body: slot}, nil
}

func (h *SlotHandler) HandleCreate(ctx context.Context, input *SlotRequest) (*SlotResponse, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	slot, err := h.catalog.CreateSlot(ctx, p, input.Body.details())
	if err != nil {
		return nil, httpError(err)
	}
	return &SlotResponse{Body: slot}, nil
}

func (h *SlotHandler) HandleUpdate(ctx context.Context, input *SlotUpdateRequest) (*SlotResponse, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	slot, err := h.catalog.UpdateSlot(ctx, input.ID, p, input.Body.details())
	if err != nil {
		return nil, httpError(err)
	}
	return &SlotResponse{Body: slot}, nil
}

func (h *SlotHandler) HandleDelete(ctx context.Context, input *SlotIDRequest) (*struct{}, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.catalog.DeleteSlot(ctx, input.ID, p); err != nil {
		return nil, httpError(err)
	}
	return nil, nil
}

func (h *SlotHandler) HandleEnroll(ctx context.Context, input *SlotIDRequest) (*SlotResponse, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	slot, err := h.ledger.EnrollInSlot(ctx, input.ID, p)
	if err != nil {
		return nil, httpError(err)
	}
	return &SlotResponse{Body: slot}, nil
}

func (h *SlotHandler) HandleWithdraw(ctx context.Context, input *SlotIDRequest) (*SlotResponse, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	slot, err := h.ledger.WithdrawFromSlot(ctx, input.ID, p)
	if err != nil {
		return nil, httpError(err)
	}
	return &SlotResponse{Body: slot}, nil
}
