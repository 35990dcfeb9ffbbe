package handlers

import (
	"context"

	"github.com/gdg-garage/club-booking-api/internal/events"
	"github.com/gdg-garage/club-booking-api/internal/models"
	"github.com/gdg-garage/club-booking-api/internal/policy"
)

type EventHandler struct {
	catalog *events.Catalog
}

func NewEventHandler(catalog *events.Catalog) *EventHandler {
	return &EventHandler{catalog: catalog}
}

type EventBody struct {
	Name            string   `json:"name" maxLength:"200" doc:"Event name"`
	Venue           string   `json:"venue" maxLength:"200" doc:"Venue name"`
	VenueFacilities []string `json:"venue_facilities,omitempty" doc:"Facilities available at the venue"`
	RequestedItems  []string `json:"requested_items,omitempty" doc:"Equipment requested from the club"`
	Date            string   `json:"date" example:"2025-01-20" doc:"Calendar date (YYYY-MM-DD), today to three months ahead"`
	StartTime       string   `json:"start_time" example:"09:00" doc:"Start time (HH:mm)"`
	EndTime         string   `json:"end_time" example:"17:00" doc:"End time (HH:mm), after start_time"`
	Capacity        int      `json:"capacity" minimum:"1" doc:"Maximum number of public registrations"`
}

type EventRequest struct {
	Body EventBody
}

type EventPatchRequest struct {
	ID   string `path:"id" doc:"Event ID"`
	Body struct {
		Name            *string   `json:"name,omitempty"`
		Venue           *string   `json:"venue,omitempty"`
		VenueFacilities *[]string `json:"venue_facilities,omitempty"`
		RequestedItems  *[]string `json:"requested_items,omitempty"`
		Date            *string   `json:"date,omitempty"`
		StartTime       *string   `json:"start_time,omitempty"`
		EndTime         *string   `json:"end_time,omitempty"`
		Capacity        *int      `json:"capacity,omitempty"`
	}
}

type EventIDRequest struct {
	ID string `path:"id" doc:"Event ID"`
}

type EventSearchRequest struct {
	Q string `query:"q" doc:"Case-insensitive substring of the event name"`
}

type AdminEventSearchRequest struct {
	Status string `query:"status" doc:"pending, approved or rejected; empty lists all"`
	Q      string `query:"q" doc:"Case-insensitive substring of the event name"`
}

type EventResponse struct {
	Body *models.Event
}

type EventListResponse struct {
	Body []models.Event
}

func (h *EventHandler) HandleListApproved(ctx context.Context, input *EventSearchRequest) (*EventListResponse, error) {
	list, err := h.catalog.ListApproved(ctx, events.Filter{Query: input.Q})
	if err != nil {
		return nil, httpError(err)
	}
	return &EventListResponse{Body: list}, nil
}

func (h *EventHandler) HandleAdminList(ctx context.Context, input *AdminEventSearchRequest) (*EventListResponse, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if err := policy.Check(policy.EventModerate, policy.Subject{Role: p.Role}); err != nil {
		return nil, httpError(err)
	}
	list, err := h.catalog.ListByStatus(ctx, models.EventStatus(input.Status), events.Filter{Query: input.Q})
	if err != nil {
		return nil, httpError(err)
	}
	return &EventListResponse{Body: list}, nil
}

// HandleGet serves approved events to anyone. Registrations are only included
// for viewers allowed to see them.
func (h *EventHandler) HandleGet(ctx context.Context, input *EventIDRequest) (*EventResponse, error) {
	viewer := optionalPrincipal(ctx)
	event, err := h.catalog.GetVisibleEvent(ctx, input.ID, viewer)
	if err != nil {
		return nil, httpError(err)
	}
	if viewer == nil || !policy.Allowed(policy.EventViewRegistrations, events.SubjectFor(*viewer, event)) {
		event.Registrations = nil
	}
	return &EventResponse{Body: event}, nil
}

func (h *EventHandler) HandleSubmit(ctx context.Context, input *EventRequest) (*EventResponse, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	b := input.Body
	event, err := h.catalog.SubmitEvent(ctx, p, events.EventDetails{
		Name:            b.Name,
		Venue:           b.Venue,
		VenueFacilities: b.VenueFacilities,
		RequestedItems:  b.RequestedItems,
		Date:            b.Date,
		StartTime:       b.StartTime,
		EndTime:         b.EndTime,
		Capacity:        b.Capacity,
	})
	if err != nil {
		return nil, httpError(err)
	}
	return &EventResponse{Body: event}, nil
}

func (h *EventHandler) HandleUpdate(ctx context.Context, input *EventPatchRequest) (*EventResponse, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	b := input.Body
	event, err := h.catalog.UpdateEvent(ctx, input.ID, p, events.EventPatch{
		Name:            b.Name,
		Venue:           b.Venue,
		VenueFacilities: b.VenueFacilities,
		RequestedItems:  b.RequestedItems,
		Date:            b.Date,
		StartTime:       b.StartTime,
		EndTime:         b.EndTime,
		Capacity:        b.Capacity,
	})
	if err != nil {
		return nil, httpError(err)
	}
	return &EventResponse{Body: event}, nil
}

func (h *EventHandler) HandleDelete(ctx context.Context, input *EventIDRequest) (*struct{}, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.catalog.DeleteEvent(ctx, input.ID, p); err != nil {
		return nil, httpError(err)
	}
	return nil, nil
}

func (h *EventHandler) HandleApprove(ctx context.Context, input *EventIDRequest) (*EventResponse, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	event, err := h.catalog.Approve(ctx, input.ID, p)
	if err != nil {
		return nil, httpError(err)
	}
	return &EventResponse{Body: event}, nil
}

func (h *EventHandler) HandleReject(ctx context.Context, input *EventIDRequest) (*EventResponse, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	event, err := h.catalog.Reject(ctx, input.ID, p)
	if err != nil {
		return nil, httpError(err)
	}
	return &EventResponse{Body: event}, nil
}
