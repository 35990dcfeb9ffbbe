package handlers

import (
	"context"
)

type MeResponse struct {
	Body struct {
		ID    string `json:"id"`
		Role  string `json:"role"`
		Email string `json:"email,omitempty"`
	}
}

func HandleMe(ctx context.Context, _ *struct{}) (*MeResponse, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	resp := &MeResponse{}
	resp.Body.ID = p.ID
	resp.Body.Role = string(p.Role)
	resp.Body.Email = p.Email
	return resp, nil
}
