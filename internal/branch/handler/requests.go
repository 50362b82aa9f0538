package handler

import (
	"strings"
	"time"

	"caredesk/internal/branch/models"
	dErrors "caredesk/pkg/domain-errors"
)

type CreateRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Validate trims the request and rejects missing fields.
func (r *CreateRequest) Validate() error {
	r.Code = strings.TrimSpace(r.Code)
	r.Name = strings.TrimSpace(r.Name)
	if r.Code == "" {
		return dErrors.New(dErrors.CodeValidation, "code is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

type Response struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ListResponse struct {
	Branches []Response `json:"branches"`
}

func toResponse(b *models.Branch) Response {
	return Response{
		ID:        b.ID.String(),
		Code:      b.Code,
		Name:      b.Name,
		IsActive:  b.IsActive(),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}
