package transport

import "github.com/google/uuid"

// CreateLeadRequest contains data for extracting a lead at a company.
type CreateLeadRequest struct {
	CompanyID uuid.UUID `json:"companyId" validate:"required"`
	FirstName string    `json:"firstName" validate:"max=100"`
	LastName  string    `json:"lastName" validate:"max=100"`
	Email     *string   `json:"email,omitempty" validate:"omitempty,email"`
	JobTitle  *string   `json:"jobTitle,omitempty" validate:"omitempty,max=150"`
}

// UpdateLeadRequest contains data for patching lead contact fields.
type UpdateLeadRequest struct {
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName,omitempty" validate:"omitempty,max=100"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	JobTitle  *string `json:"jobTitle,omitempty" validate:"omitempty,max=150"`
}

// ScoreLeadRequest carries an ICP score with its factor breakdown.
type ScoreLeadRequest struct {
	Score     int                `json:"score" validate:"min=0,max=100"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
}

// UpdateStatusRequest carries a requested pipeline transition.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ListLeadsRequest filters and paginates lead listings.
type ListLeadsRequest struct {
	CompanyID      *uuid.UUID `form:"companyId"`
	Status         *string    `form:"status"`
	Classification *string    `form:"classification"`
	Skip           int        `form:"skip" validate:"min=0"`
	Limit          int        `form:"limit" validate:"min=0,max=200"`
}

// LeadResponse represents a lead in API responses.
type LeadResponse struct {
	ID             uuid.UUID          `json:"id"`
	CompanyID      uuid.UUID          `json:"companyId"`
	FirstName      string             `json:"firstName"`
	LastName       string             `json:"lastName"`
	FullName       string             `json:"fullName"`
	Email          *string            `json:"email,omitempty"`
	JobTitle       *string            `json:"jobTitle,omitempty"`
	ICPScore       *int               `json:"icpScore,omitempty"`
	ScoreBreakdown map[string]float64 `json:"scoreBreakdown,omitempty"`
	Classification string             `json:"classification"`
	Status         string             `json:"status"`
	CreatedAt      string             `json:"createdAt"`
	UpdatedAt      string             `json:"updatedAt"`
}

// LeadListResponse wraps a paginated list of leads.
type LeadListResponse struct {
	Items []LeadResponse `json:"items"`
	Total int            `json:"total"`
}
