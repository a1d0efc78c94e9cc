package transport

import "github.com/google/uuid"

// CreateCompanyRequest contains data for registering a discovered company.
type CreateCompanyRequest struct {
	Name     string  `json:"name" validate:"required,min=1,max=200"`
	Domain   *string `json:"domain,omitempty" validate:"omitempty,fqdn"`
	Source   string  `json:"source" validate:"required"`
	Industry *string `json:"industry,omitempty" validate:"omitempty,max=100"`
}

// UpdateCompanyRequest contains data for patching company fields.
type UpdateCompanyRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Industry *string `json:"industry,omitempty" validate:"omitempty,max=100"`
}

// UpdateStatusRequest carries a requested pipeline transition.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ListCompaniesRequest filters and paginates company listings.
type ListCompaniesRequest struct {
	Status *string `form:"status"`
	Source *string `form:"source"`
	Skip   int     `form:"skip" validate:"min=0"`
	Limit  int     `form:"limit" validate:"min=0,max=200"`
}

// CompanyResponse represents a company in API responses.
type CompanyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Domain    *string   `json:"domain,omitempty"`
	Source    string    `json:"source"`
	Status    string    `json:"status"`
	Industry  *string   `json:"industry,omitempty"`
	CreatedAt string    `json:"createdAt"`
	UpdatedAt string    `json:"updatedAt"`
}

// GetOrCreateResponse reports the company plus whether it was just created.
type GetOrCreateResponse struct {
	Company CompanyResponse `json:"company"`
	Created bool            `json:"created"`
}

// CompanyListResponse wraps a paginated list of companies.
type CompanyListResponse struct {
	Items []CompanyResponse `json:"items"`
	Total int               `json:"total"`
}
