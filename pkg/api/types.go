package api

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/rmax-ai/alertgraph/pkg/graph"
)

var requestValidate = validator.New()

// UserRegistration matches the POST /v1/users body schema
type UserRegistration struct {
	Name   string `json:"name" validate:"max=120"`
	Region string `json:"region" validate:"max=120"`
}

// Validate checks field bounds. Empty and unknown values are left to the
// registry so they map to their own error codes.
func (r UserRegistration) Validate() error {
	return requestValidate.Struct(r)
}

// AlertRequest matches the POST /v1/alerts body schema
type AlertRequest struct {
	UserID      string `json:"user_id" validate:"required,max=64"`
	Category    string `json:"category" validate:"required,max=64"`
	Description string `json:"description" validate:"max=2000"`
	Location    string `json:"location,omitempty" validate:"max=200"`
	Region      string `json:"region,omitempty" validate:"max=120"` // defaults to the user's region
}

// Validate checks required fields and field bounds.
func (r AlertRequest) Validate() error {
	return requestValidate.Struct(r)
}

// validationCode maps a validation failure to an error code.
func validationCode(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				return "missing_required_fields"
			}
		}
		return "field_too_long"
	}
	return "invalid_request"
}

// AlertsResponse matches the response for GET /v1/alerts
type AlertsResponse struct {
	Query  string        `json:"query"` // category, region or user
	Value  string        `json:"value"`
	Count  int           `json:"count"`
	Alerts []graph.Match `json:"alerts"`
}

// RecentResponse matches the response for GET /v1/alerts/recent
type RecentResponse struct {
	AlertIDs []string `json:"alert_ids"`
}
