package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization groups one or more domains under a single tenant.
type Organization struct {
	ID              uuid.UUID         `json:"id" msgpack:"id"`
	Name            string            `json:"name" msgpack:"name"`
	DisplayName     string            `json:"display_name" msgpack:"display_name"`
	Domains         []uuid.UUID       `json:"domains" msgpack:"domains"`
	DefaultDomainID uuid.UUID         `json:"default_domain_id" msgpack:"default_domain_id"`
	Policies        []uuid.UUID       `json:"policies" msgpack:"policies"`
	CreatedAt       time.Time         `json:"created_at" msgpack:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" msgpack:"updated_at"`
	Meta            map[string]string `json:"meta,omitempty" msgpack:"meta"`
}
