package domain

import (
	"errors"
	"time"
)

// ErrMissingContext marks an organization that cannot be classified because
// it has no company context configured.
var ErrMissingContext = errors.New("organization has no company context")

// ErrMissingJoinDate marks an organization without a usable created_at value.
var ErrMissingJoinDate = errors.New("organization has no created_at timestamp")

// Organization is a tenant. CreatedAt is the join date: it is the sole lower
// bound on which articles enter the tenant's classification backlog, and may
// be back-dated deliberately to grant historical access.
//
// The prompt/model fields are optional per-tenant overrides; zero values fall
// back to the classifier defaults.
type Organization struct {
	ID                 int64     `db:"id"`
	Name               string    `db:"name"`
	CompanyContext     string    `db:"company_context"`
	IsActive           bool      `db:"is_active"`
	CreatedAt          time.Time `db:"created_at"`
	SystemPrompt       string    `db:"system_prompt"`
	UserPromptTemplate string    `db:"user_prompt_template"`
	MaxTokens          int       `db:"max_tokens"`
	Temperature        *float64  `db:"temperature"`
}

// Validate checks the fields the classification run depends on. A failure
// here is fatal for this organization's processing only.
func (o Organization) Validate() error {
	if o.CompanyContext == "" {
		return ErrMissingContext
	}
	if o.CreatedAt.IsZero() {
		return ErrMissingJoinDate
	}
	return nil
}
