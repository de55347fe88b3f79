package domain

import "time"

type Organization struct {
	ID           string
	Abbreviation string
	FullName     string
	SLA          bool // under a service agreement, eligible for an elevated default role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ContactEmail is an email address attached to an organization. The CP flag
// marks addresses with an active portal account.
type ContactEmail struct {
	ID             string
	OrganizationID string
	Email          string
	CP             bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
