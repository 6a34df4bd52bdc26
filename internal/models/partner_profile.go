package models

import (
	"time"

	"github.com/lib/pq"
)

// PartnerStatus tracks review of a partner application.
type PartnerStatus string

const (
	PartnerStatusPending  PartnerStatus = "pending"
	PartnerStatusVerified PartnerStatus = "verified"
	PartnerStatusRejected PartnerStatus = "rejected"
)

// PartnerProfile is a service-provider application owned by one user.
type PartnerProfile struct {
	ID                string         `db:"id" json:"id"`
	UserID            string         `db:"user_id" json:"user_id"`
	FullName          string         `db:"full_name" json:"full_name"`
	Gender            *string        `db:"gender" json:"gender,omitempty"`
	Birthday          *time.Time     `db:"birthday" json:"birthday,omitempty"`
	Address           *string        `db:"address" json:"address,omitempty"`
	CCCD              string         `db:"cccd" json:"cccd"`
	YearsOfExperience int            `db:"years_of_experience" json:"years_of_experience"`
	CCCDFrontPath     *string        `db:"cccd_front_path" json:"-"`
	CCCDBackPath      *string        `db:"cccd_back_path" json:"-"`
	HealthCertPaths   pq.StringArray `db:"health_cert_paths" json:"-"`
	Status            PartnerStatus  `db:"profile_status" json:"profile_status"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// FilePaths lists every stored document referenced by the profile.
func (p *PartnerProfile) FilePaths() []string {
	paths := make([]string, 0, 2+len(p.HealthCertPaths))
	if p.CCCDFrontPath != nil && *p.CCCDFrontPath != "" {
		paths = append(paths, *p.CCCDFrontPath)
	}
	if p.CCCDBackPath != nil && *p.CCCDBackPath != "" {
		paths = append(paths, *p.CCCDBackPath)
	}
	for _, path := range p.HealthCertPaths {
		if path != "" {
			paths = append(paths, path)
		}
	}
	return paths
}

// PartnerProfileSummary is embedded in the user summary.
type PartnerProfileSummary struct {
	ProfileStatus PartnerStatus `json:"profile_status"`
}

// DocumentKind names a partner document slot.
type DocumentKind string

const (
	DocumentCCCDFront         DocumentKind = "cccd_front"
	DocumentCCCDBack          DocumentKind = "cccd_back"
	DocumentHealthCertificate DocumentKind = "health_certificate"
)

// DocumentLink is a short-lived download URL for one stored document.
type DocumentLink struct {
	Kind      DocumentKind `json:"kind"`
	URL       string       `json:"url"`
	ExpiresAt time.Time    `json:"expires_at"`
}
