package entities

import (
	"fmt"
	"time"
)

// ProjectStatus is the lifecycle status of a project
type ProjectStatus int

const (
	ProjectPending  ProjectStatus = 0
	ProjectActive   ProjectStatus = 1
	ProjectInactive ProjectStatus = 2
)

// Valid reports whether s is a known status
func (s ProjectStatus) Valid() bool {
	return s >= ProjectPending && s <= ProjectInactive
}

// String returns the status name
func (s ProjectStatus) String() string {
	switch s {
	case ProjectPending:
		return "pending"
	case ProjectActive:
		return "active"
	case ProjectInactive:
		return "inactive"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Project is the fixed-schema owner of dynamic attributes
type Project struct {
	ID        int64 // Zero until the project row is created
	Name      string
	Status    ProjectStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Owner returns the owner reference used for attribute values
func (p *Project) Owner() OwnerRef {
	return OwnerRef{Kind: OwnerProject, ID: p.ID}
}

// Validate checks if the project is valid
func (p *Project) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("project name is required")
	}
	if !p.Status.Valid() {
		return fmt.Errorf("invalid project status: %d", int(p.Status))
	}
	return nil
}

// Fields returns the static fields of the project keyed by their external name
func (p *Project) Fields() map[string]interface{} {
	return map[string]interface{}{
		"id":         p.ID,
		"name":       p.Name,
		"status":     int(p.Status),
		"created_at": p.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// IsStaticField reports whether name is a fixed project column
// rather than a dynamic attribute
func IsStaticField(name string) bool {
	switch name {
	case "id", "name", "status", "created_at", "updated_at":
		return true
	}
	return false
}
