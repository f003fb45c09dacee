// Package feedback defines the in-app feedback payload, collects the
// system information attached to it, and submits reports to the feedback
// service.
package feedback

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Type classifies a feedback report.
type Type string

const (
	TypeBug         Type = "bug"
	TypeFeature     Type = "feature"
	TypeImprovement Type = "improvement"
	TypeOther       Type = "other"
)

// Types returns all report types.
func Types() []Type {
	return []Type{TypeBug, TypeFeature, TypeImprovement, TypeOther}
}

// Valid reports whether the type is a known report type.
func (t Type) Valid() bool {
	switch t {
	case TypeBug, TypeFeature, TypeImprovement, TypeOther:
		return true
	}
	return false
}

// SystemInfo is the environment snapshot attached to every report. It is
// collected by the app, never entered by the user, and the service treats
// it as untrusted input bounded only by size.
type SystemInfo struct {
	AppVersion string `json:"appVersion" validate:"required,max=64"`
	Channel    string `json:"channel,omitempty" validate:"omitempty,max=32"`
	OS         string `json:"os" validate:"required,max=64"`
	Arch       string `json:"arch,omitempty" validate:"omitempty,max=32"`
	OSVersion  string `json:"osVersion,omitempty" validate:"omitempty,max=128"`
	Locale     string `json:"locale,omitempty" validate:"omitempty,max=32"`
	NumCPU     int    `json:"numCpu,omitempty" validate:"omitempty,min=1"`
	MemMB      int64  `json:"memMb,omitempty" validate:"omitempty,min=1"`

	// Extra carries app-defined keys, e.g. the active feature flags.
	Extra map[string]string `json:"extra,omitempty" validate:"omitempty,max=32,dive,keys,max=64,endkeys,max=256"`
}

// Report is one feedback submission. The JSON field names are the payload
// contract with shipped clients and must not change.
type Report struct {
	Type        Type       `json:"type" validate:"required,oneof=bug feature improvement other"`
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"required,max=8000"`
	Rating      int        `json:"rating" validate:"required,min=1,max=5"`
	Email       string     `json:"email,omitempty" validate:"omitempty,email,max=255"`
	SystemInfo  SystemInfo `json:"systemInfo"`
}

var validate = validator.New()

// Validate checks the report against the payload contract: known type,
// required title and description within bounds, rating between 1 and 5,
// and a well-formed email when one is given.
func (r *Report) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid feedback report: %w", err)
	}
	return nil
}
