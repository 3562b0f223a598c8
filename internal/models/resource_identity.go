package models

import (
	"fmt"
	"strings"
)

// ResourceKind tells how a tracked resource is published.
type ResourceKind string

const (
	KindPage      ResourceKind = "page"
	KindPDF       ResourceKind = "pdf"
	KindLocalFile ResourceKind = "local_file"
)

// IsValid reports whether the kind is one of the known resource kinds.
func (k ResourceKind) IsValid() bool {
	switch k {
	case KindPage, KindPDF, KindLocalFile:
		return true
	default:
		return false
	}
}

// ResourceIdentity is the unit being tracked. Two identities with the same
// Key refer to the same resource.
type ResourceIdentity struct {
	Provider string       `json:"provider"`
	Location string       `json:"location"`
	Kind     ResourceKind `json:"kind"`
}

// NewResourceIdentity trims its inputs so that configuration whitespace does
// not produce distinct keys for the same resource.
func NewResourceIdentity(provider, location string, kind ResourceKind) ResourceIdentity {
	return ResourceIdentity{
		Provider: strings.TrimSpace(provider),
		Location: strings.TrimSpace(location),
		Kind:     kind,
	}
}

// Key returns the system-wide unique key of the identity.
func (ri ResourceIdentity) Key() string {
	return fmt.Sprintf("%s|%s|%s", ri.Provider, ri.Kind, ri.Location)
}

func (ri ResourceIdentity) String() string {
	return fmt.Sprintf("%s (%s) %s", ri.Provider, ri.Kind, ri.Location)
}

// Validate checks that the identity can be used as a state key.
func (ri ResourceIdentity) Validate() error {
	if ri.Provider == "" {
		return fmt.Errorf("resource identity: provider is empty")
	}
	if ri.Location == "" {
		return fmt.Errorf("resource identity: location is empty for provider %s", ri.Provider)
	}
	if !ri.Kind.IsValid() {
		return fmt.Errorf("resource identity: unknown kind %q", ri.Kind)
	}
	return nil
}
