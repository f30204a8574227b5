package domain

import "unicode"

// Tenant scopes every stored entity. It is carried per request and passed
// explicitly into every port call.
type Tenant string

// DefaultTenant applies when a request carries no tenant header.
const DefaultTenant Tenant = "public"

// MaxTenantLength bounds the tenant identifier in bytes.
const MaxTenantLength = 128

func (t Tenant) String() string { return string(t) }

// ParseTenant validates a raw tenant identifier.
func ParseTenant(raw string, maxLen int) (Tenant, error) {
	if maxLen <= 0 {
		maxLen = MaxTenantLength
	}
	if raw == "" {
		return "", NewValidationError("tenant", "must not be empty")
	}
	if len(raw) > maxLen {
		return "", NewValidationError("tenant", "must be at most %d bytes", maxLen)
	}
	if HasControl(raw) {
		return "", NewValidationError("tenant", "must not contain control characters")
	}
	return Tenant(raw), nil
}

// HasControl reports whether s contains control characters.
func HasControl(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// ValidateIdentifier checks an opaque identifier such as an entity or thread id.
func ValidateIdentifier(field, id string, maxLen int) error {
	switch {
	case id == "":
		return NewValidationError(field, "must not be empty")
	case len(id) > maxLen:
		return NewValidationError(field, "must be at most %d bytes", maxLen)
	case HasControl(id):
		return NewValidationError(field, "must not contain control characters")
	}
	return nil
}
