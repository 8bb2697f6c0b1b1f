package models

import "github.com/google/uuid"

// AccessScope is the caller identity every repository read/write is keyed
// on. Tenant scopes restrict queries to one tenant's rows; the service
// scope (batch jobs, operators) bypasses row scoping entirely.
type AccessScope struct {
	TenantID uuid.UUID
	ActorID  string
	Service  bool
}

// ServiceScope is the unscoped capability used by batch and administrative
// operations.
func ServiceScope(actorID string) AccessScope {
	return AccessScope{ActorID: actorID, Service: true}
}

// TenantScope restricts access to a single tenant's rows.
func TenantScope(tenantID uuid.UUID, actorID string) AccessScope {
	return AccessScope{TenantID: tenantID, ActorID: actorID}
}

// Allows reports whether the scope may touch rows owned by tenantID.
func (s AccessScope) Allows(tenantID uuid.UUID) bool {
	return s.Service || s.TenantID == tenantID
}
