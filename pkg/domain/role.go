package domain

// Role is the coarse actor classification assigned at registration.
type Role string

const (
	RoleCitizen       Role = "citizen"
	RolePublicAdmin   Role = "public_admin"
	RolePlatformAdmin Role = "platform_admin"
)

// Capability names a single privileged operation. Workflow services authorize
// against capabilities rather than roles so the mapping can evolve without
// touching call sites.
type Capability string

const (
	// CapabilityEscalateVerification: promote a match into the public-admin
	// verification workflow.
	CapabilityEscalateVerification Capability = "verification:escalate"
	// CapabilityDecideVerification: confirm, reject, or supervise a
	// verification request.
	CapabilityDecideVerification Capability = "verification:decide"
	// CapabilityModerateMatches: confirm or reject matches on behalf of the
	// involved parties.
	CapabilityModerateMatches Capability = "match:moderate"
	// CapabilityViewHistory: read the platform action history.
	CapabilityViewHistory Capability = "history:view"
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleCitizen: {},
	RolePublicAdmin: {
		CapabilityDecideVerification: true,
	},
	RolePlatformAdmin: {
		CapabilityEscalateVerification: true,
		CapabilityModerateMatches:      true,
		CapabilityViewHistory:          true,
	},
}

// Has reports whether the role grants the capability.
func (r Role) Has(cap Capability) bool {
	return roleCapabilities[r][cap]
}

// Valid reports whether the role is one of the three known roles.
func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// ParseRole validates a raw role string from a token or request body.
func ParseRole(raw string) (Role, bool) {
	r := Role(raw)
	return r, r.Valid()
}
