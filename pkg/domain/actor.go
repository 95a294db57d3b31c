package domain

// Role classifies who is acting on the compliance engine. The engine only
// distinguishes clinicians from the admin tier; finer-grained org permissions
// live in the controllers outside this module.
type Role string

const (
	RoleClinician  Role = "clinician"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleClinician, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the role carries review/override authority.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Actor is the authenticated principal behind an engine operation. Every
// mutating path takes one so audit entries always name who acted.
type Actor struct {
	UserID UserID
	OrgID  OrgID
	Role   Role
	// ClinicianID is set when the actor is a clinician acting on their own
	// checklist; nil-valued for admin actors.
	ClinicianID ClinicianID
	// IP is recorded on e-signature submissions for the signature receipt.
	IP string
}

func (a Actor) IsAdmin() bool { return a.Role.IsAdmin() }
