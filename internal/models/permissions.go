package models

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"
	RoleViewer  Role = "viewer"
)

var Roles = []Role{RoleAdmin, RoleManager, RoleAgent, RoleViewer}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleAgent, RoleViewer:
		return true
	}
	return false
}

// In reports whether r is one of roles.
func (r Role) In(roles ...Role) bool {
	for _, candidate := range roles {
		if r == candidate {
			return true
		}
	}
	return false
}

// Permission is a "<resource>.<action>" capability token.
type Permission string

const (
	PermUsersRead       Permission = "users.read"
	PermUsersWrite      Permission = "users.write"
	PermUsersDelete     Permission = "users.delete"
	PermLeadsRead       Permission = "leads.read"
	PermLeadsWrite      Permission = "leads.write"
	PermLeadsDelete     Permission = "leads.delete"
	PermCampaignsRead   Permission = "campaigns.read"
	PermCampaignsWrite  Permission = "campaigns.write"
	PermCampaignsDelete Permission = "campaigns.delete"
	PermAnalyticsRead   Permission = "analytics.read"
	PermAnalyticsWrite  Permission = "analytics.write"
	PermDashboardRead   Permission = "dashboard.read"
	PermDashboardWrite  Permission = "dashboard.write"
	PermSettingsRead    Permission = "settings.read"
	PermSettingsWrite   Permission = "settings.write"
)

// AllPermissions is the full capability set, in display order.
var AllPermissions = []Permission{
	PermUsersRead, PermUsersWrite, PermUsersDelete,
	PermLeadsRead, PermLeadsWrite, PermLeadsDelete,
	PermCampaignsRead, PermCampaignsWrite, PermCampaignsDelete,
	PermAnalyticsRead, PermAnalyticsWrite,
	PermDashboardRead, PermDashboardWrite,
	PermSettingsRead, PermSettingsWrite,
}

var rolePermissions = map[Role][]Permission{
	RoleAdmin: AllPermissions,
	RoleManager: {
		PermUsersRead, PermUsersWrite,
		PermLeadsRead, PermLeadsWrite, PermLeadsDelete,
		PermCampaignsRead, PermCampaignsWrite, PermCampaignsDelete,
		PermAnalyticsRead, PermAnalyticsWrite,
		PermDashboardRead, PermDashboardWrite,
	},
	RoleAgent: {
		PermLeadsRead, PermLeadsWrite,
		PermCampaignsRead, PermCampaignsWrite,
		PermAnalyticsRead,
		PermDashboardRead,
	},
	RoleViewer: {
		PermLeadsRead,
		PermCampaignsRead,
		PermAnalyticsRead,
		PermDashboardRead,
	},
}

// PermissionsForRole returns a fresh copy of the default permission set for role.
// Unknown roles get no permissions.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

func (p Permission) Valid() bool {
	for _, known := range AllPermissions {
		if p == known {
			return true
		}
	}
	return false
}
