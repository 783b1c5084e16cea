package domain

// Permission is a named capability derived from Role
type Permission string

const (
	PermViewDashboard           Permission = "view-dashboard"
	PermViewCameras             Permission = "view-cameras"
	PermViewRecordings          Permission = "view-recordings"
	PermExportRecordings        Permission = "export-recordings"
	PermViewLogs                Permission = "view-logs"
	PermConfigureCameraSettings Permission = "configure-camera-settings"
	PermAssignCameras           Permission = "assign-cameras"
	PermAssignRoles             Permission = "assign-roles"
	PermManageUsers             Permission = "manage-users"
	PermManageStorage           Permission = "manage-storage"
	PermManageSystem            Permission = "manage-system"
	PermSystemMigration         Permission = "system-migration"
)

// Permissions returns the full permission catalogue
func Permissions() []Permission {
	return []Permission{
		PermViewDashboard,
		PermViewCameras,
		PermViewRecordings,
		PermExportRecordings,
		PermViewLogs,
		PermConfigureCameraSettings,
		PermAssignCameras,
		PermAssignRoles,
		PermManageUsers,
		PermManageStorage,
		PermManageSystem,
		PermSystemMigration,
	}
}

// Known reports whether p is part of the catalogue
func (p Permission) Known() bool {
	for _, known := range Permissions() {
		if p == known {
			return true
		}
	}
	return false
}

// Sensitive permissions get an additional authoritative check because a
// stale local role must not hide a freshly granted elevation.
func (p Permission) Sensitive() bool {
	switch p {
	case PermAssignCameras, PermAssignRoles, PermManageSystem, PermSystemMigration, PermConfigureCameraSettings:
		return true
	}
	return false
}

var (
	userPermissions = []Permission{
		PermViewDashboard,
		PermViewCameras,
		PermViewRecordings,
	}
	observerPermissions = []Permission{
		PermViewDashboard,
		PermViewCameras,
		PermViewRecordings,
		PermExportRecordings,
		PermViewLogs,
	}
	adminPermissions = []Permission{
		PermViewDashboard,
		PermViewCameras,
		PermViewRecordings,
		PermExportRecordings,
		PermViewLogs,
		PermConfigureCameraSettings,
		PermAssignCameras,
		PermAssignRoles,
		PermManageUsers,
		PermManageStorage,
	}
)

// PolicyFor returns the permissions granted to role. Superadmin gets the whole catalogue.
func PolicyFor(role Role) []Permission {
	var perms []Permission
	switch role {
	case RoleSuperadmin:
		perms = Permissions()
	case RoleAdmin:
		perms = adminPermissions
	case RoleObserver:
		perms = observerPermissions
	case RoleUser:
		perms = userPermissions
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// Allows is the pure (role, permission) lookup
func (r Role) Allows(p Permission) bool {
	if r == RoleSuperadmin {
		return true
	}
	for _, granted := range PolicyFor(r) {
		if granted == p {
			return true
		}
	}
	return false
}
