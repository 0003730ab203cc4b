package auth

// Route keys for the capabilities the service itself exposes. Application
// routes register their own keys through the permission catalog.
const (
	PermUsersMe     = "users.me"
	PermUsersDelete = "users.delete"
	PermRBACManage  = "rbac.manage"
	PermAuditStream = "audit.stream"
)

var BuiltinPermissions = []Permission{
	{Route: PermUsersMe, Description: "Read the authenticated user's own profile"},
	{Route: PermUsersDelete, Description: "Delete user accounts"},
	{Route: PermRBACManage, Description: "Manage roles, permissions and overrides"},
	{Route: PermAuditStream, Description: "Subscribe to the live audit event stream"},
}
