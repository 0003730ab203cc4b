package auth

import "context"

// UserStore is the persistence contract the core depends on. Lookups return
// the user with roles, role permissions and both override sets resolved.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	Save(ctx context.Context, u *User) error
}

// RevocationStore is the membership test for invalidated tokens. Revoke is
// idempotent: revoking the same token twice has no additional effect.
type RevocationStore interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
	Revoke(ctx context.Context, token string) error
}

// AdminStore carries the role/permission management operations exercised by
// the admin HTTP surface. It is separate from UserStore so the request path
// depends only on the two lookups it actually needs.
type AdminStore interface {
	EnsurePermissions(ctx context.Context, perms []Permission) error
	ListPermissions(ctx context.Context) ([]Permission, error)
	CreateRole(ctx context.Context, role *Role) error
	SetRolePermissions(ctx context.Context, roleID string, routes []string) error
	AssignRole(ctx context.Context, userID, roleID string) error
	SetOverride(ctx context.Context, userID, route string, kind OverrideKind) error
	RemoveOverride(ctx context.Context, userID, route string, kind OverrideKind) error
}
