package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gatekit.org/internal/ids"
)

// AdminService carries the role and permission management operations behind
// the admin HTTP surface. Validation happens here; persistence is delegated
// to the injected store.
type AdminService struct {
	store AdminStore
	sink  AuditSink
}

// NewAdminService constructs an AdminService. A nil sink disables audit
// recording.
func NewAdminService(store AdminStore, sink AuditSink) (*AdminService, error) {
	if store == nil {
		return nil, errors.New("auth: admin store is required")
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &AdminService{store: store, sink: sink}, nil
}

// EnsureBuiltins makes sure the built-in permission catalog exists.
func (s *AdminService) EnsureBuiltins(ctx context.Context) error {
	return s.store.EnsurePermissions(ctx, BuiltinPermissions)
}

// ListPermissions returns the permission catalog.
func (s *AdminService) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// CreateRole creates an empty role.
func (s *AdminService) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	role := &Role{
		ID:          ids.New(),
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	if err := s.store.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	s.sink.Record(ctx, SeverityInfo, "auth.admin", fmt.Sprintf("created role %s", name))
	return role, nil
}

// SetRolePermissions replaces the role's permission set with the given route
// keys. Because roles are shared references, the change applies to every
// holder on their next resolve.
func (s *AdminService) SetRolePermissions(ctx context.Context, roleID string, routes []string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	if err := s.store.SetRolePermissions(ctx, roleID, dedupeRoutes(routes)); err != nil {
		return err
	}
	s.sink.Record(ctx, SeverityInfo, "auth.admin", fmt.Sprintf("replaced permissions of role %s", roleID))
	return nil
}

// AssignRole grants a role to a user; assigning twice is a no-op.
func (s *AdminService) AssignRole(ctx context.Context, userID, roleID string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	if err := s.store.AssignRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.sink.Record(ctx, SeverityInfo, "auth.admin", fmt.Sprintf("assigned role %s to user %s", roleID, userID))
	return nil
}

// SetOverride puts a route on the user's whitelist or blacklist.
func (s *AdminService) SetOverride(ctx context.Context, userID, route string, kind OverrideKind) error {
	userID = strings.TrimSpace(userID)
	route = strings.TrimSpace(route)
	if userID == "" || route == "" {
		return fmt.Errorf("%w: user_id and route are required", ErrInvalidInput)
	}
	if kind != OverrideWhitelist && kind != OverrideBlacklist {
		return fmt.Errorf("%w: unsupported override kind %s", ErrInvalidInput, kind)
	}
	if err := s.store.SetOverride(ctx, userID, route, kind); err != nil {
		return err
	}
	s.sink.Record(ctx, SeverityInfo, "auth.admin",
		fmt.Sprintf("set %s override for user %s on route %s", kind, userID, route))
	return nil
}

// RemoveOverride drops a route from the user's whitelist or blacklist.
func (s *AdminService) RemoveOverride(ctx context.Context, userID, route string, kind OverrideKind) error {
	userID = strings.TrimSpace(userID)
	route = strings.TrimSpace(route)
	if userID == "" || route == "" {
		return fmt.Errorf("%w: user_id and route are required", ErrInvalidInput)
	}
	if kind != OverrideWhitelist && kind != OverrideBlacklist {
		return fmt.Errorf("%w: unsupported override kind %s", ErrInvalidInput, kind)
	}
	return s.store.RemoveOverride(ctx, userID, route, kind)
}

func dedupeRoutes(routes []string) []string {
	if len(routes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(routes))
	result := make([]string, 0, len(routes))
	for _, route := range routes {
		route = strings.TrimSpace(route)
		if route == "" {
			continue
		}
		if _, ok := seen[route]; ok {
			continue
		}
		seen[route] = struct{}{}
		result = append(result, route)
	}
	return result
}
