package auth

import (
	"context"
	"database/sql"
	"time"

	"gatekit.org/internal/ids"
)

var (
	_ UserStore       = (*PGStore)(nil)
	_ RevocationStore = (*PGStore)(nil)
	_ AdminStore      = (*PGStore)(nil)
)

// PGStore implements the persistence contracts using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// User store ---------------------------------------------------------------

// FindByEmail loads the user together with roles, role permissions and both
// override sets, so the gate can decide without further I/O.
func (s *PGStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, password_hash, access_token, created_at, updated_at from users where email=$1`, email)
	var (
		u     User
		token sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &token, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.AccessToken = token.String

	roles, err := s.rolesForUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles

	whitelist, blacklist, err := s.overridesForUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Whitelist = whitelist
	u.Blacklist = blacklist
	return &u, nil
}

// Save upserts the user row. Role assignments and overrides are managed
// through the admin operations, not through Save.
func (s *PGStore) Save(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	var token any
	if u.AccessToken != "" {
		token = u.AccessToken
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, password_hash, access_token, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6)
		 on conflict (id) do update
		 set email=excluded.email, password_hash=excluded.password_hash,
		     access_token=excluded.access_token, updated_at=excluded.updated_at`,
		u.ID, u.Email, u.PasswordHash, token, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

func (s *PGStore) rolesForUser(ctx context.Context, userID string) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select r.id, r.name, r.description, r.created_at, r.updated_at
		 from roles r join user_roles ur on ur.role_id = r.id
		 where ur.user_id=$1 order by r.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range roles {
		perms, err := s.permissionsForRole(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}

func (s *PGStore) permissionsForRole(ctx context.Context, roleID string) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select p.id, p.route, p.description, p.created_at
		 from permissions p join role_permissions rp on rp.permission_id = p.id
		 where rp.role_id=$1 order by p.route`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Route, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *PGStore) overridesForUser(ctx context.Context, userID string) (whitelist, blacklist []Permission, err error) {
	rows, err := s.db.QueryContext(ctx,
		`select p.id, p.route, p.description, p.created_at, o.kind
		 from permissions p join user_overrides o on o.permission_id = p.id
		 where o.user_id=$1 order by p.route`, userID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p    Permission
			kind string
		)
		if err := rows.Scan(&p.ID, &p.Route, &p.Description, &p.CreatedAt, &kind); err != nil {
			return nil, nil, err
		}
		switch OverrideKind(kind) {
		case OverrideBlacklist:
			blacklist = append(blacklist, p)
		case OverrideWhitelist:
			whitelist = append(whitelist, p)
		}
	}
	return whitelist, blacklist, rows.Err()
}

// Revocation store ----------------------------------------------------------

func (s *PGStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`select exists(select 1 from revoked_tokens where token=$1)`, token)
	var revoked bool
	if err := row.Scan(&revoked); err != nil {
		return false, err
	}
	return revoked, nil
}

func (s *PGStore) Revoke(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into revoked_tokens(token, revoked_at) values($1,$2) on conflict (token) do nothing`,
		token, time.Now().UTC(),
	)
	return err
}

// Admin store ---------------------------------------------------------------

func (s *PGStore) EnsurePermissions(ctx context.Context, perms []Permission) error {
	for _, p := range perms {
		if p.ID == "" {
			p.ID = ids.New()
		}
		_, err := s.db.ExecContext(ctx,
			`insert into permissions(id, route, description) values($1,$2,$3) on conflict (route) do nothing`,
			p.ID, p.Route, p.Description,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PGStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, route, description, created_at from permissions order by route`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Route, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *PGStore) CreateRole(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into roles(id, name, description) values($1,$2,$3)`,
		role.ID, role.Name, role.Description,
	)
	return err
}

func (s *PGStore) SetRolePermissions(ctx context.Context, roleID string, routes []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id=$1`, roleID); err != nil {
		return err
	}
	for _, route := range routes {
		_, err := tx.ExecContext(ctx,
			`insert into role_permissions(role_id, permission_id)
			 select $1, id from permissions where route=$2`, roleID, route,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PGStore) AssignRole(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into user_roles(user_id, role_id) values($1,$2) on conflict do nothing`,
		userID, roleID,
	)
	return err
}

func (s *PGStore) SetOverride(ctx context.Context, userID, route string, kind OverrideKind) error {
	res, err := s.db.ExecContext(ctx,
		`insert into user_overrides(user_id, permission_id, kind)
		 select $1, id, $3 from permissions where route=$2
		 on conflict (user_id, permission_id, kind) do nothing`,
		userID, route, string(kind),
	)
	if err != nil {
		return err
	}
	// A zero-row insert that is not a conflict means the route is unknown.
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		if known, err := s.routeExists(ctx, route); err == nil && !known {
			return ErrNotFound
		}
	}
	return nil
}

func (s *PGStore) RemoveOverride(ctx context.Context, userID, route string, kind OverrideKind) error {
	_, err := s.db.ExecContext(ctx,
		`delete from user_overrides o using permissions p
		 where o.permission_id = p.id and o.user_id=$1 and p.route=$2 and o.kind=$3`,
		userID, route, string(kind),
	)
	return err
}

func (s *PGStore) routeExists(ctx context.Context, route string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `select exists(select 1 from permissions where route=$1)`, route)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
