package database

import (
	"context"

	"github.com/google/uuid"
)

const getTenantBySlug = `SELECT id, slug, name, is_active, created_at
FROM tenants
WHERE slug = $1`

func (q *Queries) GetTenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	var t Tenant
	err := q.db.QueryRow(ctx, getTenantBySlug, slug).Scan(
		&t.ID, &t.Slug, &t.Name, &t.IsActive, &t.CreatedAt,
	)
	return t, err
}

const userColumns = `id, tenant_id, email, hashed_password, full_name, role, is_active`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.IsActive)
	return u, err
}

const getUserByEmail = `SELECT ` + userColumns + `
FROM users
WHERE email = $1 AND is_active = true`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `SELECT ` + userColumns + `
FROM users
WHERE id = $1 AND is_active = true`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}
