package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldops/crewroster/internal/access"
	"github.com/fieldops/crewroster/internal/profile"
)

type profileRepo struct {
	q querier
}

const profileColumns = `id, email, display_name, company_id, role, is_super_admin, api_key_prefix, api_key_hash, created_at, updated_at`

// Create inserts a new user profile.
func (r *profileRepo) Create(ctx context.Context, p *profile.Profile) error {
	query := `
		INSERT INTO user_profiles (email, display_name, company_id, role, is_super_admin, api_key_prefix, api_key_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.q.QueryRow(ctx, query,
		p.Email,
		p.DisplayName,
		p.CompanyID,
		string(p.Role),
		p.IsSuperAdmin,
		p.APIKeyPrefix,
		p.APIKeyHash,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "user_profiles_email_key" {
			return profile.ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user profile: %w", err)
	}

	return nil
}

// GetByID retrieves a single profile by its UUID.
func (r *profileRepo) GetByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

// GetByEmail retrieves a profile by its lower-cased e-mail.
func (r *profileRepo) GetByEmail(ctx context.Context, email string) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE email = $1`
	return r.scanOne(ctx, query, email)
}

// FindByPrefix returns profiles whose API key starts with prefix.
func (r *profileRepo) FindByPrefix(ctx context.Context, prefix string) ([]profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE api_key_prefix = $1`
	return r.list(ctx, query, prefix)
}

// ListByCompany retrieves every profile linked to a company.
func (r *profileRepo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE company_id = $1 ORDER BY created_at ASC`
	return r.list(ctx, query, companyID)
}

// LinkCompany links a profile to a company. The WHERE clause enforces the
// one-company-per-user rule in the same statement as the write.
func (r *profileRepo) LinkCompany(ctx context.Context, id, companyID uuid.UUID, role access.Role) error {
	query := `
		UPDATE user_profiles
		SET company_id = $2, role = $3, updated_at = NOW()
		WHERE id = $1 AND (company_id IS NULL OR company_id = $2)`

	result, err := r.q.Exec(ctx, query, id, companyID, string(role))
	if err != nil {
		return fmt.Errorf("linking user profile: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		err := r.q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM user_profiles WHERE id = $1)", id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking user profile existence: %w", err)
		}
		if !exists {
			return profile.ErrNotFound
		}
		return profile.ErrLinkedElsewhere
	}

	return nil
}

// UnlinkCompany clears the company link when it points at companyID.
func (r *profileRepo) UnlinkCompany(ctx context.Context, id, companyID uuid.UUID) error {
	query := `
		UPDATE user_profiles
		SET company_id = NULL, role = '', updated_at = NOW()
		WHERE id = $1 AND company_id = $2`

	if _, err := r.q.Exec(ctx, query, id, companyID); err != nil {
		return fmt.Errorf("unlinking user profile: %w", err)
	}
	return nil
}

// CountSuperAdmins returns how many profiles carry the super admin flag.
func (r *profileRepo) CountSuperAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, "SELECT COUNT(*) FROM user_profiles WHERE is_super_admin").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting super admins: %w", err)
	}
	return count, nil
}

func (r *profileRepo) list(ctx context.Context, query string, arg any) ([]profile.Profile, error) {
	rows, err := r.q.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("listing user profiles: %w", err)
	}
	defer rows.Close()

	var profiles []profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user profile row: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user profile rows: %w", err)
	}

	if profiles == nil {
		profiles = []profile.Profile{}
	}

	return profiles, nil
}

func (r *profileRepo) scanOne(ctx context.Context, query string, arg any) (*profile.Profile, error) {
	p, err := scanProfile(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, profile.ErrNotFound
		}
		return nil, fmt.Errorf("querying user profile: %w", err)
	}
	return p, nil
}

func scanProfile(row pgx.Row) (*profile.Profile, error) {
	var p profile.Profile
	var role string
	err := row.Scan(
		&p.ID, &p.Email, &p.DisplayName, &p.CompanyID, &role, &p.IsSuperAdmin,
		&p.APIKeyPrefix, &p.APIKeyHash, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Role = access.Role(role)
	return &p, nil
}
