package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldops/crewroster/internal/code"
	"github.com/fieldops/crewroster/internal/company"
)

type companyRepo struct {
	q querier
}

const companyColumns = `id, name, code, owner_id, owner_pending_email, is_active, is_protected, created_at, updated_at`

// Create inserts a new company. The unique index on code makes this the
// insert-if-absent primitive for join codes.
func (r *companyRepo) Create(ctx context.Context, c *company.Company) error {
	query := `
		INSERT INTO companies (name, code, owner_pending_email, is_active, is_protected)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.q.QueryRow(ctx, query,
		c.Name,
		c.Code,
		c.OwnerPendingEmail,
		c.IsActive,
		c.IsProtected,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "companies_code_key" {
			return code.ErrTaken
		}
		return fmt.Errorf("inserting company: %w", err)
	}

	return nil
}

// GetByID retrieves a single company by its UUID.
func (r *companyRepo) GetByID(ctx context.Context, id uuid.UUID) (*company.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

// GetByCode retrieves a company by its join code.
func (r *companyRepo) GetByCode(ctx context.Context, c string) (*company.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE code = $1`
	return r.scanOne(ctx, query, c)
}

// ResolveOwner records the owner's account and clears the pending e-mail.
func (r *companyRepo) ResolveOwner(ctx context.Context, id, ownerID uuid.UUID) error {
	query := `
		UPDATE companies
		SET owner_id = $2, owner_pending_email = NULL, updated_at = NOW()
		WHERE id = $1 AND (owner_id IS NULL OR owner_id = $2)`

	result, err := r.q.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("resolving company owner: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		err := r.q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM companies WHERE id = $1)", id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking company existence: %w", err)
		}
		if !exists {
			return company.ErrNotFound
		}
		return company.ErrOwnerAlreadyResolved
	}

	return nil
}

func (r *companyRepo) scanOne(ctx context.Context, query string, arg any) (*company.Company, error) {
	var c company.Company
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&c.ID, &c.Name, &c.Code, &c.OwnerID, &c.OwnerPendingEmail,
		&c.IsActive, &c.IsProtected, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, company.ErrNotFound
		}
		return nil, fmt.Errorf("querying company: %w", err)
	}
	return &c, nil
}
