package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldops/crewroster/internal/access"
	"github.com/fieldops/crewroster/internal/code"
	"github.com/fieldops/crewroster/internal/invitation"
)

type invitationRepo struct {
	q querier
}

const invitationColumns = `id, company_id, email, role, code, status, invited_by, expires_at, accepted_at, created_at, updated_at`

// Create inserts a new invitation. Codes are unique across every row, so a
// resolved invitation keeps its code; the (company, email) pair is only
// unique among pending rows.
func (r *invitationRepo) Create(ctx context.Context, inv *invitation.Invitation) error {
	if inv.Status == "" {
		inv.Status = invitation.StatusPending
	}

	query := `
		INSERT INTO invitations (company_id, email, role, code, status, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.q.QueryRow(ctx, query,
		inv.CompanyID,
		inv.Email,
		string(inv.Role),
		inv.Code,
		string(inv.Status),
		inv.InvitedBy,
		inv.ExpiresAt,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			switch constraint {
			case "invitations_code_key":
				return code.ErrTaken
			case "invitations_pending_email_key":
				return invitation.ErrDuplicatePending
			}
		}
		return fmt.Errorf("inserting invitation: %w", err)
	}

	return nil
}

// GetByID retrieves a single invitation by its UUID.
func (r *invitationRepo) GetByID(ctx context.Context, id uuid.UUID) (*invitation.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

// GetByCode retrieves the invitation holding a code, whatever its status.
func (r *invitationRepo) GetByCode(ctx context.Context, c string) (*invitation.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE code = $1`
	return r.scanOne(ctx, query, c)
}

// GetPendingByEmail retrieves the pending invitation for a company/e-mail pair.
func (r *invitationRepo) GetPendingByEmail(ctx context.Context, companyID uuid.UUID, email string) (*invitation.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE company_id = $1 AND email = $2 AND status = 'pending'`
	return r.scanOne(ctx, query, companyID, email)
}

// ListByCompany lists a company's invitations, newest first, optionally
// filtered by status.
func (r *invitationRepo) ListByCompany(ctx context.Context, companyID uuid.UUID, status *invitation.Status) ([]invitation.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE company_id = $1`
	args := []any{companyID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing invitations: %w", err)
	}
	defer rows.Close()

	var invitations []invitation.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invitation row: %w", err)
		}
		invitations = append(invitations, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invitation rows: %w", err)
	}

	if invitations == nil {
		invitations = []invitation.Invitation{}
	}

	return invitations, nil
}

// SetStatus resolves a pending invitation. accepted_at is only written for
// StatusAccepted.
func (r *invitationRepo) SetStatus(ctx context.Context, id uuid.UUID, status invitation.Status, at time.Time) error {
	query := `
		UPDATE invitations
		SET status = $2,
		    accepted_at = CASE WHEN $2 = 'accepted' THEN $3::timestamptz ELSE accepted_at END,
		    updated_at = $3
		WHERE id = $1 AND status = 'pending'`

	result, err := r.q.Exec(ctx, query, id, string(status), at)
	if err != nil {
		return fmt.Errorf("updating invitation status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.missingOrResolved(ctx, id)
	}
	return nil
}

// Refresh extends a pending invitation and swaps its code.
func (r *invitationRepo) Refresh(ctx context.Context, id uuid.UUID, c string, expiresAt time.Time) error {
	query := `
		UPDATE invitations
		SET code = $2, expires_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	result, err := r.q.Exec(ctx, query, id, c, expiresAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "invitations_code_key" {
			return code.ErrTaken
		}
		return fmt.Errorf("refreshing invitation: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.missingOrResolved(ctx, id)
	}
	return nil
}

// Delete hard-deletes an invitation.
func (r *invitationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.Exec(ctx, `DELETE FROM invitations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting invitation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return invitation.ErrNotFound
	}
	return nil
}

func (r *invitationRepo) missingOrResolved(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := r.q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM invitations WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking invitation existence: %w", err)
	}
	if !exists {
		return invitation.ErrNotFound
	}
	return invitation.ErrNotPending
}

func (r *invitationRepo) scanOne(ctx context.Context, query string, args ...any) (*invitation.Invitation, error) {
	inv, err := scanInvitation(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invitation.ErrNotFound
		}
		return nil, fmt.Errorf("querying invitation: %w", err)
	}
	return inv, nil
}

func scanInvitation(row pgx.Row) (*invitation.Invitation, error) {
	var inv invitation.Invitation
	var role, status string
	err := row.Scan(
		&inv.ID, &inv.CompanyID, &inv.Email, &role, &inv.Code, &status,
		&inv.InvitedBy, &inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Role = access.Role(role)
	inv.Status = invitation.Status(status)
	return &inv, nil
}
