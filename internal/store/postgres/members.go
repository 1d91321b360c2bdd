package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldops/crewroster/internal/access"
	"github.com/fieldops/crewroster/internal/member"
)

type memberRepo struct {
	q querier
}

const memberColumns = `id, company_id, email, user_id, role, status, invitation_id, email_sent, email_sent_at, created_at, updated_at`

// Create inserts a new team member record.
func (r *memberRepo) Create(ctx context.Context, m *member.Member) error {
	if m.Status == "" {
		m.Status = member.StatusPending
	}

	query := `
		INSERT INTO team_members (company_id, email, user_id, role, status, invitation_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.q.QueryRow(ctx, query,
		m.CompanyID,
		m.Email,
		m.UserID,
		string(m.Role),
		string(m.Status),
		m.InvitationID,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return member.ErrDuplicateEmail
		}
		return fmt.Errorf("inserting team member: %w", err)
	}

	return nil
}

// GetByID retrieves a single team member by its UUID.
func (r *memberRepo) GetByID(ctx context.Context, id uuid.UUID) (*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM team_members WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

// GetByEmail retrieves a company's team member row for an e-mail.
func (r *memberRepo) GetByEmail(ctx context.Context, companyID uuid.UUID, email string) (*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM team_members WHERE company_id = $1 AND email = $2`
	return r.scanOne(ctx, query, companyID, email)
}

// GetByInvitation retrieves the team member paired with an invitation.
func (r *memberRepo) GetByInvitation(ctx context.Context, invitationID uuid.UUID) (*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM team_members WHERE invitation_id = $1`
	return r.scanOne(ctx, query, invitationID)
}

// ListByCompany retrieves all team members of a company ordered by creation time.
func (r *memberRepo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM team_members WHERE company_id = $1 ORDER BY created_at ASC`

	rows, err := r.q.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("listing team members: %w", err)
	}
	defer rows.Close()

	var members []member.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning team member row: %w", err)
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating team member rows: %w", err)
	}

	if members == nil {
		members = []member.Member{}
	}

	return members, nil
}

// Update writes the mutable fields of a team member.
func (r *memberRepo) Update(ctx context.Context, m *member.Member) error {
	query := `
		UPDATE team_members
		SET user_id = $2, role = $3, status = $4, invitation_id = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.q.QueryRow(ctx, query,
		m.ID,
		m.UserID,
		string(m.Role),
		string(m.Status),
		m.InvitationID,
	).Scan(&m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return member.ErrNotFound
		}
		return fmt.Errorf("updating team member: %w", err)
	}

	return nil
}

// MarkEmailSent records a successful invitation e-mail.
func (r *memberRepo) MarkEmailSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE team_members
		SET email_sent = TRUE, email_sent_at = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.q.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("marking team member email sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return member.ErrNotFound
	}
	return nil
}

// Delete hard-deletes a team member.
func (r *memberRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.Exec(ctx, `DELETE FROM team_members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting team member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return member.ErrNotFound
	}
	return nil
}

func (r *memberRepo) scanOne(ctx context.Context, query string, args ...any) (*member.Member, error) {
	m, err := scanMember(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, member.ErrNotFound
		}
		return nil, fmt.Errorf("querying team member: %w", err)
	}
	return m, nil
}

func scanMember(row pgx.Row) (*member.Member, error) {
	var m member.Member
	var role, status string
	err := row.Scan(
		&m.ID, &m.CompanyID, &m.Email, &m.UserID, &role, &status,
		&m.InvitationID, &m.EmailSent, &m.EmailSentAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Role = access.Role(role)
	m.Status = member.Status(status)
	return &m, nil
}
