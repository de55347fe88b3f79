package sqlite

import (
	"context"
	"time"

	"github.com/certeu/do-portal/internal/portal/domain"
	"github.com/certeu/do-portal/internal/portal/store"
)

type contactEmailsRepo struct {
	db dbtx
}

const contactEmailColumns = `id, organization_id, email, cp, created_at, updated_at`

func scanContactEmail(row interface{ Scan(...any) error }) (domain.ContactEmail, error) {
	var ce domain.ContactEmail
	err := row.Scan(&ce.ID, &ce.OrganizationID, &ce.Email, &ce.CP, &ce.CreatedAt, &ce.UpdatedAt)
	if err != nil {
		return domain.ContactEmail{}, mapNotFound(err)
	}
	return ce, nil
}

func (r *contactEmailsRepo) GetContactEmail(ctx context.Context, orgID, email string) (domain.ContactEmail, error) {
	return scanContactEmail(r.db.QueryRowContext(ctx,
		`SELECT `+contactEmailColumns+` FROM contact_emails WHERE organization_id = ? AND email = ?`,
		orgID, email))
}

func (r *contactEmailsRepo) CreateContactEmail(ctx context.Context, ce domain.ContactEmail) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contact_emails (`+contactEmailColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		ce.ID, ce.OrganizationID, ce.Email, ce.CP, ce.CreatedAt, ce.UpdatedAt)
	return mapConstraint(err)
}

func (r *contactEmailsRepo) SetCP(ctx context.Context, id string, cp bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE contact_emails SET cp = ?, updated_at = ? WHERE id = ?`,
		cp, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
