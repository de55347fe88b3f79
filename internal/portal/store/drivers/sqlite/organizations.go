package sqlite

import (
	"context"

	"github.com/certeu/do-portal/internal/portal/domain"
)

type organizationsRepo struct {
	db dbtx
}

const orgColumns = `id, abbreviation, full_name, sla, created_at, updated_at`

func scanOrganization(row interface{ Scan(...any) error }) (domain.Organization, error) {
	var o domain.Organization
	err := row.Scan(&o.ID, &o.Abbreviation, &o.FullName, &o.SLA, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Organization{}, mapNotFound(err)
	}
	return o, nil
}

func (r *organizationsRepo) GetOrganizationByID(ctx context.Context, id string) (domain.Organization, error) {
	return scanOrganization(r.db.QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE id = ?`, id))
}

func (r *organizationsRepo) GetOrganizationByAbbreviation(ctx context.Context, abbr string) (domain.Organization, error) {
	return scanOrganization(r.db.QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE abbreviation = ?`, abbr))
}

func (r *organizationsRepo) CreateOrganization(ctx context.Context, o domain.Organization) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO organizations (`+orgColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.Abbreviation, o.FullName, o.SLA, o.CreatedAt, o.UpdatedAt)
	return mapConstraint(err)
}
