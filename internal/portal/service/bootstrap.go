package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/certeu/do-portal/internal/portal/domain"
	"github.com/certeu/do-portal/internal/portal/store"
	"github.com/certeu/do-portal/pkg/idx"
)

// SeedRoles inserts the built-in roles if they are missing. Creation order
// matters: the SLA role must precede any later qualifying role so SLA
// registration keeps picking it.
func SeedRoles(ctx context.Context, s store.Store) error {
	defaults := []struct {
		name  string
		perms domain.Permission
	}{
		{domain.RoleConstituent, domain.PermOrgAdmin | domain.PermSubmitSample | domain.PermAddAccount},
		{domain.RoleSLAConstituent, domain.PermOrgAdmin | domain.PermSubmitSample | domain.PermAddAccount | domain.PermSLAActions},
		{domain.RoleAdministrator, 0xff},
	}

	for _, d := range defaults {
		_, err := s.Roles().GetRoleByName(ctx, d.name)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("lookup role %q: %w", d.name, err)
		}

		now := time.Now().UTC()
		role := domain.Role{
			ID:          idx.New().String(),
			Name:        d.name,
			Permissions: d.perms,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Roles().CreateRole(ctx, role); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
			return fmt.Errorf("create role %q: %w", d.name, err)
		}
	}
	return nil
}
