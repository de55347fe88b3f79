package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/certeu/do-portal/internal/portal/domain"
	"github.com/certeu/do-portal/internal/portal/store"
)

type sessionsRepo struct {
	db dbtx
}

const sessionColumns = `id, token_hash, user_id, pending_email, pending_password, created_at, updated_at, expires_at`

func scanSession(row interface{ Scan(...any) error }) (domain.Session, error) {
	var (
		s               domain.Session
		userID          sql.NullString
		pendingEmail    sql.NullString
		pendingPassword sql.NullString
	)
	err := row.Scan(&s.ID, &s.TokenHash, &userID, &pendingEmail, &pendingPassword,
		&s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.UserID = mapNullStringPtr(userID)
	s.PendingEmail = mapNullStringPtr(pendingEmail)
	s.PendingPassword = mapNullStringPtr(pendingPassword)
	return s, nil
}

func (r *sessionsRepo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error) {
	return scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE token_hash = ?`, tokenHash))
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.TokenHash, mapOptionalString(s.UserID),
		mapOptionalString(s.PendingEmail), mapOptionalString(s.PendingPassword),
		s.CreatedAt, s.UpdatedAt, s.ExpiresAt)
	return mapConstraint(err)
}

func (r *sessionsRepo) SetPendingLogin(ctx context.Context, sessionID, email, password string) error {
	return r.exec(ctx,
		`UPDATE sessions SET user_id = NULL, pending_email = ?, pending_password = ?, updated_at = ? WHERE id = ?`,
		email, password, time.Now().UTC(), sessionID)
}

// ConsumePendingLogin reads and clears the pending credentials. The clearing
// UPDATE re-checks the read values so concurrent consumers cannot both win.
func (r *sessionsRepo) ConsumePendingLogin(ctx context.Context, sessionID string) (string, string, error) {
	var email, password string
	err := r.db.QueryRowContext(ctx,
		`SELECT pending_email, pending_password FROM sessions
		 WHERE id = ? AND pending_email IS NOT NULL AND pending_password IS NOT NULL`,
		sessionID).Scan(&email, &password)
	if err != nil {
		return "", "", mapNotFound(err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET pending_email = NULL, pending_password = NULL, updated_at = ?
		 WHERE id = ? AND pending_email = ? AND pending_password = ?`,
		time.Now().UTC(), sessionID, email, password)
	if err != nil {
		return "", "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", "", err
	}
	if n == 0 {
		return "", "", store.ErrNotFound
	}
	return email, password, nil
}

func (r *sessionsRepo) BindUser(ctx context.Context, sessionID, userID string) error {
	return r.exec(ctx,
		`UPDATE sessions SET user_id = ?, pending_email = NULL, pending_password = NULL, updated_at = ? WHERE id = ?`,
		userID, time.Now().UTC(), sessionID)
}

func (r *sessionsRepo) UnbindUser(ctx context.Context, sessionID string) error {
	return r.exec(ctx,
		`UPDATE sessions SET user_id = NULL, pending_email = NULL, pending_password = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), sessionID)
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) DeleteSessionsForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

func (r *sessionsRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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
