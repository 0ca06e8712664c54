package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/finsecure/portal-core/pkg/domain"
)

const notificationColumns = `id, user_id, type, title, message, is_read, reference_id, reference_type, created_at`

// CreateNotification persists an in-app notification.
func (r *PostgresRepository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, is_read, reference_id, reference_type)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
		RETURNING created_at
	`, n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.ReferenceID, n.ReferenceType).Scan(&n.CreatedAt)
}

// ListNotifications returns one page of a user's notifications, newest first.
func (r *PostgresRepository) ListNotifications(ctx context.Context, userID uuid.UUID, req domain.PageRequest) ([]domain.Notification, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, userID, req.Size, req.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var notificationType string
		if err := rows.Scan(&n.ID, &n.UserID, &notificationType, &n.Title, &n.Message, &n.IsRead, &n.ReferenceID, &n.ReferenceType, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		n.Type = domain.NotificationType(notificationType)
		items = append(items, n)
	}
	return items, total, rows.Err()
}

// MarkAllNotificationsRead flags every unread notification of a user as read.
func (r *PostgresRepository) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountUnreadNotifications counts a user's unread notifications.
func (r *PostgresRepository) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID).Scan(&total)
	return total, err
}

// CreateOtp stores a new code and retires any earlier unused code for the
// same email and purpose.
func (r *PostgresRepository) CreateOtp(ctx context.Context, otp *domain.Otp) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	email := normalizeEmail(otp.Email)
	if _, err := tx.Exec(ctx, `UPDATE otps SET used = TRUE WHERE email = $1 AND purpose = $2 AND used = FALSE`, email, string(otp.Purpose)); err != nil {
		return err
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO otps (id, email, code_hash, purpose, expires_at, used, attempt_count)
		VALUES ($1, $2, $3, $4, $5, FALSE, 0)
		RETURNING created_at
	`, otp.ID, email, otp.CodeHash, string(otp.Purpose), otp.ExpiresAt).Scan(&otp.CreatedAt)
	if err != nil {
		return err
	}
	otp.Email = email
	return tx.Commit(ctx)
}

// FindLatestOtp returns the newest unused code for an email and purpose.
func (r *PostgresRepository) FindLatestOtp(ctx context.Context, email string, purpose domain.OtpPurpose) (*domain.Otp, error) {
	var otp domain.Otp
	var storedPurpose string
	err := r.db.QueryRow(ctx, `
		SELECT id, email, code_hash, purpose, expires_at, used, attempt_count, created_at
		FROM otps
		WHERE email = $1 AND purpose = $2 AND used = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`, normalizeEmail(email), string(purpose)).Scan(
		&otp.ID, &otp.Email, &otp.CodeHash, &storedPurpose, &otp.ExpiresAt, &otp.Used, &otp.AttemptCount, &otp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOtpNotFound
		}
		return nil, err
	}
	otp.Purpose = domain.OtpPurpose(storedPurpose)
	return &otp, nil
}

// RecordOtpAttempt increments the attempt counter and returns the new value.
func (r *PostgresRepository) RecordOtpAttempt(ctx context.Context, otpID uuid.UUID) (int, error) {
	var attempts int
	err := r.db.QueryRow(ctx, `UPDATE otps SET attempt_count = attempt_count + 1 WHERE id = $1 RETURNING attempt_count`, otpID).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrOtpNotFound
		}
		return 0, err
	}
	return attempts, nil
}

// ConsumeOtp marks a code as used. A code can be consumed at most once.
func (r *PostgresRepository) ConsumeOtp(ctx context.Context, otpID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE otps SET used = TRUE WHERE id = $1 AND used = FALSE`, otpID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOtpNotFound
	}
	return nil
}

// PurgeExpiredOtps deletes codes that expired before the cutoff.
func (r *PostgresRepository) PurgeExpiredOtps(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM otps WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
