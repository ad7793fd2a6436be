package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/ithub/crossposter/internal/models"
)

type SocialAccountRepository interface {
	Create(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	ListByUserAndPlatform(ctx context.Context, userID int64, platform string) ([]*models.SocialAccount, error)
	ListByTokenExpiry(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error)
	CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error)
	SetToken(ctx context.Context, accountID int64, accessToken, refreshToken string, expiresAt time.Time) error
	Remove(ctx context.Context, id int64) error
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

const accountColumns = `id, user_id, platform, external_id, account_name, account_username, access_token, refresh_token, token_expires_at, active, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*models.SocialAccount, error) {
	var sa models.SocialAccount
	err := row.Scan(
		&sa.ID,
		&sa.UserID,
		&sa.Platform,
		&sa.ExternalID,
		&sa.AccountName,
		&sa.AccountUsername,
		&sa.AccessToken,
		&sa.RefreshToken,
		&sa.TokenExpiresAt,
		&sa.Active,
		&sa.CreatedAt,
		&sa.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

func (r *socialAccountRepository) Create(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error) {
	query := `
		INSERT INTO social_accounts (user_id, platform, external_id, account_name, account_username, access_token, refresh_token, token_expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, sa.UserID, sa.Platform, sa.ExternalID, sa.AccountName, sa.AccountUsername, sa.AccessToken, sa.RefreshToken, sa.TokenExpiresAt, sa.Active).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, sa.UserID, sa.Platform, sa.ExternalID, sa.AccountName, sa.AccountUsername, sa.AccessToken, sa.RefreshToken, sa.TokenExpiresAt, sa.Active).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts WHERE id = $1`

	sa, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return sa, nil
}

func (r *socialAccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts WHERE user_id = $1`
	return r.list(ctx, query, userID)
}

func (r *socialAccountRepository) ListByUserAndPlatform(ctx context.Context, userID int64, platform string) ([]*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts WHERE user_id = $1 AND platform = $2`
	return r.list(ctx, query, userID, platform)
}

func (r *socialAccountRepository) ListByTokenExpiry(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts WHERE token_expires_at BETWEEN $1 AND $2`
	return r.list(ctx, query, initialTime, finalTime)
}

func (r *socialAccountRepository) list(ctx context.Context, query string, args ...any) ([]*models.SocialAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := scanAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, sa)
	}
	if err = rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return accounts, nil
}

func (r *socialAccountRepository) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	query := "SELECT 1 FROM social_accounts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, accountID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *socialAccountRepository) SetToken(ctx context.Context, accountID int64, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE social_accounts
		SET access_token = $1,
			refresh_token = $2,
			token_expires_at = $3,
			updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, accessToken, refreshToken, expiresAt, time.Now(), accountID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialAccountRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM social_accounts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
