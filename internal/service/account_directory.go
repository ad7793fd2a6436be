package service

import (
	"context"
	"fmt"

	cfg "github.com/ithub/crossposter/configs"
	"github.com/ithub/crossposter/internal/models"
	"github.com/ithub/crossposter/internal/repository"
	"github.com/ithub/crossposter/pkg/utils"
)

// AccountDirectory resolves a user's linked platform accounts to dispatch
// addresses. Access tokens come back decrypted, ready for a sender.
type AccountDirectory interface {
	ListForUser(ctx context.Context, userID int64, platform string) ([]*models.SocialAccount, error)
}

type accountDirectory struct {
	cfg cfg.Config
	sa  repository.SocialAccountRepository
}

func NewAccountDirectory(cfg cfg.Config, sa repository.SocialAccountRepository) AccountDirectory {
	return &accountDirectory{cfg: cfg, sa: sa}
}

func (d *accountDirectory) ListForUser(ctx context.Context, userID int64, platform string) ([]*models.SocialAccount, error) {
	accounts, err := d.sa.ListByUserAndPlatform(ctx, userID, platform)
	if err != nil {
		return nil, fmt.Errorf("error listing %s accounts for user %d: %w", platform, userID, err)
	}

	for _, acc := range accounts {
		if acc.AccessToken == "" {
			continue
		}
		token, err := utils.Decrypt(acc.AccessToken, []byte(d.cfg.SecretKey))
		if err != nil {
			return nil, fmt.Errorf("error decrypting token for account %d: %w", acc.ID, err)
		}
		acc.AccessToken = token
	}

	return accounts, nil
}
