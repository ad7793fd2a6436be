package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ithub/crossposter/internal/models"
	"github.com/ithub/crossposter/internal/repository"
	"github.com/ithub/crossposter/internal/service"
)

type TokenRefreshJob struct {
	sr repository.SocialAccountRepository
	as service.AccountService
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, as service.AccountService) *TokenRefreshJob {
	return &TokenRefreshJob{sr: sr, as: as}
}

// RefreshTokens renews access tokens expiring within the next half hour.
// Telegram accounts carry no tokens and are skipped.
func (j *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := j.sr.ListByTokenExpiry(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		if acc.Platform != models.PlatformInstagram {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := j.as.RefreshInstagramToken(ctx, acc); err != nil {
				slog.Info("unable to refresh instagram token", "account_id", acc.ID)
			}
		}(acc)
	}

	wg.Wait()
}
