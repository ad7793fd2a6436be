package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	cfg "github.com/ithub/crossposter/configs"
	"github.com/ithub/crossposter/internal/models"
	"github.com/ithub/crossposter/internal/repository"
	"github.com/ithub/crossposter/internal/transfer"
	"github.com/ithub/crossposter/pkg/utils"
	"golang.org/x/oauth2"
)

var instagramEndpoint = oauth2.Endpoint{
	AuthURL:  "https://www.instagram.com/oauth/authorize",
	TokenURL: "https://api.instagram.com/oauth/access_token",
}

type AccountService interface {
	GetAuthURL(ctx context.Context, platform, state string) (string, error)
	InstagramCallback(ctx context.Context, code string, userID int64) error
	LinkTelegram(ctx context.Context, userID int64, chatID, name string) (*models.SocialAccount, error)
	RefreshInstagramToken(ctx context.Context, account *models.SocialAccount) error
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Delete(ctx context.Context, userID, accountID int64) error
}

type accountService struct {
	cfg   cfg.Config
	sa    repository.SocialAccountRepository
	oauth *oauth2.Config
}

func NewAccountService(cfg cfg.Config, sa repository.SocialAccountRepository) AccountService {
	return &accountService{
		cfg: cfg,
		sa:  sa,
		oauth: &oauth2.Config{
			ClientID:     cfg.InstagramClientID,
			ClientSecret: cfg.InstagramClientSecret,
			RedirectURL:  cfg.InstagramRedirectURI,
			Scopes:       []string{"instagram_business_basic", "instagram_business_content_publish"},
			Endpoint:     instagramEndpoint,
		},
	}
}

func (s *accountService) GetAuthURL(ctx context.Context, platform, state string) (string, error) {
	switch platform {
	case models.PlatformInstagram:
		return s.oauth.AuthCodeURL(state), nil
	default:
		return "", fmt.Errorf("no oauth flow for platform %s", platform)
	}
}

func (s *accountService) InstagramCallback(ctx context.Context, code string, userID int64) error {
	if code == "" {
		return errors.New("authorization code is empty")
	}
	if userID == 0 {
		return errors.New("user is not valid")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("failed to exchange code: %w", err)
	}

	longLived, err := s.exchangeLongLivedToken(ctx, token.AccessToken)
	if err != nil {
		return err
	}

	userInfo, err := s.getInstagramUserInfo(ctx, longLived.AccessToken)
	if err != nil {
		return err
	}

	encryptedToken, err := utils.Encrypt([]byte(longLived.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	account := &models.SocialAccount{
		UserID:          userID,
		Platform:        models.PlatformInstagram,
		ExternalID:      userInfo.UserID,
		AccountName:     userInfo.Name,
		AccountUsername: userInfo.Username,
		AccessToken:     encryptedToken,
		RefreshToken:    encryptedToken,
		TokenExpiresAt:  longLived.ExpiresAt,
		Active:          true,
	}

	if _, err := s.sa.Create(ctx, nil, account); err != nil {
		return err
	}

	return nil
}

func (s *accountService) exchangeLongLivedToken(ctx context.Context, shortLivedToken string) (*transfer.InstagramToken, error) {
	url := fmt.Sprintf(
		"https://graph.instagram.com/access_token?grant_type=ig_exchange_token&client_secret=%s&access_token=%s",
		s.cfg.InstagramClientSecret,
		shortLivedToken,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to get long-lived token: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode long-lived token response: %w", err)
	}

	return &transfer.InstagramToken{
		AccessToken: result.AccessToken,
		ExpiresAt:   time.Now().Add(time.Second * time.Duration(result.ExpiresIn)),
	}, nil
}

func (s *accountService) getInstagramUserInfo(ctx context.Context, accessToken string) (*transfer.InstagramUserInfo, error) {
	reqURL := fmt.Sprintf(
		"https://graph.instagram.com/me?fields=id,username,name,profile_picture_url&access_token=%s",
		accessToken,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var userInfo transfer.InstagramUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &userInfo, nil
}

// LinkTelegram registers a bot chat directly; telegram bots have no oauth.
func (s *accountService) LinkTelegram(ctx context.Context, userID int64, chatID, name string) (*models.SocialAccount, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, errors.New("chat id cannot be empty")
	}

	account := &models.SocialAccount{
		UserID:      userID,
		Platform:    models.PlatformTelegram,
		ExternalID:  chatID,
		AccountName: name,
		Active:      true,
	}

	id, err := s.sa.Create(ctx, nil, account)
	if err != nil {
		return nil, fmt.Errorf("error linking telegram chat: %w", err)
	}
	account.ID = id

	return account, nil
}

func (s *accountService) RefreshInstagramToken(ctx context.Context, account *models.SocialAccount) error {
	refreshToken, err := utils.Decrypt(account.RefreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	url := fmt.Sprintf(
		"https://graph.instagram.com/refresh_access_token?grant_type=ig_refresh_token&access_token=%s",
		refreshToken,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	encryptedToken, err := utils.Encrypt([]byte(result.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(time.Second * time.Duration(result.ExpiresIn))
	return s.sa.SetToken(ctx, account.ID, encryptedToken, encryptedToken, expiresAt)
}

func (s *accountService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	accounts, err := s.sa.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing social accounts: %w", err)
	}
	return accounts, nil
}

func (s *accountService) Delete(ctx context.Context, userID, accountID int64) error {
	exists, err := s.sa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: id %d", ErrAccountNotFound, accountID)
	}

	return s.sa.Remove(ctx, accountID)
}
