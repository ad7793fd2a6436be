package handlers

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	cfg "github.com/ithub/crossposter/configs"
	"github.com/ithub/crossposter/internal/service"
	"github.com/ithub/crossposter/pkg/utils"
)

type AccountHandler struct {
	s   service.AccountService
	cfg cfg.Config
}

func NewAccountHandler(cfg cfg.Config, s service.AccountService) *AccountHandler {
	return &AccountHandler{s: s, cfg: cfg}
}

// AddSocialAccount redirects to the platform's oauth consent page. The
// session token rides along as oauth state so the callback can recover the
// user without a cookie.
func (h *AccountHandler) AddSocialAccount(c *fiber.Ctx) error {
	platform := c.Params("platform")
	tokenString := c.Cookies(h.cfg.CookieName)

	authURL, err := h.s.GetAuthURL(c.Context(), platform, tokenString)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Redirect(authURL, fiber.StatusTemporaryRedirect)
}

func (h *AccountHandler) CallbackHandler(c *fiber.Ctx) error {
	platform := c.Params("platform")
	code := c.Query("code")
	state := c.Query("state")

	claims, err := utils.ValidateToken(h.cfg.SecretKey, state)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid state token",
		})
	}
	userID := parseUserID(claims.UserID)

	switch platform {
	case "instagram":
		if err := h.s.InstagramCallback(c.Context(), code, userID); err != nil {
			slog.Error(err.Error())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to link account",
			})
		}
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Unknown platform %s", platform),
		})
	}

	return c.Redirect(h.cfg.FrontendURL, fiber.StatusTemporaryRedirect)
}

func (h *AccountHandler) LinkTelegram(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var body struct {
		ChatID string `json:"chat_id"`
		Name   string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	account, err := h.s.LinkTelegram(c.Context(), userID, body.ChatID, body.Name)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(account)
}

func (h *AccountHandler) ListSocialAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accounts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list accounts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(accounts)
}

func (h *AccountHandler) DeleteSocialAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)
	accountID := c.QueryInt("id", 0)

	if err := h.s.Delete(c.Context(), userID, int64(accountID)); err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
