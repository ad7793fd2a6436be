package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/ithub/crossposter/internal/service"
)

func GetUserID(c *fiber.Ctx) int64 {
	userID, _ := strconv.Atoi(c.Locals("user_id").(string))
	return int64(userID)
}

func parseUserID(raw string) int64 {
	userID, _ := strconv.Atoi(raw)
	return int64(userID)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrPostNotFound), errors.Is(err, service.ErrAccountNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrNoTasks):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
