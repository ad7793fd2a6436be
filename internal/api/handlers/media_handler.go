package handlers

import (
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/ithub/crossposter/internal/service"
)

type MediaHandler struct {
	s service.MediaService
}

func NewMediaHandler(s service.MediaService) *MediaHandler {
	return &MediaHandler{s: s}
}

func (h *MediaHandler) Upload(c *fiber.Ctx) error {
	userID := GetUserID(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file provided",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to open file",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to read file",
		})
	}

	asset, err := h.s.Upload(c.Context(), userID, data)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(asset)
}

func (h *MediaHandler) ListMedia(c *fiber.Ctx) error {
	userID := GetUserID(c)

	assets, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list media",
		})
	}

	return c.Status(fiber.StatusOK).JSON(assets)
}
