package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/ithub/crossposter/internal/models"
	"github.com/ithub/crossposter/internal/queue"
	"github.com/ithub/crossposter/internal/service"
	"github.com/ithub/crossposter/internal/transfer"
)

type PostHandler struct {
	s         service.PostService
	publisher service.Publisher
	eq        queue.Enqueuer
}

func NewPostHandler(s service.PostService, publisher service.Publisher, eq queue.Enqueuer) *PostHandler {
	return &PostHandler{s: s, publisher: publisher, eq: eq}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	post, err := h.s.Create(c.Context(), userID, &pc)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if post.Status == models.PostStatusScheduled {
		delay := time.Until(post.ScheduledAt.Time)
		if err := h.eq.EnqueuePublish(post.ID, delay); err != nil {
			slog.Error("error scheduling publish", "post_id", post.ID, "error", err.Error())
		}
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid post id",
		})
	}

	post, err := h.s.Get(c.Context(), userID, int64(postID))
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	status := c.Query("status")
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	posts, err := h.s.List(c.Context(), userID, status, limit, offset)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid post id",
		})
	}

	var pu transfer.PostUpdate
	if err := c.BodyParser(&pu); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	post, err := h.s.Update(c.Context(), userID, int64(postID), &pu)
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if post.Status == models.PostStatusScheduled {
		delay := time.Until(post.ScheduledAt.Time)
		if err := h.eq.EnqueuePublish(post.ID, delay); err != nil {
			slog.Error("error scheduling publish", "post_id", post.ID, "error", err.Error())
		}
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid post id",
		})
	}

	if err := h.s.Remove(c.Context(), userID, int64(postID)); err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

// PublishPost triggers delivery synchronously and returns the post with the
// per-task breakdown, partial failures included.
func (h *PostHandler) PublishPost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid post id",
		})
	}

	// Ownership check before touching the publish pipeline.
	if _, err := h.s.Get(c.Context(), userID, int64(postID)); err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	post, err := h.publisher.Publish(c.Context(), int64(postID))
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(post)
}
