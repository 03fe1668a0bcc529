package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/insightdelivered/statement-categorizer/internal/logger"
	"github.com/insightdelivered/statement-categorizer/internal/models"
)

func (h *Handler) HandleListCategories(c *fiber.Ctx) error {
	return c.JSON(h.Categories.List())
}

func (h *Handler) HandleAddCategory(c *fiber.Ctx) error {
	var cat models.Category
	if err := c.BodyParser(&cat); err != nil {
		return badRequest("Invalid category body.")
	}
	added, err := h.Categories.Add(cat)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(added)
}

func (h *Handler) HandleUpdateCategory(c *fiber.Ctx) error {
	var cat models.Category
	if err := c.BodyParser(&cat); err != nil {
		return badRequest("Invalid category body.")
	}
	updated, err := h.Categories.Update(c.Params("id"), cat)
	if err != nil {
		return err
	}
	return c.JSON(updated)
}

func (h *Handler) HandleDeleteCategory(c *fiber.Ctx) error {
	if err := h.Categories.Delete(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) HandleReloadCategories(c *fiber.Ctx) error {
	if err := h.Categories.Reload(); err != nil {
		return err
	}
	cats := h.Categories.List()
	log := logger.FromContext(c.UserContext())
	log.Info().Int("categories", len(cats)).Msg("categories reloaded")
	return c.JSON(cats)
}
