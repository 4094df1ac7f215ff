package webui

import (
	_ "embed"

	"github.com/gofiber/fiber/v2"
)

//go:embed assets/index.html
var indexHTML []byte

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/html; charset=utf-8")
	return c.Send(indexHTML)
}
