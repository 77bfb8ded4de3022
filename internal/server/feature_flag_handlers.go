package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags returns configured flag names and, with ?session=, their
// evaluated state for that session.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"names":     []string{},
			"evaluated": map[string]bool{},
		})
	}

	return c.JSON(fiber.Map{
		"names":     s.featureFlags.Names(),
		"evaluated": s.featureFlags.Snapshot(c.Query("session")),
	})
}
