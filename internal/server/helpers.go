package server

import (
	"errors"
	"strings"

	"modqueue/internal/middleware"
	"modqueue/internal/models"
	"modqueue/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if prefix, ok := strings.CutSuffix(param, "Id"); ok {
		return strings.ToLower(prefix) + " ID"
	}
	return param
}

// session resolves the :sid route parameter and tags the request context with it.
// On failure it writes a 404 JSON response and returns errResponseWritten.
func (s *Server) session(c *fiber.Ctx) (*service.ModerationSession, error) {
	sid := c.Params("sid")
	sess, ok := s.sessions.Get(sid)
	if !ok {
		_ = models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Session", sid))
		return nil, errResponseWritten
	}
	c.SetUserContext(middleware.WithSessionID(c.UserContext(), sid))
	return sess, nil
}

// parseBody decodes the JSON body into dest and validates it.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// An empty body leaves dest untouched when allowEmpty is set.
func (s *Server) parseBody(c *fiber.Ctx, dest any, allowEmpty bool) error {
	if len(c.Body()) == 0 {
		if allowEmpty {
			return nil
		}
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Request body is required"))
		return errResponseWritten
	}
	if err := c.BodyParser(dest); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	if err := s.validate.Struct(dest); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(validationMessage(err)))
		return errResponseWritten
	}
	return nil
}

// validationMessage flattens validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Namespace()+" failed on '"+fe.Tag()+"'")
	}
	return strings.Join(parts, "; ")
}

// respondAppError writes err with the status its code maps to.
func respondAppError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusFor(err), err)
}
