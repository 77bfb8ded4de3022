package server

import (
	"slices"

	"modqueue/internal/models"

	"github.com/gofiber/fiber/v2"
)

type loadPostsRequest struct {
	Posts []models.Post `json:"posts" validate:"dive"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason"`
}

type batchRequest struct {
	IDs    []uint `json:"ids" validate:"omitempty,dive,gt=0"`
	Status string `json:"status" validate:"required"`
}

type filterRequest struct {
	Status string `json:"status" validate:"required"`
}

type selectAllRequest struct {
	IDs []uint `json:"ids" validate:"omitempty,dive,gt=0"`
}

// CreateSession starts a review session. With ?source=db the reported posts
// are fetched in the background and the session reports loading until then.
func (s *Server) CreateSession(c *fiber.Ctx) error {
	source := c.Query("source")
	if source != "" && source != "db" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("source must be empty or 'db'"))
	}
	if source == "db" && s.loader == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewValidationError("database source is not configured"))
	}

	sess := s.sessions.Create()
	if source == "db" {
		s.loader.LoadAsync(c.UserContext(), sess)
	}
	return c.Status(fiber.StatusCreated).JSON(sess.State())
}

// GetSession returns the aggregate state of a session.
func (s *Server) GetSession(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return nil
	}
	return c.JSON(sess.State())
}

// DeleteSession drops a session and everything it holds.
func (s *Server) DeleteSession(c *fiber.Ctx) error {
	sid := c.Params("sid")
	if !s.sessions.Delete(sid) {
		return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Session", sid))
	}
	s.hub.CloseSession(sid)
	return c.SendStatus(fiber.StatusNoContent)
}

// LoadPosts replaces every post in the session with the request body.
func (s *Server) LoadPosts(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return nil
	}
	var req loadPostsRequest
	if err := s.parseBody(c, &req, false); err != nil {
		return nil
	}
	sess.Load(req.Posts)
	return c.JSON(sess.State())
}

// GetPosts lists posts in load order. ?status= filters by one status and
// ?status=current uses the session filter; no status lists everything.
func (s *Server) GetPosts(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return nil
	}

	raw := c.Query("status")
	switch raw {
	case "":
		return c.JSON(sess.Posts(nil))
	case "current":
		return c.JSON(sess.VisiblePosts())
	}

	status, err := models.ParseStatus(raw)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(sess.Posts(&status))
}

// PreviewPost returns one post with the ids of its neighbors.
func (s *Server) PreviewPost(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	preview, ok := sess.Preview(id)
	if !ok {
		return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Post", id))
	}
	return c.JSON(preview)
}

// GetCounts returns the number of posts per status.
func (s *Server) GetCounts(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return nil
	}
	return c.JSON(sess.CountsByStatus())
}

// SetFilter changes the status shown by ?status=current.
func (s *Server) SetFilter(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return nil
	}
	var req filterRequest
	if err := s.parseBody(c, &req, false); err != nil {
		return nil
	}
	if err := sess.SetFilter(models.Status(req.Status)); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"filter": sess.Filter()})
}

// TransitionPost approves or rejects one post. An unknown post id answers 200
// with applied=false.
func (s *Server) TransitionPost(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req transitionRequest
	if err := s.parseBody(c, &req, false); err != nil {
		return nil
	}

	res, err := sess.TransitionSingle(c.UserContext(), id, models.Status(req.Status), req.Reason)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(res)
}

// TransitionBatch approves or rejects many posts. Without ids the current
// selection is used. The selection is cleared afterwards.
func (s *Server) TransitionBatch(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return nil
	}
	var req batchRequest
	if err := s.parseBody(c, &req, false); err != nil {
		return nil
	}

	ids := req.IDs
	if ids == nil {
		ids = sess.Selection()
	}

	res, err := sess.TransitionBatch(c.UserContext(), ids, models.Status(req.Status))
	if err != nil {
		return respondAppError(c, err)
	}
	sess.ClearSelection()
	return c.JSON(res)
}

// GetSelection returns the selected ids.
func (s *Server) GetSelection(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return nil
	}
	return c.JSON(fiber.Map{"ids": sess.Selection()})
}

// ToggleSelection selects or deselects one post. Only pending posts may be
// added; an already selected post can always be removed.
func (s *Server) ToggleSelection(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, ok := sess.Post(id)
	if !ok {
		return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Post", id))
	}
	if post.Status != models.StatusPending && !slices.Contains(sess.Selection(), id) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("only pending posts can be selected"))
	}

	selected := sess.ToggleSelect(id)
	return c.JSON(fiber.Map{"selected": selected, "ids": sess.Selection()})
}

// SelectAll selects the given ids, or every pending post when none are given.
// When the selection already covers them it is cleared instead.
func (s *Server) SelectAll(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return nil
	}
	var req selectAllRequest
	if err := s.parseBody(c, &req, true); err != nil {
		return nil
	}

	var ids []uint
	if req.IDs == nil {
		ids = sess.SelectAllPending()
	} else {
		ids = sess.SelectAll(req.IDs)
	}
	return c.JSON(fiber.Map{"ids": ids})
}

// ClearSelection empties the selection.
func (s *Server) ClearSelection(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return nil
	}
	sess.ClearSelection()
	return c.SendStatus(fiber.StatusNoContent)
}

// RevertLastAction undoes the most recent transition, if any.
func (s *Server) RevertLastAction(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return nil
	}
	reverted := sess.RevertLastAction(c.UserContext())
	return c.JSON(fiber.Map{"reverted": reverted})
}

// ClearPendingAction drops the undo entry without restoring anything.
func (s *Server) ClearPendingAction(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return nil
	}
	sess.ClearPendingAction(c.UserContext())
	return c.SendStatus(fiber.StatusNoContent)
}
