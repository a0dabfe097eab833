package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"catalogfacets/internal/controller"
	"catalogfacets/internal/query"
	"catalogfacets/internal/services"
)

// SessionHandlers drive the server-side filter sessions: one controller per
// browsing session, mutated over REST.
type SessionHandlers struct {
	sessions    services.SessionService
	waitTimeout time.Duration
}

func NewSessionHandlers(sessions services.SessionService, waitTimeout time.Duration) *SessionHandlers {
	return &SessionHandlers{sessions: sessions, waitTimeout: waitTimeout}
}

// SessionResponse is a session's id with its current view.
type SessionResponse struct {
	ID string `json:"id"`
	controller.Snapshot
}

type CreateSessionRequest struct {
	URL string `json:"url" validate:"max=4096"`
}

type ToggleRequest struct {
	Facet string `json:"facet" validate:"required"`
	Value string `json:"value" validate:"required"`
}

type RangeRequest struct {
	Min *float64 `json:"min" validate:"omitempty,gte=0"`
	Max *float64 `json:"max" validate:"omitempty,gte=0"`
}

type AttributeRequest struct {
	Attribute string   `json:"attribute" validate:"required"`
	Slugs     []string `json:"slugs" validate:"dive,required"`
	Operator  string   `json:"operator" validate:"omitempty,oneof=and or"`
}

type SearchRequest struct {
	Text string `json:"text" validate:"max=200"`
}

type SortRequest struct {
	Order string `json:"order"`
}

type NavigateRequest struct {
	URL string `json:"url" validate:"required,max=4096"`
}

// respond renders the session. With ?wait=true it first waits, bounded, for
// the counts of the current generation.
func (h *SessionHandlers) respond(c echo.Context, status int, session *services.Session) error {
	if c.QueryParam("wait") == "true" {
		ctx, cancel := context.WithTimeout(c.Request().Context(), h.waitTimeout)
		_ = session.Controller.Wait(ctx)
		cancel()
	}
	return c.JSON(status, SessionResponse{ID: session.ID, Snapshot: session.Controller.View()})
}

func (h *SessionHandlers) session(c echo.Context) (*services.Session, error) {
	session, err := h.sessions.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, httpError(err)
	}
	return session, nil
}

// mutate loads the session, applies fn to its controller and renders it.
func (h *SessionHandlers) mutate(c echo.Context, req interface{}, fn func(*controller.Controller) error) error {
	if req != nil {
		if err := bindAndValidate(c, req); err != nil {
			return err
		}
	}
	session, err := h.session(c)
	if err != nil {
		return err
	}
	if err := fn(session.Controller); err != nil {
		return httpError(err)
	}
	return h.respond(c, http.StatusOK, session)
}

// CreateSession opens a session whose address bar starts at the given URL.
func (h *SessionHandlers) CreateSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	session, err := h.sessions.Create(c.Request().Context(), req.URL)
	if err != nil {
		return httpError(err)
	}
	return h.respond(c, http.StatusCreated, session)
}

func (h *SessionHandlers) GetSession(c echo.Context) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, session)
}

func (h *SessionHandlers) Toggle(c echo.Context) error {
	var req ToggleRequest
	return h.mutate(c, &req, func(ctrl *controller.Controller) error {
		return ctrl.ToggleKey(req.Facet, req.Value)
	})
}

func (h *SessionHandlers) SetRange(c echo.Context) error {
	var req RangeRequest
	return h.mutate(c, &req, func(ctrl *controller.Controller) error {
		return ctrl.SetRange(req.Min, req.Max)
	})
}

func (h *SessionHandlers) SetAttribute(c echo.Context) error {
	var req AttributeRequest
	return h.mutate(c, &req, func(ctrl *controller.Controller) error {
		op, err := query.ParseOperator(req.Operator)
		if err != nil {
			return err
		}
		return ctrl.SetAttribute(req.Attribute, req.Slugs, op)
	})
}

func (h *SessionHandlers) SetSearch(c echo.Context) error {
	var req SearchRequest
	return h.mutate(c, &req, func(ctrl *controller.Controller) error {
		return ctrl.SetSearch(req.Text)
	})
}

func (h *SessionHandlers) SetSort(c echo.Context) error {
	var req SortRequest
	return h.mutate(c, &req, func(ctrl *controller.Controller) error {
		return ctrl.SetSort(req.Order)
	})
}

func (h *SessionHandlers) ClearAll(c echo.Context) error {
	return h.mutate(c, nil, func(ctrl *controller.Controller) error {
		return ctrl.ClearAll()
	})
}

// Navigate moves the session's address bar as back/forward would and
// rehydrates the filters from it.
func (h *SessionHandlers) Navigate(c echo.Context) error {
	var req NavigateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	session, err := h.sessions.Navigate(c.Request().Context(), c.Param("id"), req.URL)
	if err != nil {
		return httpError(err)
	}
	return h.respond(c, http.StatusOK, session)
}

func (h *SessionHandlers) DeleteSession(c echo.Context) error {
	if err := h.sessions.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
