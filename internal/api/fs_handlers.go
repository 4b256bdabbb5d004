package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"nnoitra-backend/internal/system"
)

// fsHandler handles GET /api/fs
func (h *Handler) fsHandler(c echo.Context) error {
	action := c.QueryParam("action")
	path := c.QueryParam("path")
	pwd := c.QueryParam("pwd")

	switch action {
	case "ls":
		listing, err := h.sandbox.List(path, pwd)
		if err != nil {
			return h.fsError(c, path, err)
		}
		return c.JSON(http.StatusOK, listing)

	case "cat":
		content, err := h.sandbox.Cat(path, pwd)
		if err != nil {
			return h.fsError(c, path, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"content": content})

	case "resolve":
		resolved, err := h.sandbox.Resolve(path, pwd, c.QueryParam("must_be_dir") == "true")
		if err != nil {
			return h.fsError(c, path, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"path": resolved})

	case "get_public_url":
		url, err := h.sandbox.PublicURL(path, pwd)
		if err != nil {
			return h.fsError(c, path, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"url": url})

	default:
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Unknown action: " + action,
		})
	}
}

// staticFileHandler serves files of the sandbox under the public prefix
func (h *Handler) staticFileHandler(c echo.Context) error {
	requested := "/" + c.Param("*")
	host, err := h.sandbox.File(requested)
	if err != nil {
		if errors.Is(err, system.ErrIsDir) {
			err = system.ErrNotExist
		}
		return h.fsError(c, requested, err)
	}
	return c.File(host)
}

// fsError maps a sandbox error to a response. requested is the virtual
// path as the client sent it.
func (h *Handler) fsError(c echo.Context, requested string, err error) error {
	var fsErr system.Error
	if !errors.As(err, &fsErr) {
		h.log.Error("filesystem request failed",
			zap.String("path", requested),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Internal server error.",
		})
	}

	status := http.StatusBadRequest
	switch fsErr {
	case system.ErrNotExist:
		status = http.StatusNotFound
	case system.ErrTraversal:
		status = http.StatusForbidden
	}
	return c.JSON(status, map[string]string{"error": fsErr.Error()})
}
