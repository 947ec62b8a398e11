package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleLanguages(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"languages": s.catalog.Regions(),
	})
}

func (s *Server) handleLanguagesFlat(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"languages": s.catalog.Flat(),
	})
}
