package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// errorBody is the error envelope for every non-2xx response: a single
// human-readable detail string.
type errorBody struct {
	Detail string `json:"detail"`
}

func fail(c echo.Context, code int, detail string) error {
	return c.JSON(code, errorBody{Detail: detail})
}

func failValidation(c echo.Context, detail string) error {
	return fail(c, http.StatusBadRequest, detail)
}

func failNotFound(c echo.Context, detail string) error {
	return fail(c, http.StatusNotFound, detail)
}

func internalError(c echo.Context, detail string) error {
	return fail(c, http.StatusInternalServerError, detail)
}

func decodeJSONBody(c echo.Context, target any) error {
	if c == nil || c.Request() == nil || c.Request().Body == nil {
		return fmt.Errorf("request body is required")
	}

	decoder := json.NewDecoder(c.Request().Body)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
