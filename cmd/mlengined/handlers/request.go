package handlers

import (
	"encoding/json"
	"mime"
	"strconv"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/mlengine/pkg/api/types/errors"
)

// requireJSON answers 400 unless the request body is declared as json.
func requireJSON(c echo.Context) error {
	ctyp, _, err := mime.ParseMediaType(c.Request().Header.Get("content-type"))
	if err != nil || ctyp != "application/json" {
		return apierr.BadRequest(
			"unexpected content type. it shoule be application/json", err,
		)
	}
	return nil
}

func decodeJSON(c echo.Context, v any) error {
	if err := json.NewDecoder(c.Request().Body).Decode(v); err != nil {
		return apierr.BadRequest("can not understand the requested json", err)
	}
	return nil
}

// positiveQuery reads a positive integer query parameter, or fallback if it is not given.
func positiveQuery(c echo.Context, key string, fallback int) (int, error) {
	q := c.QueryParam(key)
	if q == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return 0, apierr.BadRequest(`"`+key+`" should be a positive integer`, err)
	}
	return n, nil
}
