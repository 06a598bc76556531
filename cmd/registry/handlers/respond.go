package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/opendataplatform/registry/cmd/registry/service"
	"github.com/opendataplatform/registry/common/errs"
	"github.com/opendataplatform/registry/common/logger"
)

const maxPageSize = 1000

// respondError writes err with the status of its domain kind. Unclassified
// errors are logged and reported without their message.
func respondError(c echo.Context, log *logger.Logger, err error) error {
	kind := errs.KindOf(err)
	status := errs.HTTPStatus(kind)

	if status >= http.StatusInternalServerError {
		log.WithContext(c.Request().Context()).Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"kind", kind,
			"error", err)

		message := "internal server error"
		if kind == errs.KindFatal {
			message = err.Error()
		}
		return c.JSON(status, map[string]interface{}{
			"error": message,
			"kind":  kind,
		})
	}

	body := map[string]interface{}{
		"error": err.Error(),
		"kind":  kind,
	}
	if detail := errs.DetailOf(err); detail != nil {
		body["detail"] = detail
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"error": message,
	})
}

// parsePage reads ?limit= and ?offset=
func parsePage(c echo.Context) (service.Page, error) {
	var page service.Page
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			return page, errs.Unprocessable("limit must be between 1 and %d", maxPageSize)
		}
		page.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, errs.Unprocessable("offset must be a non-negative integer")
		}
		page.Offset = n
	}
	return page, nil
}

// queryBool reads a boolean query parameter; anything unparseable is false
func queryBool(c echo.Context, name string) bool {
	b, _ := strconv.ParseBool(c.QueryParam(name))
	return b
}
