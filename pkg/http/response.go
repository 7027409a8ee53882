package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	applogger "SensorPull/pkg/logger"
)

// DataResponse writes data inside the standard envelope.
func DataResponse(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Status: status, Message: http.StatusText(status), Data: data})
}

func SuccessResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusOK, data)
}

func CreatedResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusCreated, data)
}

// ListResponse writes rows as a Page.
func ListResponse(c echo.Context, rows any, total int64) error {
	return SuccessResponse(c, Page{Rows: rows, Total: total})
}

// BadRequestResponse reports rejected request fields.
func BadRequestResponse(c echo.Context, errs []FieldError) error {
	return DataResponse(c, http.StatusBadRequest, errs)
}

// AppErrorResponse writes err with its own status when it is an *AppError
// or an *echo.HTTPError, and as a 500 otherwise.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return DataResponse(c, appErr.Status, []*AppError{appErr})
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return DataResponse(c, he.Code, []*AppError{{
			Code:    codeFor(he.Code),
			Status:  he.Code,
			Message: fmt.Sprint(he.Message),
		}})
	}
	return DataResponse(c, http.StatusInternalServerError, []*AppError{InternalErrorf("internal error")})
}

// ErrorHandler renders errors returned by handlers and middleware in the envelope.
func ErrorHandler(l *applogger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var appErr *AppError
		var he *echo.HTTPError
		if !errors.As(err, &appErr) && !errors.As(err, &he) {
			l.Error("unhandled request error",
				applogger.String("path", c.Path()),
				applogger.Error(err),
			)
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(statusOf(err))
			return
		}
		if werr := AppErrorResponse(c, err); werr != nil {
			l.Warn("write error response", applogger.Error(werr))
		}
	}
}

func statusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
