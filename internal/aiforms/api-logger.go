// Ответы API с ошибками и их журналирование.
//
// Основные возможности:
//   - Единый формат ответа с ошибкой (apierrors.DefinedError).
//   - Журналирование метода, адреса, пользователя и места вызова.
//   - Отдельная обработка слишком больших запросов и ошибок доступа.
package aiforms

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"runtime"

	"github.com/aisa-it/aiforms/internal/aiforms/apierrors"
	"github.com/labstack/echo/v4"
)

// Email пользователя запроса для журнала, пустая строка для анонимного запроса
func requestUser(c echo.Context) string {
	if ctx, ok := c.(AuthContext); ok && ctx.User != nil {
		return ctx.User.Email
	}
	return ""
}

// Возврат ошибки 400 с универсальным сообщением
func EError(c echo.Context, err error) error {
	if customErr, ok := err.(apierrors.DefinedError); ok {
		return EErrorDefined(c, customErr)
	}
	if err == nil {
		slog.Error("Unknown API error",
			"method", c.Request().Method,
			"url", c.Request().URL,
			"user", requestUser(c),
			getCallerFile(),
		)
	} else {
		slog.Error("API error",
			"err", err,
			"method", c.Request().Method,
			"url", c.Request().URL,
			"user", requestUser(c),
			getCallerFile(),
		)
	}
	return EErrorDefined(c, apierrors.ErrGeneric)
}

// Возврат ошибки <status> с сообщением ошибки (403 с пустой ошибкой и 404 не логируются)
func EErrorMsgStatus(c echo.Context, err error, status int) error {
	if status == http.StatusRequestEntityTooLarge {
		return EErrorDefined(c, apierrors.ErrEntityToLarge)
	}

	er := apierrors.ErrGeneric
	er.StatusCode = status
	if err == nil {
		if status != http.StatusForbidden {
			slog.Error("Unknown API error",
				"method", c.Request().Method,
				slog.Int("status", status),
				"url", c.Request().URL,
				"user", requestUser(c),
				getCallerFile(),
			)
		}
		return EErrorDefined(c, er)
	}

	if status != http.StatusNotFound {
		slog.Error("API error",
			"err", err,
			"method", c.Request().Method,
			slog.Int("status", status),
			"url", c.Request().URL,
			"user", requestUser(c),
			getCallerFile(),
		)
	}
	er.Err = err.Error()
	return EErrorDefined(c, er)
}

// Возврат ошибки 400 с сообщением ошибки
func EErrorMsg(c echo.Context, err error) error {
	if err == nil {
		slog.Error("Unknown API error",
			"method", c.Request().Method,
			"url", c.Request().URL,
			"user", requestUser(c),
			getCallerFile(),
		)
		return EErrorDefined(c, apierrors.ErrGeneric)
	}
	slog.Error("API error",
		"err", err,
		"method", c.Request().Method,
		"url", c.Request().URL,
		"user", requestUser(c),
		getCallerFile(),
	)
	er := apierrors.ErrGeneric
	er.Err = err.Error()
	return EErrorDefined(c, er)
}

// EErrorDefined возвращает JSON-ответ с кодом статуса и описанием ошибки. Если код статуса не определен, используется 400 Bad Request.
//
// Параметры:
//   - c: контекст Echo
//   - err: ошибка из перечня apierrors
//
// Возвращает:
//   - error: ошибка записи ответа
func EErrorDefined(c echo.Context, err apierrors.DefinedError) error {
	// If unknown code use 400 Bad Request
	if http.StatusText(err.StatusCode) == "" {
		err.StatusCode = http.StatusBadRequest
	}
	return c.JSON(err.StatusCode, err)
}

// getCallerFile возвращает файл и строку, откуда вызван помощник ответа с ошибкой.
func getCallerFile() slog.Attr {
	_, path, no, ok := runtime.Caller(2)
	if !ok {
		return slog.Attr{}
	}
	_, file := filepath.Split(path)
	return slog.String("caller", fmt.Sprintf("%s:%d", file, no))
}
