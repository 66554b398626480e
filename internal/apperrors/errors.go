package apperrors

import (
	"errors"
	"net/http"
)

// Kind классифицирует ошибку для клиента
type Kind string

const (
	KindAuthentication Kind = "authentication_error"
	KindValidation     Kind = "validation_error"
	KindNotFound       Kind = "not_found"
	KindForbidden      Kind = "forbidden"
	KindUnavailable    Kind = "unavailable"

	// только для HTTP поверхности
	KindConflict    Kind = "conflict"
	KindRateLimited Kind = "rate_limited"
)

const genericMessage = "internal server error"

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is позволяет сравнивать ошибки по виду: errors.Is(err, apperrors.NotFound(""))
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func Authentication(msg string) *Error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func RateLimited(msg string) *Error {
	return &Error{Kind: KindRateLimited, Message: msg}
}

// Unavailable оборачивает сбой хранилища; причина видна только в логах
func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Message: genericMessage, Err: err}
}

// KindOf возвращает вид ошибки, всё неизвестное считается unavailable
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}

// Body безопасное для клиента представление ошибки
type Body struct {
	Code    Kind   `json:"code"`
	Message string `json:"message"`
}

// Public не раскрывает внутренние детали: для unavailable всегда общий текст
func Public(err error) Body {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindUnavailable {
		return Body{Code: e.Kind, Message: e.Message}
	}
	return Body{Code: KindUnavailable, Message: genericMessage}
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusServiceUnavailable
	}
}
