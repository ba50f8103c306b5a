package handler

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "ticketing/internal/errors"
	"ticketing/internal/repository"
)

const (
	defaultPageLimit = 10
	adminPageLimit   = 20
	maxPageLimit     = 100
)

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperrors.Validation("Invalid request body")
	}
	return c.Validate(req)
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.Validation("Validation failed", apperrors.FieldError{
			Field:   name,
			Message: name + " must be a valid id",
		})
	}
	return id, nil
}

// query collects optional query parameters and their validation failures.
type query struct {
	c      echo.Context
	fields []apperrors.FieldError
}

func newQuery(c echo.Context) *query {
	return &query{c: c}
}

func (q *query) fail(field, message string) {
	q.fields = append(q.fields, apperrors.FieldError{Field: field, Message: message})
}

// page reads page and limit, falling back to defaultLimit when limit is absent or invalid.
func (q *query) page(defaultLimit int) repository.Page {
	p := repository.Page{Page: 1, Limit: defaultLimit}
	if err := echo.QueryParamsBinder(q.c).Int("page", &p.Page).BindError(); err != nil || p.Page < 1 {
		q.fail("page", "page must be a number greater than or equal to 1")
		p.Page = 1
	}
	if err := echo.QueryParamsBinder(q.c).Int("limit", &p.Limit).BindError(); err != nil || p.Limit < 1 || p.Limit > maxPageLimit {
		q.fail("limit", "limit must be a number between 1 and 100")
		p.Limit = defaultLimit
	}
	return p
}

// date accepts RFC 3339 timestamps and plain dates.
func (q *query) date(name string) *time.Time {
	raw := strings.TrimSpace(q.c.QueryParam(name))
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	q.fail(name, name+" must be a valid date")
	return nil
}

func (q *query) id(name string) *uuid.UUID {
	raw := strings.TrimSpace(q.c.QueryParam(name))
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		q.fail(name, name+" must be a valid id")
		return nil
	}
	return &id
}

func (q *query) oneOf(name string, allowed ...string) string {
	raw := strings.TrimSpace(q.c.QueryParam(name))
	if raw == "" {
		return ""
	}
	for _, a := range allowed {
		if raw == a {
			return raw
		}
	}
	q.fail(name, name+" must be one of ["+strings.Join(allowed, " ")+"]")
	return ""
}

func (q *query) err() error {
	if len(q.fields) == 0 {
		return nil
	}
	return apperrors.Validation("Validation failed", q.fields...)
}
