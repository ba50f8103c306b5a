package middleware

import (
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"ticketing/internal/auth"
	apperrors "ticketing/internal/errors"
	"ticketing/internal/model"
	"ticketing/internal/policy"
	"ticketing/internal/service"
)

const (
	// PrincipalKey is the echo context key holding the authenticated *Principal.
	PrincipalKey = "principal"

	authErrorKey = "auth_error"
)

// Principal is the caller resolved from a bearer token.
type Principal struct {
	User   *model.User
	Claims *auth.Claims
}

// PrincipalFrom returns the authenticated caller, if any.
func PrincipalFrom(c echo.Context) (*Principal, bool) {
	p, ok := c.Get(PrincipalKey).(*Principal)
	return p, ok && p != nil
}

// ActorFrom returns the policy actor of the request. Anonymous requests yield the zero Actor.
func ActorFrom(c echo.Context) policy.Actor {
	p, ok := PrincipalFrom(c)
	if !ok {
		return policy.Actor{}
	}
	return policy.Actor{UserID: p.User.ID, Email: p.User.Email, Role: p.User.Role}
}

// Authenticate requires a valid, non-revoked access token of an active user.
func Authenticate(authService service.AuthService) echo.MiddlewareFunc {
	return echojwt.WithConfig(jwtConfig(authService, false))
}

// OptionalAuthenticate resolves the caller when a valid token is presented and lets
// anonymous or badly authenticated requests through unchanged.
func OptionalAuthenticate(authService service.AuthService) echo.MiddlewareFunc {
	return echojwt.WithConfig(jwtConfig(authService, true))
}

func jwtConfig(authService service.AuthService, optional bool) echojwt.Config {
	return echojwt.Config{
		ContextKey:             PrincipalKey,
		TokenLookup:            "header:" + echo.HeaderAuthorization + ":Bearer ",
		ContinueOnIgnoredError: optional,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			user, claims, err := authService.Authenticate(c.Request().Context(), token)
			if err != nil {
				c.Set(authErrorKey, err)
				return nil, err
			}
			return &Principal{User: user, Claims: claims}, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			if optional {
				return nil
			}
			if authErr, ok := c.Get(authErrorKey).(error); ok {
				return authErr
			}
			return apperrors.Unauthorized("No token provided")
		},
	}
}

// RequireRole rejects authenticated callers whose role is not in roles.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	rule := policy.Rule{Roles: roles}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := PrincipalFrom(c); !ok {
				return apperrors.Unauthorized("No token provided")
			}
			if err := rule.Authorize(ActorFrom(c), uuid.Nil); err != nil {
				return err
			}
			return next(c)
		}
	}
}
