package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/listinglab/clover/pkg/appcontext"
)

const (
	// HeaderActorID is the header key for the acting user when auth is disabled
	HeaderActorID = "X-Actor-ID"
)

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			// get request id from header
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			// actor id from header; the auth middleware overwrites this
			// with the token subject when auth is enabled
			actorID := req.Header.Get(HeaderActorID)

			ctx := req.Context()
			ctx = appcontext.SetRequestID(ctx, requestID)
			ctx = appcontext.SetMethod(ctx, req.Method)
			ctx = appcontext.SetRoute(ctx, req.URL.Path)
			ctx = appcontext.SetRemoteIP(ctx, c.RealIP())
			ctx = appcontext.SetActorID(ctx, actorID)

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
