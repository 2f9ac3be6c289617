// Package identity resolves the signed-in principal for a request. Sign-in
// itself happens at the hosted identity provider; this package only reads
// what the API Gateway authorizer (or a local header) has already asserted.
package identity

import (
	"context"
	"strings"

	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
)

const (
	HeaderPrincipalID    = "X-Principal-Id"
	HeaderPrincipalEmail = "X-Principal-Email"
)

// Principal is an authenticated caller.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SessionSource yields the principal of the current request.
type SessionSource interface {
	CurrentSession(ctx context.Context) (*Principal, error)
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// ContextSource reads the principal stored by Middleware.
type ContextSource struct{}

func (ContextSource) CurrentSession(ctx context.Context) (*Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return nil, apperr.New(apperr.CodeUnauthorized, "sign in required")
	}
	return p, nil
}

// Middleware attaches the caller's principal to the request context when one
// is present. Anonymous requests pass through untouched. Trusting the
// X-Principal-* headers is only safe locally, so they are read only when
// trustHeaders is set.
func Middleware(trustHeaders bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		p := fromAuthorizer(ctx)
		if p == nil && trustHeaders {
			p = fromHeaders(c)
		}
		if p != nil {
			c.Request = c.Request.WithContext(WithPrincipal(ctx, p))
		}
		c.Next()
	}
}

// fromAuthorizer reads Cognito user pool claims, falling back to the flat
// context a Lambda authorizer returns.
func fromAuthorizer(ctx context.Context) *Principal {
	reqCtx, ok := core.GetAPIGatewayContextFromContext(ctx)
	if !ok || reqCtx.Authorizer == nil {
		return nil
	}

	src := reqCtx.Authorizer
	if claims, ok := reqCtx.Authorizer["claims"].(map[string]interface{}); ok {
		src = claims
	}

	id := stringClaim(src, "sub")
	if id == "" {
		id = stringClaim(src, "principalId")
	}
	if id == "" {
		return nil
	}
	return &Principal{ID: id, Email: strings.ToLower(stringClaim(src, "email"))}
}

func fromHeaders(c *gin.Context) *Principal {
	id := strings.TrimSpace(c.GetHeader(HeaderPrincipalID))
	if id == "" {
		return nil
	}
	return &Principal{ID: id, Email: strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderPrincipalEmail)))}
}

func stringClaim(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
