package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"

	"github.com/chetanraj-2002/real-coder-jam/internal/domain"
)

// IdentityKey is the gin context key the identity middleware stores
// claims under.
const IdentityKey = "identity"

// Identity attaches display claims from the external identity provider's
// token when one is present. It never rejects a request: the relay
// trusts the initiating transport session and only uses claims to label
// participants, so a missing or invalid token simply yields a guest
// identity downstream. Browsers cannot set headers on WebSocket
// upgrades, so a "token" query parameter is accepted as well.
func Identity(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSecret == "" {
			c.Next()
			return
		}
		tokenStr := extractToken(c)
		if tokenStr == "" {
			c.Next()
			return
		}
		identity, err := parseIdentity(tokenStr, jwtSecret)
		if err != nil {
			logrus.WithError(err).Debug("Identity middleware: ignoring invalid token")
			c.Next()
			return
		}
		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// IdentityFrom reads the identity stored by the middleware, reporting
// whether one was present.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	value, ok := c.Get(IdentityKey)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	return identity, ok
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return c.Query("token")
}

func parseIdentity(tokenStr, secret string) (domain.Identity, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return domain.Identity{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return domain.Identity{}, jwt.ErrTokenInvalidClaims
	}
	identity := domain.Identity{}
	if sub, ok := claims["sub"].(string); ok {
		identity.UserID = sub
	}
	if email, ok := claims["email"].(string); ok {
		identity.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		identity.Name = name
	}
	if identity.UserID == "" {
		return domain.Identity{}, fmt.Errorf("token carries no subject claim")
	}
	return identity, nil
}
