package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atang/wimf-backend/internal/domain"
	"github.com/atang/wimf-backend/internal/repository"
	"github.com/atang/wimf-backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// ContextUserKey is where RequireAuth stores the authenticated user.
	ContextUserKey = "current_user"
	// ContextUserIDKey is where RequireAuth stores the authenticated user id.
	ContextUserIDKey = "user_id"
)

// AuthMiddleware verifies platform-issued JWTs. Identity is owned by the
// forum; this feature only consumes its tokens.
type AuthMiddleware struct {
	secret       string
	presenceRepo repository.PresenceRepository
	log          *logger.Logger
}

func NewAuthMiddleware(secret string, presenceRepo repository.PresenceRepository, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secret:       secret,
		presenceRepo: presenceRepo,
		log:          log,
	}
}

// sessionClaims are the token fields the platform issues for its users.
type sessionClaims struct {
	Username       string  `json:"username"`
	Name           *string `json:"name,omitempty"`
	AvatarTemplate *string `json:"avatar_template,omitempty"`
	Admin          bool    `json:"admin"`
	jwt.RegisteredClaims
}

// RequireAuth rejects requests without a valid bearer token and records
// request-time presence for the authenticated user.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		claims := &sessionClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(m.secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		userID, err := userIDFromSubject(claims)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
			return
		}

		user := &domain.User{
			ID:             userID,
			Username:       claims.Username,
			Name:           claims.Name,
			AvatarTemplate: claims.AvatarTemplate,
			Admin:          claims.Admin,
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextUserKey, user)

		m.touchPresence(c.Request.Context(), userID)

		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) touchPresence(ctx context.Context, userID int) {
	if m.presenceRepo == nil {
		return
	}
	// Fail open, presence is cosmetic.
	touchCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := m.presenceRepo.Touch(touchCtx, userID); err != nil && m.log != nil {
		m.log.Debug("failed to record presence", "user_id", userID, "error", err)
	}
}

func userIDFromSubject(claims *sessionClaims) (int, error) {
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, err
	}
	var id int
	if _, err := fmt.Sscanf(sub, "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subject %q", sub)
	}
	return id, nil
}

// CurrentUser returns the authenticated user set by RequireAuth, or nil.
func CurrentUser(c *gin.Context) *domain.User {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*domain.User)
	if !ok {
		return nil
	}
	return user
}
