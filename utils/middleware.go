package utils

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	RequestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
)

// ErrForbidden is returned when the shared api-key does not match.
var ErrForbidden = errors.New("forbidden: wrong api-key")

// ForbiddenMessage is the 403 body for a wrong api-key.
const ForbiddenMessage = "Sorry, that's not allowed. Make sure you have the correct api-key"

// maxKeyLen is the longest key bcrypt can tell apart.
const maxKeyLen = 72

// APIKeyGuard compares a presented key with the configured shared secret.
// A plain secret is kept as its SHA-256 digest. A configured bcrypt hash is
// used as is.
type APIKeyGuard struct {
	digest []byte
	hash   []byte
}

// NewAPIKeyGuard uses hash when set, otherwise key.
func NewAPIKeyGuard(key, hash string) (*APIKeyGuard, error) {
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, err
		}
		return &APIKeyGuard{hash: []byte(hash)}, nil
	}
	if key == "" {
		return nil, errors.New("api key is empty")
	}
	sum := sha256.Sum256([]byte(key))
	return &APIKeyGuard{digest: sum[:]}, nil
}

// Check returns ErrForbidden unless key equals the shared secret.
func (g *APIKeyGuard) Check(key string) error {
	if key == "" {
		return ErrForbidden
	}
	if g.hash == nil {
		sum := sha256.Sum256([]byte(key))
		if subtle.ConstantTimeCompare(sum[:], g.digest) != 1 {
			return ErrForbidden
		}
		return nil
	}
	// bcrypt truncates at 72 bytes and cycles the key around a NUL, so
	// anything it cannot distinguish is refused before comparing.
	if len(key) > maxKeyLen || strings.IndexByte(key, 0) >= 0 {
		return ErrForbidden
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(key)); err != nil {
		return ErrForbidden
	}
	return nil
}

// RequireAPIKey rejects requests whose api-key query parameter does not match.
func (g *APIKeyGuard) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := g.Check(c.Query("api-key")); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": ForbiddenMessage})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestID propagates the incoming X-Request-Id or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestIDFrom returns the id set by RequestID, or "".
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogger logs one line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", RequestIDFrom(c)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			log.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("http_request", fields...)
		default:
			log.Info("http_request", fields...)
		}
	}
}
