package app

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"
	"github.com/rs/xid"

	"pdf-generator/internal/domain"
	u "pdf-generator/internal/utils"
)

// publicPaths are served without credentials.
var publicPaths = map[string]struct{}{
	"/api/health":  {},
	"/favicon.ico": {},
	"/livez":       {},
	"/readyz":      {},
}

// newRateLimitStore returns the limiter storage: redis when configured,
// memory otherwise or when redis cannot be reached.
func newRateLimitStore(cfg u.Config) (store fiber.Storage) {
	store = memoryStorage.New()
	if cfg.Cache.RedisHost == "" {
		return store
	}

	defer func() {
		if r := recover(); r != nil {
			u.Error("Redis limiter store init panicked, falling back to memory", "panic", r)
		}
	}()
	store = redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.Cache.RedisHost},
		Database: cfg.Cache.RateLimitDB,
	})
	u.Info("Using Redis for rate limiting", "addr", cfg.Cache.RedisHost, "db", cfg.Cache.RateLimitDB)
	return store
}

func clientKey(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get(fiber.HeaderUserAgent)))
	return hex.EncodeToString(sum[:])
}

// userRateLimitMiddleware limits requests per client (IP and User-Agent).
func userRateLimitMiddleware(cfg u.Config, store fiber.Storage) fiber.Handler {
	if cfg.RateLimiter.UserLimit <= 0 {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}
	return limiter.New(limiter.Config{
		Max:               cfg.RateLimiter.UserLimit,
		Expiration:        cfg.RateLimiter.Interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           store,
		Next:              isPublic,
		KeyGenerator:      clientKey,
		LimitReached: func(c *fiber.Ctx) error {
			u.Warn("Rate limit exceeded", "user", clientKey(c), "path", c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    fiber.StatusTooManyRequests,
					"message": "Too Many Requests",
				},
			})
		},
	})
}

func isPublic(c *fiber.Ctx) bool {
	if c.Method() == fiber.MethodOptions {
		return true
	}
	_, ok := publicPaths[strings.TrimSuffix(strings.ToLower(c.Path()), "/")]
	return ok
}

// basicAuthMiddleware checks the Authorization header against cred. Both
// fields are always compared so timing does not reveal which one differed.
func basicAuthMiddleware(cfg u.Config, cred u.Credential) fiber.Handler {
	wantUser := []byte(cred.Username)
	wantPass := []byte(cred.Password)
	challenge := fmt.Sprintf("Basic realm=%q", cfg.Auth.Realm)

	return basicauth.New(basicauth.Config{
		Next:  isPublic,
		Realm: cfg.Auth.Realm,
		Authorizer: func(user, pass string) bool {
			userOK := subtle.ConstantTimeCompare([]byte(user), wantUser)
			passOK := subtle.ConstantTimeCompare([]byte(pass), wantPass)
			return userOK&passOK == 1
		},
		Unauthorized: func(c *fiber.Ctx) error {
			u.Warn("Unauthorized request", "path", c.Path(), "ip", c.IP(), "request_id", c.GetRespHeader(fiber.HeaderXRequestID), "error", domain.ErrAuthFailure)
			c.Set(fiber.HeaderWWWAuthenticate, challenge)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    fiber.StatusUnauthorized,
					"message": "Authentication required",
				},
			})
		},
	})
}

// RegisterMiddleware attaches global middleware to the app.
func RegisterMiddleware(app *fiber.App, cfg u.Config, cred u.Credential, ready func() bool) {
	app.Use(fiberrecover.New())

	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(func(c *fiber.Ctx) error {
		u.Info("Incoming request", "method", c.Method(), "path", c.Path(), "request_id", c.GetRespHeader(fiber.HeaderXRequestID))
		return c.Next()
	})

	app.Use(favicon.New())

	app.Use(healthcheck.New(healthcheck.Config{
		ReadinessProbe: func(*fiber.Ctx) bool {
			return ready == nil || ready()
		},
	}))

	app.Use(basicAuthMiddleware(cfg, cred))

	if cfg.RateLimiter.EnableUserLimiter || cfg.RateLimiter.UserLimit > 0 {
		app.Use(userRateLimitMiddleware(cfg, newRateLimitStore(cfg)))
	}
}
