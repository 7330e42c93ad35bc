package main

import (
	"context"
	"errors"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/config"
	"classattend/internal/httpmiddleware"
	"classattend/internal/metrics"
	"classattend/internal/queue"
	"classattend/internal/risk"
	"classattend/internal/session"
	"classattend/internal/store"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(db.Client); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classattend:marks")
	}

	sessionRepo := session.NewRepository(db.Client)
	sessions := session.NewService(sessionRepo, cfg.SessionWindow, cfg.DefaultRadiusM)
	attRepo := attendance.NewRepository(db.Client)
	recorder := attendance.NewRecorder(sessionRepo, attRepo)
	analyzer := risk.NewAnalyzer(risk.NewRepository(db.Client))
	counters := metrics.New(prometheus.DefaultRegisterer)
	ctx := context.Background()

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	if cfg.Env == "dev" {
		registerDevRoutes(r, cfg, db, redisClient)
	}

	authed := r.Group("/v1", auth.Authenticate(cfg.JWTSigningKey, cfg.JWTIssuer))
	teacher := authed.Group("", auth.RequireRole(auth.RoleTeacher))
	student := authed.Group("", auth.RequireRole(auth.RoleStudent))

	teacher.POST("/attendance/start", func(c *gin.Context) {
		var req struct {
			CourseID     string   `json:"course_id" binding:"required"`
			Latitude     *float64 `json:"latitude"`
			Longitude    *float64 `json:"longitude"`
			RadiusMeters float64  `json:"radius_meters"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var fence *session.Fence
		if req.Latitude != nil && req.Longitude != nil {
			fence = &session.Fence{Latitude: *req.Latitude, Longitude: *req.Longitude, RadiusMeters: req.RadiusMeters}
		}

		sess, err := sessions.Start(c.Request.Context(), auth.Principal(c).Subject, req.CourseID, fence)
		if err != nil {
			respondError(c, err)
			return
		}

		counters.SessionsStarted.Inc()
		c.JSON(http.StatusCreated, gin.H{
			"session_id": sess.ID,
			"token":      sess.Token,
			"pin":        sess.PIN,
			"expires_at": sess.ExpiresAt,
		})
	})

	teacher.POST("/attendance/session/:id/rotate", func(c *gin.Context) {
		token, err := sessions.Rotate(c.Request.Context(), auth.Principal(c).Subject, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		counters.TokensRotated.Inc()
		c.JSON(http.StatusOK, gin.H{"token": token})
	})

	teacher.POST("/attendance/session/:id/end", func(c *gin.Context) {
		if err := sessions.End(c.Request.Context(), auth.Principal(c).Subject, c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ended"})
	})

	teacher.GET("/attendance/active", func(c *gin.Context) {
		sess, err := sessions.ActiveFor(c.Request.Context(), auth.Principal(c).Subject)
		if err != nil {
			respondError(c, err)
			return
		}
		if sess == nil {
			c.JSON(http.StatusOK, gin.H{"session": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"session": sess})
	})

	teacher.GET("/attendance/session/:id/live", func(c *gin.Context) {
		roster, err := recorder.LiveRoster(c.Request.Context(), auth.Principal(c).Subject, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": roster})
	})

	teacher.GET("/attendance/session/:id/flags", func(c *gin.Context) {
		flags, err := recorder.SessionFlags(c.Request.Context(), auth.Principal(c).Subject, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"flags": flags})
	})

	teacher.GET("/attendance/course/:courseID", func(c *gin.Context) {
		records, err := recorder.CourseLog(c.Request.Context(), auth.Principal(c).Subject, c.Param("courseID"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	teacher.GET("/dashboard/stats", func(c *gin.Context) {
		stats, err := analyzer.TeacherStats(c.Request.Context(), auth.Principal(c).Subject)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	teacher.GET("/dashboard/at-risk", func(c *gin.Context) {
		report, err := analyzer.AtRisk(c.Request.Context(), auth.Principal(c).Subject)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})

	student.POST("/attendance/mark", func(c *gin.Context) {
		var req attendance.MarkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		att, err := recorder.Mark(c.Request.Context(), auth.Principal(c).Subject, req)
		if err != nil {
			if reason := rejectionReason(err); reason != "" {
				counters.MarksRejected.WithLabelValues(reason).Inc()
			}
			respondError(c, err)
			return
		}

		counters.MarksAccepted.Inc()
		if err := q.Publish(ctx, queue.Message{Type: queue.TypeMark, Body: []byte(att.ID)}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}

		c.JSON(http.StatusCreated, gin.H{"session_id": att.SessionID, "captured_at": att.CapturedAt})
	})

	student.GET("/attendance/history", func(c *gin.Context) {
		history, err := recorder.History(c.Request.Context(), auth.Principal(c).Subject)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": history})
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// respondError maps domain errors to HTTP responses. Validation outcomes
// are expected and never logged; only storage failures are operational
// errors.
func respondError(c *gin.Context, err error) {
	var fenceErr *attendance.FenceError
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, session.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, session.ErrNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": "session is no longer active"})
	case errors.Is(err, attendance.ErrSessionNotFound):
		// Deliberately vague: does not reveal whether the code was wrong,
		// expired, or the session ended.
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code, expired session, or session not active"})
	case errors.Is(err, attendance.ErrAlreadyMarked):
		c.JSON(http.StatusConflict, gin.H{"error": "attendance already marked for this session"})
	case errors.Is(err, attendance.ErrLocationRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "location permission required for attendance"})
	case errors.As(err, &fenceErr):
		c.JSON(http.StatusForbidden, gin.H{
			"error":           fenceErr.Error(),
			"distance_meters": math.Round(fenceErr.DistanceMeters),
			"radius_meters":   fenceErr.RadiusMeters,
		})
	default:
		log.Printf("storage error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// rejectionReason labels mark failures for metrics; empty for storage
// faults, which are not rejections.
func rejectionReason(err error) string {
	var fenceErr *attendance.FenceError
	switch {
	case errors.Is(err, attendance.ErrSessionNotFound):
		return metrics.ReasonSessionNotFound
	case errors.Is(err, attendance.ErrAlreadyMarked):
		return metrics.ReasonAlreadyMarked
	case errors.Is(err, attendance.ErrLocationRequired):
		return metrics.ReasonLocationRequired
	case errors.As(err, &fenceErr):
		return metrics.ReasonOutsideFence
	default:
		return ""
	}
}

// registerDevRoutes adds local-development helpers: a token mint standing
// in for the external identity provider, and a dependency probe.
func registerDevRoutes(r *gin.Engine, cfg config.App, db *store.DB, redisClient *store.Redis) {
	r.POST("/v1/auth/dev-token", func(c *gin.Context) {
		var req struct {
			Subject string    `json:"subject" binding:"required"`
			Role    auth.Role `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Role != auth.RoleTeacher && req.Role != auth.RoleStudent {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be teacher or student"})
			return
		}
		token, exp, err := auth.Issue(req.Subject, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"access_token": token, "expires_at": exp.Unix()})
	})

	r.GET("/v1/debug", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"database": db.Client.PingContext(c.Request.Context()) == nil,
			"redis":    redisClient.Healthy(c.Request.Context()),
		})
	})
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
