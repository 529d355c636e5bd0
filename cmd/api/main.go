package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scantrack/internal/attendance"
	"scantrack/internal/auth"
	"scantrack/internal/config"
	"scantrack/internal/httpmiddleware"
	"scantrack/internal/notify"
	"scantrack/internal/queue"
	"scantrack/internal/roster"
	"scantrack/internal/store"
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
		log.Printf("warning: db not reachable, falling back to in-memory stores: %v", err)
		db = nil
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var (
		rosterStore  roster.Store
		sessionStore attendance.Store
	)
	if db != nil {
		rosterStore = roster.NewPostgresStore(db.Client)
		sessionStore = attendance.NewPostgresStore(db.Client)
	} else {
		rosterStore = roster.NewMemoryStore()
		sessionStore = attendance.NewMemoryStore()
	}

	notifier := buildNotifier(cfg, redisClient)
	svc := attendance.NewService(rosterStore, sessionStore, notifier)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/stations/register", func(c *gin.Context) {
		var req struct {
			StationID string `json:"station_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := sessionStore.RegisterStation(c.Request.Context(), req.StationID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.StationID, "station", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		_ = sessionStore.SaveRefreshToken(c.Request.Context(), req.StationID, tokens.RefreshToken, tokens.RefreshExp)

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.StationAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/scans", func(c *gin.Context) {
		var req struct {
			RFID string `json:"rf_id" binding:"required"`
			Mode string `json:"mode" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := svc.Scan(c.Request.Context(), req.RFID, attendance.Mode(req.Mode))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		status := http.StatusOK
		if result.Outcome == attendance.OutcomeNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, result)
	})

	authGroup.GET("/sessions", func(c *gin.Context) {
		limit := 50
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}

		var (
			sessions []attendance.Session
			err      error
		)
		if lrn := c.Query("lrn"); lrn != "" {
			sessions, err = sessionStore.ListDay(c.Request.Context(), lrn, time.Now())
		} else {
			sessions, err = sessionStore.RecentSessions(c.Request.Context(), time.Now(), limit)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

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

// buildNotifier assembles the notifier from explicit config. Returns nil
// when no channel is configured, which makes dispatch a no-op.
func buildNotifier(cfg config.App, redisClient *store.Redis) notify.Notifier {
	if !cfg.Notify.EmailEnabled() && !cfg.Notify.SMSEnabled() {
		log.Println("Notifications not configured (SENDGRID_API_KEY / SEMAPHORE_API_KEY not set)")
		return nil
	}

	if cfg.Notify.Mode == "queue" {
		var q queue.Queue
		if cfg.QueueBackend == "memory" {
			q = queue.NewInMemory(64)
		} else {
			q = queue.NewRedisQueue(redisClient.Client, "scantrack:notifications")
		}
		log.Println("Notifications dispatched via queue")
		return notify.NewQueuedDispatcher(q)
	}

	return buildDispatcher(cfg.Notify)
}

func buildDispatcher(n config.Notify) *notify.Dispatcher {
	var email notify.EmailSender
	if n.EmailEnabled() {
		email = notify.NewSendgridSender(n.EmailAPIKey, n.EmailFromName, n.EmailFrom)
		log.Println("Email notifications configured:", n.EmailFrom)
	}
	var sms notify.SMSSender
	if n.SMSEnabled() {
		sms = notify.NewSemaphoreClient(n.SMSAPIKey, n.SMSBaseURL)
		log.Println("SMS notifications configured:", n.SMSSenderName)
	}
	return notify.NewDispatcher(email, sms, notify.Config{
		SenderName:     n.SMSSenderName,
		ChannelTimeout: n.ChannelTimeout,
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
