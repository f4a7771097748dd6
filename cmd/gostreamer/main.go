package main

import (
	"compress/gzip"
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/amaumene/gostreamer/internal/config"
	"github.com/amaumene/gostreamer/internal/handlers"
	"github.com/amaumene/gostreamer/internal/services"
	"github.com/amaumene/gostreamer/pkg/logger"
)

// GzipResponseWriter wraps gin.ResponseWriter to provide gzip compression
type GzipResponseWriter struct {
	gin.ResponseWriter
	gzipWriter *gzip.Writer
}

func (w *GzipResponseWriter) Write(data []byte) (int, error) {
	return w.gzipWriter.Write(data)
}

func (w *GzipResponseWriter) WriteString(s string) (int, error) {
	return w.gzipWriter.Write([]byte(s))
}

// GzipMiddleware provides gzip compression for responses. Event streams are
// passed through so progress events are not buffered by the compressor.
func GzipMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") ||
			strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
			c.Next()
			return
		}

		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")

		gzipWriter := gzip.NewWriter(c.Writer)
		defer func() {
			if err := gzipWriter.Close(); err != nil {
				log.Errorf("[App] failed to close gzip writer: %v", err)
			}
		}()

		c.Writer = &GzipResponseWriter{
			ResponseWriter: c.Writer,
			gzipWriter:     gzipWriter,
		}

		c.Next()
	}
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[App] invalid configuration: %v", err)
	}

	container, err := services.NewContainer(cfg)
	if err != nil {
		log.Fatalf("[App] failed to initialize services: %v", err)
	}
	defer container.Close()

	// Background cache maintenance for the process lifetime.
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	container.Cache.StartCleanup(cleanupCtx)

	r := gin.Default()
	r.Use(GzipMiddleware(log))

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Next()
	})

	h := handlers.New(container.Orchestrator, container.Swarm, container.DB)
	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Infof("[App] starting HTTP server on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[App] HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infof("[App] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("[App] forced shutdown: %v", err)
	}
}
