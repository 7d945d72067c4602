package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/quake-insight-service/internal/domain"
	"github.com/couchcryptid/quake-insight-service/internal/observability"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// Publisher emits insight events. A nil Publisher disables publishing.
type Publisher interface {
	Publish(ctx context.Context, events ...domain.InsightEvent) error
}

const publishTimeout = 2 * time.Second

// Server is one of the two HTTP services. Every server also exposes
// /healthz, /readyz and /metrics.
type Server struct {
	httpServer *http.Server
	insights   *insightEmitter
	logger     *slog.Logger
}

func newServer(addr string, engine *gin.Engine, insights *insightEmitter, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		insights: insights,
		logger:   logger,
	}
}

// newEngine builds a router with request logging, panic recovery and the
// operational routes.
func newEngine(ready sharedobs.ReadinessChecker, metrics *observability.Metrics, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(metrics, logger), recovery(logger))

	r.GET("/healthz", gin.WrapF(sharedobs.LivenessHandler()))
	r.GET("/readyz", gin.WrapF(sharedobs.ReadinessHandler(ready)))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections and in-flight insight publishes
// within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if werr := s.insights.wait(ctx); err == nil {
		err = werr
	}
	return err
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// insightEmitter publishes insight events in the background so the response
// never waits on the broker. Failures are logged and counted only.
type insightEmitter struct {
	pub     Publisher
	metrics *observability.Metrics
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func newInsightEmitter(pub Publisher, metrics *observability.Metrics, logger *slog.Logger) *insightEmitter {
	return &insightEmitter{pub: pub, metrics: metrics, logger: logger}
}

// emit starts publishing ev on a context detached from the request, so a
// client disconnect does not drop the insight.
func (e *insightEmitter) emit(c *gin.Context, ev domain.InsightEvent) {
	if e.pub == nil {
		return
	}
	parent := context.WithoutCancel(c.Request.Context())
	e.wg.Go(func() {
		ctx, cancel := context.WithTimeout(parent, publishTimeout)
		defer cancel()

		if err := e.pub.Publish(ctx, ev); err != nil {
			e.metrics.InsightsPublished.WithLabelValues(string(ev.Kind), "error").Inc()
			e.logger.Warn("insight publish failed", "kind", ev.Kind, "id", ev.ID, "error", err)
			return
		}
		e.metrics.InsightsPublished.WithLabelValues(string(ev.Kind), "success").Inc()
	})
}

// wait blocks until every started publish has finished or ctx is done.
func (e *insightEmitter) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
