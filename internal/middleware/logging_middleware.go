package middleware

import (
	"strings"
	"time"

	"github.com/annel0/dog-gatherer/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceHeader - заголовок ответа с trace-ID запроса
const TraceHeader = "X-Trace-ID"

// RequestLogger снабжает каждый HTTP-запрос trace-ID и пишет краткие логи
// в логгер компонента "http".
type RequestLogger struct {
	logger *logging.Logger
	// служебные пути (/health, /metrics) пишутся на уровне DEBUG
	quietPaths map[string]bool
}

// NewRequestLogger создаёт middleware; без аргументов используется логгер компонента "http"
func NewRequestLogger(logger ...*logging.Logger) *RequestLogger {
	rl := &RequestLogger{
		quietPaths: map[string]bool{"/health": true, "/metrics": true},
	}
	if len(logger) > 0 && logger[0] != nil {
		rl.logger = logger[0]
	} else {
		rl.logger = logging.GetComponentLogger("http")
	}
	return rl
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// trace-id из OpenTelemetry, если span уже создан
		span := trace.SpanFromContext(c.Request.Context())
		var traceID string
		if span.SpanContext().IsValid() {
			traceID = span.SpanContext().TraceID().String()
		} else {
			traceID = uuid.NewString()
		}
		c.Set("trace_id", traceID)
		c.Header(TraceHeader, traceID)

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()
		latency := time.Since(start)

		switch {
		case status >= 500:
			rl.logger.Error("[HTTP] %s %s %d %s ip=%s trace=%s err=%s",
				c.Request.Method, path, status, latency, c.ClientIP(), traceID, strings.TrimSpace(c.Errors.String()))
		case status >= 400:
			rl.logger.Warn("[HTTP] %s %s %d %s ip=%s trace=%s", c.Request.Method, path, status, latency, c.ClientIP(), traceID)
		case rl.quietPaths[path]:
			rl.logger.Debug("[HTTP] %s %s %d %s", c.Request.Method, path, status, latency)
		default:
			rl.logger.Info("[HTTP] %s %s %d %s trace=%s", c.Request.Method, path, status, latency, traceID)
		}
	}
}
