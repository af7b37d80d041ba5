package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/annel0/dog-gatherer/internal/app"
	"github.com/annel0/dog-gatherer/internal/auth"
	"github.com/annel0/dog-gatherer/internal/eventbus"
	"github.com/annel0/dog-gatherer/internal/middleware"
	"github.com/annel0/dog-gatherer/internal/records"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer представляет REST API игрового сервера
type RestServer struct {
	router  *gin.Engine
	loop    *app.Loop
	records records.Repository
	admin   *auth.AdminAuthenticator
	bus     eventbus.EventBus
	metrics *ServerMetrics
	addr    string

	httpServer *http.Server
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Addr    string // адрес для запуска сервера, например ":8080"
	Loop    *app.Loop
	Records records.Repository
	Admin   *auth.AdminAuthenticator // nil - админский API отключен
	Bus     eventbus.EventBus        // для статистики, может быть nil
	WWWRoot string                   // каталог статики, пусто - без статики

	ServiceName string
	// Registerer и Gatherer для HTTP-метрик; nil - дефолтный регистр.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) *RestServer {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "dog-gatherer"
	}
	if cfg.Records == nil {
		cfg.Records = records.NewMemoryRepo()
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	loggerMw := middleware.NewRequestLogger()
	router.Use(loggerMw.Handler())

	router.Use(otelgin.Middleware(cfg.ServiceName))

	promMw := middleware.NewPrometheusMiddleware("dogs", cfg.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, cfg.Gatherer)

	rs := &RestServer{
		router:  router,
		loop:    cfg.Loop,
		records: cfg.Records,
		admin:   cfg.Admin,
		bus:     cfg.Bus,
		metrics: NewServerMetrics(),
		addr:    cfg.Addr,
	}
	rs.setupRoutes(cfg.WWWRoot)
	return rs
}

// Handler возвращает http.Handler сервера
func (rs *RestServer) Handler() http.Handler { return rs.router }

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes(wwwRoot string) {
	get := []string{http.MethodGet, http.MethodHead}
	post := []string{http.MethodPost}

	api := rs.router.Group("/api/v1")
	api.Use(noCache())

	handle(api, "/maps", get, rs.handleListMaps)
	handle(api, "/maps/:id", get, rs.handleGetMap)

	game := api.Group("/game")
	handle(game, "/join", post, requireJSON(), rs.handleJoin)
	handle(game, "/tick", post, requireJSON(), rs.handleTick)
	handle(game, "/records", get, rs.handleRecords)

	// метод проверяется раньше токена
	player := rs.playerMiddleware()
	handle(game, "/players", get, player, rs.handlePlayers)
	handle(game, "/state", get, player, rs.handleState)
	handle(game, "/player/action", post, requireJSON(), player, rs.handleAction)

	admin := api.Group("/admin")
	adminOnly := rs.adminMiddleware()
	handle(admin, "/login", post, requireJSON(), rs.handleAdminLogin)
	handle(admin, "/stats", get, adminOnly, rs.handleAdminStats)
	handle(admin, "/save", post, adminOnly, rs.handleAdminSave)

	rs.router.GET("/health", rs.handleHealth)

	var static http.Handler
	if wwwRoot != "" {
		static = http.FileServer(http.Dir(wwwRoot))
	}
	rs.router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || static == nil {
			c.Header("Cache-Control", "no-cache")
			abortWithError(c, http.StatusBadRequest, codeBadRequest, "Invalid endpoint")
			return
		}
		static.ServeHTTP(c.Writer, c.Request)
	})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}
