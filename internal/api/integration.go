package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/annel0/dog-gatherer/internal/logging"
)

// Start запускает HTTP сервер в отдельной горутине.
// Ошибка занятого порта возвращается сразу.
func (rs *RestServer) Start() error {
	ln, err := net.Listen("tcp", rs.addr)
	if err != nil {
		return err
	}

	rs.httpServer = &http.Server{
		Handler:           rs.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := rs.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("❌ Ошибка REST API сервера: %v", err)
		}
	}()

	logging.Info("✅ REST API сервер запущен на http://%s", ln.Addr())
	logging.Info("📋 Эндпоинты: /api/v1/maps, /api/v1/game/{join,players,state,player/action,tick,records}, /api/v1/admin/{login,stats,save}, /health, /metrics")
	return nil
}

// Stop плавно останавливает HTTP сервер
func (rs *RestServer) Stop(ctx context.Context) error {
	if rs.httpServer == nil {
		return nil
	}
	logging.Info("🛑 Остановка REST API сервера...")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := rs.httpServer.Shutdown(ctx); err != nil {
		logging.Error("❌ Ошибка при остановке HTTP сервера: %v", err)
		return err
	}

	logging.Info("✅ REST API сервер остановлен")
	return nil
}
