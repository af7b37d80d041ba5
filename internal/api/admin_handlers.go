package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/annel0/dog-gatherer/internal/app"
	"github.com/annel0/dog-gatherer/internal/auth"
	"github.com/annel0/dog-gatherer/internal/logging"
	"github.com/gin-gonic/gin"
)

// LoginRequest представляет запрос на вход администратора
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse содержит JWT администратора
type LoginResponse struct {
	Token string `json:"token"`
}

// handleAdminLogin обрабатывает вход администратора
func (rs *RestServer) handleAdminLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badArgument(c, "Неверный формат запроса")
		return
	}
	if rs.admin == nil {
		abortWithError(c, http.StatusUnauthorized, codeInvalidCredentials, "Неверное имя пользователя или пароль")
		return
	}

	token, err := rs.admin.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		logging.Warn("🔐 Неудачный вход администратора %q с %s", req.Username, c.ClientIP())
		abortWithError(c, http.StatusUnauthorized, codeInvalidCredentials, "Неверное имя пользователя или пароль")
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}

	logging.Info("🔐 Администратор %s вошёл с %s", req.Username, c.ClientIP())
	c.JSON(http.StatusOK, LoginResponse{Token: token})
}

// WorldStats - сводка по миру
type WorldStats struct {
	Dogs        int `json:"dogs"`
	Sessions    int `json:"sessions"`
	LostObjects int `json:"lostObjects"`
	Maps        int `json:"maps"`
}

// handleAdminStats возвращает статистику сервера
func (rs *RestServer) handleAdminStats(c *gin.Context) {
	var ws WorldStats
	err := rs.loop.Do(c.Request.Context(), func(a *app.Application) {
		ws.Dogs = a.Players().Count()
		ws.Sessions = len(a.Game().Sessions())
		ws.Maps = len(a.Game().Maps())
		for _, s := range a.Game().Sessions() {
			ws.LostObjects += s.LostObjectsCount()
		}
	})
	if err != nil {
		internalError(c, err)
		return
	}

	stats := gin.H{
		"world":          ws,
		"server":         rs.metrics.Snapshot(),
		"memory_details": rs.metrics.MemoryDetails(),
		"server_time":    time.Now().Unix(),
	}
	if rs.bus != nil {
		stats["eventbus"] = rs.bus.Metrics()
	}
	c.JSON(http.StatusOK, stats)
}

// handleAdminSave принудительно сохраняет состояние
func (rs *RestServer) handleAdminSave(c *gin.Context) {
	if err := rs.loop.Save(c.Request.Context()); err != nil {
		internalError(c, err)
		return
	}
	logging.Info("💾 Сохранение по запросу администратора %v", c.GetString(ctxAdminName))
	c.JSON(http.StatusOK, gin.H{})
}
