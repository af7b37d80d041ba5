package api

import (
	"net/http"
	"strings"

	"github.com/annel0/dog-gatherer/internal/app"
	"github.com/gin-gonic/gin"
)

const (
	ctxPlayerToken = "player_token"
	ctxAdminName   = "admin_name"
)

var allMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

// handle регистрирует обработчики для разрешённых методов,
// остальные методы получают 405 с заголовком Allow.
func handle(r gin.IRoutes, path string, allowed []string, handlers ...gin.HandlerFunc) {
	allow := strings.Join(allowed, ", ")
	for _, method := range allMethods {
		if contains(allowed, method) {
			r.Handle(method, path, handlers...)
			continue
		}
		r.Handle(method, path, func(c *gin.Context) {
			c.Header("Allow", allow)
			abortWithError(c, http.StatusMethodNotAllowed, codeInvalidMethod, "Only "+allow+" method is expected")
		})
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// noCache запрещает кэширование ответов API
func noCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache")
		c.Next()
	}
}

// requireJSON проверяет Content-Type тела запроса
func requireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.GetHeader("Content-Type"), "application/json") {
			badArgument(c, "Invalid content type")
			return
		}
		c.Next()
	}
}

// bearerToken извлекает токен из заголовка "Authorization: Bearer <token>"
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

// playerMiddleware проверяет формат токена игрока.
// Поиск игрока выполняется в цикле вместе с обработчиком.
func (rs *RestServer) playerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok || !app.IsWellFormedToken(token) {
			abortWithError(c, http.StatusUnauthorized, codeInvalidToken, "Authorization header is missing")
			return
		}
		c.Set(ctxPlayerToken, app.Token(token))
		c.Next()
	}
}

// adminMiddleware проверяет JWT администратора
func (rs *RestServer) adminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rs.admin == nil {
			abortWithError(c, http.StatusUnauthorized, codeInvalidToken, "Admin access is disabled")
			return
		}
		token, ok := bearerToken(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, codeInvalidToken, "Authorization header is missing")
			return
		}
		claims, err := rs.admin.Verify(token)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, codeInvalidToken, "Invalid admin token")
			return
		}
		c.Set(ctxAdminName, claims.Username)
		c.Next()
	}
}
