package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Коды ошибок API
const (
	codeInvalidArgument    = "invalidArgument"
	codeInvalidMethod      = "invalidMethod"
	codeInvalidToken       = "invalidToken"
	codeUnknownToken       = "unknownToken"
	codeMapNotFound        = "mapNotFound"
	codeBadRequest         = "badRequest"
	codeInvalidCredentials = "invalidCredentials"
	codeInternalError      = "internalError"
)

// ErrorResponse - тело ответа с ошибкой
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: message})
}

func badArgument(c *gin.Context, message string) {
	abortWithError(c, http.StatusBadRequest, codeInvalidArgument, message)
}

func internalError(c *gin.Context, err error) {
	abortWithError(c, http.StatusInternalServerError, codeInternalError, err.Error())
}
