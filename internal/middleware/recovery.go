package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const internalErrorPage = `<!doctype html>
<html lang="pt-BR"><head><meta charset="utf-8"><title>Erro interno | Submita</title></head>
<body><main><h1>Algo deu errado</h1><p>Tente novamente em instantes.</p><p><a href="/dashboard">Voltar ao início</a></p></main></body></html>`

func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("error", r).
					Str("path", c.Request.URL.Path).
					Str("request_id", RequestIDFrom(c)).
					Msg("panic recovered")
				if c.Writer.Written() {
					c.Abort()
					return
				}
				c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", []byte(internalErrorPage))
				c.Abort()
			}
		}()
		c.Next()
	}
}
