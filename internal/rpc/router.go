package rpc

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprom "github.com/zsais/go-gin-prometheus"

	"github.com/Dmitry-Gorlach/baraka/pkg/logger"
)

// NewRouter wires the order endpoints plus health and Prometheus metrics.
func NewRouter(order *OrderRPC, log logger.Interface) *gin.Engine {
	r := gin.New()

	p := ginprom.NewPrometheus("baraka")
	p.Use(r)

	r.Use(
		RequestID(),
		cors.Default(),
		Recovery(log),
	)

	r.POST("/orders", order.CreateOrder)
	r.GET("/orders/:id", order.GetOrder)
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	return r
}
