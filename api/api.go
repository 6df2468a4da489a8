package api

import (
	"fmt"

	"github.com/flashcart/flashcart/config"

	"github.com/flashcart/flashcart/api/middleware"

	"github.com/flashcart/flashcart"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Api struct {
	flashcart *flashcart.Flashcart
	router    *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/coupon-pools", a.CreateCouponPool)
	router.GET("/coupon-pools/:id", a.GetCouponPool)
	router.GET("/coupon-pools", a.GetAllCouponPools)
	router.GET("/coupon-pools/:id/status", a.GetPoolStatus)
	router.GET("/coupon-pools/:id/roster", a.GetRoster)
	router.PUT("/coupon-pools/:id/status", a.UpdateCouponPoolStatus)
	router.POST("/coupon-pools/:id/claims", a.ClaimCoupon)
	router.GET("/coupon-pools/:id/claims/:user_id", a.GetUserClaims)

	router.GET("/claims/:id", a.GetClaim)

	router.POST("/orders", a.CreateOrder)
	router.GET("/orders/:id", a.GetOrder)
	router.GET("/order-numbers/:number", a.GetOrderByNumber)
	router.POST("/orders/:id/cancel", a.CancelOrder)

	router.POST("/users", a.CreateUser)
	router.GET("/users/:id", a.GetUser)
	router.GET("/users", a.GetAllUsers)
	router.POST("/users/:id/balance", a.ChargeBalance)
	router.GET("/users/:id/balance-history", a.GetBalanceHistory)
	router.GET("/users/:id/orders", a.GetUserOrders)
	router.POST("/users/:id/cart", a.AddToCart)
	router.GET("/users/:id/cart", a.GetCart)
	router.DELETE("/users/:id/cart/:product_id", a.RemoveFromCart)
	router.DELETE("/users/:id/cart", a.ClearCart)

	router.POST("/products", a.CreateProduct)
	router.GET("/products/:id", a.GetProduct)
	router.GET("/products", a.GetAllProducts)
	router.POST("/products/:id/restock", a.RestockProduct)
	router.GET("/products/:id/stock-history", a.GetStockHistory)

	return a.router
}

func NewAPI(f *flashcart.Flashcart) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware("flashcart"))
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	r.POST("/webhook", func(c *gin.Context) {
		var payload map[string]interface{}
		err := c.Bind(&payload)
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println(payload)
		c.JSON(200, "webhook received")
	})

	return &Api{flashcart: f, router: r}
}
