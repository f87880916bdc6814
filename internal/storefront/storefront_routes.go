package storefront

import (
	"go-surplus-storefront/internal/auth"
	"go-surplus-storefront/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func RegisterRoutes(r *gin.RouterGroup, handler *Handler, l *zap.Logger) {
	r.GET("/session", handler.Session)
	r.GET("/toasts", handler.Toasts)

	carts := r.Group("/cart")
	{
		carts.GET("", handler.GetCart)
		carts.DELETE("", handler.ClearCart)
		carts.PUT("/location", handler.SetLocation)
		carts.POST("/coupon", handler.ApplyCoupon)
		carts.DELETE("/coupon", handler.RemoveCoupon)

		items := carts.Group("/items")
		{
			items.POST("", handler.AddItem)
			items.PATCH("/:itemId", handler.UpdateQty)
			items.DELETE("/:itemId", handler.RemoveItem)
		}
	}

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", handler.Login)
		authGroup.POST("/logout", handler.Logout)
		authGroup.GET("/me", handler.Me)
	}

	currencies := r.Group("/currency")
	{
		currencies.GET("/rates", handler.Rates)
		currencies.POST("/format", handler.FormatPrices)
	}

	for prefix, role := range map[string]auth.Role{
		"/buyer":    auth.RoleBuyer,
		"/supplier": auth.RoleSupplier,
		"/agent":    auth.RoleAgent,
		"/admin":    auth.RoleAdmin,
	} {
		area := r.Group(prefix, middleware.RequireRole(role, handler.Subject, l))
		area.GET("/dashboard", handler.Dashboard)
	}
}
