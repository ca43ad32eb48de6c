package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/market-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware интернет-магазина.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Post("/", h.AddToCart)
				r.Delete("/", h.ClearCart)
				r.Put("/{productID}", h.UpdateCartLine)
				r.Delete("/{productID}", h.RemoveCartLine)
				r.Post("/promo", h.ApplyPromo)
				r.Delete("/promo", h.RemovePromo)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.CreateOrder)
				r.Get("/", h.GetOrders)
				r.Get("/number/{number}", h.GetOrderByNumber)
				r.Get("/number/{number}/track", h.TrackOrderByNumber)
				r.Get("/{orderID}", h.GetOrder)
				r.Put("/{orderID}/cancel", h.CancelOrder)
				r.Get("/{orderID}/track", h.TrackOrder)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(h.authMiddleware.RequireAdmin)

				r.Post("/products", h.CreateProduct)
				r.Get("/products/{productID}", h.GetProduct)
				r.Put("/orders/{orderID}/status", h.SetOrderStatus)
				r.Delete("/orders/{orderID}", h.DeleteOrder)
				r.Post("/deliveries", h.CreateDelivery)
				r.Get("/deliveries/{deliveryID}", h.GetDelivery)
				r.Put("/deliveries/{deliveryID}/status", h.SetDeliveryStatus)
				r.Put("/deliveries/{deliveryID}/assign-driver", h.AssignDriver)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
