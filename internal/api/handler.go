package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bernarddwumfour/estore-backend/internal/models"
	"github.com/bernarddwumfour/estore-backend/internal/service"
	"github.com/bernarddwumfour/estore-backend/internal/store"
)

// Handler contains HTTP handlers
type Handler struct {
	auth      *service.AuthService
	catalog   *service.CatalogService
	orders    *service.OrderService
	addresses *service.AddressService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	auth *service.AuthService,
	catalog *service.CatalogService,
	orders *service.OrderService,
	addresses *service.AddressService,
) *Handler {
	return &Handler{
		auth:      auth,
		catalog:   catalog,
		orders:    orders,
		addresses: addresses,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.POST("/refresh", h.refreshToken)
		auth.POST("/verify-email", h.verifyEmail)

		me := auth.Group("", requireAuth(h.auth))
		{
			me.GET("/me", h.getProfile)
			me.PATCH("/me", h.updateProfile)
			me.POST("/change-password", h.changePassword)
		}

		users := auth.Group("/users", requireAuth(h.auth), requireRole(models.RoleAdmin))
		{
			users.GET("", h.listUsers)
			users.POST("", h.createUser)
			users.PATCH("/:id/active", h.setUserActive)
		}
	}

	products := api.Group("/products")
	{
		products.GET("", h.listProducts)
		products.GET("/categories", h.listCategories)
		products.GET("/availability/:sku", h.checkAvailability)
		products.GET("/:slug", h.getProduct)
	}

	// Payment-provider callback; authenticated by the provider's secret at
	// the gateway, not by a user token.
	api.POST("/verify-payment", h.verifyPayment)

	addresses := api.Group("/addresses", requireAuth(h.auth))
	{
		addresses.GET("", h.listAddresses)
		addresses.POST("", h.createAddress)
		addresses.PATCH("/:id", h.updateAddress)
		addresses.DELETE("/:id", h.deleteAddress)
	}

	orders := api.Group("/orders")
	{
		orders.POST("", optionalAuth(h.auth), h.createOrder)
		orders.GET("", requireAuth(h.auth), h.listMyOrders)
		orders.GET("/:id", optionalAuth(h.auth), h.getOrder)
		orders.POST("/:id/cancel", requireAuth(h.auth), h.cancelOrder)
	}

	admin := api.Group("/admin", requireAuth(h.auth), requireRole(models.RoleAdmin, models.RoleStaff))
	{
		admin.GET("/products", h.adminListProducts)
		admin.GET("/products/:slug", h.adminGetProduct)
		admin.POST("/products", h.adminCreateProduct)
		admin.PATCH("/products/:slug", h.adminUpdateProduct)
		admin.POST("/products/:slug/variants", h.adminCreateVariant)
		admin.PATCH("/variants/:id", h.adminUpdateVariant)
		admin.POST("/categories", h.adminCreateCategory)

		admin.GET("/orders", h.adminListOrders)
		admin.GET("/orders/statistics", h.orderStatistics)
		admin.PATCH("/orders/:id/status", h.updateOrderStatus)
		admin.PATCH("/orders/:id/payment", h.updatePaymentStatus)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func pagination(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "10"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}
	return page, perPage
}

// ==================== AUTH ====================

func (h *Handler) register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	user, err := h.auth.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, "Account created", user)
}

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	user, pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Logged in", gin.H{"user": user, "tokens": pair})
}

func (h *Handler) refreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		respondBadRequest(c, "refresh_token is required")
		return
	}

	pair, err := h.auth.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Token refreshed", pair)
}

func (h *Handler) verifyEmail(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		respondBadRequest(c, "token is required")
		return
	}

	if err := h.auth.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Email verified", nil)
}

func (h *Handler) getProfile(c *gin.Context) {
	respondOK(c, "", currentUser(c))
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	user, err := h.auth.UpdateProfile(c.Request.Context(), currentUser(c), req.FirstName, req.LastName, req.Phone)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Profile updated", user)
}

func (h *Handler) changePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), currentUser(c), req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Password changed", nil)
}

func (h *Handler) listUsers(c *gin.Context) {
	page, perPage := pagination(c)
	users, total, err := h.auth.ListUsers(c.Request.Context(), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, users, Meta{Page: page, PerPage: perPage, Total: total})
}

func (h *Handler) createUser(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	user, err := h.auth.RegisterUser(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, "User created", user)
}

func (h *Handler) setUserActive(c *gin.Context) {
	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		respondBadRequest(c, "active is required")
		return
	}

	if err := h.auth.SetUserActive(c.Request.Context(), c.Param("id"), *req.Active); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "User updated", nil)
}

// ==================== CATALOG ====================

func productFilter(c *gin.Context) store.ProductFilter {
	page, perPage := pagination(c)
	return store.ProductFilter{
		Status:       c.Query("status"),
		CategorySlug: c.Query("category"),
		Search:       c.Query("search"),
		FeaturedOnly: c.Query("featured") == "true",
		Page:         page,
		PerPage:      perPage,
	}
}

func (h *Handler) listProducts(c *gin.Context) {
	filter := productFilter(c)
	products, total, err := h.catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, products, Meta{Page: filter.Page, PerPage: filter.PerPage, Total: total})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", product)
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", categories)
}

func (h *Handler) checkAvailability(c *gin.Context) {
	sku := c.Param("sku")
	stock, err := h.catalog.CheckAvailability(c.Request.Context(), sku)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", gin.H{
		"sku":      sku,
		"stock":    stock,
		"in_stock": stock > 0,
	})
}

func (h *Handler) adminListProducts(c *gin.Context) {
	filter := productFilter(c)
	products, total, err := h.catalog.ListAllProducts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, products, Meta{Page: filter.Page, PerPage: filter.PerPage, Total: total})
}

func (h *Handler) adminGetProduct(c *gin.Context) {
	product, err := h.catalog.GetProductAdmin(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", product)
}

func (h *Handler) adminCreateProduct(c *gin.Context) {
	var req service.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, "Product created", product)
}

func (h *Handler) adminUpdateProduct(c *gin.Context) {
	var req service.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	product, err := h.catalog.UpdateProduct(c.Request.Context(), c.Param("slug"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Product updated", product)
}

func (h *Handler) adminCreateVariant(c *gin.Context) {
	var req service.VariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	variant, err := h.catalog.CreateVariant(c.Request.Context(), c.Param("slug"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, "Variant created", variant)
}

func (h *Handler) adminUpdateVariant(c *gin.Context) {
	var req service.VariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	variant, err := h.catalog.UpdateVariant(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Variant updated", variant)
}

func (h *Handler) adminCreateCategory(c *gin.Context) {
	var req service.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	category, err := h.catalog.CreateCategory(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, "Category created", category)
}

// ==================== ADDRESSES ====================

func (h *Handler) listAddresses(c *gin.Context) {
	addrs, err := h.addresses.ListAddresses(c.Request.Context(), currentUser(c), c.Query("type"), true)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", addrs)
}

func (h *Handler) createAddress(c *gin.Context) {
	var req struct {
		service.AddressData
		AddressType string `json:"address_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}
	if req.AddressType == "" {
		req.AddressType = models.AddressTypeShipping
	}

	addr, err := h.addresses.CreateAddress(c.Request.Context(), currentUser(c), &req.AddressData, req.AddressType)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, "Address created", addr)
}

func (h *Handler) updateAddress(c *gin.Context) {
	var req service.AddressData
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	addr, err := h.addresses.UpdateAddress(c.Request.Context(), currentUser(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Address updated", addr)
}

func (h *Handler) deleteAddress(c *gin.Context) {
	if err := h.addresses.DeleteAddress(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Address deleted", nil)
}

// ==================== ORDERS ====================

func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), &req, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, "Order placed", order)
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"), currentUser(c), c.Query("email"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", order)
}

func orderFilter(c *gin.Context) store.OrderFilter {
	page, perPage := pagination(c)
	filter := store.OrderFilter{
		Status:        c.Query("status"),
		PaymentStatus: c.Query("payment_status"),
		Search:        c.Query("search"),
		Page:          page,
		PerPage:       perPage,
	}
	if from := c.Query("date_from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filter.DateFrom = &t
		}
	}
	if to := c.Query("date_to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			end := t.Add(24*time.Hour - time.Nanosecond)
			filter.DateTo = &end
		}
	}
	return filter
}

func (h *Handler) listMyOrders(c *gin.Context) {
	filter := orderFilter(c)
	orders, total, err := h.orders.ListUserOrders(c.Request.Context(), currentUser(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, orders, Meta{Page: filter.Page, PerPage: filter.PerPage, Total: total})
}

func (h *Handler) cancelOrder(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	// The body is optional; cancelling without a reason is fine.
	_ = c.ShouldBindJSON(&req)

	order, err := h.orders.CancelOrder(c.Request.Context(), c.Param("id"), currentUser(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Order cancelled", order)
}

func (h *Handler) adminListOrders(c *gin.Context) {
	filter := orderFilter(c)
	if userID := c.Query("user_id"); userID != "" {
		filter.UserID = userID
	}
	orders, total, err := h.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, orders, Meta{Page: filter.Page, PerPage: filter.PerPage, Total: total})
}

func (h *Handler) orderStatistics(c *gin.Context) {
	stats, err := h.orders.GetStatistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", stats)
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req struct {
		Status    string `json:"status"`
		AdminNote string `json:"admin_note"`
		Carrier   string `json:"carrier"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.AdminNote, req.Carrier)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Order status updated", order)
}

func (h *Handler) updatePaymentStatus(c *gin.Context) {
	var req struct {
		PaymentStatus     string `json:"payment_status"`
		PaymentIntentID   string `json:"payment_intent_id"`
		PaymentReceiptURL string `json:"payment_receipt_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	order, err := h.orders.UpdatePaymentStatus(c.Request.Context(), c.Param("id"),
		req.PaymentStatus, req.PaymentIntentID, req.PaymentReceiptURL)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Payment status updated", order)
}

// verifyPayment settles an order after the payment provider reports the
// outcome of a checkout session. Absent payment_success means success; the
// provider only posts the field when a charge fails.
func (h *Handler) verifyPayment(c *gin.Context) {
	var req struct {
		PaymentIntentID string `json:"payment_intent_id"`
		OrderID         string `json:"order_id"`
		PaymentSuccess  *bool  `json:"payment_success"`
		ReceiptURL      string `json:"receipt_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}
	if req.PaymentIntentID == "" || req.OrderID == "" {
		respondBadRequest(c, "Missing payment_intent_id or order_id")
		return
	}

	paymentStatus := models.PaymentStatusPaid
	message := "Payment verified and order confirmed"
	if req.PaymentSuccess != nil && !*req.PaymentSuccess {
		paymentStatus = models.PaymentStatusFailed
		message = "Payment verification failed"
	}

	order, err := h.orders.UpdatePaymentStatus(c.Request.Context(), req.OrderID,
		paymentStatus, req.PaymentIntentID, req.ReceiptURL)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, message, order)
}
