package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mozo-cocina/internal/domain"
	"mozo-cocina/internal/ledger"
)

func (h *handlers) createOrder(c *gin.Context) {
	var in ledger.CreateOrderInput
	if err := c.BindJSON(&in); err != nil {
		writeProblem(c, h.lg, domain.Validationf("invalid request body: %v", err))
		return
	}
	order, err := h.deps.Ledger.CreateOrder(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *handlers) listOrders(c *gin.Context) {
	var f ledger.ListFilter
	if raw := c.Query("state"); raw != "" {
		state := domain.OrderState(raw)
		f.State = &state
	}
	f.IncludeCancelled = c.Query("include_cancelled") == "true"

	orders, err := h.deps.Ledger.ListOrders(c.Request.Context(), f)
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func (h *handlers) getOrder(c *gin.Context) {
	id, ok := pathID(c, "order_id")
	if !ok {
		return
	}
	order, err := h.deps.Ledger.GetOrder(c.Request.Context(), id)
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) cancelOrder(c *gin.Context) {
	id, ok := pathID(c, "order_id")
	if !ok {
		return
	}
	order, err := h.deps.Ledger.CancelOrder(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) setOrderState(c *gin.Context) {
	id, ok := pathID(c, "order_id")
	if !ok {
		return
	}
	var body struct {
		State string `json:"state"`
	}
	if err := c.BindJSON(&body); err != nil {
		writeProblem(c, h.lg, domain.Validationf("invalid request body: %v", err))
		return
	}
	order, err := h.deps.Ledger.SetState(c.Request.Context(), actorFrom(c), id, body.State)
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) addDiscount(c *gin.Context) {
	id, ok := pathID(c, "order_id")
	if !ok {
		return
	}
	var in ledger.DiscountInput
	if err := c.BindJSON(&in); err != nil {
		writeProblem(c, h.lg, domain.Validationf("invalid request body: %v", err))
		return
	}
	order, err := h.deps.Ledger.AddDiscount(c.Request.Context(), actorFrom(c), id, in)
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) addPayment(c *gin.Context) {
	id, ok := pathID(c, "order_id")
	if !ok {
		return
	}
	var in ledger.PaymentInput
	if err := c.BindJSON(&in); err != nil {
		writeProblem(c, h.lg, domain.Validationf("invalid request body: %v", err))
		return
	}
	order, err := h.deps.Ledger.AddPayment(c.Request.Context(), actorFrom(c), id, in)
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
