// Package server is the thin HTTP skin over the ledger, catalog, audit and
// hub components. Routing and parsing only; every rule lives below it.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"mozo-cocina/internal/audit"
	"mozo-cocina/internal/catalog"
	"mozo-cocina/internal/config"
	"mozo-cocina/internal/domain"
	"mozo-cocina/internal/ledger"
	"mozo-cocina/internal/logger"
	"mozo-cocina/internal/notes"
	"mozo-cocina/internal/reports"
	"mozo-cocina/internal/ws"
)

type Server struct {
	http *http.Server
	lg   *logger.Logger
}

type Deps struct {
	Ledger  *ledger.Service
	Catalog *catalog.Store
	Audit   *audit.Recorder
	Notes   *notes.Store
	Reports *reports.Store
	WS      *ws.Handler
}

func New(cfg config.HTTPConfig, d Deps, lg *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"POST", "GET", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Actor-Id", "X-Actor-Name"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	h := &handlers{deps: d, lg: lg}
	h.register(router)

	return &Server{
		http: &http.Server{Addr: ":" + strconv.Itoa(cfg.Port), Handler: router},
		lg:   lg,
	}
}

// Run blocks until ctx is cancelled or the listener fails, then drains
// in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.http.ListenAndServe() }()
	s.lg.Info("http_listening", map[string]any{"addr": s.http.Addr})

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

type handlers struct {
	deps Deps
	lg   *logger.Logger
}

func (h *handlers) register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/orders", h.createOrder)
	r.GET("/orders", h.listOrders)
	r.GET("/orders/:order_id", h.getOrder)
	r.POST("/orders/:order_id/cancel", h.cancelOrder)
	r.PUT("/orders/:order_id/state", h.setOrderState)
	r.POST("/orders/:order_id/discounts", h.addDiscount)
	r.POST("/orders/:order_id/payments", h.addPayment)

	r.GET("/products", h.listProducts)
	r.POST("/products", h.createProduct)
	r.DELETE("/products/:product_id", h.deleteProduct)
	r.GET("/categories", h.listCategories)
	r.POST("/categories", h.createCategory)
	r.DELETE("/categories/:category_id", h.deleteCategory)
	r.GET("/modifiers", h.listModifiers)
	r.POST("/modifiers", h.createModifier)
	r.DELETE("/modifiers/:modifier_id", h.deleteModifier)
	r.GET("/tables", h.listTables)
	r.GET("/staff", h.listStaff)

	r.GET("/notes", h.listNotes)
	r.POST("/notes", h.createNote)
	r.DELETE("/notes/:note_id", h.deleteNote)

	r.GET("/audit", h.recentAudit)
	r.GET("/stats/today", h.statsToday)
	r.GET("/export/orders", h.exportOrders)

	r.GET("/ws/kitchen", h.deps.WS.Serve(domain.KitchenChannel))
}

// actorFrom pulls the acting staff member out of the request headers. The
// actor may be unknown; mutations still go through, the audit entry just
// records less.
func actorFrom(c *gin.Context) ledger.Actor {
	a := ledger.Actor{
		Name:   c.GetHeader("X-Actor-Name"),
		Origin: c.ClientIP(),
	}
	if raw := c.GetHeader("X-Actor-Id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			a.ID = &id
		}
	}
	return a
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(c, nil, domain.Validationf("invalid %s", name))
		return 0, false
	}
	return id, true
}
