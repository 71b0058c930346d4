package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mozo-cocina/internal/domain"
)

func (h *handlers) listProducts(c *gin.Context) {
	var categoryID *int64
	if raw := c.Query("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeProblem(c, h.lg, domain.Validationf("invalid category_id"))
			return
		}
		categoryID = &id
	}
	products, err := h.deps.Catalog.ListProducts(c.Request.Context(), categoryID)
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *handlers) createProduct(c *gin.Context) {
	var body struct {
		Name       string  `json:"name"`
		Price      float64 `json:"price"`
		CategoryID *int64  `json:"category_id"`
	}
	if err := c.BindJSON(&body); err != nil {
		writeProblem(c, h.lg, domain.Validationf("invalid request body: %v", err))
		return
	}
	id, err := h.deps.Catalog.CreateProduct(c.Request.Context(), body.Name, body.Price, body.CategoryID)
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *handlers) deleteProduct(c *gin.Context) {
	id, ok := pathID(c, "product_id")
	if !ok {
		return
	}
	if err := h.deps.Catalog.DeactivateProduct(c.Request.Context(), id); err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *handlers) listCategories(c *gin.Context) {
	categories, err := h.deps.Catalog.ListCategories(c.Request.Context())
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *handlers) createCategory(c *gin.Context) {
	var body struct {
		Name      string `json:"name"`
		SortOrder int    `json:"sort_order"`
	}
	if err := c.BindJSON(&body); err != nil {
		writeProblem(c, h.lg, domain.Validationf("invalid request body: %v", err))
		return
	}
	id, err := h.deps.Catalog.CreateCategory(c.Request.Context(), body.Name, body.SortOrder)
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *handlers) deleteCategory(c *gin.Context) {
	id, ok := pathID(c, "category_id")
	if !ok {
		return
	}
	if err := h.deps.Catalog.DeleteCategory(c.Request.Context(), id); err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *handlers) listModifiers(c *gin.Context) {
	modifiers, err := h.deps.Catalog.ListModifiers(c.Request.Context())
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusOK, modifiers)
}

func (h *handlers) createModifier(c *gin.Context) {
	var body struct {
		Name       string  `json:"name"`
		ExtraPrice float64 `json:"extra_price"`
	}
	if err := c.BindJSON(&body); err != nil {
		writeProblem(c, h.lg, domain.Validationf("invalid request body: %v", err))
		return
	}
	id, err := h.deps.Catalog.CreateModifier(c.Request.Context(), body.Name, body.ExtraPrice)
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *handlers) deleteModifier(c *gin.Context) {
	id, ok := pathID(c, "modifier_id")
	if !ok {
		return
	}
	if err := h.deps.Catalog.DeactivateModifier(c.Request.Context(), id); err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *handlers) listTables(c *gin.Context) {
	tables, err := h.deps.Catalog.ListTables(c.Request.Context())
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusOK, tables)
}

func (h *handlers) listStaff(c *gin.Context) {
	staff, err := h.deps.Catalog.ListStaff(c.Request.Context(), c.Query("role"))
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusOK, staff)
}
