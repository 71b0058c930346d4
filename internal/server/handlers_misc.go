package server

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mozo-cocina/internal/domain"
)

func (h *handlers) listNotes(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	out, err := h.deps.Notes.List(c.Request.Context(), limit)
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) createNote(c *gin.Context) {
	var body struct {
		Content string `json:"content"`
	}
	if err := c.BindJSON(&body); err != nil {
		writeProblem(c, h.lg, domain.Validationf("invalid request body: %v", err))
		return
	}
	note, err := h.deps.Notes.Create(c.Request.Context(), body.Content)
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (h *handlers) deleteNote(c *gin.Context) {
	id, ok := pathID(c, "note_id")
	if !ok {
		return
	}
	if err := h.deps.Notes.Delete(c.Request.Context(), id); err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *handlers) recentAudit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entity := c.Query("entity")
	var entityID int64
	if raw := c.Query("entity_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeProblem(c, h.lg, domain.Validationf("invalid entity_id"))
			return
		}
		entityID = id
	}
	entries, err := h.deps.Audit.Recent(c.Request.Context(), limit, entity, entityID)
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *handlers) statsToday(c *gin.Context) {
	stats, err := h.deps.Reports.Daily(c.Request.Context(), time.Now().UTC())
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// exportOrders streams the day's orders as CSV; pure formatting, every value
// comes straight from the reports query.
func (h *handlers) exportOrders(c *gin.Context) {
	day := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeProblem(c, h.lg, domain.Validationf("invalid date, want YYYY-MM-DD"))
			return
		}
		day = parsed
	}
	rows, err := h.deps.Reports.ExportRows(c.Request.Context(), day)
	if err != nil {
		writeProblem(c, h.lg, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename=orders_%s.csv`, day.Format("2006-01-02")))

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"id", "order_number", "created_at", "table", "server", "total", "paid", "cancelled"})
	for _, r := range rows {
		_ = w.Write([]string{
			strconv.FormatInt(r.ID, 10),
			r.Number,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.Table,
			r.Server,
			strconv.FormatFloat(r.Total, 'f', 2, 64),
			strconv.FormatBool(r.Paid),
			strconv.FormatBool(r.Cancelled),
		})
	}
	w.Flush()
}
