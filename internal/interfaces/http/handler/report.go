package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	reportapp "github.com/marketsync/backend/internal/application/report"
)

// ReportHandler handles sales reporting endpoints
type ReportHandler struct {
	BaseHandler
	service *reportapp.Service
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(service *reportapp.Service) *ReportHandler {
	return &ReportHandler{service: service}
}

// MarketplaceSalesResponse represents sales for one marketplace
type MarketplaceSalesResponse struct {
	MarketplaceID   string `json:"marketplace_id"`
	MarketplaceName string `json:"marketplace_name"`
	OrderCount      int    `json:"order_count"`
	RevenuePLN      string `json:"revenue_pln"`
}

// SellReportResponse represents the per-marketplace sales summary
type SellReportResponse struct {
	From         string                     `json:"from"`
	To           string                     `json:"to"`
	TotalOrders  int                        `json:"total_orders"`
	TotalPLN     string                     `json:"total_pln"`
	Marketplaces []MarketplaceSalesResponse `json:"marketplaces"`
}

// GetSellReport aggregates order count and PLN revenue per marketplace
// for an inclusive date window (from/to as 2006-01-02).
func (h *ReportHandler) GetSellReport(c *gin.Context) {
	from, ok := h.parseDate(c, "from")
	if !ok {
		return
	}
	to, ok := h.parseDate(c, "to")
	if !ok {
		return
	}
	// The "to" date is inclusive: extend it to the end of the day.
	to = to.Add(24*time.Hour - time.Nanosecond)

	report, err := h.service.SellReport(c.Request.Context(), from, to)
	if err != nil {
		if errors.Is(err, reportapp.ErrInvalidDateRange) {
			h.BadRequest(c, err.Error())
			return
		}
		h.HandleSyncError(c, err)
		return
	}

	resp := SellReportResponse{
		From:         report.From.Format("2006-01-02"),
		To:           report.To.Format("2006-01-02"),
		TotalOrders:  report.TotalOrders,
		TotalPLN:     report.TotalPLN.StringFixed(2),
		Marketplaces: make([]MarketplaceSalesResponse, 0, len(report.Marketplaces)),
	}
	for _, sales := range report.Marketplaces {
		resp.Marketplaces = append(resp.Marketplaces, MarketplaceSalesResponse{
			MarketplaceID:   sales.MarketplaceID,
			MarketplaceName: sales.MarketplaceName,
			OrderCount:      sales.OrderCount,
			RevenuePLN:      sales.RevenuePLN.StringFixed(2),
		})
	}
	h.Success(c, resp)
}

// RegisterRoutes registers report routes
func (h *ReportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	reports := rg.Group("/reports")
	{
		reports.GET("/sell", h.GetSellReport)
	}
}

func (h *ReportHandler) parseDate(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		h.BadRequest(c, name+" is required (format 2006-01-02)")
		return time.Time{}, false
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		h.BadRequest(c, name+" must be a date in format 2006-01-02")
		return time.Time{}, false
	}
	return parsed, true
}
