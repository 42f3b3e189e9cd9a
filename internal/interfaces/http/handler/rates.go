package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/printsync/backend/internal/application/rates"
	"github.com/printsync/backend/internal/domain/shipping"
	"github.com/printsync/backend/internal/interfaces/http/dto"
	"github.com/printsync/backend/internal/interfaces/http/middleware"
)

// RateQuoter computes shipping options for a cart.
type RateQuoter interface {
	Quote(ctx context.Context, req rates.Request) (*rates.Quote, error)
}

// RatesHandler serves checkout shipping rate computation.
type RatesHandler struct {
	quoter          RateQuoter
	defaultCurrency string
	logger          *zap.Logger
}

// NewRatesHandler creates a new RatesHandler
func NewRatesHandler(quoter RateQuoter, defaultCurrency string, logger *zap.Logger) *RatesHandler {
	return &RatesHandler{quoter: quoter, defaultCurrency: defaultCurrency, logger: logger}
}

// RegisterRoutes registers shipping rate routes
func (h *RatesHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/shipping/rates", h.QuoteRates)
}

// QuoteRates computes shipping options for a cart and destination.
func (h *RatesHandler) QuoteRates(c *gin.Context) {
	var req dto.RateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = h.defaultCurrency
	}

	quoteReq := rates.Request{
		Destination: shipping.Destination{
			Country:  req.Destination.Country,
			Region:   req.Destination.Region,
			Postcode: req.Destination.Postcode,
		},
		Currency: currency,
	}
	for _, item := range req.Items {
		quoteReq.Items = append(quoteReq.Items, rates.CartItem{
			ProviderID: item.ProviderID,
			Quantity:   item.Quantity,
		})
	}

	quote, err := h.quoter.Quote(c.Request.Context(), quoteReq)
	if err != nil {
		h.logger.Error("rate quote failed",
			zap.String("country", req.Destination.Country),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("QUOTE_FAILED", "could not compute shipping rates"))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(toRateQuoteResponse(quote)))
}

func toRateQuoteResponse(quote *rates.Quote) dto.RateQuoteResponse {
	resp := dto.RateQuoteResponse{
		Options:  make([]dto.RateOptionResponse, 0, len(quote.Options)),
		Combined: quote.Combined,
	}
	for _, option := range quote.Options {
		resp.Options = append(resp.Options, dto.RateOptionResponse{
			Provider:        option.Provider,
			Method:          option.Method,
			Carrier:         option.Carrier,
			Cost:            option.Cost.StringFixed(2),
			Currency:        option.Currency,
			MinDeliveryDays: option.MinDeliveryDays,
			MaxDeliveryDays: option.MaxDeliveryDays,
			Fallback:        option.Fallback,
		})
	}
	return resp
}
