package handler

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/trustmesh/escrow-engine/internal/core/domain"
	"github.com/trustmesh/escrow-engine/internal/core/service"
	"github.com/trustmesh/escrow-engine/internal/metrics"
)

// HTTPHandler exposes the escrow operations as a JSON API. Addresses are hex
// strings, amounts decimal strings; the caller identity is supplied per
// request.
type HTTPHandler struct {
	escrow *service.EscrowService
}

func NewHTTPHandler(escrow *service.EscrowService) *HTTPHandler {
	return &HTTPHandler{escrow: escrow}
}

// NewRouter wires the full HTTP surface: API routes, health, metrics and
// zap request logging.
func NewRouter(escrow *service.EscrowService, logger *zap.Logger, registry *prometheus.Registry) *gin.Engine {
	h := NewHTTPHandler(escrow)

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))

	router.GET("/health", h.Health)
	if registry != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(registry)))
	}

	api := router.Group("/api")
	{
		api.POST("/orders", h.CreateOrder)
		api.POST("/orders/confirm", h.ConfirmOrder)
		api.POST("/orders/refund", h.RefundOrder)

		admin := api.Group("/admin")
		{
			admin.POST("/orders/confirm", h.ConfirmOrderByAdmin)
			admin.POST("/orders/refund", h.RefundOrderByAdmin)
			admin.PUT("/fee-rate", h.UpdateFeeRate)
			admin.POST("/fees/withdraw", h.WithdrawFees)
			admin.GET("/fees", h.FeeBalance)
			admin.POST("/fee-exemptions", h.GrantFeeExemption)
		}
	}

	return router
}

type createOrderRequest struct {
	Caller    string `json:"caller" binding:"required"`
	Token     string `json:"token" binding:"required"`
	Symbol    string `json:"symbol" binding:"required"`
	Recipient string `json:"recipient" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Fee       string `json:"fee" binding:"required"`
	Remark    string `json:"remark"`
}

type resolveOrderRequest struct {
	Caller    string `json:"caller" binding:"required"`
	Token     string `json:"token" binding:"required"`
	Symbol    string `json:"symbol" binding:"required"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Fee       string `json:"fee" binding:"required"`
	DraftAt   int64  `json:"draft_at" binding:"required"`
}

func (h *HTTPHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	fee, err := parseAmount("fee", req.Fee)
	if err != nil {
		writeBadRequest(c, err)
		return
	}

	id, draftAt, err := h.escrow.CreateOrder(c.Request.Context(), caller, token, req.Symbol, recipient, amount, fee, req.Remark)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order_id": id.Hex(),
		"draft_at": draftAt,
	})
}

func (h *HTTPHandler) ConfirmOrder(c *gin.Context) {
	req, fields, ok := h.bindResolve(c, false)
	if !ok {
		return
	}
	err := h.escrow.ConfirmOrder(c.Request.Context(), fields.caller, fields.token, req.Symbol, fields.recipient, fields.amount, fields.fee, req.DraftAt)
	writeResolveResult(c, err)
}

func (h *HTTPHandler) ConfirmOrderByAdmin(c *gin.Context) {
	req, fields, ok := h.bindResolve(c, true)
	if !ok {
		return
	}
	err := h.escrow.ConfirmOrderByAdmin(c.Request.Context(), fields.caller, fields.token, req.Symbol, fields.sender, fields.recipient, fields.amount, fields.fee, req.DraftAt)
	writeResolveResult(c, err)
}

func (h *HTTPHandler) RefundOrder(c *gin.Context) {
	req, fields, ok := h.bindResolve(c, true)
	if !ok {
		return
	}
	err := h.escrow.RefundOrderByRecipient(c.Request.Context(), fields.caller, fields.token, req.Symbol, fields.sender, fields.recipient, fields.amount, fields.fee, req.DraftAt)
	writeResolveResult(c, err)
}

func (h *HTTPHandler) RefundOrderByAdmin(c *gin.Context) {
	req, fields, ok := h.bindResolve(c, true)
	if !ok {
		return
	}
	err := h.escrow.RefundOrderByAdmin(c.Request.Context(), fields.caller, fields.token, req.Symbol, fields.sender, fields.recipient, fields.amount, fields.fee, req.DraftAt)
	writeResolveResult(c, err)
}

type updateFeeRateRequest struct {
	Caller string `json:"caller" binding:"required"`
	Rate   int64  `json:"rate"`
}

func (h *HTTPHandler) UpdateFeeRate(c *gin.Context) {
	var req updateFeeRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	if err := h.escrow.UpdateFeeRate(c.Request.Context(), caller, req.Rate); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rate": req.Rate})
}

type withdrawFeesRequest struct {
	Caller string `json:"caller" binding:"required"`
	Token  string `json:"token" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

func (h *HTTPHandler) WithdrawFees(c *gin.Context) {
	var req withdrawFeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	if err := h.escrow.WithdrawFees(c.Request.Context(), caller, token, amount); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawn": amount.String()})
}

func (h *HTTPHandler) FeeBalance(c *gin.Context) {
	caller, err := parseAddress("caller", c.Query("caller"))
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	token, err := parseAddress("token", c.Query("token"))
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	bal, err := h.escrow.FeeBalance(c.Request.Context(), caller, token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token.Hex(), "balance": bal.String()})
}

type grantExemptionRequest struct {
	Caller    string   `json:"caller" binding:"required"`
	Addresses []string `json:"addresses" binding:"required"`
}

func (h *HTTPHandler) GrantFeeExemption(c *gin.Context) {
	var req grantExemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	addrs := make([]common.Address, 0, len(req.Addresses))
	for _, raw := range req.Addresses {
		a, err := parseAddress("addresses", raw)
		if err != nil {
			writeBadRequest(c, err)
			return
		}
		addrs = append(addrs, a)
	}
	if err := h.escrow.GrantFeeExemption(c.Request.Context(), caller, addrs); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"granted": len(addrs)})
}

func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type resolveFields struct {
	caller    common.Address
	token     common.Address
	sender    common.Address
	recipient common.Address
	amount    *big.Int
	fee       *big.Int
}

// bindResolve parses the shared resolution payload. ConfirmOrder derives the
// sender from the caller, every other path requires it explicitly.
func (h *HTTPHandler) bindResolve(c *gin.Context, needSender bool) (resolveOrderRequest, resolveFields, bool) {
	var req resolveOrderRequest
	var f resolveFields

	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return req, f, false
	}

	var err error
	if f.caller, err = parseAddress("caller", req.Caller); err != nil {
		writeBadRequest(c, err)
		return req, f, false
	}
	if f.token, err = parseAddress("token", req.Token); err != nil {
		writeBadRequest(c, err)
		return req, f, false
	}
	if needSender {
		if f.sender, err = parseAddress("sender", req.Sender); err != nil {
			writeBadRequest(c, err)
			return req, f, false
		}
	}
	if f.recipient, err = parseAddress("recipient", req.Recipient); err != nil {
		writeBadRequest(c, err)
		return req, f, false
	}
	if f.amount, err = parseAmount("amount", req.Amount); err != nil {
		writeBadRequest(c, err)
		return req, f, false
	}
	if f.fee, err = parseAmount("fee", req.Fee); err != nil {
		writeBadRequest(c, err)
		return req, f, false
	}
	return req, f, true
}

func writeResolveResult(c *gin.Context, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolved": true})
}

func parseAddress(field, raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s: not a hex address: %q", field, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%s: not a decimal integer: %q", field, raw)
	}
	return v, nil
}

func writeBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidFee), errors.Is(err, domain.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrOrderExists), errors.Is(err, domain.ErrInsufficientFeeBalance):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrTransferFailed):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
