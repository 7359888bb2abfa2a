package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
)

type refundRequest struct {
	IdempotencyKey string         `json:"idempotency_key"`
	Amount         *int64         `json:"amount"`
	Reason         string         `json:"reason"`
	RefundKey      string         `json:"refund_key"`
	Metadata       map[string]any `json:"metadata"`
}

// Refund answers 409 over_refund with what is still refundable.
func (s *Server) Refund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.Refund(c.Request.Context(), ledgerdomain.RefundRequest{
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		Amount:         req.Amount,
		Reason:         req.Reason,
		RefundKey:      strings.TrimSpace(req.RefundKey),
		Metadata:       req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := resp.Err(); err != nil {
		respondBusinessError(c, err, map[string]any{
			"remaining_refundable": resp.RemainingRefundable,
			"original_entry_id":    resp.OriginalEntryID.String(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
