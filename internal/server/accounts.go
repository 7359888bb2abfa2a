package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
)

type openAccountRequest struct {
	AccountID string `json:"account_id"`
}

type consumeRequest struct {
	IdempotencyKey   string         `json:"idempotency_key"`
	ModelName        string         `json:"model_name"`
	QuestionCategory string         `json:"question_category"`
	Description      string         `json:"description"`
	Metadata         map[string]any `json:"metadata"`
}

type rechargeRequest struct {
	Amount         int64          `json:"amount"`
	IdempotencyKey string         `json:"idempotency_key"`
	Description    string         `json:"description"`
	Metadata       map[string]any `json:"metadata"`
}

func (s *Server) OpenAccount(c *gin.Context) {
	var req openAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.OpenAccount(c.Request.Context(), strings.TrimSpace(req.AccountID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBalance(c *gin.Context) {
	resp, err := s.ledgerSvc.GetBalance(c.Request.Context(), accountIDParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListEntries(c *gin.Context) {
	var query ledgerdomain.ListEntriesRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}
	query.AccountID = accountIDParam(c)

	resp, err := s.ledgerSvc.ListEntries(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VerifyAccount(c *gin.Context) {
	resp, err := s.ledgerSvc.VerifyAccount(c.Request.Context(), accountIDParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// Consume answers 402 with the balance and price when credits are short.
func (s *Server) Consume(c *gin.Context) {
	var req consumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.CheckAndDeduct(c.Request.Context(), ledgerdomain.DeductRequest{
		AccountID:        accountIDParam(c),
		IdempotencyKey:   strings.TrimSpace(req.IdempotencyKey),
		ModelName:        strings.TrimSpace(req.ModelName),
		QuestionCategory: strings.TrimSpace(req.QuestionCategory),
		Description:      req.Description,
		Metadata:         req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := resp.Err(); err != nil {
		respondBusinessError(c, err, map[string]any{
			"balance":  resp.PriorBalance,
			"required": resp.RequiredAmount,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) Recharge(c *gin.Context) {
	var req rechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.Recharge(c.Request.Context(), ledgerdomain.RechargeRequest{
		AccountID:      accountIDParam(c),
		Amount:         req.Amount,
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		Description:    req.Description,
		Metadata:       req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) FreezeAccount(c *gin.Context) {
	resp, err := s.ledgerSvc.FreezeAccount(c.Request.Context(), accountIDParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UnfreezeAccount(c *gin.Context) {
	resp, err := s.ledgerSvc.UnfreezeAccount(c.Request.Context(), accountIDParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func accountIDParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("account_id"))
}
