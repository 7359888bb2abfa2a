package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	costdomain "github.com/smallbiznis/creditledger/internal/costcatalog/domain"
)

func (s *Server) ListCostRules(c *gin.Context) {
	includeInactive, err := parseOptionalBool(c.Query("include_inactive"))
	if err != nil {
		AbortWithError(c, newValidationError("include_inactive", "invalid_include_inactive", "invalid include_inactive"))
		return
	}

	req := costdomain.ListRulesRequest{}
	if includeInactive != nil {
		req.IncludeInactive = *includeInactive
	}
	resp, err := s.catalogSvc.ListRules(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpsertCostRule(c *gin.Context) {
	var req costdomain.UpsertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.UpsertRule(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateCostRule(c *gin.Context) {
	model := strings.TrimSpace(c.Param("model_name"))
	category := strings.TrimSpace(c.Param("question_category"))

	if err := s.catalogSvc.DeactivateRule(c.Request.Context(), model, category); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
