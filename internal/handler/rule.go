package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"chatwatch/internal/models"
	"chatwatch/internal/service"
)

type RuleHandler interface {
	ListRules(c *gin.Context)
	ListPatterns(c *gin.Context)
	CreateRule(c *gin.Context)
	UpdateRule(c *gin.Context)
	DeactivateRule(c *gin.Context)
	CreatePattern(c *gin.Context)
	DeactivatePattern(c *gin.Context)
}

type ruleHandler struct {
	ruleService service.RuleService
	log         *logrus.Logger
}

func NewRuleHandler(ruleService service.RuleService, log *logrus.Logger) RuleHandler {
	return &ruleHandler{ruleService: ruleService, log: log}
}

func (h *ruleHandler) ListRules(c *gin.Context) {
	rules, err := h.ruleService.ListRules(c.Request.Context(), c.Query("type"))
	if err != nil {
		h.log.Errorf("Failed to list rules: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list rules"})
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *ruleHandler) ListPatterns(c *gin.Context) {
	patterns, err := h.ruleService.ListPatterns(c.Request.Context())
	if err != nil {
		h.log.Errorf("Failed to list patterns: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list patterns"})
		return
	}
	c.JSON(http.StatusOK, patterns)
}

type createRuleRequest struct {
	FilterType    string `json:"filter_type" binding:"required"`
	Word          string `json:"word" binding:"required"`
	WordType      string `json:"word_type" binding:"required"`
	IsRegex       bool   `json:"is_regex"`
	CaseSensitive bool   `json:"case_sensitive"`
	Priority      int    `json:"priority"`
	Scope         string `json:"scope"`
}

func (h *ruleHandler) CreateRule(c *gin.Context) {
	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule := &models.FilterRule{
		FilterType:    req.FilterType,
		Word:          req.Word,
		WordType:      req.WordType,
		IsRegex:       req.IsRegex,
		CaseSensitive: req.CaseSensitive,
		Priority:      req.Priority,
		Scope:         req.Scope,
	}
	if err := h.ruleService.CreateRule(c.Request.Context(), rule); err != nil {
		switch {
		case errors.Is(err, service.ErrRuleExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidRule):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.log.Errorf("Failed to create rule: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create rule"})
		}
		return
	}

	c.JSON(http.StatusCreated, rule)
}

type updateRuleRequest struct {
	Word          string `json:"word" binding:"required"`
	WordType      string `json:"word_type" binding:"required"`
	IsRegex       bool   `json:"is_regex"`
	CaseSensitive bool   `json:"case_sensitive"`
	Priority      int    `json:"priority"`
	Scope         string `json:"scope"`
	Active        bool   `json:"active"`
}

func (h *ruleHandler) UpdateRule(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rule ID"})
		return
	}

	var req updateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule := &models.FilterRule{
		ID:            id,
		Word:          req.Word,
		WordType:      req.WordType,
		IsRegex:       req.IsRegex,
		CaseSensitive: req.CaseSensitive,
		Priority:      req.Priority,
		Scope:         req.Scope,
		Active:        req.Active,
	}
	if err := h.ruleService.UpdateRule(c.Request.Context(), rule); err != nil {
		switch {
		case errors.Is(err, service.ErrRuleNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrRuleExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidRule):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.log.Errorf("Failed to update rule %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update rule"})
		}
		return
	}

	c.JSON(http.StatusOK, rule)
}

func (h *ruleHandler) DeactivateRule(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rule ID"})
		return
	}

	if err := h.ruleService.DeactivateRule(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.log.Errorf("Failed to deactivate rule %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate rule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rule deactivated"})
}

type createPatternRequest struct {
	Regex            string  `json:"regex" binding:"required"`
	ConfidenceWeight float64 `json:"confidence_weight" binding:"required"`
	Category         string  `json:"category"`
	Priority         int     `json:"priority"`
}

func (h *ruleHandler) CreatePattern(c *gin.Context) {
	var req createPatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pattern := &models.AnnouncementPattern{
		Regex:            req.Regex,
		ConfidenceWeight: req.ConfidenceWeight,
		Category:         req.Category,
		Priority:         req.Priority,
	}
	if err := h.ruleService.CreatePattern(c.Request.Context(), pattern); err != nil {
		if errors.Is(err, service.ErrInvalidRule) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Errorf("Failed to create pattern: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create pattern"})
		return
	}

	c.JSON(http.StatusCreated, pattern)
}

func (h *ruleHandler) DeactivatePattern(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pattern ID"})
		return
	}

	if err := h.ruleService.DeactivatePattern(c.Request.Context(), id); err != nil {
		h.log.Errorf("Failed to deactivate pattern %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate pattern"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Pattern deactivated"})
}
