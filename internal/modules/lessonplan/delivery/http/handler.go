package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	lessonplanDto "github.com/improvdb/improvdb-api/internal/modules/lessonplan/dto"
	lessonplan "github.com/improvdb/improvdb-api/internal/modules/lessonplan/service"
	"github.com/improvdb/improvdb-api/pkg/ratelimiter"
	"github.com/improvdb/improvdb-api/pkg/response"
	"github.com/improvdb/improvdb-api/pkg/validator"
)

type LessonPlanHandler struct {
	service lessonplan.LessonPlanService
}

func NewLessonPlanHandler(service lessonplan.LessonPlanService) *LessonPlanHandler {
	return &LessonPlanHandler{service: service}
}

func respondMutationError(c *gin.Context, err error) {
	if rateLimitErr, ok := err.(*ratelimiter.RateLimitError); ok {
		c.Header("Retry-After", fmt.Sprintf("%.0f", rateLimitErr.RetryAfter.Seconds()))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": rateLimitErr.Message})
		return
	}
	response.ResponseError(c, err)
}

func parsePlanID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lesson plan id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *LessonPlanHandler) CreateLessonPlan(c *gin.Context) {
	var req lessonplanDto.SaveLessonPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	resp, err := h.service.Create(c.Request.Context(), response.GetPrincipal(c), &req)
	if err != nil {
		respondMutationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *LessonPlanHandler) UpdateLessonPlan(c *gin.Context) {
	id, ok := parsePlanID(c)
	if !ok {
		return
	}
	var req lessonplanDto.SaveLessonPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	resp, err := h.service.Update(c.Request.Context(), response.GetPrincipal(c), id, &req)
	if err != nil {
		respondMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *LessonPlanHandler) DeleteLessonPlan(c *gin.Context) {
	id, ok := parsePlanID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), response.GetPrincipal(c), id); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "lesson plan deleted"})
}

func (h *LessonPlanHandler) SetVisibility(c *gin.Context) {
	id, ok := parsePlanID(c)
	if !ok {
		return
	}
	var req lessonplanDto.SetVisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	resp, err := h.service.SetVisibility(c.Request.Context(), response.GetPrincipal(c), id, req.Visibility)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *LessonPlanHandler) GetLessonPlanByID(c *gin.Context) {
	id, ok := parsePlanID(c)
	if !ok {
		return
	}
	resp, err := h.service.GetByID(c.Request.Context(), response.GetPrincipal(c), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *LessonPlanHandler) GetPublicLessonPlans(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	resp, err := h.service.GetPublic(c.Request.Context(), page, limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *LessonPlanHandler) GetMyLessonPlans(c *gin.Context) {
	resp, err := h.service.GetMine(c.Request.Context(), response.GetPrincipal(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
