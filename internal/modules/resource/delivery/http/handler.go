package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	resourceDto "github.com/improvdb/improvdb-api/internal/modules/resource/dto"
	resource "github.com/improvdb/improvdb-api/internal/modules/resource/service"
	"github.com/improvdb/improvdb-api/pkg/ratelimiter"
	"github.com/improvdb/improvdb-api/pkg/response"
	"github.com/improvdb/improvdb-api/pkg/validator"
)

type ResourceHandler struct {
	service resource.Service
}

func NewResourceHandler(service resource.Service) *ResourceHandler {
	return &ResourceHandler{service: service}
}

// respondMutationError adds the Retry-After header for rate-limit
// rejections before falling back to the shared error mapping.
func respondMutationError(c *gin.Context, err error) {
	if rateLimitErr, ok := err.(*ratelimiter.RateLimitError); ok {
		c.Header("Retry-After", fmt.Sprintf("%.0f", rateLimitErr.RetryAfter.Seconds()))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": rateLimitErr.Message})
		return
	}
	response.ResponseError(c, err)
}

func (h *ResourceHandler) CreateResource(c *gin.Context) {
	var req resourceDto.CreateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	resp, err := h.service.Create(c.Request.Context(), response.GetPrincipal(c), req)
	if err != nil {
		respondMutationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *ResourceHandler) UpdateResource(c *gin.Context) {
	var req resourceDto.UpdateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	resp, err := h.service.Update(c.Request.Context(), response.GetPrincipal(c), c.Param("id"), req)
	if err != nil {
		respondMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ResourceHandler) ProposeUpdate(c *gin.Context) {
	var req resourceDto.UpdateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	resp, err := h.service.ProposeUpdate(c.Request.Context(), response.GetPrincipal(c), c.Param("id"), req)
	if err != nil {
		respondMutationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *ResourceHandler) AcceptProposedUpdate(c *gin.Context) {
	resp, err := h.service.AcceptProposedUpdate(c.Request.Context(), response.GetPrincipal(c), c.Param("id"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ResourceHandler) SetPublished(c *gin.Context) {
	var req resourceDto.SetPublishedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	resp, err := h.service.SetPublished(c.Request.Context(), response.GetPrincipal(c), c.Param("id"), *req.Published)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ResourceHandler) DeleteResource(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Delete(c.Request.Context(), response.GetPrincipal(c), id); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *ResourceHandler) GetAllResources(c *gin.Context) {
	var filter resourceDto.ResourceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	resp, err := h.service.GetAll(c.Request.Context(), filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ResourceHandler) GetLatestResources(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	resp, err := h.service.GetLatest(c.Request.Context(), limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (h *ResourceHandler) GetResourceByID(c *gin.Context) {
	resp, err := h.service.GetByID(c.Request.Context(), response.GetPrincipal(c), c.Param("id"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ResourceHandler) GetMyResources(c *gin.Context) {
	resp, err := h.service.GetMine(c.Request.Context(), response.GetPrincipal(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (h *ResourceHandler) GetMyProposedResources(c *gin.Context) {
	resp, err := h.service.GetMyProposed(c.Request.Context(), response.GetPrincipal(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (h *ResourceHandler) GetPendingPublication(c *gin.Context) {
	resp, err := h.service.GetPendingPublication(c.Request.Context(), response.GetPrincipal(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
