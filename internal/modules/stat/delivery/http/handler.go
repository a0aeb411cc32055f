package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	stat "github.com/improvdb/improvdb-api/internal/modules/stat/service"
	"github.com/improvdb/improvdb-api/pkg/response"
)

type StatHandler struct {
	service stat.StatService
}

func NewStatHandler(service stat.StatService) *StatHandler {
	return &StatHandler{service: service}
}

func (h *StatHandler) GetTopContributors(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	resp, err := h.service.GetTopContributors(c.Request.Context(), limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (h *StatHandler) GetSitemap(c *gin.Context) {
	resp, err := h.service.GetSitemapEntries(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
