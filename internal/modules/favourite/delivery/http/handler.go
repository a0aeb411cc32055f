package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	favourite "github.com/improvdb/improvdb-api/internal/modules/favourite/service"
	"github.com/improvdb/improvdb-api/pkg/response"
	"github.com/improvdb/improvdb-api/pkg/validator"
)

type FavouriteHandler struct {
	service favourite.FavouriteService
}

func NewFavouriteHandler(service favourite.FavouriteService) *FavouriteHandler {
	return &FavouriteHandler{service: service}
}

type setFavouriteRequest struct {
	Favourite *bool `json:"favourite" binding:"required"`
}

func (h *FavouriteHandler) SetFavourite(c *gin.Context) {
	var req setFavouriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	state, err := h.service.Set(c.Request.Context(), response.GetPrincipal(c), c.Param("id"), *req.Favourite)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"favourite": state})
}

func (h *FavouriteHandler) GetFavouriteState(c *gin.Context) {
	state, err := h.service.IsFavourite(c.Request.Context(), response.GetPrincipal(c), c.Param("id"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favourite": state})
}

func (h *FavouriteHandler) GetMyFavourites(c *gin.Context) {
	resp, err := h.service.GetMine(c.Request.Context(), response.GetPrincipal(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
