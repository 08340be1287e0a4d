package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smart-splitter-backend/database"
	"smart-splitter-backend/models"
	"smart-splitter-backend/utils"
)

// POST /feedback — public, no auth required
func SubmitFeedback(c *gin.Context) {
	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	feedback := models.Feedback{
		Name:     req.Name,
		Email:    req.Email,
		Rating:   req.Rating,
		Comments: req.Comments,
	}

	if err := database.DB.Create(&feedback).Error; err != nil {
		utils.InternalError(c, "Failed to save feedback")
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Thanks for the feedback!", nil)
}
