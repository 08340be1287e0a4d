package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"smart-splitter-backend/database"
	"smart-splitter-backend/models"
	"smart-splitter-backend/services"
	"smart-splitter-backend/utils"
)

// POST /api/groups/:id/settle — regenerate the pending settlement plan
func Settle(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}

	records, err := services.GetSettlementService().Regenerate(c.Request.Context(), groupID, userID)
	if err != nil {
		settlementError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Settlement plan updated", buildSettlementResponses(records))
}

// GET /api/groups/:id/settlements — pending settlements
func GetPendingSettlements(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}

	if !isMember(groupID, userID) {
		utils.Forbidden(c, "You are not a member of this group")
		return
	}

	var settlements []models.Settlement
	database.DB.Where("group_id = ? AND paid = ?", groupID, false).
		Order("amount DESC").
		Find(&settlements)

	utils.SuccessResponse(c, http.StatusOK, "", buildSettlementResponses(settlements))
}

// GET /api/groups/:id/settlements/history — paid settlements
func GetSettlementHistory(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}

	if !isMember(groupID, userID) {
		utils.Forbidden(c, "You are not a member of this group")
		return
	}

	var settlements []models.Settlement
	database.DB.Where("group_id = ? AND paid = ?", groupID, true).
		Order("settled_at DESC").
		Find(&settlements)

	utils.SuccessResponse(c, http.StatusOK, "", buildSettlementResponses(settlements))
}

// POST /api/settlements/:id/pay
func MarkSettlementPaid(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	settlementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid settlement ID")
		return
	}

	rec, err := services.GetSettlementService().MarkPaid(c.Request.Context(), settlementID, userID)
	if err != nil {
		settlementError(c, err)
		return
	}

	var payer, receiver models.User
	database.DB.First(&payer, rec.PayerID)
	database.DB.First(&receiver, rec.ReceiverID)
	var group models.Group
	database.DB.First(&group, rec.GroupID)

	go services.GetNotificationService().NotifySettlementPaid(*rec, payer, receiver, group)

	utils.SuccessResponse(c, http.StatusOK, "Settlement marked as paid", buildSettlementResponse(*rec))
}

// POST /api/settlements/:id/undo — admin only, reverts a paid settlement
func UndoSettlement(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	settlementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid settlement ID")
		return
	}

	rec, err := services.GetSettlementService().Undo(c.Request.Context(), settlementID, userID)
	if err != nil {
		settlementError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Settlement reverted to pending", buildSettlementResponse(*rec))
}

// Map settlement service errors onto HTTP status codes
func settlementError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.NotFound(c, "Settlement not found")
	case errors.Is(err, services.ErrUnauthorized):
		utils.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrInvalidState):
		utils.Conflict(c, err.Error())
	default:
		utils.InternalError(c, err.Error())
	}
}

func buildSettlementResponse(s models.Settlement) models.SettlementResponse {
	var payer, receiver models.User
	database.DB.First(&payer, s.PayerID)
	database.DB.First(&receiver, s.ReceiverID)

	return models.SettlementResponse{
		ID:           s.ID,
		GroupID:      s.GroupID,
		PayerID:      s.PayerID,
		PayerName:    payer.Name,
		ReceiverID:   s.ReceiverID,
		ReceiverName: receiver.Name,
		Amount:       s.Amount,
		Paid:         s.Paid,
		SettledAt:    s.SettledAt,
		CreatedAt:    s.CreatedAt,
	}
}

func buildSettlementResponses(settlements []models.Settlement) []models.SettlementResponse {
	responses := make([]models.SettlementResponse, 0, len(settlements))
	for _, s := range settlements {
		responses = append(responses, buildSettlementResponse(s))
	}
	return responses
}
