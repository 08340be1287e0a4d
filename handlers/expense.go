package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"smart-splitter-backend/database"
	"smart-splitter-backend/models"
	"smart-splitter-backend/services"
	"smart-splitter-backend/utils"
)

// POST /api/groups/:id/expenses
//
// Expenses are split equally among the involved members. The payer is
// always part of the split, whether or not the request lists them.
// Records are immutable once created.
func CreateExpense(c *gin.Context) {
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

	var req models.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	involved := map[uuid.UUID]struct{}{userID: {}}
	for _, raw := range req.InvolvedUserIDs {
		uid, err := uuid.Parse(raw)
		if err != nil {
			utils.BadRequest(c, "Invalid user ID: "+raw)
			return
		}
		if !isMember(groupID, uid) {
			utils.BadRequest(c, "User "+raw+" is not a member of this group")
			return
		}
		involved[uid] = struct{}{}
	}

	expense := models.Expense{
		GroupID: groupID,
		PaidBy:  userID,
		Amount:  utils.RoundToTwo(req.Amount),
		Note:    req.Note,
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&expense).Error; err != nil {
			return err
		}
		for uid := range involved {
			if err := tx.Create(&models.ExpenseMember{ExpenseID: expense.ID, UserID: uid}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		utils.InternalError(c, "Failed to create expense")
		return
	}

	var payer models.User
	database.DB.First(&payer, userID)
	var group models.Group
	database.DB.First(&group, groupID)

	var involvedUsers []models.User
	ids := make([]uuid.UUID, 0, len(involved))
	for uid := range involved {
		ids = append(ids, uid)
	}
	database.DB.Where("id IN ?", ids).Find(&involvedUsers)

	names := make([]string, 0, len(involvedUsers))
	for _, u := range involvedUsers {
		names = append(names, u.Name)
	}

	note := expense.Note
	if note == "" {
		note = "expense"
	}
	services.GetHub().Announce(groupID, fmt.Sprintf("💸 %s added %.2f for %s\n👥 Split between: %s",
		payer.Name, expense.Amount, note, strings.Join(names, ", ")))

	go services.GetNotificationService().NotifyExpenseAdded(expense, involvedUsers, payer, group)

	utils.SuccessResponse(c, http.StatusCreated, "Expense added", buildExpenseResponse(expense.ID))
}

// GET /api/groups/:id/expenses
func GetGroupExpenses(c *gin.Context) {
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

	var pagination utils.PaginationQuery
	c.ShouldBindQuery(&pagination)

	var expenses []models.Expense
	database.DB.Where("group_id = ?", groupID).
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit).
		Find(&expenses)

	responses := make([]models.ExpenseResponse, 0, len(expenses))
	for _, e := range expenses {
		responses = append(responses, buildExpenseResponse(e.ID))
	}

	utils.SuccessResponse(c, http.StatusOK, "", responses)
}

// GET /api/expenses/:id
func GetExpense(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid expense ID")
		return
	}

	var expense models.Expense
	if err := database.DB.First(&expense, expenseID).Error; err != nil {
		utils.NotFound(c, "Expense not found")
		return
	}

	if !isMember(expense.GroupID, userID) {
		utils.Forbidden(c, "You are not a member of this group")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", buildExpenseResponse(expenseID))
}

// Build expense response with payer name and involved members
func buildExpenseResponse(expenseID uuid.UUID) models.ExpenseResponse {
	var expense models.Expense
	if err := database.DB.First(&expense, expenseID).Error; err != nil {
		return models.ExpenseResponse{}
	}

	var payer models.User
	database.DB.First(&payer, expense.PaidBy)

	var members []models.ExpenseMember
	database.DB.Where("expense_id = ?", expenseID).Find(&members)

	var involved []models.InvolvedResponse
	for _, m := range members {
		var user models.User
		database.DB.First(&user, m.UserID)
		involved = append(involved, models.InvolvedResponse{
			UserID: m.UserID,
			Name:   user.Name,
		})
	}

	return models.ExpenseResponse{
		ID:        expense.ID,
		GroupID:   expense.GroupID,
		PaidBy:    expense.PaidBy,
		PayerName: payer.Name,
		Amount:    expense.Amount,
		Note:      expense.Note,
		Involved:  involved,
		CreatedAt: expense.CreatedAt,
	}
}
