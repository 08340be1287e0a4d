package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"smart-splitter-backend/database"
	"smart-splitter-backend/ledger"
	"smart-splitter-backend/models"
	"smart-splitter-backend/services"
	"smart-splitter-backend/utils"
)

// GET /api/groups/:id/balances
func GetGroupBalances(c *gin.Context) {
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

	var group models.Group
	database.DB.First(&group, groupID)

	balances, err := services.GetSettlementService().Balances(c.Request.Context(), groupID)
	if err != nil {
		utils.InternalError(c, "Failed to compute balances")
		return
	}

	memberBalances, simplified := resolveBalances(balances)

	var totalSpent float64
	database.DB.Model(&models.Expense{}).Where("group_id = ?", groupID).Select("COALESCE(SUM(amount), 0)").Scan(&totalSpent)

	summary := models.GroupBalanceSummary{
		GroupID:    groupID,
		GroupName:  group.Name,
		Members:    memberBalances,
		Simplified: simplified,
		TotalSpent: totalSpent,
	}

	utils.SuccessResponse(c, http.StatusOK, "", summary)
}

// GET /api/balances — overall balances across all groups for current user
func GetOverallBalances(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var memberships []models.GroupMember
	database.DB.Where("user_id = ?", userID).Find(&memberships)

	// Aggregate simplified debts across all groups
	friendBalances := make(map[uuid.UUID]float64)

	for _, m := range memberships {
		balances, err := services.GetSettlementService().Balances(c.Request.Context(), m.GroupID)
		if err != nil {
			continue
		}

		for _, tr := range ledger.Plan(balances) {
			amount := tr.Amount.InexactFloat64()
			if tr.From == userID {
				// I owe this person
				friendBalances[tr.To] -= amount
			} else if tr.To == userID {
				// This person owes me
				friendBalances[tr.From] += amount
			}
		}
	}

	var totalOwed, totalOwing float64
	var friends []models.FriendBalance

	for friendID, amount := range friendBalances {
		if utils.RoundToTwo(amount) == 0 {
			continue
		}

		var user models.User
		database.DB.First(&user, friendID)

		friends = append(friends, models.FriendBalance{
			UserID:    friendID,
			Name:      user.Name,
			Email:     user.Email,
			AvatarURL: user.AvatarURL,
			Amount:    utils.RoundToTwo(amount),
		})

		if amount > 0 {
			totalOwed += amount
		} else {
			totalOwing += -amount
		}
	}

	summary := models.OverallBalanceSummary{
		TotalOwed:  utils.RoundToTwo(totalOwed),
		TotalOwing: utils.RoundToTwo(totalOwing),
		Friends:    friends,
	}

	utils.SuccessResponse(c, http.StatusOK, "", summary)
}

// resolveBalances turns raw ledger output into response structs with
// display names.
func resolveBalances(balances map[uuid.UUID]decimal.Decimal) ([]models.MemberBalance, []models.Balance) {
	ids := make([]uuid.UUID, 0, len(balances))
	for id := range balances {
		ids = append(ids, id)
	}

	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) > 0 {
		var users []models.User
		database.DB.Where("id IN ?", ids).Find(&users)
		for _, u := range users {
			names[u.ID] = u.Name
		}
	}
	for _, id := range ids {
		if _, ok := names[id]; !ok {
			names[id] = id.String()
		}
	}

	sort.Slice(ids, func(i, j int) bool { return names[ids[i]] < names[ids[j]] })

	members := make([]models.MemberBalance, 0, len(ids))
	for _, id := range ids {
		members = append(members, models.MemberBalance{
			UserID:  id,
			Name:    names[id],
			Balance: balances[id].Round(2).InexactFloat64(),
		})
	}

	var simplified []models.Balance
	for _, tr := range ledger.Plan(balances) {
		simplified = append(simplified, models.Balance{
			From:     tr.From,
			FromName: names[tr.From],
			To:       tr.To,
			ToName:   names[tr.To],
			Amount:   tr.Amount.InexactFloat64(),
		})
	}

	return members, simplified
}
