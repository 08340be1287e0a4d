package models

import "github.com/google/uuid"

// MemberBalance is one member's signed net position within a group.
// Positive = the group owes them, negative = they owe the group.
type MemberBalance struct {
	UserID  uuid.UUID `json:"user_id"`
	Name    string    `json:"name"`
	Balance float64   `json:"balance"`
}

// Balance represents a simplified debt between two users
type Balance struct {
	From     uuid.UUID `json:"from"`
	FromName string    `json:"from_name"`
	To       uuid.UUID `json:"to"`
	ToName   string    `json:"to_name"`
	Amount   float64   `json:"amount"`
}

// GroupBalanceSummary is returned for GET /api/groups/:id/balances
type GroupBalanceSummary struct {
	GroupID    uuid.UUID       `json:"group_id"`
	GroupName  string          `json:"group_name"`
	Members    []MemberBalance `json:"members"`
	Simplified []Balance       `json:"simplified"`
	TotalSpent float64         `json:"total_spent"`
}

// FriendBalance represents the overall balance with a single friend
type FriendBalance struct {
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Amount    float64   `json:"amount"` // positive = they owe you, negative = you owe them
}

// OverallBalanceSummary is returned for GET /api/balances
type OverallBalanceSummary struct {
	TotalOwed  float64         `json:"total_owed"`  // total others owe you
	TotalOwing float64         `json:"total_owing"` // total you owe others
	Friends    []FriendBalance `json:"friends"`
}
