package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
	"gorm.io/gorm/clause"

	"smart-splitter-backend/database"
	"smart-splitter-backend/models"
	"smart-splitter-backend/services"
	"smart-splitter-backend/utils"
)

// wsConn wraps a websocket connection with a write lock, since the hub
// dispatches events from multiple goroutines.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) WriteEvent(event services.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return websocket.Message.Send(c.ws, string(payload))
}

// inboundFrame is what clients send over the socket.
type inboundFrame struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// GET /ws/groups/:id?token=...
//
// Browsers cannot set an Authorization header on a websocket upgrade, so the
// JWT rides in the query string instead.
func GroupChatSocket(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}

	claims, err := utils.ParseToken(c.Query("token"))
	if err != nil {
		utils.Unauthorized(c, "Invalid or missing token")
		return
	}
	userID := claims.UserID

	if !isMember(groupID, userID) {
		utils.Forbidden(c, "You are not a member of this group")
		return
	}

	var user models.User
	database.DB.First(&user, userID)

	websocket.Handler(func(ws *websocket.Conn) {
		conn := &wsConn{ws: ws}
		hub := services.GetHub()
		hub.Register(groupID, conn)
		defer hub.Unregister(groupID, conn)

		for {
			var raw string
			if err := websocket.Message.Receive(ws, &raw); err != nil {
				return
			}

			var frame inboundFrame
			if err := json.Unmarshal([]byte(raw), &frame); err != nil {
				continue
			}

			switch frame.Event {
			case "message":
				if frame.Message == "" {
					continue
				}
				msg := models.ChatMessage{
					GroupID:    groupID,
					SenderID:   &userID,
					SenderType: models.SenderUser,
					Content:    frame.Message,
				}
				if err := database.DB.Create(&msg).Error; err != nil {
					continue
				}
				hub.Broadcast(groupID, services.Event{Event: "message", Message: models.ChatMessageResponse{
					ID:         msg.ID,
					SenderID:   userID,
					SenderName: user.Name,
					SenderType: models.SenderUser,
					Content:    msg.Content,
					CreatedAt:  msg.CreatedAt,
				}})
			case "typing":
				// Transient, never persisted
				hub.Broadcast(groupID, services.Event{Event: "typing", Message: gin.H{
					"user_id": userID,
					"name":    user.Name,
				}})
			}
		}
	}).ServeHTTP(c.Writer, c.Request)
}

// GET /api/groups/:id/messages — most recent messages, oldest first
func GetGroupMessages(c *gin.Context) {
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

	var messages []models.ChatMessage
	database.DB.Where("group_id = ?", groupID).
		Preload("Sender").
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit).
		Find(&messages)

	// Reverse to chronological order for the client
	responses := make([]models.ChatMessageResponse, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		resp := models.ChatMessageResponse{
			ID:         m.ID,
			SenderType: m.SenderType,
			Content:    m.Content,
			CreatedAt:  m.CreatedAt,
		}
		if m.SenderID != nil {
			resp.SenderID = *m.SenderID
			if m.Sender != nil {
				resp.SenderName = m.Sender.Name
			}
		}
		responses = append(responses, resp)
	}

	utils.SuccessResponse(c, http.StatusOK, "", responses)
}

// POST /api/chat/read/:message_id — mark a message as read
func MarkMessageRead(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	messageID, err := uuid.Parse(c.Param("message_id"))
	if err != nil {
		utils.BadRequest(c, "Invalid message ID")
		return
	}

	var msg models.ChatMessage
	if err := database.DB.First(&msg, messageID).Error; err != nil {
		utils.NotFound(c, "Message not found")
		return
	}

	if !isMember(msg.GroupID, userID) {
		utils.Forbidden(c, "You are not a member of this group")
		return
	}

	receipt := models.ChatReadReceipt{
		MessageID: messageID,
		UserID:    userID,
		ReadAt:    time.Now().UTC(),
	}
	database.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&receipt)

	utils.SuccessResponse(c, http.StatusOK, "Marked as read", nil)
}

// GET /api/chat/read/:message_id — who has read a message
func GetReadReceipts(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	messageID, err := uuid.Parse(c.Param("message_id"))
	if err != nil {
		utils.BadRequest(c, "Invalid message ID")
		return
	}

	var msg models.ChatMessage
	if err := database.DB.First(&msg, messageID).Error; err != nil {
		utils.NotFound(c, "Message not found")
		return
	}

	if !isMember(msg.GroupID, userID) {
		utils.Forbidden(c, "You are not a member of this group")
		return
	}

	var receipts []models.ChatReadReceipt
	database.DB.Where("message_id = ?", messageID).Find(&receipts)

	utils.SuccessResponse(c, http.StatusOK, "", receipts)
}
