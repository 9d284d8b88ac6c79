package handler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatwatch/internal/models"
)

// Enqueuer is the queue surface the ingest endpoint writes to.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *models.QueueMessage) (bool, error)
}

type IngestHandler interface {
	IngestMessage(c *gin.Context)
}

type ingestHandler struct {
	producer Enqueuer
	logger   *zap.Logger
}

func NewIngestHandler(producer Enqueuer, logger *zap.Logger) IngestHandler {
	return &ingestHandler{producer: producer, logger: logger}
}

type ingestRequest struct {
	MessageID  string `json:"message_id"`
	ChatRoomID string `json:"chat_room_id" binding:"required"`
	DeviceID   string `json:"device_id"`
	Sender     string `json:"sender" binding:"required"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content" binding:"required"`
	Priority   int    `json:"priority"`
}

// IngestMessage accepts a chat message and appends it to the durable stream.
// The raw sender identity is hashed before it leaves this handler.
func (h *ingestHandler) IngestMessage(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.MessageID == "" {
		req.MessageID = uuid.NewString()
	}

	env := &models.QueueMessage{
		MessageID:  req.MessageID,
		Payload:    req.Content,
		DeviceID:   req.DeviceID,
		ChatRoom:   req.ChatRoomID,
		SenderHash: hashSender(req.Sender),
		SenderName: req.SenderName,
		Priority:   req.Priority,
	}

	ok, err := h.producer.Enqueue(c.Request.Context(), env)
	if err != nil {
		h.logger.Error("unencodable ingest payload", zap.String("message_id", env.MessageID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message could not be encoded"})
		return
	}
	if !ok {
		h.logger.Error("queue write failed", zap.String("message_id", env.MessageID))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Queue unavailable, retry later"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message_id": env.MessageID})
}

func hashSender(sender string) string {
	sum := sha256.Sum256([]byte(sender))
	return hex.EncodeToString(sum[:])
}
