package repository

import (
	"context"
	"database/sql"
	"errors"

	"chatwatch/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type MessageRepository interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, id string) (*models.Message, error)
}

type messageRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMessageRepository(db *sqlx.DB, logger *zap.Logger) MessageRepository {
	return &messageRepository{db: db, logger: logger}
}

func (r *messageRepository) SaveMessage(ctx context.Context, msg *models.Message) error {
	query := `INSERT INTO messages (id, chat_room_id, device_id, sender_hash, sender_name, content, timestamp)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          ON CONFLICT (id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, msg.ID, msg.ChatRoomID, msg.DeviceID,
		msg.SenderHash, msg.SenderName, msg.Content, msg.Timestamp)
	return err
}

func (r *messageRepository) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	query := `SELECT id, chat_room_id, device_id, sender_hash, sender_name, content, timestamp
	          FROM messages WHERE id = $1`
	err := r.db.GetContext(ctx, &msg, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Message not found
		}
		return nil, err
	}
	return &msg, nil
}
