package models

import "time"

// Message represents an ingested chat message stored in the 'messages' table.
// The sender is stored as a hash; raw identities never reach this system.
type Message struct {
	ID         string    `db:"id" json:"id"`
	ChatRoomID string    `db:"chat_room_id" json:"chat_room_id"`
	DeviceID   string    `db:"device_id" json:"device_id"`
	SenderHash string    `db:"sender_hash" json:"sender_hash"`
	SenderName string    `db:"sender_name" json:"sender_name"`
	Content    string    `db:"content" json:"content"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`
}

// QueueMessage is the envelope written to the durable stream at the ingestion
// boundary. RetryCount increments on re-enqueue; at the retry ceiling the
// envelope is routed to the dead-letter stream instead.
type QueueMessage struct {
	MessageID  string `json:"message_id"`
	Payload    string `json:"payload"`
	DeviceID   string `json:"device_id"`
	ChatRoom   string `json:"chat_room"`
	SenderHash string `json:"sender_hash"`
	SenderName string `json:"sender_name"`
	Priority   int    `json:"priority"`
	RetryCount int    `json:"retry_count"`
}
