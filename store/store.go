// Package store persists chat messages with GORM on SQLite.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dragonfox-collabsync-server/domain"
)

// MessageRecord is the persisted shape of a chat message.
type MessageRecord struct {
	ID         string    `gorm:"primarykey;size:36"`
	SenderID   string    `gorm:"size:36;not null;index"`
	ReceiverID string    `gorm:"size:36;index"`
	Body       string    `gorm:"size:5000;not null"`
	Kind       string    `gorm:"size:20;not null"`
	CreatedAt  time.Time `gorm:"index"`
}

// TableName returns the table name for MessageRecord.
func (MessageRecord) TableName() string {
	return "messages"
}

// Store implements domain.MessageStore on a GORM database handle.
type Store struct {
	db *gorm.DB
}

// Open opens (and migrates) the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return New(db)
}

// New wraps an existing GORM handle and runs migrations.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&MessageRecord{}); err != nil {
		return nil, fmt.Errorf("migrate messages: %w", err)
	}
	return &Store{db: db}, nil
}

// Persist saves the message and returns it enriched with the assigned id
// and timestamp. The message is immutable once persisted.
func (s *Store) Persist(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	rec := MessageRecord{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Body:       msg.Body,
		Kind:       msg.Kind,
		CreatedAt:  msg.CreatedAt,
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Kind == "" {
		if rec.ReceiverID == "" {
			rec.Kind = domain.KindBroadcast
		} else {
			rec.Kind = domain.KindDirect
		}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.ChatMessage{}, fmt.Errorf("failed to persist message: %w", err)
	}

	return domain.ChatMessage{
		ID:         rec.ID,
		SenderID:   rec.SenderID,
		ReceiverID: rec.ReceiverID,
		Body:       rec.Body,
		Kind:       rec.Kind,
		CreatedAt:  rec.CreatedAt,
	}, nil
}

// History returns the most recent messages visible to userID (sent by them,
// addressed to them, or broadcast), oldest first.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var recs []MessageRecord
	err := s.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ? OR receiver_id = ''", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	msgs := make([]domain.ChatMessage, len(recs))
	for i, rec := range recs {
		msgs[len(recs)-1-i] = domain.ChatMessage{
			ID:         rec.ID,
			SenderID:   rec.SenderID,
			ReceiverID: rec.ReceiverID,
			Body:       rec.Body,
			Kind:       rec.Kind,
			CreatedAt:  rec.CreatedAt,
		}
	}
	return msgs, nil
}
