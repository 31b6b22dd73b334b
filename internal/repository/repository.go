package repository

import (
	"group_chat/internal/models"
	"group_chat/internal/storage"
)

type Repositories struct {
	Message MessageRepository
}

func NewRepositories(db *storage.Database, timeLayout string) *Repositories {
	return &Repositories{
		Message: NewMessageRepository(db, timeLayout),
	}
}

// Migrate 建立或更新 messages 表以及 group_id 索引
func Migrate(db *storage.Database) error {
	return db.AutoMigrate(&models.Message{})
}
