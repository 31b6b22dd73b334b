package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"group_chat/internal/models"
	"group_chat/internal/storage"
)

// MessageRepository 是按群組劃分的消息存儲。
// 所有權檢查和「每個群組最多一條置頂」都在這一層保證。
type MessageRepository interface {
	// ListByGroup 按插入順序返回群組的全部消息
	ListByGroup(ctx context.Context, groupID string) ([]models.Message, error)
	// Create 分配 ID 和時間後寫入，msg 會被更新為存儲後的結果
	Create(ctx context.Context, msg *models.Message) error
	// Edit 只在消息存在且 sender == requester 時修改內容，否則返回 ErrNotFound
	Edit(ctx context.Context, id uint, requester, content string) (*models.Message, error)
	// Delete 的所有權規則與 Edit 相同，返回是否真的刪除了一行
	Delete(ctx context.Context, id uint, requester string) (bool, error)
	// Pin 在一個事務內先清除群組所有置頂，再置頂目標；目標不在該群組時返回 ErrNotFound，但清除仍然生效。
	// 若清除掉了原有的置頂，返回的是 ErrPinCleared。
	Pin(ctx context.Context, id uint, groupID string) (*models.Message, error)
	// Unpin 清除群組的置頂，可重複調用
	Unpin(ctx context.Context, groupID string) error
}

type messageRepository struct {
	BaseRepository
	db         *storage.Database
	timeLayout string
	now        func() time.Time
}

func NewMessageRepository(db *storage.Database, timeLayout string) MessageRepository {
	return &messageRepository{
		BaseRepository: NewBaseRepository(db),
		db:             db,
		timeLayout:     timeLayout,
		now:            time.Now,
	}
}

func (r *messageRepository) ListByGroup(ctx context.Context, groupID string) ([]models.Message, error) {
	messages := []models.Message{}
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("id asc").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list messages of %q: %w", groupID, err)
	}
	return messages, nil
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	if !msg.MsgType.Valid() {
		return fmt.Errorf("cannot store message of type %q", msg.MsgType)
	}

	msg.ID = 0
	msg.Time = r.now().Format(r.timeLayout)
	msg.IsEdited = false
	msg.IsPinned = false

	if err := r.BaseRepository.Create(ctx, msg); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (r *messageRepository) Edit(ctx context.Context, id uint, requester, content string) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Message{}).
			Where("id = ? AND sender = ?", id, requester).
			Updates(map[string]interface{}{"content": content, "is_edited": true})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return findByID(tx, id, &msg)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("edit message %d: %w", id, err)
	}
	return &msg, nil
}

func (r *messageRepository) Delete(ctx context.Context, id uint, requester string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND sender = ?", id, requester).
		Delete(&models.Message{})
	if res.Error != nil {
		return false, fmt.Errorf("delete message %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *messageRepository) Pin(ctx context.Context, id uint, groupID string) (*models.Message, error) {
	var (
		msg     models.Message
		found   bool
		cleared int64
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Message{}).
			Where("group_id = ? AND is_pinned = ?", groupID, true).
			Count(&cleared).Error
		if err != nil {
			return err
		}
		if err := clearPins(tx, groupID); err != nil {
			return err
		}
		res := tx.Model(&models.Message{}).
			Where("id = ? AND group_id = ?", id, groupID).
			Update("is_pinned", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 清除仍需提交
			return nil
		}
		found = true
		return findByID(tx, id, &msg)
	})
	if err != nil {
		return nil, fmt.Errorf("pin message %d in %q: %w", id, groupID, err)
	}
	if !found {
		if cleared > 0 {
			return nil, ErrPinCleared
		}
		return nil, ErrNotFound
	}
	return &msg, nil
}

func (r *messageRepository) Unpin(ctx context.Context, groupID string) error {
	if err := clearPins(r.db.WithContext(ctx), groupID); err != nil {
		return fmt.Errorf("unpin %q: %w", groupID, err)
	}
	return nil
}

func clearPins(tx *gorm.DB, groupID string) error {
	return tx.Model(&models.Message{}).
		Where("group_id = ?", groupID).
		Update("is_pinned", false).Error
}
