package models

import "time"

// MsgType 表示消息內容的種類
type MsgType string

const (
	MsgTypeText   MsgType = "text"
	MsgTypeImage  MsgType = "image"
	MsgTypeAudio  MsgType = "audio"
	MsgTypeSystem MsgType = "system" // 只用於加入/離開通知，不會寫入數據庫
)

// Valid 判斷客戶端能否以此類型發送消息
func (t MsgType) Valid() bool {
	switch t {
	case MsgTypeText, MsgTypeImage, MsgTypeAudio:
		return true
	}
	return false
}

// Message 同時是數據庫中的一行和推送給客戶端的消息記錄。
//
// ReplyToSender/ReplyToContent 是回覆時複製下來的快照，不是外鍵，
// 原消息之後被編輯或刪除都不會影響它們。
type Message struct {
	ID             uint    `json:"id" gorm:"primaryKey;autoIncrement"`
	Sender         string  `json:"sender" gorm:"type:varchar(255);not null"`
	Content        string  `json:"content" gorm:"type:text"`
	MsgType        MsgType `json:"msg_type" gorm:"type:varchar(16);not null"`
	Time           string  `json:"time" gorm:"type:varchar(32)"`
	GroupID        string  `json:"group_id" gorm:"type:varchar(255);not null;index"`
	ReplyToSender  *string `json:"reply_to_sender"`
	ReplyToContent *string `json:"reply_to_content"`
	ForwardFrom    *string `json:"forward_from"`
	IsEdited       bool    `json:"is_edited" gorm:"not null;default:false"`
	IsPinned       bool    `json:"is_pinned" gorm:"not null;default:false"`
}

func (Message) TableName() string {
	return "messages"
}

// NewSystemMessage 創建一條不落庫的系統通知，ID 固定為 0
func NewSystemMessage(groupID, sender, content, layout string, now time.Time) Message {
	return Message{
		Sender:  sender,
		Content: content,
		MsgType: MsgTypeSystem,
		Time:    now.Format(layout),
		GroupID: groupID,
	}
}
