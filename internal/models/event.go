package models

// Action 是出站事件的類型標記
type Action string

const (
	ActionHistory  Action = "history"
	ActionNew      Action = "new"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionPin      Action = "pin"
	ActionUnpin    Action = "unpin"
	ActionUserList Action = "user_list"
)

type HistoryEvent struct {
	Action   Action    `json:"action"`
	Messages []Message `json:"messages"`
}

type MessageEvent struct {
	Action  Action  `json:"action"`
	Message Message `json:"message"`
}

type EditEvent struct {
	Action  Action `json:"action"`
	ID      uint   `json:"id"`
	Content string `json:"content"`
}

type DeleteEvent struct {
	Action Action `json:"action"`
	ID     uint   `json:"id"`
}

type PinEvent struct {
	Action  Action `json:"action"`
	ID      uint   `json:"id"`
	Content string `json:"content"`
}

type UnpinEvent struct {
	Action Action `json:"action"`
}

type UserListEvent struct {
	Action Action   `json:"action"`
	Users  []string `json:"users"`
	Count  int      `json:"count"`
}

// NewHistoryEvent 保證空歷史編碼為 [] 而不是 null
func NewHistoryEvent(messages []Message) HistoryEvent {
	if messages == nil {
		messages = []Message{}
	}
	return HistoryEvent{Action: ActionHistory, Messages: messages}
}

func NewMessageEvent(msg Message) MessageEvent {
	return MessageEvent{Action: ActionNew, Message: msg}
}

func NewEditEvent(id uint, content string) EditEvent {
	return EditEvent{Action: ActionEdit, ID: id, Content: content}
}

func NewDeleteEvent(id uint) DeleteEvent {
	return DeleteEvent{Action: ActionDelete, ID: id}
}

func NewPinEvent(id uint, content string) PinEvent {
	return PinEvent{Action: ActionPin, ID: id, Content: content}
}

func NewUnpinEvent() UnpinEvent {
	return UnpinEvent{Action: ActionUnpin}
}

func NewUserListEvent(users []string) UserListEvent {
	if users == nil {
		users = []string{}
	}
	return UserListEvent{Action: ActionUserList, Users: users, Count: len(users)}
}
