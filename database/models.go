package database

import "time"

type MediaKind string

const (
	KindPhoto     MediaKind = "photo"
	KindVideo     MediaKind = "video"
	KindAnimation MediaKind = "animation"
	KindText      MediaKind = "text"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// MediaItem — ссылка на контент в Telegram (file_id), сами байты бот не трогает.
// Для текстовых заявок Ref содержит текст сообщения.
type MediaItem struct {
	Kind MediaKind
	Ref  string
}

// Submitter — отправитель заявки. Username и FirstName показываются только
// модератору, дальше в группу не уходят.
type Submitter struct {
	ID        int64
	Username  string
	FirstName string
}

type Submission struct {
	ID              int64
	UserID          int64
	Username        *string
	FirstName       *string
	Items           []MediaItem
	Caption         *string
	Status          Status
	RejectionReason *string
	CreatedAt       time.Time
}
