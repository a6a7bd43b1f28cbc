package providers

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Publisher writes one keyed message to the alert topic.
type Publisher interface {
	Publish(ctx context.Context, key string, v interface{}) error
}

// alertMessage matches the alert_notification topic layout consumed by the
// notification backend.
type alertMessage struct {
	AlertID   string `json:"alert_id"`
	AlertName string `json:"alert_name"`
	Severity  int    `json:"severity"`
	Status    string `json:"status"`
	UserID    int    `json:"user_id"`
	Message   string `json:"message"`
}

// KafkaSink republishes alerts for the recipient on the notification topic.
type KafkaSink struct {
	publisher   Publisher
	recipientID int
}

func NewKafkaSink(publisher Publisher, recipientID int) *KafkaSink {
	return &KafkaSink{publisher: publisher, recipientID: recipientID}
}

func (s *KafkaSink) Notify(ctx context.Context, title, body string, _ time.Duration) error {
	msg := alertMessage{
		AlertID:   uuid.New().String(),
		AlertName: title,
		Severity:  1,
		Status:    "firing",
		UserID:    s.recipientID,
		Message:   body,
	}
	return s.publisher.Publish(ctx, strconv.Itoa(s.recipientID), msg)
}
