package models

import (
	"strings"
	"time"
)

// AlertEnvelope is one alert frame addressed to the local recipient.
type AlertEnvelope struct {
	RecipientID int       `json:"user_id"`
	Messages    []string  `json:"messages"`
	ReceivedAt  time.Time `json:"received_at"`
}

// Body joins the alert messages one per line.
func (e AlertEnvelope) Body() string {
	return strings.Join(e.Messages, "\n")
}
