package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderMessage is a note in the order's history, written by operators or by
// the payment flow.
type OrderMessage struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	OrderID   string `gorm:"size:36;not null;index"`
	Author    string `gorm:"size:255"`
	Body      string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

// PostMessage appends a note to the order history.
func (o *Order) PostMessage(db *gorm.DB, author string, body string) (*OrderMessage, error) {
	msg := &OrderMessage{
		OrderID: o.ID,
		Author:  author,
		Body:    body,
	}
	if err := db.Create(msg).Error; err != nil {
		return nil, err
	}
	o.Messages = append(o.Messages, *msg)
	return msg, nil
}
