package services

import (
	"context"
	"encoding/json"
	"log"

	"fieldbook-server/models"
	"fieldbook-server/storage"
	"fieldbook-server/utils"
)

// NotificationService handles all notification delivery: a persisted row per
// recipient, a JSON event on the Redis fan-out channel and a push to the
// recipient's devices. Delivery is best-effort; every failure is logged and
// swallowed so it can never roll back the domain transaction that triggered
// it. Callers invoke it after commit, usually in a goroutine.
type NotificationService struct{}

// NewNotificationService creates a new notification service instance
func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

const notificationChannel = "notifications"

// NotificationEvent is the payload published on the Redis channel.
type NotificationEvent struct {
	RecipientIDs []uint `json:"recipientIds"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	RefType      string `json:"refType"`
	RefID        uint   `json:"refId"`
}

// Publish fans one event out to every recipient.
func (ns *NotificationService) Publish(recipientIDs []uint, notifType, title, body, refType string, refID uint) {
	for _, userID := range recipientIDs {
		notification := models.Notification{
			UserID:  userID,
			Type:    notifType,
			Title:   title,
			Message: body,
			RefType: refType,
			RefID:   refID,
		}
		if err := storage.DB.Create(&notification).Error; err != nil {
			log.Printf("failed to persist notification for user %d: %v", userID, err)
		}
	}

	if storage.Redis != nil {
		event := NotificationEvent{
			RecipientIDs: recipientIDs,
			Type:         notifType,
			Title:        title,
			Body:         body,
			RefType:      refType,
			RefID:        refID,
		}
		payload, _ := json.Marshal(event)
		if err := storage.Redis.Publish(context.Background(), notificationChannel, payload).Err(); err != nil {
			log.Printf("failed to publish notification event: %v", err)
		}
	}

	for _, userID := range recipientIDs {
		ns.sendPushToUser(userID, title, body, notifType)
	}
}

// getUserPushTokens retrieves all push tokens for a user
func (ns *NotificationService) getUserPushTokens(userID uint) []string {
	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		return nil
	}
	if user.AllowsNotifications == nil || !*user.AllowsNotifications || user.PushTokens == nil {
		return nil
	}

	var tokens []string
	if err := json.Unmarshal(user.PushTokens, &tokens); err != nil {
		log.Printf("failed to unmarshal push tokens for user %d: %v", userID, err)
		return nil
	}
	return tokens
}

func (ns *NotificationService) sendPushToUser(userID uint, title, body, notifType string) {
	tokens := ns.getUserPushTokens(userID)
	for _, token := range tokens {
		if err := utils.SendNotification(token, title, body, map[string]string{"type": notifType}); err != nil {
			log.Printf("failed to send push to token %s: %v", token, err)
		}
	}
}
