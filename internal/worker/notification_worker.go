package worker

import (
	"github.com/spec-kit/listing-admin/internal/service"
)

// StartNotificationWorker registers the post-commit side effect handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
