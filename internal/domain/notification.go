package domain

// NotificationType is the severity of a notification.
type NotificationType string

const (
	NotifySuccess NotificationType = "success"
	NotifyError   NotificationType = "error"
	NotifyInfo    NotificationType = "info"
	NotifyWarning NotificationType = "warning"
)

// Notification is transient user feedback. Non-persistent notifications
// are removed automatically after a fixed delay.
type Notification struct {
	ID         string           `json:"id"`
	Message    string           `json:"message"`
	Type       NotificationType `json:"type"`
	Persistent bool             `json:"persistent"`
}
