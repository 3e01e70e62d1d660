package account

import (
	"encoding/json"
)

// NotificationsChannel is the broadcast channel account events travel on
const NotificationsChannel = "account-notifications"

// Notification types
const (
	TypeLogin               = "account.login"
	TypeLogout              = "account.logout"
	TypeAccessGranted       = "access.granted"
	TypeSubscriptionUpdated = "subscription.updated"
)

// Notification is an account event shared between app instances.
// Source identifies the sending instance.
type Notification struct {
	Type     string          `json:"type"`
	Source   string          `json:"source,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

func isEntitlementChange(t string) bool {
	return t == TypeAccessGranted || t == TypeSubscriptionUpdated
}
