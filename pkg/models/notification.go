package models

import (
	"fmt"
	"time"
)

type NotificationKind int

const (
	NotifySuccess NotificationKind = iota
	NotifyError
	NotifyInfo
)

func (k NotificationKind) String() string {
	switch k {
	case NotifySuccess:
		return "success"
	case NotifyError:
		return "error"
	case NotifyInfo:
		return "info"
	}
	return "unknown"
}

func (k NotificationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *NotificationKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "success":
		*k = NotifySuccess
	case "error":
		*k = NotifyError
	case "info":
		*k = NotifyInfo
	default:
		return fmt.Errorf("unknown notification kind %q", text)
	}
	return nil
}

type Notification struct {
	ID        string           `json:"id"`
	Message   string           `json:"message"`
	Kind      NotificationKind `json:"kind"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}
