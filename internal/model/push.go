package model

import "time"

type PushSubscription struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	MemberID   string    `json:"member_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
