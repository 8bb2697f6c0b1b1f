package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// TENANT MANAGEMENT
// ============================================================================

type Tenant struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	Name        string       `json:"name" db:"name"`
	Email       *string      `json:"email,omitempty" db:"email"`
	Phone       *string      `json:"phone,omitempty" db:"phone"`
	Status      TenantStatus `json:"status" db:"status"`
	TotalAreaHa float64      `json:"total_area_ha" db:"total_area_ha"`

	// Alert thresholds, both >= 0.
	DeforestationAreaThresholdHa float64 `json:"deforestation_area_threshold_ha" db:"deforestation_area_threshold_ha"`
	NDVIChangeThreshold          float64 `json:"ndvi_change_threshold" db:"ndvi_change_threshold"`

	// Notification channel preferences.
	NotifyWhatsApp bool `json:"notify_whatsapp" db:"notify_whatsapp"`
	NotifyEmail    bool `json:"notify_email" db:"notify_email"`
	NotifySMS      bool `json:"notify_sms" db:"notify_sms"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EnabledChannels returns the channels this tenant opted into, with the
// recipient address configured for each. Channels without an address are
// skipped.
func (t *Tenant) EnabledChannels() []ChannelRecipient {
	var out []ChannelRecipient
	if t.NotifyWhatsApp && t.Phone != nil && *t.Phone != "" {
		out = append(out, ChannelRecipient{Channel: ChannelWhatsApp, Recipient: *t.Phone})
	}
	if t.NotifyEmail && t.Email != nil && *t.Email != "" {
		out = append(out, ChannelRecipient{Channel: ChannelEmail, Recipient: *t.Email})
	}
	if t.NotifySMS && t.Phone != nil && *t.Phone != "" {
		out = append(out, ChannelRecipient{Channel: ChannelSMS, Recipient: *t.Phone})
	}
	return out
}

type ChannelRecipient struct {
	Channel   NotificationChannel
	Recipient string
}
