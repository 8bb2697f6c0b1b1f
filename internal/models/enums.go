package models

type TenantStatus string

const (
	TenantActive   TenantStatus = "active"
	TenantInactive TenantStatus = "inactive"
)

type ParcelStatus string

const (
	ParcelActive  ParcelStatus = "active"
	ParcelPaused  ParcelStatus = "paused"
	ParcelDeleted ParcelStatus = "deleted"
)

type HealthStatus string

const (
	HealthHealthy HealthStatus = "healthy"
	HealthWarning HealthStatus = "warning"
	HealthAlert   HealthStatus = "alert"
	HealthUnknown HealthStatus = "unknown"
)

type AlertType string

const (
	AlertDeforestation AlertType = "deforestation"
	AlertFire          AlertType = "fire"
	AlertCropStress    AlertType = "crop_stress"
	AlertEncroachment  AlertType = "encroachment"
)

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// severityRank orders severities so alert extensions can only escalate.
var severityRank = map[AlertSeverity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// AtLeast reports whether s is the same or a higher severity than other.
func (s AlertSeverity) AtLeast(other AlertSeverity) bool {
	return severityRank[s] >= severityRank[other]
}

type AlertStatus string

const (
	AlertNew           AlertStatus = "new"
	AlertAcknowledged  AlertStatus = "acknowledged"
	AlertInvestigating AlertStatus = "investigating"
	AlertResolved      AlertStatus = "resolved"
	AlertFalsePositive AlertStatus = "false_positive"
)

// IsOpen reports whether the status counts toward the one-open-alert-per-
// (parcel, type) invariant.
func (s AlertStatus) IsOpen() bool {
	switch s {
	case AlertNew, AlertAcknowledged, AlertInvestigating:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s AlertStatus) IsTerminal() bool {
	return s == AlertResolved || s == AlertFalsePositive
}

type NotificationChannel string

const (
	ChannelWhatsApp NotificationChannel = "whatsapp"
	ChannelEmail    NotificationChannel = "email"
	ChannelSMS      NotificationChannel = "sms"
)

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

type ScanTrigger string

const (
	ScanScheduled ScanTrigger = "scheduled"
	ScanManual    ScanTrigger = "manual"
	ScanOnDemand  ScanTrigger = "on_demand"
)

type ScanStatus string

const (
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

// DuplicateReadingPolicy selects how a resubmitted (parcel, period) reading
// is handled by the ingestor.
type DuplicateReadingPolicy string

const (
	DuplicateReject DuplicateReadingPolicy = "reject"
	DuplicateUpsert DuplicateReadingPolicy = "upsert"
)

type DetectionMethod string

const (
	DetectionNDVIChange   DetectionMethod = "ndvi_change"
	DetectionFireHotspots DetectionMethod = "fire_hotspots"
)
