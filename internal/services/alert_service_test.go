package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/knulata/satteli/internal/models"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

type alertTestEnv struct {
	service       *AlertService
	alerts        *fakeAlertStore
	parcels       *fakeParcelStore
	tenants       *fakeTenantStore
	notifications *fakeNotificationStore
	sender        *fakeSender

	tenant *models.Tenant
	parcel *models.Parcel
}

func newAlertTestEnv(t *testing.T) *alertTestEnv {
	t.Helper()

	tenants := newFakeTenantStore()
	parcels := newFakeParcelStore(tenants)
	alerts := newFakeAlertStore()
	notifications := newFakeNotificationStore()
	sender := newFakeSender()

	tenant := newTestTenant("owner@example.com", "+84901234567")
	assert.NoError(t, tenants.Create(context.Background(), tenant))

	parcel := newTestParcel(tenant.ID, 10)
	assert.NoError(t, parcels.CreateWithAggregate(context.Background(), parcel))

	dashboard := NewDashboardService(nil, nil)
	dispatcher := NewNotificationDispatcher(notifications, alerts, sender, syncRunner{}, 3, time.Second)
	service := NewAlertService(alerts, parcels, tenants, dispatcher, nil, dashboard)

	return &alertTestEnv{
		service:       service,
		alerts:        alerts,
		parcels:       parcels,
		tenants:       tenants,
		notifications: notifications,
		sender:        sender,
		tenant:        tenant,
		parcel:        parcel,
	}
}

func sampleDetection(severity models.AlertSeverity) Detection {
	affected := 4.2
	return Detection{
		Type:            models.AlertDeforestation,
		Severity:        severity,
		Method:          models.DetectionNDVIChange,
		Title:           "Vegetation loss detected on Test Parcel",
		Description:     "Mean NDVI dropped from 0.680 to 0.400",
		AffectedAreaHa:  &affected,
		ConfidenceScore: 0.9,
	}
}

// ============================================================================
// TEST SUITE 1: DETECTION HANDLING AND DEDUPLICATION
// ============================================================================

func TestHandleDetection_CreatesAlertAndNotifies(t *testing.T) {
	env := newAlertTestEnv(t)
	ctx := context.Background()

	alert, created, err := env.service.HandleDetection(ctx, env.tenant, env.parcel, sampleDetection(models.SeverityHigh), []string{"evidence/a.png"})
	assert.NoError(t, err)
	assert.True(t, created, "First detection should create a new alert")
	assert.Equal(t, models.AlertNew, alert.Status)
	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Equal(t, []string{"evidence/a.png"}, []string(alert.EvidenceURLs))

	// The tenant has email and whatsapp enabled: one delivery per channel.
	assert.Equal(t, 2, env.sender.sentCount(), "One notification per enabled channel")

	// The parcel carries the alert stamp.
	stored, err := env.parcels.GetByID(ctx, models.ServiceScope("test"), env.parcel.ID)
	assert.NoError(t, err)
	assert.NotNil(t, stored.LastAlertAt)
	assert.Equal(t, models.HealthAlert, stored.HealthStatus)
}

func TestHandleDetection_OpenAlertAbsorbsRepeat(t *testing.T) {
	env := newAlertTestEnv(t)
	ctx := context.Background()

	first, created, err := env.service.HandleDetection(ctx, env.tenant, env.parcel, sampleDetection(models.SeverityMedium), []string{"evidence/a.png"})
	assert.NoError(t, err)
	assert.True(t, created)

	second, created, err := env.service.HandleDetection(ctx, env.tenant, env.parcel, sampleDetection(models.SeverityMedium), []string{"evidence/b.png"})
	assert.NoError(t, err)
	assert.False(t, created, "Repeat detection should extend, not duplicate")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, []string{"evidence/a.png", "evidence/b.png"}, []string(second.EvidenceURLs),
		"Evidence should accumulate without duplicates")

	assert.Equal(t, 2, env.sender.sentCount(), "Extending an open alert must not re-notify")
}

func TestHandleDetection_SeverityOnlyEscalates(t *testing.T) {
	env := newAlertTestEnv(t)
	ctx := context.Background()

	_, _, err := env.service.HandleDetection(ctx, env.tenant, env.parcel, sampleDetection(models.SeverityHigh), nil)
	assert.NoError(t, err)

	alert, created, err := env.service.HandleDetection(ctx, env.tenant, env.parcel, sampleDetection(models.SeverityLow), nil)
	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, models.SeverityHigh, alert.Severity, "A weaker repeat must not downgrade severity")

	alert, _, err = env.service.HandleDetection(ctx, env.tenant, env.parcel, sampleDetection(models.SeverityCritical), nil)
	assert.NoError(t, err)
	assert.Equal(t, models.SeverityCritical, alert.Severity, "A stronger repeat escalates")
}

func TestHandleDetection_ResolvedAlertDoesNotAbsorb(t *testing.T) {
	env := newAlertTestEnv(t)
	ctx := context.Background()
	scope := models.TenantScope(env.tenant.ID, "user-1")

	first, _, err := env.service.HandleDetection(ctx, env.tenant, env.parcel, sampleDetection(models.SeverityHigh), nil)
	assert.NoError(t, err)

	_, err = env.service.Resolve(ctx, scope, first.ID, "user-1", nil)
	assert.NoError(t, err)

	second, created, err := env.service.HandleDetection(ctx, env.tenant, env.parcel, sampleDetection(models.SeverityHigh), nil)
	assert.NoError(t, err)
	assert.True(t, created, "A closed alert no longer dedupes fresh detections")
	assert.NotEqual(t, first.ID, second.ID)
}

func TestHandleDetection_DifferentTypesStaySeparate(t *testing.T) {
	env := newAlertTestEnv(t)
	ctx := context.Background()

	_, created, err := env.service.HandleDetection(ctx, env.tenant, env.parcel, sampleDetection(models.SeverityHigh), nil)
	assert.NoError(t, err)
	assert.True(t, created)

	fire := sampleDetection(models.SeverityHigh)
	fire.Type = models.AlertFire
	fire.Method = models.DetectionFireHotspots

	_, created, err = env.service.HandleDetection(ctx, env.tenant, env.parcel, fire, nil)
	assert.NoError(t, err)
	assert.True(t, created, "Deduplication is keyed on (parcel, type)")
}

// ============================================================================
// TEST SUITE 2: STATUS STATE MACHINE
// ============================================================================

func TestAlertLifecycle_FullTransitionChain(t *testing.T) {
	env := newAlertTestEnv(t)
	ctx := context.Background()
	scope := models.TenantScope(env.tenant.ID, "user-1")

	alert, _, err := env.service.HandleDetection(ctx, env.tenant, env.parcel, sampleDetection(models.SeverityHigh), nil)
	assert.NoError(t, err)

	acked, err := env.service.Acknowledge(ctx, scope, alert.ID, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, models.AlertAcknowledged, acked.Status)
	assert.Equal(t, "user-1", *acked.AcknowledgedBy)
	assert.NotNil(t, acked.AcknowledgedAt)

	investigating, err := env.service.StartInvestigation(ctx, scope, alert.ID, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, models.AlertInvestigating, investigating.Status)

	note := "confirmed logging activity"
	resolved, err := env.service.Resolve(ctx, scope, alert.ID, "user-2", &note)
	assert.NoError(t, err)
	assert.Equal(t, models.AlertResolved, resolved.Status)
	assert.Equal(t, "user-2", *resolved.ResolvedBy)
	assert.Equal(t, note, *resolved.ResolutionNote)
}

func TestAlertLifecycle_RepeatTransitionIsIdempotent(t *testing.T) {
	env := newAlertTestEnv(t)
	ctx := context.Background()
	scope := models.TenantScope(env.tenant.ID, "user-1")

	alert, _, err := env.service.HandleDetection(ctx, env.tenant, env.parcel, sampleDetection(models.SeverityHigh), nil)
	assert.NoError(t, err)

	first, err := env.service.Acknowledge(ctx, scope, alert.ID, "user-1")
	assert.NoError(t, err)

	second, err := env.service.Acknowledge(ctx, scope, alert.ID, "user-2")
	assert.NoError(t, err, "Re-acknowledging is a no-op, not an error")
	assert.Equal(t, *first.AcknowledgedBy, *second.AcknowledgedBy, "No-op must not overwrite audit fields")
}

func TestAlertLifecycle_TerminalStatesRejectTransitions(t *testing.T) {
	env := newAlertTestEnv(t)
	ctx := context.Background()
	scope := models.TenantScope(env.tenant.ID, "user-1")

	alert, _, err := env.service.HandleDetection(ctx, env.tenant, env.parcel, sampleDetection(models.SeverityHigh), nil)
	assert.NoError(t, err)

	_, err = env.service.Resolve(ctx, scope, alert.ID, "user-1", nil)
	assert.NoError(t, err)

	_, err = env.service.Acknowledge(ctx, scope, alert.ID, "user-1")
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "Resolved alerts cannot be reopened")

	_, err = env.service.MarkFalsePositive(ctx, scope, alert.ID, "user-1", nil)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestAlertLifecycle_ActorIsRequired(t *testing.T) {
	env := newAlertTestEnv(t)
	ctx := context.Background()
	scope := models.TenantScope(env.tenant.ID, "user-1")

	alert, _, err := env.service.HandleDetection(ctx, env.tenant, env.parcel, sampleDetection(models.SeverityHigh), nil)
	assert.NoError(t, err)

	_, err = env.service.Acknowledge(ctx, scope, alert.ID, "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAlertLifecycle_ScopeIsolation(t *testing.T) {
	env := newAlertTestEnv(t)
	ctx := context.Background()

	alert, _, err := env.service.HandleDetection(ctx, env.tenant, env.parcel, sampleDetection(models.SeverityHigh), nil)
	assert.NoError(t, err)

	otherScope := models.TenantScope(uuid.New(), "intruder")
	_, err = env.service.Get(ctx, otherScope, alert.ID)
	assert.ErrorIs(t, err, models.ErrNotFound, "Another tenant's scope must not see the alert")

	_, err = env.service.Acknowledge(ctx, otherScope, alert.ID, "intruder")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListOpen_ExcludesClosedAlerts(t *testing.T) {
	env := newAlertTestEnv(t)
	ctx := context.Background()
	scope := models.TenantScope(env.tenant.ID, "user-1")

	first, _, err := env.service.HandleDetection(ctx, env.tenant, env.parcel, sampleDetection(models.SeverityHigh), nil)
	assert.NoError(t, err)

	fire := sampleDetection(models.SeverityCritical)
	fire.Type = models.AlertFire
	_, _, err = env.service.HandleDetection(ctx, env.tenant, env.parcel, fire, nil)
	assert.NoError(t, err)

	_, err = env.service.MarkFalsePositive(ctx, scope, first.ID, "user-1", nil)
	assert.NoError(t, err)

	open, err := env.service.ListOpen(ctx, scope, env.tenant.ID, 100)
	assert.NoError(t, err)
	assert.Len(t, open, 1, "Only the still-open alert should be listed")
	assert.Equal(t, models.AlertFire, open[0].Type)
}
