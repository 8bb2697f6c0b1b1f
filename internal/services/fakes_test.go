package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/knulata/satteli/internal/models"
)

// ============================================================================
// IN-MEMORY STORE FAKES
// ============================================================================

type fakeTenantStore struct {
	mu      sync.Mutex
	tenants map[uuid.UUID]*models.Tenant
}

func newFakeTenantStore() *fakeTenantStore {
	return &fakeTenantStore{tenants: make(map[uuid.UUID]*models.Tenant)}
}

func (s *fakeTenantStore) Create(_ context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	cp := *tenant
	s.tenants[tenant.ID] = &cp
	return nil
}

func (s *fakeTenantStore) GetByID(_ context.Context, scope models.AccessScope, id uuid.UUID) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !scope.Allows(id) {
		return nil, fmt.Errorf("tenant %s: %w", id, models.ErrNotFound)
	}
	t, ok := s.tenants[id]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", id, models.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTenantStore) GetActive(_ context.Context, scope models.AccessScope) ([]models.Tenant, error) {
	if !scope.Service {
		return nil, models.ErrForbidden
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Tenant
	for _, t := range s.tenants {
		if t.Status == models.TenantActive {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeTenantStore) UpdateThresholds(_ context.Context, scope models.AccessScope, id uuid.UUID, areaThresholdHa, ndviChangeThreshold float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !scope.Allows(id) {
		return models.ErrNotFound
	}
	t, ok := s.tenants[id]
	if !ok {
		return models.ErrNotFound
	}
	if areaThresholdHa < 0 || ndviChangeThreshold < 0 {
		return models.ErrValidation
	}
	t.DeforestationAreaThresholdHa = areaThresholdHa
	t.NDVIChangeThreshold = ndviChangeThreshold
	return nil
}

func (s *fakeTenantStore) Deactivate(_ context.Context, scope models.AccessScope, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !scope.Allows(id) {
		return models.ErrNotFound
	}
	t, ok := s.tenants[id]
	if !ok {
		return models.ErrNotFound
	}
	t.Status = models.TenantInactive
	return nil
}

func (s *fakeTenantStore) totalArea(id uuid.UUID) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tenants[id]; ok {
		return t.TotalAreaHa
	}
	return 0
}

type fakeParcelStore struct {
	mu      sync.Mutex
	parcels map[uuid.UUID]*models.Parcel
	tenants *fakeTenantStore
}

func newFakeParcelStore(tenants *fakeTenantStore) *fakeParcelStore {
	return &fakeParcelStore{parcels: make(map[uuid.UUID]*models.Parcel), tenants: tenants}
}

// recomputeAggregateLocked mirrors the transactional recompute the SQL store
// performs: the tenant total always equals the sum over active parcels.
func (s *fakeParcelStore) recomputeAggregateLocked(tenantID uuid.UUID) {
	var total float64
	for _, p := range s.parcels {
		if p.TenantID == tenantID && p.Status == models.ParcelActive {
			total += p.AreaHa
		}
	}
	s.tenants.mu.Lock()
	if t, ok := s.tenants.tenants[tenantID]; ok {
		t.TotalAreaHa = total
	}
	s.tenants.mu.Unlock()
}

func (s *fakeParcelStore) CreateWithAggregate(_ context.Context, parcel *models.Parcel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if parcel.ID == uuid.Nil {
		parcel.ID = uuid.New()
	}
	parcel.CreatedAt = time.Now()
	parcel.UpdatedAt = time.Now()
	cp := *parcel
	s.parcels[parcel.ID] = &cp
	s.recomputeAggregateLocked(parcel.TenantID)
	return nil
}

func (s *fakeParcelStore) UpdateWithAggregate(_ context.Context, parcel *models.Parcel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.parcels[parcel.ID]; !ok {
		return models.ErrNotFound
	}
	cp := *parcel
	s.parcels[parcel.ID] = &cp
	s.recomputeAggregateLocked(parcel.TenantID)
	return nil
}

func (s *fakeParcelStore) DeleteWithAggregate(_ context.Context, scope models.AccessScope, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parcels[id]
	if !ok || !scope.Allows(p.TenantID) {
		return models.ErrNotFound
	}
	p.Status = models.ParcelDeleted
	s.recomputeAggregateLocked(p.TenantID)
	return nil
}

func (s *fakeParcelStore) GetByID(_ context.Context, scope models.AccessScope, id uuid.UUID) (*models.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parcels[id]
	if !ok || !scope.Allows(p.TenantID) {
		return nil, fmt.Errorf("parcel %s: %w", id, models.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *fakeParcelStore) ListByTenant(_ context.Context, scope models.AccessScope, tenantID uuid.UUID) ([]models.Parcel, error) {
	if !scope.Allows(tenantID) {
		return nil, models.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Parcel
	for _, p := range s.parcels {
		if p.TenantID == tenantID && p.Status != models.ParcelDeleted {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakeParcelStore) ListActiveByTenant(_ context.Context, scope models.AccessScope, tenantID uuid.UUID) ([]models.Parcel, error) {
	if !scope.Service {
		return nil, models.ErrForbidden
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Parcel
	for _, p := range s.parcels {
		if p.TenantID == tenantID && p.Status == models.ParcelActive {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeParcelStore) UpdateSnapshot(_ context.Context, id uuid.UUID, currentNDVI float64, health models.HealthStatus, scannedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parcels[id]
	if !ok {
		return models.ErrNotFound
	}
	p.CurrentNDVI = &currentNDVI
	p.HealthStatus = health
	p.LastScanAt = &scannedAt
	return nil
}

func (s *fakeParcelStore) MarkAlerted(_ context.Context, id uuid.UUID, alertedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parcels[id]
	if !ok {
		return models.ErrNotFound
	}
	p.LastAlertAt = &alertedAt
	p.HealthStatus = models.HealthAlert
	return nil
}

type fakeReadingStore struct {
	mu       sync.Mutex
	readings map[uuid.UUID]map[string]*models.Reading
}

func newFakeReadingStore() *fakeReadingStore {
	return &fakeReadingStore{readings: make(map[uuid.UUID]map[string]*models.Reading)}
}

func (s *fakeReadingStore) Insert(_ context.Context, reading *models.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byPeriod, ok := s.readings[reading.ParcelID]
	if !ok {
		byPeriod = make(map[string]*models.Reading)
		s.readings[reading.ParcelID] = byPeriod
	}
	if _, exists := byPeriod[reading.PeriodDate]; exists {
		return fmt.Errorf("reading for parcel %s period %s: %w",
			reading.ParcelID, reading.PeriodDate, models.ErrDuplicateReading)
	}
	if reading.ID == uuid.Nil {
		reading.ID = uuid.New()
	}
	cp := *reading
	byPeriod[reading.PeriodDate] = &cp
	return nil
}

func (s *fakeReadingStore) Upsert(_ context.Context, reading *models.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byPeriod, ok := s.readings[reading.ParcelID]
	if !ok {
		byPeriod = make(map[string]*models.Reading)
		s.readings[reading.ParcelID] = byPeriod
	}
	if reading.ID == uuid.Nil {
		reading.ID = uuid.New()
	}
	cp := *reading
	byPeriod[reading.PeriodDate] = &cp
	return nil
}

func (s *fakeReadingStore) GetLatestBefore(_ context.Context, parcelID uuid.UUID, periodDate string) (*models.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Reading
	for period, r := range s.readings[parcelID] {
		if period >= periodDate {
			continue
		}
		if latest == nil || period > latest.PeriodDate {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *fakeReadingStore) ListByParcel(_ context.Context, parcelID uuid.UUID, limit int) ([]models.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Reading
	for _, r := range s.readings[parcelID] {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodDate > out[j].PeriodDate })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeAlertStore struct {
	mu     sync.Mutex
	alerts map[uuid.UUID]*models.Alert
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{alerts: make(map[uuid.UUID]*models.Alert)}
}

func (s *fakeAlertStore) Create(_ context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	alert.CreatedAt = time.Now()
	cp := *alert
	s.alerts[alert.ID] = &cp
	return nil
}

func (s *fakeAlertStore) GetByID(_ context.Context, scope models.AccessScope, id uuid.UUID) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || !scope.Allows(a.TenantID) {
		return nil, fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *fakeAlertStore) FindOpenByParcelAndType(_ context.Context, parcelID uuid.UUID, alertType models.AlertType) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.ParcelID != nil && *a.ParcelID == parcelID && a.Type == alertType && a.Status.IsOpen() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeAlertStore) Extend(_ context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[alert.ID]; !ok {
		return models.ErrNotFound
	}
	cp := *alert
	s.alerts[alert.ID] = &cp
	return nil
}

func (s *fakeAlertStore) UpdateStatus(_ context.Context, alert *models.Alert, from models.AlertStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.alerts[alert.ID]
	if !ok {
		return models.ErrNotFound
	}
	if stored.Status != from {
		return fmt.Errorf("alert %s moved concurrently: %w", alert.ID, models.ErrInvalidTransition)
	}
	cp := *alert
	s.alerts[alert.ID] = &cp
	return nil
}

func (s *fakeAlertStore) ListOpenByTenant(_ context.Context, scope models.AccessScope, tenantID uuid.UUID, limit int) ([]models.AlertListItem, error) {
	if !scope.Allows(tenantID) {
		return nil, models.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AlertListItem
	for _, a := range s.alerts {
		if a.TenantID == tenantID && a.Status.IsOpen() {
			out = append(out, models.AlertListItem{Alert: *a, TenantName: "tenant"})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt > out[j].DetectedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeNotificationStore struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]*models.Notification
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{notifications: make(map[uuid.UUID]*models.Notification)}
}

func (s *fakeNotificationStore) CreateBatch(_ context.Context, notifications []*models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range notifications {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		if n.Status == "" {
			n.Status = models.NotificationPending
		}
		cp := *n
		s.notifications[n.ID] = &cp
	}
	return nil
}

func (s *fakeNotificationStore) GetByID(_ context.Context, id uuid.UUID) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, fmt.Errorf("notification %s: %w", id, models.ErrNotFound)
	}
	cp := *n
	return &cp, nil
}

func (s *fakeNotificationStore) MarkSent(_ context.Context, id uuid.UUID, externalRef string, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return models.ErrNotFound
	}
	if n.Status == models.NotificationSent {
		return nil
	}
	now := time.Now().Unix()
	n.Status = models.NotificationSent
	n.ExternalRef = &externalRef
	n.Attempts = attempts
	n.SentAt = &now
	n.ErrorDetail = nil
	return nil
}

func (s *fakeNotificationStore) MarkFailed(_ context.Context, id uuid.UUID, errorDetail string, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return models.ErrNotFound
	}
	if n.Status == models.NotificationSent {
		return nil
	}
	n.Status = models.NotificationFailed
	n.ErrorDetail = &errorDetail
	n.Attempts = attempts
	return nil
}

func (s *fakeNotificationStore) ListByAlert(_ context.Context, scope models.AccessScope, alertID uuid.UUID) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.AlertID == alertID && scope.Allows(n.TenantID) {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *fakeNotificationStore) ListPending(_ context.Context, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.Status == models.NotificationPending {
			out = append(out, *n)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeScanRunStore struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*models.ScanRun
}

func newFakeScanRunStore() *fakeScanRunStore {
	return &fakeScanRunStore{runs: make(map[uuid.UUID]*models.ScanRun)}
}

func (s *fakeScanRunStore) Open(_ context.Context, run *models.ScanRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.Status = models.ScanRunning
	run.StartedAt = time.Now()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *fakeScanRunStore) Close(_ context.Context, run *models.ScanRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return models.ErrNotFound
	}
	now := time.Now()
	run.FinishedAt = &now
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *fakeScanRunStore) GetByID(_ context.Context, id uuid.UUID) (*models.ScanRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeScanRunStore) ListRecent(_ context.Context, limit int) ([]models.ScanRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScanRun
	for _, r := range s.runs {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ============================================================================
// TRANSPORT / INFRA FAKES
// ============================================================================

// fakeSender records sends and can be programmed to fail the first N
// attempts per channel.
type fakeSender struct {
	mu           sync.Mutex
	sent         []SendRequest
	failuresLeft map[models.NotificationChannel]int
}

func newFakeSender() *fakeSender {
	return &fakeSender{failuresLeft: make(map[models.NotificationChannel]int)}
}

func (f *fakeSender) Send(_ context.Context, req SendRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failuresLeft[req.Channel] > 0 {
		f.failuresLeft[req.Channel]--
		return "", fmt.Errorf("provider unavailable")
	}
	f.sent = append(f.sent, req)
	return "ext-" + req.NotificationID.String(), nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// syncRunner executes jobs inline, keeping tests deterministic.
type syncRunner struct{}

func (syncRunner) SubmitJob(job func(ctx context.Context) error) error {
	_ = job(context.Background())
	return nil
}

type fakeCache struct {
	mu     sync.Mutex
	values map[string][]byte
	gets   int
	hits   int
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string][]byte)}
}

func (c *fakeCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.values[key] = b
	c.sets++
	return nil
}

func (c *fakeCache) GetJSON(_ context.Context, key string, v any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	b, ok := c.values[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, v)
}

func (c *fakeCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

// fakeImagery returns a fixed observation, or an error for parcels in the
// fail set.
type fakeImagery struct {
	mu      sync.Mutex
	obs     ParcelObservation
	failFor map[uuid.UUID]bool
	calls   int
}

func newFakeImagery(obs ParcelObservation) *fakeImagery {
	return &fakeImagery{obs: obs, failFor: make(map[uuid.UUID]bool)}
}

func (f *fakeImagery) Observe(_ context.Context, parcel *models.Parcel, periodDate string) (*ParcelObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failFor[parcel.ID] {
		return nil, fmt.Errorf("provider timeout for parcel %s", parcel.ID)
	}
	obs := f.obs
	obs.Reading.PeriodDate = periodDate
	return &obs, nil
}

// ============================================================================
// FIXTURE HELPERS
// ============================================================================

func newTestTenant(email, phone string) *models.Tenant {
	t := &models.Tenant{
		ID:                           uuid.New(),
		Name:                         "Test Tenant",
		Status:                       models.TenantActive,
		DeforestationAreaThresholdHa: 1.0,
		NDVIChangeThreshold:          0.2,
	}
	if email != "" {
		t.Email = &email
		t.NotifyEmail = true
	}
	if phone != "" {
		t.Phone = &phone
		t.NotifyWhatsApp = true
	}
	return t
}

func newTestParcel(tenantID uuid.UUID, areaHa float64) *models.Parcel {
	return &models.Parcel{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Name:         "Test Parcel",
		AreaHa:       areaHa,
		Status:       models.ParcelActive,
		HealthStatus: models.HealthUnknown,
		Centroid:     models.NewGeoJSONPoint(102.1, 1.5),
		CreatedAt:    time.Now(),
	}
}

func squareBoundary(lon, lat, size float64) *models.GeoJSONPolygon {
	return &models.GeoJSONPolygon{
		Type: "Polygon",
		Coordinates: [][][]float64{{
			{lon, lat},
			{lon + size, lat},
			{lon + size, lat + size},
			{lon, lat + size},
			{lon, lat},
		}},
	}
}
