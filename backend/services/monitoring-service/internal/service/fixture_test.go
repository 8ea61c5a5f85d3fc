package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"energymonitor/backend/services/monitoring-service/internal/events"
	"energymonitor/backend/services/monitoring-service/internal/models"
	redisstore "energymonitor/backend/services/monitoring-service/internal/redis"
	"energymonitor/backend/services/monitoring-service/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[int64]redisstore.ActiveSession
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[int64]redisstore.ActiveSession)}
}

func (c *memoryCache) Save(_ context.Context, s redisstore.ActiveSession) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[s.DeviceID] = s
	return nil
}

func (c *memoryCache) Get(_ context.Context, deviceID int64) (*redisstore.ActiveSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[deviceID]
	if !ok {
		return nil, redis.Nil
	}
	return &s, nil
}

func (c *memoryCache) Delete(_ context.Context, deviceID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, deviceID)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.SessionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type countingRecorder struct {
	mu          sync.Mutex
	transitions map[models.SessionStatus]int
	ingested    map[string]int
	rejected    map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		transitions: make(map[models.SessionStatus]int),
		ingested:    make(map[string]int),
		rejected:    make(map[string]int),
	}
}

func (r *countingRecorder) SessionTransitioned(s models.SessionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions[s]++
}

func (r *countingRecorder) SampleIngested(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingested[source]++
}

func (r *countingRecorder) SampleRejected(source, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected[source+"/"+kind]++
}

type fixture struct {
	store     *repository.MemoryStore
	clock     *testClock
	cache     *memoryCache
	publisher *recordingPublisher
	recorder  *countingRecorder
	sessions  *SessionsService
	telemetry *TelemetryService
	reports   *ReportsService
	user      models.User
	stranger  models.User
	device    models.Device
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:     repository.NewMemoryStore(),
		clock:     &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		cache:     newMemoryCache(),
		publisher: &recordingPublisher{},
		recorder:  newCountingRecorder(),
	}

	f.user = models.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, f.store.Users().Create(ctx, &f.user))
	f.stranger = models.User{Username: "bob", Email: "bob@example.com"}
	require.NoError(t, f.store.Users().Create(ctx, &f.stranger))
	f.device = models.Device{UserID: f.user.ID, Name: "Lampu Ruang Tamu", Code: "LAMP-001", MAC: "AA:BB:CC:DD:EE:01"}
	require.NoError(t, f.store.Devices().Create(ctx, &f.device))

	f.sessions = NewSessionsService(f.store.Sessions(), f.store.Devices(), f.cache, f.publisher, nil).
		WithClock(f.clock.Now).
		WithRecorder(f.recorder)
	f.telemetry = NewTelemetryService(f.store.Sessions(), f.store.Samples(), f.store.Devices(), f.cache,
		FixedSource{VoltageV: 220, CurrentA: 2, PowerW: 440, EnergyWh: 0.6, Status: models.DeviceOn}, nil).
		WithClock(f.clock.Now).
		WithRecorder(f.recorder)
	f.reports = NewReportsService(f.store.Devices(), f.store.Sessions(), f.store.Samples(), DefaultTariff(), nil)
	return f
}

func (f *fixture) start(t *testing.T, initial float64) *models.Session {
	t.Helper()
	session, err := f.sessions.StartSession(context.Background(), StartSessionInput{
		DeviceID:   f.device.ID,
		UserID:     f.user.ID,
		Name:       "Test",
		InitialKWh: initial,
	})
	require.NoError(t, err)
	return session
}

func (f *fixture) addDevice(t *testing.T, userID int64, code, mac string) models.Device {
	t.Helper()
	d := models.Device{UserID: userID, Name: code, Code: code, MAC: mac}
	require.NoError(t, f.store.Devices().Create(context.Background(), &d))
	return d
}

func sampleAt(deviceID, sessionID int64, ts time.Time) SampleInput {
	return SampleInput{
		DeviceID:  deviceID,
		SessionID: &sessionID,
		Timestamp: ts,
		VoltageV:  220,
		CurrentA:  2,
		PowerW:    440,
		EnergyWh:  0.6,
		Status:    models.DeviceOn,
	}
}
