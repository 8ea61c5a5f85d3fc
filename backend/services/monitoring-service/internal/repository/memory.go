package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"energymonitor/backend/services/monitoring-service/internal/models"
)

// MemoryStore keeps users, devices, sessions and samples in process memory.
// It mirrors the PostgreSQL repositories, including the transactional sample
// append and the device delete cascade, and backs the "memory" storage driver
// and the service tests.
type MemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	nextID   int64
	users    map[int64]models.User
	devices  map[int64]models.Device
	sessions map[int64]models.Session
	samples  []models.Sample
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      func() time.Time { return time.Now().UTC() },
		users:    make(map[int64]models.User),
		devices:  make(map[int64]models.Device),
		sessions: make(map[int64]models.Session),
	}
}

// Users returns the account view of the store.
func (m *MemoryStore) Users() *MemoryUsers { return &MemoryUsers{m} }

// Devices returns the device view of the store.
func (m *MemoryStore) Devices() *MemoryDevices { return &MemoryDevices{m} }

// Sessions returns the session view of the store.
func (m *MemoryStore) Sessions() *MemorySessions { return &MemorySessions{m} }

// Samples returns the telemetry view of the store.
func (m *MemoryStore) Samples() *MemorySamples { return &MemorySamples{m} }

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

// MemoryUsers implements the account repository on a MemoryStore.
type MemoryUsers struct{ m *MemoryStore }

// GetByUsername loads an account by login name.
func (r *MemoryUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

// List returns every account, newest first.
func (r *MemoryUsers) List(_ context.Context) ([]models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]models.User, 0, len(r.m.users))
	for _, u := range r.m.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b models.User) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareInt64(b.ID, a.ID)
	})
	return out, nil
}

// Create inserts a new account.
func (r *MemoryUsers) Create(_ context.Context, user *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
			return ErrUserExists
		}
	}
	user.ID = r.m.id()
	user.IsActive = true
	user.CreatedAt = r.m.now()
	r.m.users[user.ID] = *user
	return nil
}

// MemoryDevices implements the device repository on a MemoryStore.
type MemoryDevices struct{ m *MemoryStore }

// OwnerOf resolves the owning user of an active device.
func (r *MemoryDevices) OwnerOf(_ context.Context, deviceID int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, ok := r.m.devices[deviceID]
	if !ok || !d.IsActive {
		return 0, ErrDeviceNotFound
	}
	return d.UserID, nil
}

// Create registers a device.
func (r *MemoryDevices) Create(_ context.Context, device *models.Device) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[device.UserID]; !ok {
		return ErrUserNotFound
	}
	for _, d := range r.m.devices {
		if d.Code == device.Code || strings.EqualFold(d.MAC, device.MAC) {
			return ErrDeviceExists
		}
	}
	device.ID = r.m.id()
	device.IsActive = true
	device.CreatedAt = r.m.now()
	r.m.devices[device.ID] = copyDevice(*device)
	return nil
}

// GetByID loads one device.
func (r *MemoryDevices) GetByID(_ context.Context, id int64) (*models.Device, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, ok := r.m.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	d = copyDevice(d)
	return &d, nil
}

// ListByUser returns the user's active devices ordered by name.
func (r *MemoryDevices) ListByUser(_ context.Context, userID int64) ([]models.Device, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Device
	for _, d := range r.m.devices {
		if d.UserID == userID && d.IsActive {
			out = append(out, copyDevice(d))
		}
	}
	slices.SortFunc(out, func(a, b models.Device) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return compareInt64(a.ID, b.ID)
	})
	return out, nil
}

// Delete removes a device with its sessions and samples.
func (r *MemoryDevices) Delete(_ context.Context, id, userID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, ok := r.m.devices[id]
	if !ok || d.UserID != userID {
		return ErrDeviceNotFound
	}
	delete(r.m.devices, id)
	for sid, s := range r.m.sessions {
		if s.DeviceID == id {
			delete(r.m.sessions, sid)
		}
	}
	r.m.samples = slices.DeleteFunc(r.m.samples, func(s models.Sample) bool { return s.DeviceID == id })
	return nil
}

// SetActive flips a device's active flag.
func (r *MemoryDevices) SetActive(id int64, active bool) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if d, ok := r.m.devices[id]; ok {
		d.IsActive = active
		r.m.devices[id] = d
	}
}

// Touch marks a device online after it reported telemetry.
func (r *MemoryDevices) Touch(_ context.Context, id int64, seenAt time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if d, ok := r.m.devices[id]; ok {
		d.IsOnline = true
		d.LastSeen = &seenAt
		r.m.devices[id] = d
	}
	return nil
}

// MemorySessions implements the session repository on a MemoryStore.
type MemorySessions struct{ m *MemoryStore }

// Create inserts a session.
func (r *MemorySessions) Create(_ context.Context, session *models.Session) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.devices[session.DeviceID]; !ok {
		return ErrDeviceNotFound
	}
	session.ID = r.m.id()
	session.CreatedAt = r.m.now()
	r.m.sessions[session.ID] = copySession(*session)
	return nil
}

// GetByID loads one session.
func (r *MemorySessions) GetByID(_ context.Context, id int64) (*models.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s = copySession(s)
	return &s, nil
}

// ListByUser returns the user's sessions, newest first.
func (r *MemorySessions) ListByUser(_ context.Context, userID int64, limit int) ([]models.Session, error) {
	out := r.filter(func(s models.Session) bool { return s.UserID == userID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListByDevice returns the device's sessions, newest first.
func (r *MemorySessions) ListByDevice(_ context.Context, deviceID int64) ([]models.Session, error) {
	return r.filter(func(s models.Session) bool { return s.DeviceID == deviceID }), nil
}

// ListActive returns the user's ACTIVE and PAUSED sessions.
func (r *MemorySessions) ListActive(_ context.Context, userID int64) ([]models.Session, error) {
	return r.filter(func(s models.Session) bool {
		return s.UserID == userID && !s.Status.Terminal()
	}), nil
}

// ActiveByDevice returns the most recently started ACTIVE session of a device.
func (r *MemorySessions) ActiveByDevice(_ context.Context, deviceID int64) (*models.Session, error) {
	out := r.filter(func(s models.Session) bool {
		return s.DeviceID == deviceID && s.Status == models.SessionActive
	})
	if len(out) == 0 {
		return nil, ErrSessionNotFound
	}
	return &out[0], nil
}

// Transition applies a compare-and-swap on the session status.
func (r *MemorySessions) Transition(_ context.Context, t models.SessionTransition) (*models.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[t.SessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.Status != t.From {
		return nil, ErrStatusConflict
	}
	s.Status = t.To
	if t.EndTime != nil {
		end := *t.EndTime
		s.EndTime = &end
	}
	if t.FinalKWh != nil {
		final := *t.FinalKWh
		s.FinalKWh = &final
	}
	r.m.sessions[s.ID] = s
	s = copySession(s)
	return &s, nil
}

func (r *MemorySessions) filter(keep func(models.Session) bool) []models.Session {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Session
	for _, s := range r.m.sessions {
		if keep(s) {
			out = append(out, copySession(s))
		}
	}
	slices.SortFunc(out, func(a, b models.Session) int {
		if c := b.StartTime.Compare(a.StartTime); c != 0 {
			return c
		}
		return compareInt64(b.ID, a.ID)
	})
	return out
}

// MemorySamples implements the telemetry log on a MemoryStore.
type MemorySamples struct{ m *MemoryStore }

// Append validates and stores a sample atomically.
func (r *MemorySamples) Append(_ context.Context, sample *models.Sample) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if sample.SessionID != nil {
		s, ok := r.m.sessions[*sample.SessionID]
		if !ok {
			return ErrSessionNotFound
		}
		if s.DeviceID != sample.DeviceID {
			return ErrDeviceMismatch
		}
		if s.Status != models.SessionActive {
			return ErrSessionNotActive
		}
		for _, existing := range r.m.samples {
			if existing.SessionID != nil && *existing.SessionID == s.ID && !sample.Timestamp.After(existing.Timestamp) {
				return ErrTimestampOutOfOrder
			}
		}
	} else if d, ok := r.m.devices[sample.DeviceID]; !ok || !d.IsActive {
		return ErrDeviceNotFound
	}

	sample.ID = r.m.id()
	sample.CreatedAt = r.m.now()
	r.m.samples = append(r.m.samples, copySample(*sample))
	return nil
}

// ListBySession returns the session's samples in timestamp order.
func (r *MemorySamples) ListBySession(_ context.Context, sessionID int64) ([]models.Sample, error) {
	return r.filter(func(s models.Sample) bool {
		return s.SessionID != nil && *s.SessionID == sessionID
	}), nil
}

// ListByDevice returns the device's samples in timestamp order.
func (r *MemorySamples) ListByDevice(_ context.Context, deviceID int64) ([]models.Sample, error) {
	return r.filter(func(s models.Sample) bool { return s.DeviceID == deviceID }), nil
}

func (r *MemorySamples) filter(keep func(models.Sample) bool) []models.Sample {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Sample
	for _, s := range r.m.samples {
		if keep(s) {
			out = append(out, copySample(s))
		}
	}
	slices.SortStableFunc(out, func(a, b models.Sample) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return compareInt64(a.ID, b.ID)
	})
	return out
}

func copySession(s models.Session) models.Session {
	if s.EndTime != nil {
		end := *s.EndTime
		s.EndTime = &end
	}
	if s.FinalKWh != nil {
		final := *s.FinalKWh
		s.FinalKWh = &final
	}
	return s
}

func copySample(s models.Sample) models.Sample {
	if s.SessionID != nil {
		id := *s.SessionID
		s.SessionID = &id
	}
	return s
}

func copyDevice(d models.Device) models.Device {
	if d.LastSeen != nil {
		seen := *d.LastSeen
		d.LastSeen = &seen
	}
	return d
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
