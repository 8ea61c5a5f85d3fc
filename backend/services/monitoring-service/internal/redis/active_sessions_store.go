package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActiveSession stored in redis so device transports can find the session to
// tag incoming samples with.
type ActiveSession struct {
	SessionID int64     `json:"session_id"`
	DeviceID  int64     `json:"device_id"`
	UserID    int64     `json:"user_id"`
	StartTime time.Time `json:"start_time"`
}

// Store manages active session cache.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns redis-backed store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func key(deviceID int64) string {
	return fmt.Sprintf("monitoring:active:device:%d", deviceID)
}

// Save caches session under its device.
func (s *Store) Save(ctx context.Context, session ActiveSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(session.DeviceID), data, s.ttl).Err()
}

// Get returns cached session for the device, or redis.Nil on a miss.
func (s *Store) Get(ctx context.Context, deviceID int64) (*ActiveSession, error) {
	result, err := s.client.Get(ctx, key(deviceID)).Result()
	if err != nil {
		return nil, err
	}
	var session ActiveSession
	if err := json.Unmarshal([]byte(result), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Delete removes cached session of the device.
func (s *Store) Delete(ctx context.Context, deviceID int64) error {
	return s.client.Del(ctx, key(deviceID)).Err()
}
