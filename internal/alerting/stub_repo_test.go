package alerting

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketalert/internal/models"
	"marketalert/internal/notification"
)

// memAlerts mimics the conditional trigger write of the gorm repository.
type memAlerts struct {
	mu       sync.Mutex
	alerts   []models.Alert
	listErr  error
	markErr  error
	listHits int
}

func (s *memAlerts) ListActiveAlertsWithTickers(ctx context.Context) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listHits++
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Alert
	for _, a := range s.alerts {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memAlerts) MarkAlertTriggered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return false, s.markErr
	}
	for i := range s.alerts {
		a := &s.alerts[i]
		if a.ID != id {
			continue
		}
		if !a.IsActive || a.TriggeredAt != nil {
			return false, nil
		}
		a.IsActive = false
		t := at
		a.TriggeredAt = &t
		return true, nil
	}
	return false, errors.New("alert not found")
}

func (s *memAlerts) get(id uuid.UUID) models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.ID == id {
			return a
		}
	}
	return models.Alert{}
}

type recordingDispatcher struct {
	mu       sync.Mutex
	got      []notification.AlertTriggeredContext
	panicFor uuid.UUID
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, tc notification.AlertTriggeredContext) []notification.DeliveryResult {
	d.mu.Lock()
	d.got = append(d.got, tc)
	shouldPanic := d.panicFor != uuid.Nil && d.panicFor == tc.Alert.ID
	d.mu.Unlock()
	if shouldPanic {
		panic("dispatcher exploded")
	}
	return nil
}

func (d *recordingDispatcher) calls() []notification.AlertTriggeredContext {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notification.AlertTriggeredContext(nil), d.got...)
}

// brokenLocks fails every lock operation like an unreachable cache.
type brokenLocks struct{}

func (brokenLocks) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, errors.New("dial tcp 127.0.0.1:6379: connection refused")
}

func (brokenLocks) CompareAndDelete(context.Context, string, []byte) (bool, error) {
	return false, errors.New("dial tcp 127.0.0.1:6379: connection refused")
}

type staticSwitch bool

func (s staticSwitch) IsEnabled(context.Context, string, bool) bool { return bool(s) }
