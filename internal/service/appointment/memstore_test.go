package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/internal/repository"
)

// memStore is a map-backed store that honours the same version
// compare-and-swap contract as the postgres repositories.
type memStore struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
	history      []*model.AppointmentStatusHistory
	counters     map[string]int
	services     map[uuid.UUID]*model.Service
	records      map[uuid.UUID]bool
	seq          int64
	now          func() time.Time

	// afterGet runs outside the lock after every appointment read.
	afterGet  func()
	updateErr error
	queueErr  error
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{
		appointments: map[uuid.UUID]*model.Appointment{},
		counters:     map[string]int{},
		services:     map[uuid.UUID]*model.Service{},
		records:      map[uuid.UUID]bool{},
		now:          now,
	}
}

func (m *memStore) addService(category model.ServiceCategory, active bool) *model.Service {
	svc := &model.Service{Name: string(category), Category: category, Active: active}
	svc.ID = uuid.New()
	m.mu.Lock()
	m.services[svc.ID] = svc
	m.mu.Unlock()
	return svc
}

func (m *memStore) appendEntry(appointmentID uuid.UUID, entry *model.AppointmentStatusHistory) {
	m.seq++
	entry.Seq = m.seq
	entry.AppointmentID = appointmentID
	entry.ChangedAt = m.now()
	stored := *entry
	m.history = append(m.history, &stored)
}

func (m *memStore) CreateWithHistory(_ context.Context, apt *model.Appointment, entry *model.AppointmentStatusHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.appointments[apt.ID]; exists {
		return repository.ErrDuplicate
	}
	for _, other := range m.appointments {
		if other.ServiceID == apt.ServiceID &&
			other.AppointmentDate.Equal(apt.AppointmentDate) &&
			other.AppointmentNumber == apt.AppointmentNumber {
			return repository.ErrDuplicate
		}
	}

	apt.Version = 1
	apt.CreatedAt = m.now()
	apt.UpdatedAt = apt.CreatedAt
	m.appointments[apt.ID] = apt.Clone()
	m.appendEntry(apt.ID, entry)
	return nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	m.mu.Lock()
	apt, ok := m.appointments[id]
	var out *model.Appointment
	if ok {
		out = apt.Clone()
	}
	hook := m.afterGet
	m.mu.Unlock()

	if !ok {
		return nil, repository.ErrNotFound
	}
	if hook != nil {
		hook()
	}
	return out, nil
}

func (m *memStore) List(_ context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Appointment
	for _, apt := range m.appointments {
		if filters.PatientID != uuid.Nil && apt.PatientID != filters.PatientID {
			continue
		}
		if filters.ServiceID != uuid.Nil && apt.ServiceID != filters.ServiceID {
			continue
		}
		if filters.Status != "" && apt.Status != filters.Status {
			continue
		}
		out = append(out, apt.Clone())
	}
	return out, nil
}

func (m *memStore) UpdateWithHistory(_ context.Context, apt *model.Appointment, expectedVersion int, entry *model.AppointmentStatusHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.appointments[apt.ID]
	if !ok || stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}

	apt.Version = expectedVersion + 1
	apt.UpdatedAt = m.now()
	m.appointments[apt.ID] = apt.Clone()
	m.appendEntry(apt.ID, entry)
	return nil
}

func (m *memStore) ListByAppointment(_ context.Context, appointmentID uuid.UUID) ([]*model.AppointmentStatusHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.AppointmentStatusHistory
	for _, e := range m.history {
		if e.AppointmentID == appointmentID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memStore) historyFor(appointmentID uuid.UUID) []*model.AppointmentStatusHistory {
	entries, _ := m.ListByAppointment(context.Background(), appointmentID)
	return entries
}

type historyReader struct{ *memStore }

func (h historyReader) Get(_ context.Context, id uuid.UUID) (*model.AppointmentStatusHistory, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.history {
		if e.ID == id {
			c := *e
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) NextNumber(_ context.Context, date time.Time, serviceID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queueErr != nil {
		return 0, m.queueErr
	}
	key := date.Format(model.AppointmentDateLayout) + "/" + serviceID.String()
	m.counters[key]++
	return m.counters[key], nil
}

type serviceReader struct{ *memStore }

func (s serviceReader) Get(_ context.Context, id uuid.UUID) (*model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *svc
	return &c, nil
}

func (m *memStore) ExistsForAppointment(_ context.Context, appointmentID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[appointmentID], nil
}

// recordingNotifier collects dispatched events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []model.LifecycleEvent
}

func (n *recordingNotifier) Notify(_ context.Context, evt model.LifecycleEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
}

func (n *recordingNotifier) types() []model.LifecycleEventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.LifecycleEventType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}
