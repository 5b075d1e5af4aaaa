package tests

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"fleetshift/internal/domain"
	"fleetshift/internal/redis"
	"fleetshift/internal/repository"
)

// ──────────────────────────────────────────────
// MEMORY STORE
// ──────────────────────────────────────────────

// MemoryStore is an in-memory database shared by the mock repositories.
// Units of work run one at a time and buffer their writes until Commit,
// which mirrors the destination row lock held by a real transfer.
type MemoryStore struct {
	mu           sync.RWMutex
	txMu         sync.Mutex
	trips        map[string]*domain.Trip
	reservations map[string]*domain.Reservation
	logs         []*domain.TransferLog
	negotiations map[string]*domain.Negotiation

	// Counters for verification
	BeginCount             int32
	CommitCount            int32
	RollbackCount          int32
	LockCount              int32
	ReservationUpdateCount int32

	// Error injection
	BeginError             error
	LockError              error
	CommitError            error
	NegotiationUpdateError error

	// SeatTakenOverride, when set, answers SeatTaken inside units of work.
	SeatTakenOverride func(tripID string, seat int) bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips:        make(map[string]*domain.Trip),
		reservations: make(map[string]*domain.Reservation),
		negotiations: make(map[string]*domain.Negotiation),
	}
}

// AddTrip adds a trip to the store.
func (s *MemoryStore) AddTrip(trip *domain.Trip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips[trip.ID] = trip
}

// AddReservation adds a reservation to the store.
func (s *MemoryStore) AddReservation(r *domain.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[r.ID] = r
}

// AddNegotiation adds a negotiation to the store.
func (s *MemoryStore) AddNegotiation(n *domain.Negotiation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.negotiations[n.ID] = n
}

// Reservation returns a copy of a reservation for test assertions.
func (s *MemoryStore) Reservation(id string) *domain.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil
	}
	copy := *r
	return &copy
}

// Negotiation returns a copy of a negotiation for test assertions.
func (s *MemoryStore) Negotiation(id string) *domain.Negotiation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.negotiations[id]
	if !ok {
		return nil
	}
	return copyNegotiation(n)
}

// TripReservations returns the committed reservations of a trip ordered by seat.
func (s *MemoryStore) TripReservations(tripID string) []*domain.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*domain.Reservation
	for _, r := range s.reservations {
		if r.TripID == tripID {
			copy := *r
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seat < result[j].Seat })
	return result
}

// TransferLogs returns every committed audit entry in insertion order.
func (s *MemoryStore) TransferLogs() []*domain.TransferLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domain.TransferLog, len(s.logs))
	copy(result, s.logs)
	return result
}

// TripRepo returns a trip repository reading committed data.
func (s *MemoryStore) TripRepo() repository.TripRepository { return &memoryView{s: s} }

// ReservationRepo returns a reservation repository writing directly.
func (s *MemoryStore) ReservationRepo() repository.ReservationRepository { return &memoryView{s: s} }

// TransferLogRepo returns a transfer log repository writing directly.
func (s *MemoryStore) TransferLogRepo() repository.TransferLogRepository {
	return &memoryLogs{view: &memoryView{s: s}}
}

// NegotiationRepo returns a negotiation repository writing directly.
func (s *MemoryStore) NegotiationRepo() repository.NegotiationRepository {
	return &memoryNegotiations{view: &memoryView{s: s}}
}

// Begin starts a unit of work. It blocks while another unit is open.
func (s *MemoryStore) Begin(ctx context.Context) (repository.UnitOfWork, error) {
	atomic.AddInt32(&s.BeginCount, 1)
	if s.BeginError != nil {
		return nil, s.BeginError
	}
	s.txMu.Lock()
	return &memoryUnit{view: &memoryView{s: s, pending: newPendingWrites()}}, nil
}

// ──────────────────────────────────────────────
// MEMORY UNIT OF WORK
// ──────────────────────────────────────────────

// pendingWrites buffers the writes of one unit of work.
type pendingWrites struct {
	reservations map[string]*domain.Reservation
	logs         []*domain.TransferLog
	negotiations map[string]*domain.Negotiation
}

func newPendingWrites() *pendingWrites {
	return &pendingWrites{
		reservations: make(map[string]*domain.Reservation),
		negotiations: make(map[string]*domain.Negotiation),
	}
}

type memoryUnit struct {
	view *memoryView
	done bool
}

func (u *memoryUnit) Trips() repository.TripRepository               { return u.view }
func (u *memoryUnit) Reservations() repository.ReservationRepository { return u.view }
func (u *memoryUnit) TransferLogs() repository.TransferLogRepository {
	return &memoryLogs{view: u.view}
}
func (u *memoryUnit) Negotiations() repository.NegotiationRepository {
	return &memoryNegotiations{view: u.view}
}

func (u *memoryUnit) Commit() error {
	if u.done {
		return fmt.Errorf("unit of work already finished")
	}
	u.done = true
	defer u.view.s.txMu.Unlock()

	s := u.view.s
	if s.CommitError != nil {
		atomic.AddInt32(&s.RollbackCount, 1)
		return s.CommitError
	}
	atomic.AddInt32(&s.CommitCount, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range u.view.pending.reservations {
		s.reservations[id] = r
	}
	for id, n := range u.view.pending.negotiations {
		s.negotiations[id] = n
	}
	s.logs = append(s.logs, u.view.pending.logs...)
	return nil
}

func (u *memoryUnit) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	atomic.AddInt32(&u.view.s.RollbackCount, 1)
	u.view.s.txMu.Unlock()
	return nil
}

// ──────────────────────────────────────────────
// MEMORY TRIP AND RESERVATION REPOSITORIES
// ──────────────────────────────────────────────

// memoryView reads committed data overlaid with the pending writes of its
// unit of work. Outside a unit (pending nil) writes apply immediately.
type memoryView struct {
	s       *MemoryStore
	pending *pendingWrites
}

func (v *memoryView) reservation(id string) (*domain.Reservation, bool) {
	if v.pending != nil {
		if r, ok := v.pending.reservations[id]; ok {
			return r, true
		}
	}
	r, ok := v.s.reservations[id]
	return r, ok
}

// allReservations returns copies of every visible reservation.
func (v *memoryView) allReservations() []*domain.Reservation {
	result := make([]*domain.Reservation, 0, len(v.s.reservations))
	for id := range v.s.reservations {
		r, _ := v.reservation(id)
		copy := *r
		result = append(result, &copy)
	}
	return result
}

func (v *memoryView) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	trip, ok := v.s.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *trip
	return &copy, nil
}

func (v *memoryView) GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error) {
	atomic.AddInt32(&v.s.LockCount, 1)
	if v.s.LockError != nil {
		return nil, v.s.LockError
	}
	return v.GetByID(ctx, id)
}

func (v *memoryView) ListByRoute(ctx context.Context, routeID, excludeID string) ([]*domain.Trip, error) {
	return v.listTrips(func(t *domain.Trip) bool { return t.RouteID == routeID && t.ID != excludeID }), nil
}

func (v *memoryView) ListByOperator(ctx context.Context, operatorID string) ([]*domain.Trip, error) {
	return v.listTrips(func(t *domain.Trip) bool { return t.OperatorID == operatorID }), nil
}

func (v *memoryView) listTrips(match func(t *domain.Trip) bool) []*domain.Trip {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var result []*domain.Trip
	for _, t := range v.s.trips {
		if match(t) {
			copy := *t
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DepartureAt.Before(result[j].DepartureAt) })
	return result
}

func (v *memoryView) GetByIDs(ctx context.Context, ids []string) ([]*domain.Reservation, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	result := make([]*domain.Reservation, 0, len(ids))
	for _, id := range ids {
		r, ok := v.reservation(id)
		if !ok {
			return nil, repository.ErrNotFound
		}
		copy := *r
		result = append(result, &copy)
	}
	return result, nil
}

func (v *memoryView) GetByIDsForUpdate(ctx context.Context, ids []string) ([]*domain.Reservation, error) {
	if v.s.LockError != nil {
		return nil, v.s.LockError
	}
	return v.GetByIDs(ctx, ids)
}

func (v *memoryView) ListByTrip(ctx context.Context, tripID string) ([]*domain.Reservation, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var result []*domain.Reservation
	for _, r := range v.allReservations() {
		if r.TripID == tripID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seat < result[j].Seat })
	return result, nil
}

func (v *memoryView) CountByTrip(ctx context.Context, tripID string) (int, error) {
	list, err := v.ListByTrip(ctx, tripID)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

func (v *memoryView) OccupiedSeatsForUpdate(ctx context.Context, tripID string) ([]int, error) {
	if v.s.LockError != nil {
		return nil, v.s.LockError
	}
	list, err := v.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	seats := make([]int, 0, len(list))
	for _, r := range list {
		seats = append(seats, r.Seat)
	}
	return seats, nil
}

func (v *memoryView) SeatTaken(ctx context.Context, tripID string, seat int) (bool, error) {
	if v.pending != nil && v.s.SeatTakenOverride != nil {
		return v.s.SeatTakenOverride(tripID, seat), nil
	}
	list, err := v.ListByTrip(ctx, tripID)
	if err != nil {
		return false, err
	}
	for _, r := range list {
		if r.Seat == seat {
			return true, nil
		}
	}
	return false, nil
}

// Update enforces the unique (trip, seat) constraint of the reservations table.
func (v *memoryView) Update(ctx context.Context, reservation *domain.Reservation) error {
	atomic.AddInt32(&v.s.ReservationUpdateCount, 1)

	if v.pending == nil {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	} else {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
	}

	if _, ok := v.reservation(reservation.ID); !ok {
		return repository.ErrNotFound
	}
	for _, r := range v.allReservations() {
		if r.ID != reservation.ID && r.TripID == reservation.TripID && r.Seat == reservation.Seat {
			return fmt.Errorf("duplicate seat %d on trip %s", reservation.Seat, reservation.TripID)
		}
	}

	copy := *reservation
	if v.pending != nil {
		v.pending.reservations[copy.ID] = &copy
	} else {
		v.s.reservations[copy.ID] = &copy
	}
	return nil
}

// ──────────────────────────────────────────────
// MEMORY TRANSFER LOG REPOSITORY
// ──────────────────────────────────────────────

type memoryLogs struct {
	view *memoryView
}

func (m *memoryLogs) Create(ctx context.Context, entry *domain.TransferLog) error {
	copy := *entry
	if m.view.pending != nil {
		m.view.pending.logs = append(m.view.pending.logs, &copy)
		return nil
	}
	m.view.s.mu.Lock()
	defer m.view.s.mu.Unlock()
	m.view.s.logs = append(m.view.s.logs, &copy)
	return nil
}

func (m *memoryLogs) ListByTrip(ctx context.Context, tripID string, limit int) ([]*domain.TransferLog, error) {
	m.view.s.mu.RLock()
	defer m.view.s.mu.RUnlock()
	var result []*domain.TransferLog
	for i := len(m.view.s.logs) - 1; i >= 0 && len(result) < limit; i-- {
		entry := m.view.s.logs[i]
		if entry.OriginTripID == tripID || entry.DestinationTripID == tripID {
			copy := *entry
			result = append(result, &copy)
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────
// MEMORY NEGOTIATION REPOSITORY
// ──────────────────────────────────────────────

type memoryNegotiations struct {
	view *memoryView
}

func (m *memoryNegotiations) Create(ctx context.Context, n *domain.Negotiation) error {
	m.view.s.mu.Lock()
	defer m.view.s.mu.Unlock()
	m.view.s.negotiations[n.ID] = copyNegotiation(n)
	return nil
}

func (m *memoryNegotiations) get(id string) (*domain.Negotiation, bool) {
	if m.view.pending != nil {
		if n, ok := m.view.pending.negotiations[id]; ok {
			return n, true
		}
	}
	n, ok := m.view.s.negotiations[id]
	return n, ok
}

func (m *memoryNegotiations) GetByID(ctx context.Context, id string) (*domain.Negotiation, error) {
	m.view.s.mu.RLock()
	defer m.view.s.mu.RUnlock()
	n, ok := m.get(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyNegotiation(n), nil
}

func (m *memoryNegotiations) ListByDestinationOperator(ctx context.Context, operatorID string, state domain.NegotiationState) ([]*domain.Negotiation, error) {
	m.view.s.mu.RLock()
	defer m.view.s.mu.RUnlock()
	var result []*domain.Negotiation
	for _, n := range m.view.s.negotiations {
		trip, ok := m.view.s.trips[n.DestinationTripID]
		if ok && trip.OperatorID == operatorID && n.State == state {
			result = append(result, copyNegotiation(n))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *memoryNegotiations) Update(ctx context.Context, n *domain.Negotiation) error {
	if err := m.view.s.NegotiationUpdateError; err != nil {
		return err
	}

	if m.view.pending == nil {
		m.view.s.mu.Lock()
		defer m.view.s.mu.Unlock()
	} else {
		m.view.s.mu.RLock()
		defer m.view.s.mu.RUnlock()
	}

	stored, ok := m.get(n.ID)
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != n.Version {
		return repository.ErrStaleVersion
	}

	n.Version++
	if m.view.pending != nil {
		m.view.pending.negotiations[n.ID] = copyNegotiation(n)
	} else {
		m.view.s.negotiations[n.ID] = copyNegotiation(n)
	}
	return nil
}

func copyNegotiation(n *domain.Negotiation) *domain.Negotiation {
	copy := *n
	copy.ReservationIDs = append([]string(nil), n.ReservationIDs...)
	if n.FinalPrice != nil {
		price := *n.FinalPrice
		copy.FinalPrice = &price
	}
	return &copy
}

// Ensure MemoryStore implements the repository interfaces.
var (
	_ repository.TxManager             = (*MemoryStore)(nil)
	_ repository.TripRepository        = (*memoryView)(nil)
	_ repository.ReservationRepository = (*memoryView)(nil)
)

// ──────────────────────────────────────────────
// MOCK OCCUPANCY CACHE
// ──────────────────────────────────────────────

// MockOccupancyCache is a mock implementation of OccupancyCacheInterface.
type MockOccupancyCache struct {
	mu      sync.Mutex
	entries map[string]*redis.CachedOccupancy

	// Counters
	GetCallCount        int32
	SetCallCount        int32
	InvalidateCallCount int32

	// Error injection
	GetError error
}

// NewMockOccupancyCache creates a new mock occupancy cache.
func NewMockOccupancyCache() *MockOccupancyCache {
	return &MockOccupancyCache{entries: make(map[string]*redis.CachedOccupancy)}
}

func (m *MockOccupancyCache) GetOccupancy(ctx context.Context, tripID string) (*redis.CachedOccupancy, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	occ, ok := m.entries[tripID]
	if !ok {
		return nil, nil
	}
	copy := *occ
	return &copy, nil
}

func (m *MockOccupancyCache) SetOccupancy(ctx context.Context, occ *redis.CachedOccupancy) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *occ
	m.entries[occ.TripID] = &copy
	return nil
}

func (m *MockOccupancyCache) InvalidateTrips(ctx context.Context, tripIDs ...string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range tripIDs {
		delete(m.entries, id)
	}
	return nil
}

// Cached reports whether the trip has a cached occupancy (for test assertions).
func (m *MockOccupancyCache) Cached(tripID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[tripID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK NEGOTIATION LOCK
// ──────────────────────────────────────────────

// MockNegotiationLock is a mock implementation of NegotiationLockInterface.
type MockNegotiationLock struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceAcquireFailure bool
}

// NewMockNegotiationLock creates a new mock negotiation lock.
func NewMockNegotiationLock() *MockNegotiationLock {
	return &MockNegotiationLock{locks: make(map[string]time.Time)}
}

func (m *MockNegotiationLock) AcquireNegotiationLock(ctx context.Context, negotiationID string, ttl time.Duration) (string, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return "", m.AcquireError
	}
	if m.ForceAcquireFailure {
		return "", nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if expiry, exists := m.locks[negotiationID]; exists && time.Now().Before(expiry) {
		return "", nil // Lock still held.
	}
	m.locks[negotiationID] = time.Now().Add(ttl)
	return "token-" + negotiationID, nil
}

func (m *MockNegotiationLock) ReleaseNegotiationLock(ctx context.Context, negotiationID, token string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, negotiationID)
	return nil
}

// IsLocked checks if a negotiation is locked (for test assertions).
func (m *MockNegotiationLock) IsLocked(negotiationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, exists := m.locks[negotiationID]
	return exists && time.Now().Before(expiry)
}
