package tests

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fleetshift/internal/domain"
	"fleetshift/internal/redis"
	"fleetshift/internal/service"
)

var fixedNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

var (
	routeQuitoAmbato   = domain.Route{ID: "route-1", Origin: "Quito", Destination: "Ambato"}
	routeQuitoRiobamba = domain.Route{ID: "route-2", Origin: "Quito", Destination: "Riobamba"}
)

// newTrip builds a trip on route-1 departing hours after fixedNow.
func newTrip(id, operatorID string, capacity int, hours float64) *domain.Trip {
	return &domain.Trip{
		ID:          id,
		RouteID:     routeQuitoAmbato.ID,
		Route:       routeQuitoAmbato,
		VehicleID:   "vehicle-" + id,
		OperatorID:  operatorID,
		Capacity:    capacity,
		DepartureAt: fixedNow.Add(time.Duration(hours * float64(time.Hour))),
	}
}

// seedReservations fills seats 1..n of a trip and returns the reservation IDs.
func seedReservations(store *MemoryStore, tripID string, n int) []string {
	ids := make([]string, 0, n)
	for seat := 1; seat <= n; seat++ {
		id := fmt.Sprintf("%s-res-%02d", tripID, seat)
		store.AddReservation(&domain.Reservation{
			ID:            id,
			TripID:        tripID,
			PassengerName: fmt.Sprintf("Passenger %d", seat),
			DocumentID:    fmt.Sprintf("DOC%04d", seat),
			Seat:          seat,
		})
		ids = append(ids, id)
	}
	return ids
}

// transferFixture is a store with trips on one route:
//
//	trip-a  op-1  40 seats, 38 used
//	trip-b  op-1  40 seats, 10 used
//	trip-c  op-2  40 seats,  5 used
//	trip-d  op-1  40 seats, departed
type transferFixture struct {
	store   *MemoryStore
	cache   *MockOccupancyCache
	service *service.TransferService
	tripA   []string
	tripB   []string
	tripC   []string
}

func newTransferFixture() *transferFixture {
	store := NewMemoryStore()
	store.AddTrip(newTrip("trip-a", "op-1", 40, 1))
	store.AddTrip(newTrip("trip-b", "op-1", 40, 2))
	store.AddTrip(newTrip("trip-c", "op-2", 40, 3))
	store.AddTrip(newTrip("trip-d", "op-1", 40, -1))

	f := &transferFixture{
		store: store,
		cache: NewMockOccupancyCache(),
		tripA: seedReservations(store, "trip-a", 38),
		tripB: seedReservations(store, "trip-b", 10),
		tripC: seedReservations(store, "trip-c", 5),
	}
	f.service = newTransferService(store, f.cache)
	return f
}

// transfer runs the engine directly, without operator scoping. Negotiation
// acceptance reaches cross-operator moves the same way.
func (f *transferFixture) transfer(ids []string, destinationTripID string) (*service.TransferResult, error) {
	ctx := context.Background()
	reservations, err := f.store.ReservationRepo().GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	destination, err := f.store.TripRepo().GetByID(ctx, destinationTripID)
	if err != nil {
		return nil, err
	}
	return f.service.Transfer(ctx, service.TransferRequest{
		Reservations: reservations,
		Destination:  destination,
	})
}

func newTransferService(store *MemoryStore, cache redis.OccupancyCacheInterface) *service.TransferService {
	return newTransferServiceWithPolicy(store, cache, nil)
}

func newTransferServiceWithPolicy(store *MemoryStore, cache redis.OccupancyCacheInterface, policy domain.ThresholdPolicy) *service.TransferService {
	svc := service.NewTransferService(
		store,
		store.TripRepo(),
		store.ReservationRepo(),
		store.TransferLogRepo(),
		policy,
		cache,
		service.NewNotificationService(zap.NewNop()),
		zap.NewNop(),
	)
	svc.SetClock(fixedClock)
	return svc
}
