package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"fleetshift/internal/domain"
	"fleetshift/internal/repository"
	"fleetshift/internal/service"
)

// ──────────────────────────────────────────────
// 1. SUCCESSFUL TRANSFERS
// ──────────────────────────────────────────────

func TestTransfer_MovesReservationsAndRecordsLog(t *testing.T) {
	t.Parallel()

	f := newTransferFixture()
	actor := "user-7"

	result, err := f.service.TransferByIDs(context.Background(), "op-1", f.tripA[:10], "trip-b", &actor)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !result.OK {
		t.Fatalf("expected transfer to succeed, got: %s", result.Message)
	}
	if result.Message != "Transfer completed successfully." {
		t.Errorf("unexpected message: %q", result.Message)
	}

	entry := result.Log
	if entry == nil {
		t.Fatal("expected audit entry")
	}
	if entry.DestinationFreeBefore != 30 || entry.DestinationFreeAfter != 20 {
		t.Errorf("expected destination free 30 -> 20, got %d -> %d", entry.DestinationFreeBefore, entry.DestinationFreeAfter)
	}
	if entry.OriginFreeBefore != 2 || entry.OriginFreeAfter != 12 {
		t.Errorf("expected origin free 2 -> 12, got %d -> %d", entry.OriginFreeBefore, entry.OriginFreeAfter)
	}
	if entry.PassengerCount != 10 {
		t.Errorf("expected 10 passengers, got %d", entry.PassengerCount)
	}
	if entry.Outcome != domain.TransferOutcomeOK {
		t.Errorf("expected OK outcome, got %s", entry.Outcome)
	}
	if entry.ActorID == nil || *entry.ActorID != actor {
		t.Errorf("expected actor %s, got %v", actor, entry.ActorID)
	}

	if got := len(f.store.TripReservations("trip-a")); got != 28 {
		t.Errorf("expected 28 reservations left on trip-a, got %d", got)
	}
	if got := len(f.store.TripReservations("trip-b")); got != 20 {
		t.Errorf("expected 20 reservations on trip-b, got %d", got)
	}

	logs := f.store.TransferLogs()
	if len(logs) != 1 || logs[0].ID != entry.ID {
		t.Fatalf("expected exactly the returned entry to be committed, got %d entries", len(logs))
	}
	for i, id := range f.tripA[:10] {
		if logs[0].ReservationIDs[i] != id {
			t.Errorf("reservation order not preserved at %d: %s", i, logs[0].ReservationIDs[i])
		}
	}
}

func TestTransfer_AssignsLowestFreeSeats(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	store.AddTrip(newTrip("origin", "op-1", 10, 1))
	store.AddTrip(newTrip("dest", "op-1", 10, 2))
	ids := seedReservations(store, "origin", 3)

	// Destination has seats 1, 2 and 4 taken.
	for _, seat := range []int{1, 2, 4} {
		store.AddReservation(&domain.Reservation{
			ID:     fmt.Sprintf("dest-%d", seat),
			TripID: "dest",
			Seat:   seat,
		})
	}

	svc := newTransferService(store, nil)
	result, err := svc.TransferByIDs(context.Background(), "op-1", ids, "dest", nil)
	if err != nil || !result.OK {
		t.Fatalf("expected transfer to succeed, got result=%+v err=%v", result, err)
	}

	want := map[string]int{ids[0]: 3, ids[1]: 5, ids[2]: 6}
	for id, seat := range want {
		if got := store.Reservation(id).Seat; got != seat {
			t.Errorf("reservation %s: expected seat %d, got %d", id, seat, got)
		}
	}
	assertUniqueSeats(t, store, "dest", 10)
}

func TestTransfer_SetsFlags(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name           string
		destination    string
		wantRestricted bool
	}{
		{name: "same operator", destination: "trip-b", wantRestricted: false},
		{name: "different operator", destination: "trip-c", wantRestricted: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newTransferFixture()
			result, err := f.transfer(f.tripA[:2], tc.destination)
			if err != nil || !result.OK {
				t.Fatalf("expected transfer to succeed, got result=%+v err=%v", result, err)
			}

			for _, id := range f.tripA[:2] {
				r := f.store.Reservation(id)
				if r.TripID != tc.destination {
					t.Errorf("expected reservation on %s, got %s", tc.destination, r.TripID)
				}
				if !r.Transferred {
					t.Error("expected transferred flag to be set")
				}
				if r.Restricted != tc.wantRestricted {
					t.Errorf("expected restricted=%v, got %v", tc.wantRestricted, r.Restricted)
				}
			}
		})
	}
}

func TestTransfer_InvalidatesOccupancyCache(t *testing.T) {
	t.Parallel()

	f := newTransferFixture()
	occupancy := newOccupancyService(f.store, f.cache)

	for _, id := range []string{"trip-a", "trip-b"} {
		if _, err := occupancy.CalculateOccupancy(context.Background(), id); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !f.cache.Cached(id) {
			t.Fatalf("expected %s to be cached", id)
		}
	}

	result, err := f.service.TransferByIDs(context.Background(), "op-1", f.tripA[:5], "trip-b", nil)
	if err != nil || !result.OK {
		t.Fatalf("expected transfer to succeed, got result=%+v err=%v", result, err)
	}

	if f.cache.Cached("trip-a") || f.cache.Cached("trip-b") {
		t.Error("expected both trips to be evicted from cache")
	}

	got, err := occupancy.CalculateOccupancy(context.Background(), "trip-b")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if got.Occupancy.Used != 15 {
		t.Errorf("expected fresh count 15, got %d", got.Occupancy.Used)
	}
}

func TestTransfer_HistoryNewestFirst(t *testing.T) {
	t.Parallel()

	f := newTransferFixture()
	ctx := context.Background()

	first, _ := f.service.TransferByIDs(ctx, "op-1", f.tripA[:1], "trip-b", nil)
	second, _ := f.transfer(f.tripA[1:2], "trip-c")
	if !first.OK || !second.OK {
		t.Fatal("expected both transfers to succeed")
	}

	history, err := f.service.History(ctx, "trip-a", 0)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].ID != second.Log.ID || history[1].ID != first.Log.ID {
		t.Error("expected newest entry first")
	}

	history, _ = f.service.History(ctx, "trip-c", 0)
	if len(history) != 1 {
		t.Errorf("expected 1 entry for trip-c, got %d", len(history))
	}
}

// ──────────────────────────────────────────────
// 2. VALIDATION FAILURES
// ──────────────────────────────────────────────

func TestTransfer_ValidationFailures_WriteNothing(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		ids         func(f *transferFixture) []string
		destination string
		wantErr     error
		wantMessage string
	}{
		{
			name:        "empty list",
			ids:         func(f *transferFixture) []string { return nil },
			destination: "trip-b",
			wantErr:     service.ErrNothingToTransfer,
			wantMessage: "No reservations were sent for transfer.",
		},
		{
			name:        "insufficient capacity",
			ids:         func(f *transferFixture) []string { return f.tripA[:31] },
			destination: "trip-b",
			wantMessage: "Cannot transfer 31 passengers. Only 30 seats are free.",
		},
		{
			name:        "same trip",
			ids:         func(f *transferFixture) []string { return f.tripA[:2] },
			destination: "trip-a",
			wantErr:     service.ErrSameTrip,
		},
		{
			name:        "departed destination",
			ids:         func(f *transferFixture) []string { return f.tripA[:2] },
			destination: "trip-d",
			wantMessage: "Cannot transfer to a trip that already departed.",
		},
		{
			name: "mixed origins",
			ids: func(f *transferFixture) []string {
				return []string{f.tripA[0], f.tripC[0]}
			},
			destination: "trip-b",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newTransferFixture()
			result, err := f.service.TransferByIDs(context.Background(), "op-1", tc.ids(f), tc.destination, nil)
			if err != nil {
				t.Fatalf("expected rejection without error, got: %v", err)
			}
			if result.OK {
				t.Fatal("expected transfer to be rejected")
			}
			if !errors.Is(result.Reason, service.ErrValidation) {
				t.Errorf("expected validation error, got %v", result.Reason)
			}
			if tc.wantErr != nil && !errors.Is(result.Reason, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, result.Reason)
			}
			if tc.wantMessage != "" && result.Message != tc.wantMessage {
				t.Errorf("expected message %q, got %q", tc.wantMessage, result.Message)
			}

			if n := atomic.LoadInt32(&f.store.BeginCount); n != 0 {
				t.Errorf("expected no unit of work, got %d", n)
			}
			if n := atomic.LoadInt32(&f.store.LockCount); n != 0 {
				t.Errorf("expected no locks, got %d", n)
			}
			if n := atomic.LoadInt32(&f.store.ReservationUpdateCount); n != 0 {
				t.Errorf("expected no reservation updates, got %d", n)
			}
			if logs := f.store.TransferLogs(); len(logs) != 0 {
				t.Errorf("expected no audit entries, got %d", len(logs))
			}
			if got := len(f.store.TripReservations("trip-b")); got != 10 {
				t.Errorf("expected trip-b untouched, got %d reservations", got)
			}
		})
	}
}

func TestTransfer_AlreadyTransferred_ListsPassengers(t *testing.T) {
	t.Parallel()

	f := newTransferFixture()
	ctx := context.Background()

	if result, _ := f.service.TransferByIDs(ctx, "op-1", f.tripA[:2], "trip-b", nil); !result.OK {
		t.Fatal("expected first transfer to succeed")
	}

	result, err := f.transfer(f.tripA[:2], "trip-c")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.OK {
		t.Fatal("expected second transfer to be rejected")
	}

	var already *service.AlreadyTransferredError
	if !errors.As(result.Reason, &already) {
		t.Fatalf("expected AlreadyTransferredError, got %T", result.Reason)
	}
	want := "Cannot transfer. The following reservations were already transferred: Passenger 1 (Seat 11), Passenger 2 (Seat 12)"
	if result.Message != want {
		t.Errorf("expected message %q, got %q", want, result.Message)
	}
	if got := len(f.store.TripReservations("trip-c")); got != 5 {
		t.Errorf("expected trip-c untouched, got %d", got)
	}
}

func TestTransfer_UnknownIDs_ReturnNotFound(t *testing.T) {
	t.Parallel()

	f := newTransferFixture()

	_, err := f.service.TransferByIDs(context.Background(), "op-1", []string{"missing"}, "trip-b", nil)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound for reservation, got %v", err)
	}

	_, err = f.service.TransferByIDs(context.Background(), "op-1", f.tripA[:1], "missing", nil)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound for trip, got %v", err)
	}
}

func TestTransfer_StaleRequest_RejectedUnderLockAndLogged(t *testing.T) {
	t.Parallel()

	f := newTransferFixture()
	ctx := context.Background()

	stale, err := f.store.ReservationRepo().GetByIDs(ctx, f.tripA[:3])
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	destination, _ := f.store.TripRepo().GetByID(ctx, "trip-c")

	if result, _ := f.service.TransferByIDs(ctx, "op-1", f.tripA[:3], "trip-b", nil); !result.OK {
		t.Fatal("expected first transfer to succeed")
	}

	// The stale copies still claim trip-a, so only the locked re-read catches them.
	result, err := f.service.Transfer(ctx, service.TransferRequest{
		Reservations: stale,
		Destination:  destination,
	})
	if err != nil {
		t.Fatalf("expected rejection without error, got: %v", err)
	}
	if result.OK {
		t.Fatal("expected stale transfer to be rejected")
	}
	if result.Log == nil || result.Log.Outcome != domain.TransferOutcomeError {
		t.Fatalf("expected ERROR audit entry, got %+v", result.Log)
	}
	if result.Log.DestinationFreeBefore != result.Log.DestinationFreeAfter {
		t.Error("expected unchanged destination counters on failure")
	}

	for _, id := range f.tripA[:3] {
		if got := f.store.Reservation(id).TripID; got != "trip-b" {
			t.Errorf("expected %s to stay on trip-b, got %s", id, got)
		}
	}
	if got := len(f.store.TripReservations("trip-c")); got != 5 {
		t.Errorf("expected trip-c untouched, got %d", got)
	}
	if n := atomic.LoadInt32(&f.store.RollbackCount); n != 1 {
		t.Errorf("expected 1 rollback, got %d", n)
	}
}

// ──────────────────────────────────────────────
// 3. FATAL AND INFRASTRUCTURE ERRORS
// ──────────────────────────────────────────────

func TestTransfer_SeatTakenInsideUnit_RollsBack(t *testing.T) {
	t.Parallel()

	f := newTransferFixture()
	f.store.SeatTakenOverride = func(tripID string, seat int) bool { return seat == 12 }

	result, err := f.service.TransferByIDs(context.Background(), "op-1", f.tripA[:5], "trip-b", nil)
	if !errors.Is(err, service.ErrConsistencyViolation) {
		t.Fatalf("expected consistency violation, got result=%+v err=%v", result, err)
	}

	var consistency *service.ConsistencyError
	if !errors.As(err, &consistency) || consistency.DestinationTripID != "trip-b" {
		t.Errorf("expected ConsistencyError for trip-b, got %v", err)
	}

	for _, id := range f.tripA[:5] {
		r := f.store.Reservation(id)
		if r.TripID != "trip-a" || r.Transferred {
			t.Errorf("expected %s to be untouched, got trip=%s transferred=%v", id, r.TripID, r.Transferred)
		}
	}

	logs := f.store.TransferLogs()
	if len(logs) != 1 {
		t.Fatalf("expected exactly one audit entry, got %d", len(logs))
	}
	if logs[0].Outcome != domain.TransferOutcomeError {
		t.Errorf("expected ERROR outcome, got %s", logs[0].Outcome)
	}
	if logs[0].DestinationFreeBefore != 30 || logs[0].DestinationFreeAfter != 30 {
		t.Errorf("expected destination free 30 -> 30, got %d -> %d", logs[0].DestinationFreeBefore, logs[0].DestinationFreeAfter)
	}
	if n := atomic.LoadInt32(&f.store.CommitCount); n != 0 {
		t.Errorf("expected no commit, got %d", n)
	}
}

func TestTransfer_LockTimeout_IsRetryable(t *testing.T) {
	t.Parallel()

	f := newTransferFixture()
	f.store.LockError = repository.ErrLockTimeout

	_, err := f.service.TransferByIDs(context.Background(), "op-1", f.tripA[:2], "trip-b", nil)
	if !errors.Is(err, repository.ErrLockTimeout) {
		t.Fatalf("expected lock timeout, got %v", err)
	}
	if logs := f.store.TransferLogs(); len(logs) != 0 {
		t.Errorf("expected no audit entry, got %d", len(logs))
	}
	if n := atomic.LoadInt32(&f.store.RollbackCount); n != 1 {
		t.Errorf("expected 1 rollback, got %d", n)
	}
}

func TestTransfer_CommitFailure_LeavesStateUntouched(t *testing.T) {
	t.Parallel()

	f := newTransferFixture()
	f.store.CommitError = errors.New("connection reset")

	_, err := f.service.TransferByIDs(context.Background(), "op-1", f.tripA[:2], "trip-b", nil)
	if err == nil {
		t.Fatal("expected commit error")
	}
	if got := len(f.store.TripReservations("trip-b")); got != 10 {
		t.Errorf("expected trip-b untouched, got %d", got)
	}
	if logs := f.store.TransferLogs(); len(logs) != 0 {
		t.Errorf("expected no audit entry, got %d", len(logs))
	}
}

// ──────────────────────────────────────────────
// 4. CONCURRENCY
// ──────────────────────────────────────────────

func TestTransfer_ConcurrentSameReservations_OnlyOneSucceeds(t *testing.T) {
	t.Parallel()

	f := newTransferFixture()
	ids := f.tripA[:5]
	destinations := []string{"trip-b", "trip-c", "trip-b", "trip-c", "trip-b", "trip-c"}

	var wg sync.WaitGroup
	var succeeded int32
	errs := make(chan error, len(destinations))

	for _, dest := range destinations {
		wg.Add(1)
		go func(dest string) {
			defer wg.Done()
			result, err := f.transfer(ids, dest)
			if err != nil {
				errs <- err
				return
			}
			if result.OK {
				atomic.AddInt32(&succeeded, 1)
			}
		}(dest)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly 1 successful transfer, got %d", succeeded)
	}

	dest := f.store.Reservation(ids[0]).TripID
	for _, id := range ids {
		if got := f.store.Reservation(id).TripID; got != dest {
			t.Errorf("expected all reservations on %s, %s is on %s", dest, id, got)
		}
	}
	assertUniqueSeats(t, f.store, "trip-b", 40)
	assertUniqueSeats(t, f.store, "trip-c", 40)

	ok := 0
	for _, entry := range f.store.TransferLogs() {
		if entry.Outcome == domain.TransferOutcomeOK {
			ok++
		}
	}
	if ok != 1 {
		t.Errorf("expected 1 OK audit entry, got %d", ok)
	}
}

func TestTransfer_ConcurrentGroups_NeverOverbook(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	store.AddTrip(newTrip("dest", "op-1", 40, 2))
	seedReservations(store, "dest", 10)

	// Five origins each send 8 passengers; only 30 seats are free.
	groups := make([][]string, 0, 5)
	for i := 0; i < 5; i++ {
		origin := fmt.Sprintf("origin-%d", i)
		store.AddTrip(newTrip(origin, "op-1", 40, 1))
		groups = append(groups, seedReservations(store, origin, 8))
	}

	svc := newTransferService(store, nil)

	var wg sync.WaitGroup
	var succeeded int32
	for _, ids := range groups {
		wg.Add(1)
		go func(ids []string) {
			defer wg.Done()
			result, err := svc.TransferByIDs(context.Background(), "op-1", ids, "dest", nil)
			if err == nil && result.OK {
				atomic.AddInt32(&succeeded, 1)
			}
		}(ids)
	}
	wg.Wait()

	if succeeded != 3 {
		t.Errorf("expected 3 successful transfers, got %d", succeeded)
	}
	if got := len(store.TripReservations("dest")); got != 34 {
		t.Errorf("expected 34 reservations on dest, got %d", got)
	}
	assertUniqueSeats(t, store, "dest", 40)
}

func TestTransfer_DuplicateIDs_Rejected(t *testing.T) {
	t.Parallel()

	f := newTransferFixture()
	id := f.tripA[0]

	result, err := f.service.TransferByIDs(context.Background(), "op-1", []string{id, f.tripA[1], id, id}, "trip-b", nil)
	if err != nil {
		t.Fatalf("expected rejection without error, got: %v", err)
	}
	if result.OK {
		t.Fatal("expected transfer to be rejected")
	}

	var duplicate *service.DuplicateReservationError
	if !errors.As(result.Reason, &duplicate) {
		t.Fatalf("expected DuplicateReservationError, got %T", result.Reason)
	}
	if len(duplicate.ReservationIDs) != 1 || duplicate.ReservationIDs[0] != id {
		t.Errorf("expected [%s], got %v", id, duplicate.ReservationIDs)
	}
	if !errors.Is(result.Reason, service.ErrValidation) {
		t.Error("expected a validation error")
	}

	if n := atomic.LoadInt32(&f.store.BeginCount); n != 0 {
		t.Errorf("expected no unit of work, got %d", n)
	}
	if got := f.store.Reservation(id); got.TripID != "trip-a" || got.Seat != 1 {
		t.Errorf("expected %s untouched, got trip=%s seat=%d", id, got.TripID, got.Seat)
	}
	if got := len(f.store.TripReservations("trip-b")); got != 10 {
		t.Errorf("expected trip-b untouched, got %d", got)
	}
	if logs := f.store.TransferLogs(); len(logs) != 0 {
		t.Errorf("expected no audit entries, got %d", len(logs))
	}
}

func TestTransfer_DuplicateReservations_RejectedByEngine(t *testing.T) {
	t.Parallel()

	f := newTransferFixture()
	ctx := context.Background()

	reservation, _ := f.store.ReservationRepo().GetByIDs(ctx, f.tripA[:1])
	destination, _ := f.store.TripRepo().GetByID(ctx, "trip-b")

	result, err := f.service.Transfer(ctx, service.TransferRequest{
		Reservations: []*domain.Reservation{reservation[0], reservation[0]},
		Destination:  destination,
	})
	if err != nil {
		t.Fatalf("expected rejection without error, got: %v", err)
	}
	var duplicate *service.DuplicateReservationError
	if result.OK || !errors.As(result.Reason, &duplicate) {
		t.Fatalf("expected DuplicateReservationError, got result=%+v", result)
	}
	if got := len(f.store.TripReservations("trip-b")); got != 10 {
		t.Errorf("expected trip-b untouched, got %d", got)
	}
}

// ──────────────────────────────────────────────
// 5. OPERATOR SCOPE
// ──────────────────────────────────────────────

func TestTransfer_OperatorScope(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		operatorID  string
		destination string
		wantErr     error
	}{
		{name: "missing operator", operatorID: "", destination: "trip-b", wantErr: service.ErrInvalidOperatorID},
		{name: "foreign origin", operatorID: "op-2", destination: "trip-b", wantErr: service.ErrNotTripOwner},
		{name: "foreign origin to own trip", operatorID: "op-2", destination: "trip-c", wantErr: service.ErrNotTripOwner},
		{name: "cross operator", operatorID: "op-1", destination: "trip-c", wantErr: service.ErrCrossOperatorTransfer},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newTransferFixture()
			result, err := f.service.TransferByIDs(context.Background(), tc.operatorID, f.tripA[:2], tc.destination, nil)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got result=%+v err=%v", tc.wantErr, result, err)
			}

			for _, id := range f.tripA[:2] {
				if r := f.store.Reservation(id); r.TripID != "trip-a" || r.Restricted {
					t.Errorf("expected %s untouched, got trip=%s restricted=%v", id, r.TripID, r.Restricted)
				}
			}
			if n := atomic.LoadInt32(&f.store.BeginCount); n != 0 {
				t.Errorf("expected no unit of work, got %d", n)
			}
			if logs := f.store.TransferLogs(); len(logs) != 0 {
				t.Errorf("expected no audit entries, got %d", len(logs))
			}
		})
	}
}

// ──────────────────────────────────────────────
// 6. WHOLE-TRIP TRANSFER
// ──────────────────────────────────────────────

func TestTransferTrip_FlaggedOriginMovesEveryone(t *testing.T) {
	t.Parallel()

	f := newTransferFixture()
	f.store.AddTrip(newTrip("trip-e", "op-1", 40, 4))

	// trip-b: 10/40 = 25%, below the default 30% floor.
	result, err := f.service.TransferTrip(context.Background(), "op-1", "trip-b", "trip-e", nil)
	if err != nil || !result.OK {
		t.Fatalf("expected transfer to succeed, got result=%+v err=%v", result, err)
	}

	if got := len(f.store.TripReservations("trip-b")); got != 0 {
		t.Errorf("expected trip-b to be empty, got %d", got)
	}
	moved := f.store.TripReservations("trip-e")
	if len(moved) != 10 {
		t.Fatalf("expected 10 reservations on trip-e, got %d", len(moved))
	}
	for i, r := range moved {
		if r.ID != f.tripB[i] || r.Seat != i+1 {
			t.Errorf("expected %s on seat %d, got %s on seat %d", f.tripB[i], i+1, r.ID, r.Seat)
		}
	}
	if result.Log.PassengerCount != 10 || result.Log.OriginFreeAfter != 40 {
		t.Errorf("unexpected audit entry: %+v", result.Log)
	}
}

func TestTransferTrip_UnflaggedOriginRejected(t *testing.T) {
	t.Parallel()

	f := newTransferFixture()
	f.store.AddTrip(newTrip("trip-e", "op-1", 40, 4))

	// trip-a: 38/40 = 95%.
	result, err := f.service.TransferTrip(context.Background(), "op-1", "trip-a", "trip-e", nil)
	if err != nil {
		t.Fatalf("expected rejection without error, got: %v", err)
	}
	if result.OK {
		t.Fatal("expected transfer to be rejected")
	}

	var notMet *service.ThresholdNotMetError
	if !errors.As(result.Reason, &notMet) {
		t.Fatalf("expected ThresholdNotMetError, got %T", result.Reason)
	}
	if notMet.Percent != 95 {
		t.Errorf("expected 95%%, got %.2f", notMet.Percent)
	}
	want := "Trip occupancy 95.00% does not meet the transfer threshold (below 30.00%)."
	if result.Message != want {
		t.Errorf("expected message %q, got %q", want, result.Message)
	}
	if n := atomic.LoadInt32(&f.store.BeginCount); n != 0 {
		t.Errorf("expected no unit of work, got %d", n)
	}
	if got := len(f.store.TripReservations("trip-a")); got != 38 {
		t.Errorf("expected trip-a untouched, got %d", got)
	}
}

func TestTransferTrip_PolicyIsSwappable(t *testing.T) {
	t.Parallel()

	f := newTransferFixture()
	f.store.AddTrip(newTrip("trip-e", "op-1", 40, 4))
	svc := newTransferServiceWithPolicy(f.store, nil, domain.Range{Min: 90, Max: 100})
	ctx := context.Background()

	result, err := svc.TransferTrip(ctx, "op-1", "trip-b", "trip-e", nil)
	if err != nil || result.OK {
		t.Fatalf("expected trip-b at 25%% to be rejected, got result=%+v err=%v", result, err)
	}

	result, err = svc.TransferTrip(ctx, "op-1", "trip-a", "trip-e", nil)
	if err != nil || !result.OK {
		t.Fatalf("expected trip-a at 95%% to move, got result=%+v err=%v", result, err)
	}
	if got := len(f.store.TripReservations("trip-e")); got != 38 {
		t.Errorf("expected 38 reservations on trip-e, got %d", got)
	}
	assertUniqueSeats(t, f.store, "trip-e", 40)
}

func TestTransferTrip_OperatorScope(t *testing.T) {
	t.Parallel()

	f := newTransferFixture()
	ctx := context.Background()

	if _, err := f.service.TransferTrip(ctx, "op-1", "trip-b", "trip-c", nil); !errors.Is(err, service.ErrCrossOperatorTransfer) {
		t.Errorf("expected ErrCrossOperatorTransfer, got %v", err)
	}
	if _, err := f.service.TransferTrip(ctx, "op-2", "trip-b", "trip-c", nil); !errors.Is(err, service.ErrNotTripOwner) {
		t.Errorf("expected ErrNotTripOwner, got %v", err)
	}
	if _, err := f.service.TransferTrip(ctx, "op-1", "trip-b", "missing", nil); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if got := len(f.store.TripReservations("trip-b")); got != 10 {
		t.Errorf("expected trip-b untouched, got %d", got)
	}
}

// assertUniqueSeats checks the seat invariants of a trip.
func assertUniqueSeats(t *testing.T, store *MemoryStore, tripID string, capacity int) {
	t.Helper()

	reservations := store.TripReservations(tripID)
	if len(reservations) > capacity {
		t.Errorf("trip %s over capacity: %d > %d", tripID, len(reservations), capacity)
	}
	seen := make(map[int]string)
	for _, r := range reservations {
		if r.Seat < 1 || r.Seat > capacity {
			t.Errorf("trip %s: seat %d out of range", tripID, r.Seat)
		}
		if other, dup := seen[r.Seat]; dup {
			t.Errorf("trip %s: seat %d held by %s and %s", tripID, r.Seat, other, r.ID)
		}
		seen[r.Seat] = r.ID
	}
}
