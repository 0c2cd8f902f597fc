package joinrequests

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/danielvega/gatherz-backend/internal/events"
	"github.com/danielvega/gatherz-backend/internal/participation"
	"github.com/danielvega/gatherz-backend/pkg/db/models"
	"github.com/danielvega/gatherz-backend/pkg/enums"
	pkgerrors "github.com/danielvega/gatherz-backend/pkg/errors"
	"github.com/danielvega/gatherz-backend/pkg/logger"
	"github.com/danielvega/gatherz-backend/pkg/pagination"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type memRequestRepo struct {
	requests map[uuid.UUID]*models.JoinRequest
	// versionMisses forces that many UpdateStatusVersioned calls to report a
	// lost race before behaving normally.
	versionMisses int
}

func newMemRequestRepo() *memRequestRepo {
	return &memRequestRepo{requests: map[uuid.UUID]*models.JoinRequest{}}
}

func (m *memRequestRepo) WithTx(tx *gorm.DB) Repository { return m }

func (m *memRequestRepo) Create(ctx context.Context, request *models.JoinRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	m.requests[request.ID] = request
	return nil
}

func (m *memRequestRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.JoinRequest, error) {
	request := m.requests[id]
	if request == nil {
		return nil, nil
	}
	clone := *request
	return &clone, nil
}

func (m *memRequestRepo) FindByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*models.JoinRequest, error) {
	for _, request := range m.requests {
		if request.EventID == eventID && request.UserID == userID {
			clone := *request
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memRequestRepo) ListByEvent(ctx context.Context, params ListByEventParams) ([]models.JoinRequest, *pagination.Cursor, error) {
	var out []models.JoinRequest
	for _, request := range m.requests {
		if request.EventID == params.EventID {
			out = append(out, *request)
		}
	}
	return out, nil, nil
}

func (m *memRequestRepo) ListByUser(ctx context.Context, params ListByUserParams) ([]models.JoinRequest, *pagination.Cursor, error) {
	var out []models.JoinRequest
	for _, request := range m.requests {
		if request.UserID == params.UserID {
			out = append(out, *request)
		}
	}
	return out, nil, nil
}

func (m *memRequestRepo) ListByEventAndStatuses(ctx context.Context, eventID uuid.UUID, statuses []enums.JoinRequestStatus) ([]models.JoinRequest, error) {
	var out []models.JoinRequest
	for _, request := range m.requests {
		if request.EventID != eventID {
			continue
		}
		for _, status := range statuses {
			if request.Status == status {
				out = append(out, *request)
				break
			}
		}
	}
	return out, nil
}

func (m *memRequestRepo) CountActive(ctx context.Context, eventID uuid.UUID) (int64, error) {
	var count int64
	for _, request := range m.requests {
		if request.EventID == eventID && !request.Status.IsFinal() {
			count++
		}
	}
	return count, nil
}

func (m *memRequestRepo) UpdateStatusVersioned(ctx context.Context, id uuid.UUID, version int, update StatusUpdate) (bool, error) {
	if m.versionMisses > 0 {
		m.versionMisses--
		return false, nil
	}
	request := m.requests[id]
	if request == nil || request.Version != version {
		return false, nil
	}
	request.Status = update.Status
	request.Version++
	if update.AttendancePercentage != nil {
		request.AttendancePercentage = update.AttendancePercentage
	}
	if update.Reason != nil {
		request.Reason = update.Reason
	}
	return true, nil
}

func (m *memRequestRepo) Reactivate(ctx context.Context, id uuid.UUID, version int, status enums.JoinRequestStatus, reservationID *uuid.UUID) (bool, error) {
	request := m.requests[id]
	if request == nil || request.Version != version || request.Status != enums.JoinRequestStatusCanceled {
		return false, nil
	}
	request.Status = status
	request.PaymentReservationID = reservationID
	request.AttendancePercentage = nil
	request.Reason = nil
	request.Version++
	return true, nil
}

type memEventsRepo struct {
	events map[uuid.UUID]*models.Event
	// lockedReads counts FindByIDForUpdate calls so tests can assert the
	// write paths take the event row lock.
	lockedReads int
}

func newMemEventsRepo() *memEventsRepo {
	return &memEventsRepo{events: map[uuid.UUID]*models.Event{}}
}

func (m *memEventsRepo) WithTx(tx *gorm.DB) events.Repository { return m }

func (m *memEventsRepo) Create(ctx context.Context, event *models.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	m.events[event.ID] = event
	return nil
}

func (m *memEventsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return m.events[id], nil
}

func (m *memEventsRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	m.lockedReads++
	return m.events[id], nil
}

func (m *memEventsRepo) List(ctx context.Context, params events.ListEventsParams) ([]models.Event, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (m *memEventsRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.EventStatus) (bool, error) {
	event := m.events[id]
	if event == nil || event.Status != from {
		return false, nil
	}
	event.Status = to
	return true, nil
}

func (m *memEventsRepo) MarkFinished(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	event := m.events[id]
	if event == nil || event.Status != enums.EventStatusApproved {
		return false, nil
	}
	event.Status = enums.EventStatusFinished
	event.FinishedAt = &now
	return true, nil
}

func (m *memEventsRepo) ExpireEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// fakeLedger tracks reservation state by id without a real wallet.
type fakeLedger struct {
	balanceCents int64
	reservations map[uuid.UUID]enums.TransactionStatus
	amounts      map[uuid.UUID]int64
	releases     int
	captures     int
}

func newFakeLedger(balanceCents int64) *fakeLedger {
	return &fakeLedger{
		balanceCents: balanceCents,
		reservations: map[uuid.UUID]enums.TransactionStatus{},
		amounts:      map[uuid.UUID]int64{},
	}
}

func (f *fakeLedger) Reserve(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amountCents int64, refID string) (*models.WalletTransaction, error) {
	if f.balanceCents < amountCents {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "wallet balance too low")
	}
	f.balanceCents -= amountCents
	txn := &models.WalletTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        enums.TransactionTypePayment,
		Direction:   enums.TransactionDirectionOut,
		AmountCents: amountCents,
		Status:      enums.TransactionStatusPending,
		RefID:       refID,
	}
	f.reservations[txn.ID] = enums.TransactionStatusPending
	f.amounts[txn.ID] = amountCents
	return txn, nil
}

func (f *fakeLedger) Reservation(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) (*models.WalletTransaction, error) {
	status, ok := f.reservations[reservationID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return &models.WalletTransaction{
		ID:          reservationID,
		Status:      status,
		AmountCents: f.amounts[reservationID],
	}, nil
}

func (f *fakeLedger) Release(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) (*models.WalletTransaction, error) {
	status, ok := f.reservations[reservationID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	if status == enums.TransactionStatusPending {
		f.balanceCents += f.amounts[reservationID]
		f.reservations[reservationID] = enums.TransactionStatusRefunded
	}
	f.releases++
	return &models.WalletTransaction{ID: reservationID, Status: f.reservations[reservationID]}, nil
}

func (f *fakeLedger) Capture(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) (*models.WalletTransaction, error) {
	status, ok := f.reservations[reservationID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	if status == enums.TransactionStatusRefunded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "reservation was already released")
	}
	f.reservations[reservationID] = enums.TransactionStatusCompleted
	f.captures++
	return &models.WalletTransaction{ID: reservationID, Status: enums.TransactionStatusCompleted}, nil
}

func (f *fakeLedger) Credit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amountCents int64, txnType enums.TransactionType, refID string, reason *string) (*models.WalletTransaction, error) {
	f.balanceCents += amountCents
	return &models.WalletTransaction{ID: uuid.New(), UserID: userID, AmountCents: amountCents}, nil
}

type fixture struct {
	svc        Service
	repo       *memRequestRepo
	eventsRepo *memEventsRepo
	ledger     *fakeLedger
}

func newFixture(t *testing.T, balanceCents int64) *fixture {
	t.Helper()
	repo := newMemRequestRepo()
	eventsRepo := newMemEventsRepo()
	ledger := newFakeLedger(balanceCents)
	svc, err := NewService(ServiceParams{
		Tx:                   fakeTxRunner{},
		Repo:                 repo,
		EventsRepo:           eventsRepo,
		Ledger:               ledger,
		Logger:               logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		MaxTransitionRetries: 3,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return &fixture{svc: svc, repo: repo, eventsRepo: eventsRepo, ledger: ledger}
}

func (f *fixture) addEvent(t *testing.T, participationType enums.ParticipationType, priceCents int64) *models.Event {
	t.Helper()
	event := &models.Event{
		ID:                uuid.New(),
		OwnerID:           uuid.New(),
		Title:             "test event",
		ParticipationType: participationType,
		InviteMode:        enums.InviteModeApproval,
		PriceCents:        priceCents,
		Status:            enums.EventStatusApproved,
		StartsAt:          time.Now().Add(time.Hour),
		EndsAt:            time.Now().Add(2 * time.Hour),
	}
	if err := f.eventsRepo.Create(context.Background(), event); err != nil {
		t.Fatalf("create event: %v", err)
	}
	return event
}

func TestApprovalLifecycle(t *testing.T) {
	f := newFixture(t, 0)
	event := f.addEvent(t, enums.ParticipationTypeApprovalRequired, 0)
	participantID := uuid.New()
	participant := participation.Actor{UserID: participantID}
	owner := participation.Actor{UserID: event.OwnerID}
	ctx := context.Background()

	request, err := f.svc.Create(ctx, participant, CreateInput{EventID: event.ID})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if request.Status != enums.JoinRequestStatusPending {
		t.Fatalf("expected pending, got %s", request.Status)
	}

	request, err = f.svc.Transition(ctx, owner, request.ID, TransitionInput{Target: enums.JoinRequestStatusApproved})
	if err != nil {
		t.Fatalf("approve error: %v", err)
	}
	if request.Status != enums.JoinRequestStatusApproved {
		t.Fatalf("expected approved, got %s", request.Status)
	}

	pct := 90
	request, err = f.svc.Transition(ctx, owner, request.ID, TransitionInput{
		Target:               enums.JoinRequestStatusAttended,
		AttendancePercentage: &pct,
	})
	if err != nil {
		t.Fatalf("attend error: %v", err)
	}
	if request.AttendancePercentage == nil || *request.AttendancePercentage != 90 {
		t.Fatalf("attendance percentage not stored: %+v", request)
	}
	if !request.Status.IsFinal() {
		t.Fatalf("expected final status, got %s", request.Status)
	}

	// Attended is terminal; the owner cannot promote it further.
	_, err = f.svc.Transition(ctx, owner, request.ID, TransitionInput{Target: enums.JoinRequestStatusCompleted})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT for attended -> completed, got %v", err)
	}
}

func TestOpenEventAutoApproves(t *testing.T) {
	f := newFixture(t, 0)
	event := f.addEvent(t, enums.ParticipationTypeOpen, 0)

	request, err := f.svc.Create(context.Background(), participation.Actor{UserID: uuid.New()}, CreateInput{EventID: event.ID})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if request.Status != enums.JoinRequestStatusApproved {
		t.Fatalf("open events auto-approve, got %s", request.Status)
	}
}

func TestTicketedReservesCapturesAndReleases(t *testing.T) {
	f := newFixture(t, 5000)
	event := f.addEvent(t, enums.ParticipationTypeTicketed, 2000)
	participant := participation.Actor{UserID: uuid.New()}
	owner := participation.Actor{UserID: event.OwnerID}
	ctx := context.Background()

	request, err := f.svc.Create(ctx, participant, CreateInput{EventID: event.ID})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if request.Status != enums.JoinRequestStatusPaymentReserved {
		t.Fatalf("expected payment_reserved, got %s", request.Status)
	}
	if request.PaymentReservationID == nil {
		t.Fatal("reservation id not stored on the request")
	}
	if f.ledger.balanceCents != 3000 {
		t.Fatalf("funds not reserved, balance %d", f.ledger.balanceCents)
	}

	if _, err := f.svc.Transition(ctx, owner, request.ID, TransitionInput{Target: enums.JoinRequestStatusPaid}); err != nil {
		t.Fatalf("paid error: %v", err)
	}
	if f.ledger.captures != 1 {
		t.Fatalf("expected one capture, got %d", f.ledger.captures)
	}

	// A later rejection releases nothing extra since funds were captured; the
	// ledger decides compensation, the state machine just calls release.
	if _, err := f.svc.Transition(ctx, owner, request.ID, TransitionInput{Target: enums.JoinRequestStatusRejected}); err != nil {
		t.Fatalf("reject error: %v", err)
	}
	if f.ledger.releases != 1 {
		t.Fatalf("expected one release call, got %d", f.ledger.releases)
	}
}

func TestTicketedCancelBeforePaymentReleasesFunds(t *testing.T) {
	f := newFixture(t, 2000)
	event := f.addEvent(t, enums.ParticipationTypeTicketed, 2000)
	participant := participation.Actor{UserID: uuid.New()}
	ctx := context.Background()

	request, err := f.svc.Create(ctx, participant, CreateInput{EventID: event.ID})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if f.ledger.balanceCents != 0 {
		t.Fatalf("funds not reserved, balance %d", f.ledger.balanceCents)
	}

	request, err = f.svc.Cancel(ctx, participant, request.ID, nil)
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if request.Status != enums.JoinRequestStatusCanceled {
		t.Fatalf("expected canceled, got %s", request.Status)
	}
	if f.ledger.balanceCents != 2000 {
		t.Fatalf("funds not released, balance %d", f.ledger.balanceCents)
	}
}

func TestTicketedInsufficientFundsAbortsCreate(t *testing.T) {
	f := newFixture(t, 500)
	event := f.addEvent(t, enums.ParticipationTypeTicketed, 2000)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, participation.Actor{UserID: uuid.New()}, CreateInput{EventID: event.ID})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("expected INSUFFICIENT_FUNDS, got %v", err)
	}
	if len(f.repo.requests) != 0 {
		t.Fatal("failed create must not leave a join request behind")
	}
}

func TestCreateGuards(t *testing.T) {
	f := newFixture(t, 0)
	event := f.addEvent(t, enums.ParticipationTypeOpen, 0)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, participation.Actor{UserID: event.OwnerID}, CreateInput{EventID: event.ID}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for owner self-join, got %v", err)
	}

	if _, err := f.svc.Create(ctx, participation.Actor{UserID: uuid.New()}, CreateInput{EventID: uuid.New()}); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for missing event, got %v", err)
	}

	draft := f.addEvent(t, enums.ParticipationTypeOpen, 0)
	draft.Status = enums.EventStatusDraft
	if _, err := f.svc.Create(ctx, participation.Actor{UserID: uuid.New()}, CreateInput{EventID: draft.ID}); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT for draft event, got %v", err)
	}

	participant := participation.Actor{UserID: uuid.New()}
	if _, err := f.svc.Create(ctx, participant, CreateInput{EventID: event.ID}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := f.svc.Create(ctx, participant, CreateInput{EventID: event.ID}); !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT for duplicate join, got %v", err)
	}
}

func TestRejoinAfterCancelReactivatesRequest(t *testing.T) {
	f := newFixture(t, 4000)
	event := f.addEvent(t, enums.ParticipationTypeTicketed, 2000)
	participant := participation.Actor{UserID: uuid.New()}
	ctx := context.Background()

	first, err := f.svc.Create(ctx, participant, CreateInput{EventID: event.ID})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	firstReservation := *first.PaymentReservationID
	reason := "changed my mind"
	if _, err := f.svc.Cancel(ctx, participant, first.ID, &reason); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if f.ledger.balanceCents != 4000 {
		t.Fatalf("cancel must release the hold, balance %d", f.ledger.balanceCents)
	}

	again, err := f.svc.Create(ctx, participant, CreateInput{EventID: event.ID})
	if err != nil {
		t.Fatalf("re-join after cancel error: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("re-join must revive the same row, got %s and %s", first.ID, again.ID)
	}
	if again.Status != enums.JoinRequestStatusPaymentReserved {
		t.Fatalf("expected payment_reserved after re-join, got %s", again.Status)
	}
	if again.PaymentReservationID == nil || *again.PaymentReservationID == firstReservation {
		t.Fatalf("re-join must take a fresh reservation: %+v", again.PaymentReservationID)
	}
	if again.Reason != nil || again.AttendancePercentage != nil {
		t.Fatalf("re-join must clear the previous run: %+v", again)
	}
	if f.ledger.balanceCents != 2000 {
		t.Fatalf("re-join must reserve funds again, balance %d", f.ledger.balanceCents)
	}

	// Only canceled rows revive; an active one still conflicts.
	if _, err := f.svc.Create(ctx, participant, CreateInput{EventID: event.ID}); !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT for active request, got %v", err)
	}
}

func TestCreateLocksEventRow(t *testing.T) {
	f := newFixture(t, 0)
	event := f.addEvent(t, enums.ParticipationTypeOpen, 0)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, participation.Actor{UserID: uuid.New()}, CreateInput{EventID: event.ID}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if f.eventsRepo.lockedReads != 1 {
		t.Fatalf("create must read the event under a row lock, got %d locked reads", f.eventsRepo.lockedReads)
	}
}

func TestCapacityCountsOnlyActiveRequests(t *testing.T) {
	f := newFixture(t, 0)
	event := f.addEvent(t, enums.ParticipationTypeOpen, 0)
	capacity := 1
	event.Capacity = &capacity
	ctx := context.Background()

	first := participation.Actor{UserID: uuid.New()}
	request, err := f.svc.Create(ctx, first, CreateInput{EventID: event.ID})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := f.svc.Create(ctx, participation.Actor{UserID: uuid.New()}, CreateInput{EventID: event.ID}); !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT at capacity, got %v", err)
	}

	// A canceled request frees the seat.
	if _, err := f.svc.Cancel(ctx, first, request.ID, nil); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if _, err := f.svc.Create(ctx, participation.Actor{UserID: uuid.New()}, CreateInput{EventID: event.ID}); err != nil {
		t.Fatalf("expected free seat after cancel, got %v", err)
	}
}

func TestTransitionAuthorization(t *testing.T) {
	f := newFixture(t, 0)
	event := f.addEvent(t, enums.ParticipationTypeApprovalRequired, 0)
	participant := participation.Actor{UserID: uuid.New()}
	ctx := context.Background()

	request, err := f.svc.Create(ctx, participant, CreateInput{EventID: event.ID})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	// A stranger cannot act at all.
	if _, err := f.svc.Transition(ctx, participation.Actor{UserID: uuid.New()}, request.ID, TransitionInput{Target: enums.JoinRequestStatusApproved}); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED for stranger, got %v", err)
	}

	// The participant cannot approve their own request.
	if _, err := f.svc.Transition(ctx, participant, request.ID, TransitionInput{Target: enums.JoinRequestStatusApproved}); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED for self-approval, got %v", err)
	}
}

func TestTransitionIllegalMove(t *testing.T) {
	f := newFixture(t, 0)
	event := f.addEvent(t, enums.ParticipationTypeApprovalRequired, 0)
	owner := participation.Actor{UserID: event.OwnerID}
	ctx := context.Background()

	request, err := f.svc.Create(ctx, participation.Actor{UserID: uuid.New()}, CreateInput{EventID: event.ID})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, err = f.svc.Transition(ctx, owner, request.ID, TransitionInput{Target: enums.JoinRequestStatusCompleted})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT for pending -> completed, got %v", err)
	}
}

func TestTransitionIdempotent(t *testing.T) {
	f := newFixture(t, 0)
	event := f.addEvent(t, enums.ParticipationTypeApprovalRequired, 0)
	owner := participation.Actor{UserID: event.OwnerID}
	ctx := context.Background()

	request, err := f.svc.Create(ctx, participation.Actor{UserID: uuid.New()}, CreateInput{EventID: event.ID})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := f.svc.Transition(ctx, owner, request.ID, TransitionInput{Target: enums.JoinRequestStatusApproved}); err != nil {
		t.Fatalf("approve error: %v", err)
	}

	again, err := f.svc.Transition(ctx, owner, request.ID, TransitionInput{Target: enums.JoinRequestStatusApproved})
	if err != nil {
		t.Fatalf("repeat approve error: %v", err)
	}
	if again.Status != enums.JoinRequestStatusApproved || again.Version != 2 {
		t.Fatalf("repeat approve must not bump version: %+v", again)
	}
}

func TestTransitionRetriesLostRaces(t *testing.T) {
	f := newFixture(t, 0)
	event := f.addEvent(t, enums.ParticipationTypeApprovalRequired, 0)
	owner := participation.Actor{UserID: event.OwnerID}
	ctx := context.Background()

	request, err := f.svc.Create(ctx, participation.Actor{UserID: uuid.New()}, CreateInput{EventID: event.ID})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	f.repo.versionMisses = 2
	if _, err := f.svc.Transition(ctx, owner, request.ID, TransitionInput{Target: enums.JoinRequestStatusApproved}); err != nil {
		t.Fatalf("expected retry to absorb two misses, got %v", err)
	}

	// Persistent contention surfaces to the caller.
	f.repo.versionMisses = 10
	_, err = f.svc.Transition(ctx, owner, request.ID, TransitionInput{Target: enums.JoinRequestStatusCheckedIn})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConcurrentConflict) {
		t.Fatalf("expected CONCURRENT_MODIFICATION, got %v", err)
	}
}

func TestNextActions(t *testing.T) {
	f := newFixture(t, 0)
	event := f.addEvent(t, enums.ParticipationTypeApprovalRequired, 0)
	participant := participation.Actor{UserID: uuid.New()}
	owner := participation.Actor{UserID: event.OwnerID}
	ctx := context.Background()

	request, err := f.svc.Create(ctx, participant, CreateInput{EventID: event.ID})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	ownerActions, err := f.svc.NextActions(ctx, owner, request.ID)
	if err != nil {
		t.Fatalf("NextActions error: %v", err)
	}
	if len(ownerActions) != 2 {
		t.Fatalf("expected approve/reject for owner, got %v", ownerActions)
	}

	participantActions, err := f.svc.NextActions(ctx, participant, request.ID)
	if err != nil {
		t.Fatalf("NextActions error: %v", err)
	}
	if len(participantActions) != 1 || participantActions[0] != enums.JoinRequestStatusCanceled {
		t.Fatalf("expected cancel only for participant, got %v", participantActions)
	}

	if _, err := f.svc.NextActions(ctx, participation.Actor{UserID: uuid.New()}, request.ID); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED for stranger, got %v", err)
	}
}

func TestListByEventRequiresOwner(t *testing.T) {
	f := newFixture(t, 0)
	event := f.addEvent(t, enums.ParticipationTypeOpen, 0)
	ctx := context.Background()

	if _, _, err := f.svc.ListByEvent(ctx, participation.Actor{UserID: uuid.New()}, ListByEventParams{EventID: event.ID}); !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN for non-owner, got %v", err)
	}

	if _, _, err := f.svc.ListByEvent(ctx, participation.Actor{UserID: event.OwnerID}, ListByEventParams{EventID: event.ID}); err != nil {
		t.Fatalf("owner listing error: %v", err)
	}

	admin := participation.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	if _, _, err := f.svc.ListByEvent(ctx, admin, ListByEventParams{EventID: event.ID}); err != nil {
		t.Fatalf("admin listing error: %v", err)
	}
}
