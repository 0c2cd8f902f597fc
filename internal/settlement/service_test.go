package settlement

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/danielvega/gatherz-backend/internal/events"
	"github.com/danielvega/gatherz-backend/internal/joinrequests"
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
	requests []*models.JoinRequest
}

func (m *memRequestRepo) WithTx(tx *gorm.DB) joinrequests.Repository { return m }

func (m *memRequestRepo) Create(ctx context.Context, request *models.JoinRequest) error {
	m.requests = append(m.requests, request)
	return nil
}

func (m *memRequestRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.JoinRequest, error) {
	for _, request := range m.requests {
		if request.ID == id {
			return request, nil
		}
	}
	return nil, nil
}

func (m *memRequestRepo) FindByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*models.JoinRequest, error) {
	return nil, nil
}

func (m *memRequestRepo) ListByEvent(ctx context.Context, params joinrequests.ListByEventParams) ([]models.JoinRequest, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (m *memRequestRepo) ListByUser(ctx context.Context, params joinrequests.ListByUserParams) ([]models.JoinRequest, *pagination.Cursor, error) {
	return nil, nil, nil
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

func (m *memRequestRepo) UpdateStatusVersioned(ctx context.Context, id uuid.UUID, version int, update joinrequests.StatusUpdate) (bool, error) {
	return false, nil
}

func (m *memRequestRepo) Reactivate(ctx context.Context, id uuid.UUID, version int, status enums.JoinRequestStatus, reservationID *uuid.UUID) (bool, error) {
	return false, nil
}

type memEventsRepo struct {
	events      map[uuid.UUID]*models.Event
	lockedReads int
}

func (m *memEventsRepo) WithTx(tx *gorm.DB) events.Repository { return m }

func (m *memEventsRepo) Create(ctx context.Context, event *models.Event) error {
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

type creditCall struct {
	userID      uuid.UUID
	amountCents int64
	txnType     enums.TransactionType
	refID       string
}

type fakeLedger struct {
	reservations map[uuid.UUID]*models.WalletTransaction
	credits      []creditCall
	releases     int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{reservations: map[uuid.UUID]*models.WalletTransaction{}}
}

func (f *fakeLedger) addReservation(amountCents int64, status enums.TransactionStatus) uuid.UUID {
	id := uuid.New()
	f.reservations[id] = &models.WalletTransaction{
		ID:          id,
		Type:        enums.TransactionTypePayment,
		AmountCents: amountCents,
		Status:      status,
	}
	return id
}

func (f *fakeLedger) Reserve(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amountCents int64, refID string) (*models.WalletTransaction, error) {
	return nil, nil
}

func (f *fakeLedger) Reservation(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) (*models.WalletTransaction, error) {
	txn := f.reservations[reservationID]
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return txn, nil
}

func (f *fakeLedger) Release(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) (*models.WalletTransaction, error) {
	txn := f.reservations[reservationID]
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	if txn.Status == enums.TransactionStatusPending {
		txn.Status = enums.TransactionStatusRefunded
	}
	f.releases++
	return txn, nil
}

func (f *fakeLedger) Capture(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) (*models.WalletTransaction, error) {
	return nil, nil
}

func (f *fakeLedger) Credit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amountCents int64, txnType enums.TransactionType, refID string, reason *string) (*models.WalletTransaction, error) {
	f.credits = append(f.credits, creditCall{userID: userID, amountCents: amountCents, txnType: txnType, refID: refID})
	return &models.WalletTransaction{ID: uuid.New(), UserID: userID, AmountCents: amountCents}, nil
}

type fixture struct {
	svc        Service
	requests   *memRequestRepo
	eventsRepo *memEventsRepo
	ledger     *fakeLedger
	event      *models.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	requests := &memRequestRepo{}
	eventsRepo := &memEventsRepo{events: map[uuid.UUID]*models.Event{}}
	ledger := newFakeLedger()

	svc, err := NewService(ServiceParams{
		Tx:            fakeTxRunner{},
		RequestsRepo:  requests,
		EventsRepo:    eventsRepo,
		Ledger:        ledger,
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		CommissionBps: 500,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	event := &models.Event{
		ID:                uuid.New(),
		OwnerID:           uuid.New(),
		ParticipationType: enums.ParticipationTypeTicketed,
		PriceCents:        2000,
		Status:            enums.EventStatusApproved,
	}
	eventsRepo.events[event.ID] = event

	return &fixture{svc: svc, requests: requests, eventsRepo: eventsRepo, ledger: ledger, event: event}
}

func (f *fixture) addRequest(status enums.JoinRequestStatus, reservationID *uuid.UUID) {
	f.requests.requests = append(f.requests.requests, &models.JoinRequest{
		ID:                   uuid.New(),
		EventID:              f.event.ID,
		UserID:               uuid.New(),
		Status:               status,
		PaymentReservationID: reservationID,
		Version:              1,
	})
}

func TestFinishEventPaysOutAndReleases(t *testing.T) {
	f := newFixture(t)
	owner := participation.Actor{UserID: f.event.OwnerID}

	attended := f.ledger.addReservation(2000, enums.TransactionStatusCompleted)
	completed := f.ledger.addReservation(2000, enums.TransactionStatusCompleted)
	rejectedHold := f.ledger.addReservation(2000, enums.TransactionStatusPending)
	canceledReleased := f.ledger.addReservation(2000, enums.TransactionStatusRefunded)

	f.addRequest(enums.JoinRequestStatusAttended, &attended)
	f.addRequest(enums.JoinRequestStatusCompleted, &completed)
	f.addRequest(enums.JoinRequestStatusRejected, &rejectedHold)
	f.addRequest(enums.JoinRequestStatusCanceled, &canceledReleased)

	result, err := f.svc.FinishEvent(context.Background(), owner, f.event.ID)
	if err != nil {
		t.Fatalf("FinishEvent error: %v", err)
	}

	if result.GrossCents != 4000 {
		t.Fatalf("expected gross 4000, got %d", result.GrossCents)
	}
	// 5% commission on 4000.
	if result.CommissionCents != 200 || result.PayoutCents != 3800 {
		t.Fatalf("unexpected commission math: %+v", result)
	}
	if result.ReleasedReservations != 1 {
		t.Fatalf("expected one freed hold, got %d", result.ReleasedReservations)
	}
	if f.ledger.releases != 1 {
		t.Fatalf("already-released hold must not be released again, got %d release calls", f.ledger.releases)
	}

	if len(f.ledger.credits) != 1 {
		t.Fatalf("expected one payout credit, got %d", len(f.ledger.credits))
	}
	credit := f.ledger.credits[0]
	if credit.userID != f.event.OwnerID || credit.amountCents != 3800 {
		t.Fatalf("payout went wrong: %+v", credit)
	}
	if credit.txnType != enums.TransactionTypeTransferIn || credit.refID != f.event.ID.String() {
		t.Fatalf("payout transaction mislabeled: %+v", credit)
	}
	if result.PayoutTransactionID == nil {
		t.Fatal("payout transaction id missing from result")
	}

	if f.event.Status != enums.EventStatusFinished || f.event.FinishedAt == nil {
		t.Fatalf("event not finished: %+v", f.event)
	}
	if f.eventsRepo.lockedReads != 1 {
		t.Fatalf("settlement must read the event under a row lock, got %d locked reads", f.eventsRepo.lockedReads)
	}
}

func TestFinishEventBlockedByPendingRequests(t *testing.T) {
	f := newFixture(t)
	owner := participation.Actor{UserID: f.event.OwnerID}

	reservation := f.ledger.addReservation(2000, enums.TransactionStatusPending)
	f.addRequest(enums.JoinRequestStatusPaymentReserved, &reservation)
	f.addRequest(enums.JoinRequestStatusAttended, nil)

	_, err := f.svc.FinishEvent(context.Background(), owner, f.event.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(PendingRequestsDetails)
	if !ok || details.PendingCount != 1 {
		t.Fatalf("expected pending count 1, got %+v", pkgerrors.As(err).Details())
	}

	if f.event.Status != enums.EventStatusApproved {
		t.Fatalf("blocked settlement must not change event status, got %s", f.event.Status)
	}
	if len(f.ledger.credits) != 0 || f.ledger.releases != 0 {
		t.Fatal("blocked settlement must not touch the ledger")
	}
}

func TestFinishEventIdempotent(t *testing.T) {
	f := newFixture(t)
	owner := participation.Actor{UserID: f.event.OwnerID}
	f.addRequest(enums.JoinRequestStatusAttended, nil)

	if _, err := f.svc.FinishEvent(context.Background(), owner, f.event.ID); err != nil {
		t.Fatalf("FinishEvent error: %v", err)
	}

	result, err := f.svc.FinishEvent(context.Background(), owner, f.event.ID)
	if err != nil {
		t.Fatalf("repeat FinishEvent error: %v", err)
	}
	if !result.AlreadyFinished {
		t.Fatal("expected AlreadyFinished on repeat settlement")
	}
	if len(f.ledger.credits) != 0 {
		t.Fatal("free event settlement must not credit anything")
	}
}

func TestFinishEventAuthorization(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.FinishEvent(context.Background(), participation.Actor{UserID: uuid.New()}, f.event.ID); !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN for stranger, got %v", err)
	}

	admin := participation.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	if _, err := f.svc.FinishEvent(context.Background(), admin, f.event.ID); err != nil {
		t.Fatalf("admin settlement error: %v", err)
	}
}

func TestFinishEventUnknownEvent(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.FinishEvent(context.Background(), participation.SystemActor, uuid.New()); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestFinishEventWrongStatus(t *testing.T) {
	f := newFixture(t)
	f.event.Status = enums.EventStatusDraft

	_, err := f.svc.FinishEvent(context.Background(), participation.Actor{UserID: f.event.OwnerID}, f.event.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT for draft event, got %v", err)
	}
}
