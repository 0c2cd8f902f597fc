package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/danielvega/gatherz-backend/pkg/db/models"
	"github.com/danielvega/gatherz-backend/pkg/enums"
	pkgerrors "github.com/danielvega/gatherz-backend/pkg/errors"
	"github.com/danielvega/gatherz-backend/pkg/pagination"
)

type fakeRepository struct {
	events map[uuid.UUID]*models.Event
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{events: map[uuid.UUID]*models.Event{}}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	f.events[event.ID] = event
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return f.events[id], nil
}

func (f *fakeRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return f.events[id], nil
}

func (f *fakeRepository) List(ctx context.Context, params ListEventsParams) ([]models.Event, *pagination.Cursor, error) {
	var out []models.Event
	for _, event := range f.events {
		out = append(out, *event)
	}
	return out, nil, nil
}

func (f *fakeRepository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.EventStatus) (bool, error) {
	event := f.events[id]
	if event == nil || event.Status != from {
		return false, nil
	}
	event.Status = to
	return true, nil
}

func (f *fakeRepository) MarkFinished(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	event := f.events[id]
	if event == nil || event.Status != enums.EventStatusApproved {
		return false, nil
	}
	event.Status = enums.EventStatusFinished
	event.FinishedAt = &now
	return true, nil
}

func (f *fakeRepository) ExpireEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	for _, event := range f.events {
		if event.Status == enums.EventStatusApproved && event.EndsAt.Before(cutoff) {
			event.Status = enums.EventStatusExpired
			count++
		}
	}
	return count, nil
}

func validInput() CreateEventInput {
	return CreateEventInput{
		OwnerID:           uuid.New(),
		Title:             "Community run",
		ParticipationType: enums.ParticipationTypeOpen,
		StartsAt:          time.Now().Add(24 * time.Hour),
		EndsAt:            time.Now().Add(26 * time.Hour),
	}
}

func TestCreateValidation(t *testing.T) {
	svc, err := NewService(newFakeRepository())
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*CreateEventInput)
	}{
		{"missing owner", func(in *CreateEventInput) { in.OwnerID = uuid.Nil }},
		{"missing title", func(in *CreateEventInput) { in.Title = "" }},
		{"invalid type", func(in *CreateEventInput) { in.ParticipationType = "raffle" }},
		{"free event with price", func(in *CreateEventInput) { in.PriceCents = 100 }},
		{"ticketed without price", func(in *CreateEventInput) {
			in.ParticipationType = enums.ParticipationTypeTicketed
			in.PriceCents = 0
		}},
		{"zero capacity", func(in *CreateEventInput) {
			capacity := 0
			in.Capacity = &capacity
		}},
		{"ends before start", func(in *CreateEventInput) { in.EndsAt = in.StartsAt.Add(-time.Hour) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)
			if _, err := svc.Create(context.Background(), input); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestCreateDefaultsInviteMode(t *testing.T) {
	svc, _ := NewService(newFakeRepository())

	event, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if event.Status != enums.EventStatusDraft {
		t.Fatalf("new events start as draft, got %s", event.Status)
	}
	if event.InviteMode != enums.InviteModeApproval {
		t.Fatalf("expected default invite mode, got %s", event.InviteMode)
	}
}

func TestApprovalPipeline(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(repo)

	event, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := svc.Approve(context.Background(), event.ID); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT approving a draft, got %v", err)
	}

	if _, err := svc.Submit(context.Background(), uuid.New(), event.ID); !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN for non-owner submit, got %v", err)
	}

	submitted, err := svc.Submit(context.Background(), event.OwnerID, event.ID)
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if submitted.Status != enums.EventStatusPending {
		t.Fatalf("expected pending, got %s", submitted.Status)
	}

	approved, err := svc.Approve(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if approved.Status != enums.EventStatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}

	// Re-approving an approved event is a no-op.
	again, err := svc.Approve(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("repeat Approve error: %v", err)
	}
	if again.Status != enums.EventStatusApproved {
		t.Fatalf("expected approved, got %s", again.Status)
	}
}

func TestGetMissingEvent(t *testing.T) {
	svc, _ := NewService(newFakeRepository())
	if _, err := svc.Get(context.Background(), uuid.New()); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
