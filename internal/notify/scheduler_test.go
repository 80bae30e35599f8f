package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"medicine-history/internal/domain/history"
	"medicine-history/internal/domain/reminders"
	"medicine-history/internal/platform/bus"

	"go.uber.org/zap"
)

var schedNow = time.Date(2024, 6, 12, 12, 0, 0, 0, time.Local)

type fakeProjection struct {
	groups []reminders.DayGroup
	err    error
}

func (f *fakeProjection) Upcoming(ctx context.Context) ([]reminders.DayGroup, error) {
	return f.groups, f.err
}

func occurrenceAt(medID, clock string, status history.Status, recorded bool) reminders.Occurrence {
	at, _ := time.ParseInLocation("2006-01-02 15:04", "2024-06-12 "+clock, time.Local)
	return reminders.Occurrence{
		MedicineID: medID,
		Name:       "Vitamina D",
		Dosage:     "5mg",
		Time:       clock,
		At:         at,
		Status:     status,
		Recorded:   recorded,
	}
}

func todayGroup(items ...reminders.Occurrence) []reminders.DayGroup {
	return []reminders.DayGroup{{DateKey: "2024-06-12", Label: "Today", Items: items}}
}

func newTestScheduler(proj Projection) *Scheduler {
	s := NewScheduler(proj, NewLogNotifier(zap.NewNop()), bus.New(), zap.NewNop())
	s.now = func() time.Time { return schedNow }
	return s
}

func TestDueNow_PicksOverduePending(t *testing.T) {
	proj := &fakeProjection{groups: todayGroup(
		occurrenceAt("m1", "08:00", history.StatusPlanned, true),   // vencida, pendiente
		occurrenceAt("m2", "09:00", history.StatusSkipped, false),  // vencida sin registro
		occurrenceAt("m3", "10:00", history.StatusTaken, true),     // ya tomada
		occurrenceAt("m4", "11:00", history.StatusSkipped, true),   // saltada a propósito
		occurrenceAt("m5", "20:00", history.StatusPlanned, false),  // aún no vence
	)}
	s := newTestScheduler(proj)

	due, err := s.DueNow(context.Background())
	if err != nil {
		t.Fatalf("DueNow: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due reminders, got %d: %+v", len(due), due)
	}
	if due[0].MedicineID != "m1" || due[1].MedicineID != "m2" {
		t.Fatalf("unexpected due set: %+v", due)
	}
}

func TestDueNow_NotifiesEachOccurrenceOnce(t *testing.T) {
	proj := &fakeProjection{groups: todayGroup(
		occurrenceAt("m1", "08:00", history.StatusPlanned, true),
	)}
	s := newTestScheduler(proj)

	first, err := s.DueNow(context.Background())
	if err != nil || len(first) != 1 {
		t.Fatalf("first scan: %v, %d due", err, len(first))
	}
	second, err := s.DueNow(context.Background())
	if err != nil || len(second) != 0 {
		t.Fatalf("second scan must be silent: %v, %d due", err, len(second))
	}
}

func TestDueNow_IgnoresOtherDays(t *testing.T) {
	proj := &fakeProjection{groups: []reminders.DayGroup{
		{DateKey: "2024-06-13", Label: "Tomorrow", Items: []reminders.Occurrence{
			occurrenceAt("m1", "08:00", history.StatusPlanned, true),
		}},
	}}
	s := newTestScheduler(proj)

	due, err := s.DueNow(context.Background())
	if err != nil || len(due) != 0 {
		t.Fatalf("only today's group counts: %v, %+v", err, due)
	}
}

func TestDueNow_SurfacesProjectionError(t *testing.T) {
	wantErr := errors.New("boom")
	s := newTestScheduler(&fakeProjection{err: wantErr})

	if _, err := s.DueNow(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected projection error, got %v", err)
	}
}

func TestOnEvent_MedicineUpdatedForgetsItsKeys(t *testing.T) {
	proj := &fakeProjection{groups: todayGroup(
		occurrenceAt("m1", "08:00", history.StatusPlanned, true),
		occurrenceAt("m2", "09:00", history.StatusPlanned, true),
	)}
	s := newTestScheduler(proj)

	if due, _ := s.DueNow(context.Background()); len(due) != 2 {
		t.Fatalf("warmup scan: %d due", len(due))
	}

	s.onEvent(bus.Event{Kind: bus.MedicineUpdated, MedicineID: "m1"})

	due, err := s.DueNow(context.Background())
	if err != nil {
		t.Fatalf("DueNow: %v", err)
	}
	if len(due) != 1 || due[0].MedicineID != "m1" {
		t.Fatalf("only m1 must be re-notified: %+v", due)
	}
}

func TestOnEvent_HistoryResetClearsAll(t *testing.T) {
	proj := &fakeProjection{groups: todayGroup(
		occurrenceAt("m1", "08:00", history.StatusPlanned, true),
		occurrenceAt("m2", "09:00", history.StatusPlanned, true),
	)}
	s := newTestScheduler(proj)

	if due, _ := s.DueNow(context.Background()); len(due) != 2 {
		t.Fatalf("warmup scan: %d due", len(due))
	}

	s.onEvent(bus.Event{Kind: bus.HistoryReset})

	due, err := s.DueNow(context.Background())
	if err != nil {
		t.Fatalf("DueNow: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("reset must re-arm every occurrence: %+v", due)
	}
}
