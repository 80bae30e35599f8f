package medicines

import (
	"context"
	"testing"
	"time"

	"medicine-history/internal/adapters/storage/memory"
	"medicine-history/internal/dateutil"
	"medicine-history/internal/domain/history"
	"medicine-history/internal/platform/bus"

	"go.uber.org/zap"
)

func newTestStack(t *testing.T) (*Service, *history.Service, *memory.KV) {
	t.Helper()
	kv := memory.NewKV()
	repo := NewRepository(kv)
	hist := history.NewService(kv, zap.NewNop())
	hist.SetScheduleSource(repo)
	svc := NewService(repo, hist, bus.New(), zap.NewNop())
	return svc, hist, kv
}

func strPtr(s string) *string { return &s }

func timesPtr(ts ...string) *[]string { return &ts }

var allDays = [7]bool{true, true, true, true, true, true, true}

func createRegular(t *testing.T, svc *Service, name string, times ...string) Medicine {
	t.Helper()
	m, err := svc.Create(context.Background(), CreateInput{
		Name:         name,
		Dosage:       "5mg",
		IsRegular:    true,
		Times:        times,
		SelectedDays: allDays,
		Quantity:     30,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return m
}

func createOneTime(t *testing.T, svc *Service, name string, at time.Time) Medicine {
	t.Helper()
	m, err := svc.Create(context.Background(), CreateInput{
		Name:        name,
		Dosage:      "1mg",
		IsRegular:   false,
		OneTimeDate: dateutil.StartOfDay(at),
		OneTimeTime: dateutil.FormatClock(at),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return m
}

func recordsOf(t *testing.T, hist *history.Service, medicineID string) []history.DoseRecord {
	t.Helper()
	full, err := hist.FullHistory(context.Background())
	if err != nil {
		t.Fatalf("FullHistory: %v", err)
	}
	var out []history.DoseRecord
	for _, recs := range full {
		for _, r := range recs {
			if r.BelongsTo(medicineID) {
				out = append(out, r)
			}
		}
	}
	return out
}

func TestCreate_SeedsPlannedRecords(t *testing.T) {
	svc, hist, _ := newTestStack(t)

	m := createRegular(t, svc, "Vitamina D", "08:00", "20:00")

	recs := recordsOf(t, hist, m.ID)
	if len(recs) != 2 {
		t.Fatalf("expected 2 seeded records, got %d", len(recs))
	}
	for _, r := range recs {
		if r.Status != history.StatusPlanned {
			t.Fatalf("seeded record must be planned, got %q", r.Status)
		}
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestStack(t)

	cases := []CreateInput{
		{Name: "", IsRegular: true, Times: []string{"08:00"}},
		{Name: "X", IsRegular: true, Times: nil},
		{Name: "X", IsRegular: true, Times: []string{"25:00"}},
		{Name: "X", IsRegular: false}, // sin fecha ni hora
		{Name: "X", IsRegular: false, OneTimeDate: time.Now(), OneTimeTime: "bogus"},
	}
	for i, in := range cases {
		if _, err := svc.Create(context.Background(), in); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestCreate_DeduplicatesTimes(t *testing.T) {
	svc, _, _ := newTestStack(t)

	m := createRegular(t, svc, "Hierro", "08:00", "08:00", "20:00")
	if len(m.Times) != 2 {
		t.Fatalf("expected deduped times, got %v", m.Times)
	}
}

func TestUpdate_NonStructuralRefreshesReferencesInPlace(t *testing.T) {
	svc, hist, _ := newTestStack(t)
	m := createRegular(t, svc, "Vitamina D", "08:00")

	// Marca la toma de hoy para comprobar que el estado sobrevive.
	occ, _ := dateutil.At(dateutil.StartOfDay(time.Now()), "08:00")
	if err := hist.RecordDose(context.Background(), m.Snapshot(), history.StatusTaken, occ); err != nil {
		t.Fatalf("RecordDose: %v", err)
	}

	upd, err := svc.Update(context.Background(), m.ID, UpdateInput{
		Name:   strPtr("Vitamina D3"),
		Dosage: strPtr("10mg"),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if upd.Name != "Vitamina D3" {
		t.Fatalf("name not updated: %q", upd.Name)
	}

	recs := recordsOf(t, hist, m.ID)
	if len(recs) != 1 {
		t.Fatalf("non-structural edit must not recreate records, got %d", len(recs))
	}
	if recs[0].Name != "Vitamina D3" || recs[0].Dosage != "10mg" {
		t.Fatalf("references not refreshed: %s/%s", recs[0].Name, recs[0].Dosage)
	}
	if occ.Before(time.Now()) && recs[0].Status != history.StatusTaken {
		t.Fatalf("status must survive non-structural edit, got %q", recs[0].Status)
	}
}

func TestUpdate_StructuralRebuildsPlannedKeepsTaken(t *testing.T) {
	svc, hist, _ := newTestStack(t)
	m := createRegular(t, svc, "Vitamina D", "08:00")

	// Una toma pasada marcada taken: debe sobrevivir a la reconstrucción.
	past := time.Now().AddDate(0, 0, -1)
	pastOcc, _ := dateutil.At(dateutil.StartOfDay(past), "08:00")
	if err := hist.RecordDose(context.Background(), m.Snapshot(), history.StatusTaken, pastOcc); err != nil {
		t.Fatalf("RecordDose: %v", err)
	}

	if _, err := svc.Update(context.Background(), m.ID, UpdateInput{
		Times: timesPtr("09:30", "21:30"),
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	recs := recordsOf(t, hist, m.ID)
	var taken, planned int
	for _, r := range recs {
		switch r.Status {
		case history.StatusTaken:
			taken++
			if r.Time != "08:00" {
				t.Fatalf("surviving taken record has wrong time %q", r.Time)
			}
		case history.StatusPlanned:
			planned++
			if r.Time != "09:30" && r.Time != "21:30" {
				t.Fatalf("recreated record has stale time %q", r.Time)
			}
		}
	}
	if taken != 1 {
		t.Fatalf("expected the taken record to survive, got %d", taken)
	}
	if planned != 2 {
		t.Fatalf("expected 2 recreated planned records, got %d", planned)
	}
}

func TestUpdate_SelectedDaysChangeIsNotStructural(t *testing.T) {
	svc, hist, _ := newTestStack(t)
	m := createRegular(t, svc, "Vitamina D", "08:00")

	before := recordsOf(t, hist, m.ID)
	days := [7]bool{false, true, false, true, false, true, false}
	if _, err := svc.Update(context.Background(), m.ID, UpdateInput{SelectedDays: &days}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	after := recordsOf(t, hist, m.ID)

	if len(before) != len(after) {
		t.Fatalf("selected-days edit must not touch records: %d -> %d", len(before), len(after))
	}
}

func TestUpdate_OneTimeRescheduleRebuildsOccurrence(t *testing.T) {
	svc, hist, _ := newTestStack(t)
	at := time.Now().AddDate(0, 0, 2)
	m := createOneTime(t, svc, "Antibiótico", at)

	newDate := dateutil.StartOfDay(time.Now().AddDate(0, 0, 5))
	if _, err := svc.Update(context.Background(), m.ID, UpdateInput{
		OneTimeDate: &newDate,
		OneTimeTime: strPtr("18:00"),
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	recs := recordsOf(t, hist, m.ID)
	if len(recs) != 1 {
		t.Fatalf("one-time medicine must keep a single record, got %d", len(recs))
	}
	if recs[0].Time != "18:00" {
		t.Fatalf("record not rebuilt, time=%q", recs[0].Time)
	}
	if recs[0].Status != history.StatusPlanned {
		t.Fatalf("rescheduled occurrence must be planned, got %q", recs[0].Status)
	}
}

func TestUpdate_KindFlipIsStructural(t *testing.T) {
	svc, hist, _ := newTestStack(t)
	m := createRegular(t, svc, "Vitamina D", "08:00")

	regular := false
	futureDay := dateutil.StartOfDay(time.Now().AddDate(0, 0, 3))
	if _, err := svc.Update(context.Background(), m.ID, UpdateInput{
		IsRegular:   &regular,
		OneTimeDate: &futureDay,
		OneTimeTime: strPtr("10:00"),
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	recs := recordsOf(t, hist, m.ID)
	if len(recs) != 1 {
		t.Fatalf("expected a single recreated record, got %d", len(recs))
	}
	if recs[0].Time != "10:00" {
		t.Fatalf("expected the one-time occurrence, got %q", recs[0].Time)
	}
}

func TestDelete_KeepsAuditTrail(t *testing.T) {
	svc, hist, _ := newTestStack(t)
	m := createRegular(t, svc, "Vitamina D", "08:00")

	past := time.Now().AddDate(0, 0, -2)
	pastOcc, _ := dateutil.At(dateutil.StartOfDay(past), "08:00")
	if err := hist.RecordDose(context.Background(), m.Snapshot(), history.StatusTaken, pastOcc); err != nil {
		t.Fatalf("RecordDose: %v", err)
	}

	if err := svc.Delete(context.Background(), m.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := svc.GetByID(context.Background(), m.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	recs := recordsOf(t, hist, m.ID)
	for _, r := range recs {
		if r.Status == history.StatusPlanned {
			t.Fatal("planned records must be cleared on delete")
		}
	}
	var taken int
	for _, r := range recs {
		if r.Status == history.StatusTaken {
			taken++
		}
	}
	if taken != 1 {
		t.Fatalf("taken record must survive deletion, got %d", taken)
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc, _, _ := newTestStack(t)
	if err := svc.Delete(context.Background(), "ghost"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetDoseStatus_TakenDecrementsQuantity(t *testing.T) {
	svc, _, _ := newTestStack(t)
	m := createRegular(t, svc, "Vitamina D", "08:00")

	past := time.Now().Add(-2 * time.Hour)
	upd, err := svc.SetDoseStatus(context.Background(), m.ID, history.StatusTaken, past)
	if err != nil {
		t.Fatalf("SetDoseStatus: %v", err)
	}
	if upd.Quantity != 29 {
		t.Fatalf("expected quantity 29, got %d", upd.Quantity)
	}
}

func TestSetDoseStatus_FutureTakenStaysPlannedAndKeepsQuantity(t *testing.T) {
	svc, hist, _ := newTestStack(t)
	m := createRegular(t, svc, "Vitamina D", "08:00")

	future := time.Now().Add(48 * time.Hour)
	upd, err := svc.SetDoseStatus(context.Background(), m.ID, history.StatusTaken, future)
	if err != nil {
		t.Fatalf("SetDoseStatus: %v", err)
	}
	if upd.Quantity != 30 {
		t.Fatalf("future taken must not decrement, got %d", upd.Quantity)
	}

	rec, ok := func() (history.DoseRecord, bool) {
		full, err := hist.FullHistory(context.Background())
		if err != nil {
			t.Fatalf("FullHistory: %v", err)
		}
		return full.Find(dateutil.LocalDateKey(future), m.ID, dateutil.FormatClock(future))
	}()
	if !ok {
		t.Fatal("record not found")
	}
	if rec.Status != history.StatusPlanned {
		t.Fatalf("future dose must be stored planned, got %q", rec.Status)
	}
}

func TestSetDoseStatus_OneTimeTakenCompletes(t *testing.T) {
	svc, _, _ := newTestStack(t)
	at := time.Now().Add(-3 * time.Hour)
	m := createOneTime(t, svc, "Antibiótico", at)

	occ, _ := m.OneTimeAt()
	upd, err := svc.SetDoseStatus(context.Background(), m.ID, history.StatusTaken, occ)
	if err != nil {
		t.Fatalf("SetDoseStatus: %v", err)
	}
	if !upd.Completed {
		t.Fatal("one-time medicine must be completed after a taken dose")
	}
}

func TestSetDoseStatus_SkippedTouchesNothing(t *testing.T) {
	svc, _, _ := newTestStack(t)
	m := createRegular(t, svc, "Vitamina D", "08:00")

	past := time.Now().Add(-time.Hour)
	upd, err := svc.SetDoseStatus(context.Background(), m.ID, history.StatusSkipped, past)
	if err != nil {
		t.Fatalf("SetDoseStatus: %v", err)
	}
	if upd.Quantity != 30 || upd.Completed {
		t.Fatalf("skipped dose must not touch the medicine: %+v", upd)
	}
}
