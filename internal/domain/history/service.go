package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"medicine-history/internal/dateutil"
	"medicine-history/internal/ports/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

// Schedule es lo que el engine necesita saber de un medicamento para
// recrear sus ocurrencias (reset). Definido aquí para no depender del
// módulo medicines.
type Schedule struct {
	Snapshot
	Regular bool
	Times   []string  // "HH:MM", solo regulares
	OneTime time.Time // instante único, solo no regulares
}

// ScheduleSource lista los medicamentos guardados. Lo implementa el
// repositorio de medicines.
type ScheduleSource interface {
	ListSchedules(ctx context.Context) ([]Schedule, error)
}

// Service es el engine del historial de tomas. Todas las mutaciones son
// ciclos read-modify-write sobre el blob completo, serializados con un
// mutex: dos escrituras concurrentes sin él se pisarían (last-write-wins).
type Service struct {
	kv   store.KV
	meds ScheduleSource // puede ser nil hasta SetScheduleSource
	log  *zap.Logger

	mu  sync.Mutex
	now func() time.Time
}

func NewService(kv store.KV, log *zap.Logger) *Service {
	return &Service{
		kv:  kv,
		log: log,
		now: time.Now,
	}
}

// SetScheduleSource conecta el listado de medicamentos (se cablea después
// de construir ambos servicios para evitar el ciclo).
func (s *Service) SetScheduleSource(src ScheduleSource) {
	s.meds = src
}

func (s *Service) load(ctx context.Context) (History, error) {
	raw, ok, err := s.kv.Get(ctx, store.KeyHistory)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if !ok || raw == "" {
		return History{}, nil
	}

	var h History
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if h == nil {
		h = History{}
	}
	return h, nil
}

func (s *Service) save(ctx context.Context, h History) error {
	b, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.kv.Set(ctx, store.KeyHistory, string(b)); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// RecordDose registra (o actualiza) la toma de un medicamento en el
// instante occurrence. Contrato: como mucho un registro por
// (medicamento, hora, día) — llamadas repetidas con la misma ocurrencia
// actualizan in place, la última gana.
func (s *Service) RecordDose(ctx context.Context, snap Snapshot, requested Status, occurrence time.Time) error {
	if snap.ID == "" || occurrence.IsZero() {
		return ErrInvalidInput
	}
	if requested == "" {
		requested = StatusPlanned
	}
	if !requested.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidInput, requested)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordLocked(ctx, snap, requested, occurrence)
}

func (s *Service) recordLocked(ctx context.Context, snap Snapshot, requested Status, occurrence time.Time) error {
	h, err := s.load(ctx)
	if err != nil {
		return err
	}

	dateKey := dateutil.LocalDateKey(occurrence)
	clock := dateutil.FormatClock(occurrence)

	// Una ocurrencia futura jamás se persiste con estado terminal.
	effective := requested
	if occurrence.After(s.now()) {
		effective = StatusPlanned
	}

	recs := h[dateKey]
	updated := false
	for i := range recs {
		if recs[i].BelongsTo(snap.ID) && recs[i].Time == clock {
			// Update in place: nombre/dosis se dejan como estaban.
			recs[i].Status = effective
			recs[i].Timestamp = occurrence
			updated = true
			break
		}
	}
	if !updated {
		recs = append(recs, DoseRecord{
			ID:        snap.ID + "_" + uuid.NewString(),
			Name:      snap.Name,
			Dosage:    snap.Dosage,
			Time:      clock,
			Status:    effective,
			Timestamp: occurrence,
		})
	}
	h[dateKey] = recs

	s.log.Debug("dose recorded",
		zap.String("medicine_id", snap.ID),
		zap.String("date", dateKey),
		zap.String("time", clock),
		zap.String("status", string(effective)),
		zap.Bool("updated", updated))

	return s.save(ctx, h)
}

// RemoveFromHistory borra los registros de un medicamento en todas las
// fechas. Con onlyPlanned se conservan los taken/skipped (la pista de
// auditoría al borrar un medicamento). Devuelve si se borró algo.
func (s *Service) RemoveFromHistory(ctx context.Context, medicineID string, onlyPlanned bool) (bool, error) {
	if medicineID == "" {
		return false, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	modified := false
	for dateKey, recs := range h {
		kept := recs[:0:0]
		for _, r := range recs {
			if !r.BelongsTo(medicineID) {
				kept = append(kept, r)
				continue
			}
			if onlyPlanned && r.Status != StatusPlanned {
				kept = append(kept, r)
				continue
			}
			modified = true
		}
		if len(kept) == 0 {
			// Invariante: ninguna fecha mapea a una lista vacía.
			delete(h, dateKey)
			continue
		}
		h[dateKey] = kept
	}

	if !modified {
		return false, nil
	}
	s.log.Info("removed medicine from history",
		zap.String("medicine_id", medicineID),
		zap.Bool("only_planned", onlyPlanned))
	return true, s.save(ctx, h)
}

// UpdateMedicineReferences sincroniza los campos denormalizados tras una
// edición sin cambio estructural. Para regulares solo nombre/dosis; un
// medicamento único además re-apunta timestamp y hora de su registro a la
// nueva fecha/hora (tiene una sola ocurrencia lógica).
func (s *Service) UpdateMedicineReferences(ctx context.Context, medicineID string, updated Schedule) (bool, error) {
	if medicineID == "" {
		return false, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	changed := false
	for dateKey, recs := range h {
		for i := range recs {
			if !recs[i].BelongsTo(medicineID) {
				continue
			}
			recs[i].Name = updated.Name
			recs[i].Dosage = updated.Dosage
			if !updated.Regular && !updated.OneTime.IsZero() {
				recs[i].Timestamp = updated.OneTime
				recs[i].Time = dateutil.FormatClock(updated.OneTime)
			}
			changed = true
		}
		h[dateKey] = recs
	}

	if !changed {
		return false, nil
	}
	return true, s.save(ctx, h)
}

// ResetAllHistory reemplaza el agregado por un mapa vacío. Con recreate,
// vuelve a sembrar un planned por cada ocurrencia implícita de hoy
// (regulares: una por hora, ignorando selectedDays a propósito) y una por
// medicamento único en su instante guardado. Destructivo y sin rollback:
// cada alta fallida se loguea y el bucle sigue.
func (s *Service) ResetAllHistory(ctx context.Context, recreate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(ctx, History{}); err != nil {
		return err
	}
	s.log.Info("history reset", zap.Bool("recreate", recreate))

	if !recreate || s.meds == nil {
		return nil
	}

	schedules, err := s.meds.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("list schedules for recreate: %w", err)
	}

	today := dateutil.StartOfDay(s.now())
	for _, sch := range schedules {
		if sch.Regular {
			for _, clock := range sch.Times {
				at, err := dateutil.At(today, clock)
				if err != nil {
					s.log.Warn("skipping malformed time",
						zap.String("medicine_id", sch.ID), zap.String("time", clock))
					continue
				}
				if err := s.recordLocked(ctx, sch.Snapshot, StatusPlanned, at); err != nil {
					s.log.Error("recreate dose failed",
						zap.String("medicine_id", sch.ID), zap.Error(err))
				}
			}
			continue
		}
		if sch.OneTime.IsZero() {
			continue
		}
		if err := s.recordLocked(ctx, sch.Snapshot, StatusPlanned, sch.OneTime); err != nil {
			s.log.Error("recreate dose failed",
				zap.String("medicine_id", sch.ID), zap.Error(err))
		}
	}
	return nil
}

// MigrateLegacyHistory normaliza registros de formatos viejos: sin
// timestamp, con status fuera del conjunto actual, o con el booleano
// `taken`. Idempotente: sin datos legacy no escribe nada.
func (s *Service) MigrateLegacyHistory(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	migrated := false
	for dateKey, recs := range h {
		for i := range recs {
			r := &recs[i]

			if !r.Status.Valid() {
				if r.Status == "" && r.LegacyTaken != nil {
					if *r.LegacyTaken {
						r.Status = StatusTaken
					} else {
						r.Status = StatusSkipped
					}
				} else {
					r.Status = normalizeLegacyStatus(string(r.Status))
				}
				migrated = true
			}
			if r.LegacyTaken != nil {
				r.LegacyTaken = nil
				migrated = true
			}

			if r.Timestamp.IsZero() {
				ts, err := s.synthesizeTimestamp(dateKey, r.Time)
				if err != nil {
					s.log.Warn("cannot synthesize timestamp",
						zap.String("date", dateKey), zap.String("record_id", r.ID))
					continue
				}
				r.Timestamp = ts
				migrated = true
			}
		}
		h[dateKey] = recs
	}

	if !migrated {
		return false, nil
	}
	s.log.Info("legacy history migrated")
	return true, s.save(ctx, h)
}

// synthesizeTimestamp arma el instante desde la clave de fecha y el "HH:MM"
// del registro (medianoche si falta la hora).
func (s *Service) synthesizeTimestamp(dateKey, clock string) (time.Time, error) {
	day, err := dateutil.ParseDateKey(dateKey, s.now().Location())
	if err != nil {
		return time.Time{}, err
	}
	if clock == "" {
		return day, nil
	}
	at, err := dateutil.At(day, clock)
	if err != nil {
		return day, nil
	}
	return at, nil
}

// HistoryForDate devuelve los registros de un día (lista vacía si no hay).
func (s *Service) HistoryForDate(ctx context.Context, date time.Time) ([]DoseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	recs := h[dateutil.LocalDateKey(date)]
	if recs == nil {
		recs = []DoseRecord{}
	}
	return recs, nil
}

// FullHistory devuelve el agregado completo.
func (s *Service) FullHistory(ctx context.Context) (History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// ClearDate elimina todos los registros de un día.
func (s *Service) ClearDate(ctx context.Context, date time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	dateKey := dateutil.LocalDateKey(date)
	if _, ok := h[dateKey]; !ok {
		return false, nil
	}
	delete(h, dateKey)
	return true, s.save(ctx, h)
}

// CalendarSummary arma el rollup por día usando display status, para que
// los planned vencidos cuenten como skipped sin tocar lo guardado.
func (s *Service) CalendarSummary(ctx context.Context) (map[string]DaySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make(map[string]DaySummary, len(h))
	for dateKey, recs := range h {
		var sum DaySummary
		for _, r := range recs {
			sum.Total++
			switch r.DisplayStatus(now) {
			case StatusTaken:
				sum.Taken++
			case StatusSkipped:
				sum.Skipped++
			default:
				sum.Planned++
			}
		}
		switch {
		case sum.Total > 0 && sum.Taken == sum.Total:
			sum.State = DayAllTaken
		case sum.Taken > 0:
			sum.State = DaySomeTaken
		case sum.Total > 0 && sum.Skipped == sum.Total:
			sum.State = DayAllSkip
		default:
			sum.State = DayPending
		}
		out[dateKey] = sum
	}
	return out, nil
}
