package medicines

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"medicine-history/internal/dateutil"
	"medicine-history/internal/domain/history"
	"medicine-history/internal/platform/bus"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrInvalidInput = errors.New("invalid input")

type Service struct {
	repo    *Repository
	hist    *history.Service
	signals *bus.Bus
	log     *zap.Logger
	now     func() time.Time
}

func NewService(repo *Repository, hist *history.Service, signals *bus.Bus, log *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		hist:    hist,
		signals: signals,
		log:     log,
		now:     time.Now,
	}
}

type CreateInput struct {
	Name   string
	Dosage string
	Notes  string

	IsRegular    bool
	Times        []string
	SelectedDays [7]bool

	OneTimeDate time.Time
	OneTimeTime string

	Quantity int
}

// normalizeTimes valida, deduplica y ordena un set de "HH:MM".
func normalizeTimes(times []string) ([]string, error) {
	seen := make(map[string]bool, len(times))
	out := make([]string, 0, len(times))
	for _, t := range times {
		t = strings.TrimSpace(t)
		if _, _, err := dateutil.ParseClock(t); err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Medicine, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Medicine{}, ErrInvalidInput
	}

	now := s.now()
	m := Medicine{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Dosage:       strings.TrimSpace(in.Dosage),
		Notes:        strings.TrimSpace(in.Notes),
		IsRegular:    in.IsRegular,
		SelectedDays: in.SelectedDays,
		Quantity:     in.Quantity,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if in.IsRegular {
		times, err := normalizeTimes(in.Times)
		if err != nil || len(times) == 0 {
			return Medicine{}, ErrInvalidInput
		}
		m.Times = times
	} else {
		if in.OneTimeDate.IsZero() {
			return Medicine{}, ErrInvalidInput
		}
		if _, _, err := dateutil.ParseClock(in.OneTimeTime); err != nil {
			return Medicine{}, ErrInvalidInput
		}
		m.OneTimeDate = dateutil.StartOfDay(in.OneTimeDate)
		m.OneTimeTime = strings.TrimSpace(in.OneTimeTime)
	}

	if err := s.repo.Upsert(ctx, m); err != nil {
		return Medicine{}, err
	}

	// Siembra las ocurrencias planned iniciales (las futuras las fuerza el
	// engine a planned de todos modos).
	s.seedPlanned(ctx, m)

	s.signals.Publish(bus.Event{Kind: bus.MedicineCreated, MedicineID: m.ID})
	s.log.Info("medicine created", zap.String("id", m.ID), zap.String("name", m.Name))
	return m, nil
}

// seedPlanned crea los registros planned que implica el calendario: hoy
// para cada hora de un recurrente, el instante guardado para uno único.
func (s *Service) seedPlanned(ctx context.Context, m Medicine) {
	if m.IsRegular {
		today := dateutil.StartOfDay(s.now())
		for _, clock := range m.Times {
			at, err := dateutil.At(today, clock)
			if err != nil {
				continue
			}
			if err := s.hist.RecordDose(ctx, m.Snapshot(), history.StatusPlanned, at); err != nil {
				s.log.Error("seed dose failed", zap.String("id", m.ID), zap.Error(err))
			}
		}
		return
	}

	at, err := m.OneTimeAt()
	if err != nil {
		return
	}
	if err := s.hist.RecordDose(ctx, m.Snapshot(), history.StatusPlanned, at); err != nil {
		s.log.Error("seed dose failed", zap.String("id", m.ID), zap.Error(err))
	}
}

type UpdateInput struct {
	// Punteros para PATCH real: nil = no tocar.
	Name   *string
	Dosage *string
	Notes  *string

	IsRegular    *bool
	Times        *[]string
	SelectedDays *[7]bool

	OneTimeDate *time.Time
	OneTimeTime *string

	Quantity *int
}

// Update aplica la edición y reconcilia el historial. La rama se decide
// comparando campo a campo el antes y el después:
//   - cambio estructural (tipo de calendario, set de horas, fecha/hora del
//     único): se eliminan los planned y se recrean las ocurrencias futuras
//     del calendario nuevo;
//   - cambio no estructural (nombre, dosis, notas, días seleccionados):
//     solo se refrescan los campos denormalizados in place.
//
// Elegir mal destruye historial válido o deja ocurrencias futuras rancias.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Medicine, error) {
	old, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Medicine{}, err
	}

	upd := old
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return Medicine{}, ErrInvalidInput
		}
		upd.Name = strings.TrimSpace(*in.Name)
	}
	if in.Dosage != nil {
		upd.Dosage = strings.TrimSpace(*in.Dosage)
	}
	if in.Notes != nil {
		upd.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.IsRegular != nil {
		upd.IsRegular = *in.IsRegular
	}
	if in.Times != nil {
		times, err := normalizeTimes(*in.Times)
		if err != nil {
			return Medicine{}, ErrInvalidInput
		}
		upd.Times = times
	}
	if in.SelectedDays != nil {
		upd.SelectedDays = *in.SelectedDays
	}
	if in.OneTimeDate != nil {
		upd.OneTimeDate = dateutil.StartOfDay(*in.OneTimeDate)
	}
	if in.OneTimeTime != nil {
		if _, _, err := dateutil.ParseClock(*in.OneTimeTime); err != nil {
			return Medicine{}, ErrInvalidInput
		}
		upd.OneTimeTime = strings.TrimSpace(*in.OneTimeTime)
	}
	if in.Quantity != nil {
		upd.Quantity = *in.Quantity
	}

	if upd.IsRegular && len(upd.Times) == 0 {
		return Medicine{}, ErrInvalidInput
	}
	if !upd.IsRegular && (upd.OneTimeDate.IsZero() || upd.OneTimeTime == "") {
		return Medicine{}, ErrInvalidInput
	}

	upd.UpdatedAt = s.now()
	if err := s.repo.Upsert(ctx, upd); err != nil {
		return Medicine{}, err
	}

	if structuralChange(old, upd) {
		if _, err := s.hist.RemoveFromHistory(ctx, id, true); err != nil {
			return Medicine{}, err
		}
		s.seedPlanned(ctx, upd)
	} else {
		if _, err := s.hist.UpdateMedicineReferences(ctx, id, upd.Schedule()); err != nil {
			return Medicine{}, err
		}
	}

	s.signals.Publish(bus.Event{Kind: bus.MedicineUpdated, MedicineID: id})
	return upd, nil
}

// structuralChange detecta si la edición cambió qué ocurrencias implica el
// calendario (no solo cómo se muestran).
func structuralChange(old, upd Medicine) bool {
	if old.IsRegular != upd.IsRegular {
		return true
	}
	if upd.IsRegular {
		return !sameTimeSet(old.Times, upd.Times)
	}
	return !old.OneTimeDate.Equal(upd.OneTimeDate) || old.OneTimeTime != upd.OneTimeTime
}

func sameTimeSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		if !set[t] {
			return false
		}
	}
	return true
}

// Delete borra el medicamento y limpia sus planned del historial; los
// taken/skipped quedan como pista de auditoría.
func (s *Service) Delete(ctx context.Context, id string) error {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}

	if _, err := s.hist.RemoveFromHistory(ctx, id, true); err != nil {
		return err
	}

	s.signals.Publish(bus.Event{Kind: bus.MedicineDeleted, MedicineID: id})
	s.log.Info("medicine deleted", zap.String("id", id))
	return nil
}

func (s *Service) List(ctx context.Context) ([]Medicine, error) {
	return s.repo.List(ctx)
}

func (s *Service) GetByID(ctx context.Context, id string) (Medicine, error) {
	return s.repo.GetByID(ctx, id)
}

// SetDoseStatus registra la toma en el historial y aplica los efectos
// sobre el medicamento: un taken no futuro descuenta una pastilla de los
// recurrentes y completa a los de toma única.
func (s *Service) SetDoseStatus(ctx context.Context, id string, status history.Status, occurrence time.Time) (Medicine, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Medicine{}, err
	}

	if err := s.hist.RecordDose(ctx, m.Snapshot(), status, occurrence); err != nil {
		return Medicine{}, err
	}

	if status == history.StatusTaken && !occurrence.After(s.now()) {
		changed := false
		if m.IsRegular && m.Quantity > 0 {
			m.Quantity--
			changed = true
		}
		if !m.IsRegular && !m.Completed {
			m.Completed = true
			changed = true
		}
		if changed {
			m.UpdatedAt = s.now()
			if err := s.repo.Upsert(ctx, m); err != nil {
				return Medicine{}, err
			}
			s.signals.Publish(bus.Event{Kind: bus.MedicineUpdated, MedicineID: id})
		}
	}
	return m, nil
}
