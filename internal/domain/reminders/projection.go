package reminders

import (
	"context"
	"sort"
	"time"

	"medicine-history/internal/dateutil"
	"medicine-history/internal/domain/history"
	"medicine-history/internal/domain/medicines"
)

// Occurrence es una instancia concreta (medicamento, fecha, hora) implicada
// por el calendario, exista o no un registro en el historial.
type Occurrence struct {
	MedicineID string         `json:"medicine_id"`
	Name       string         `json:"name"`
	Dosage     string         `json:"dosage"`
	Time       string         `json:"time"` // "HH:MM"
	At         time.Time      `json:"at"`
	Status     history.Status `json:"status"` // display status
	Recorded   bool           `json:"recorded"`
}

// DayGroup agrupa las ocurrencias de un día local.
type DayGroup struct {
	DateKey string       `json:"date"`
	Label   string       `json:"label"` // "Today", "Tomorrow" o día de la semana
	Items   []Occurrence `json:"items"`
}

// horizonDays es la ventana de proyección para recurrentes (hoy incluido).
const horizonDays = 7

// Service proyecta la lista de medicamentos + historial a la vista de
// próximas tomas. Consumidor fino: solo lee.
type Service struct {
	meds *medicines.Repository
	hist *history.Service
	now  func() time.Time
}

func NewService(meds *medicines.Repository, hist *history.Service) *Service {
	return &Service{
		meds: meds,
		hist: hist,
		now:  time.Now,
	}
}

// Upcoming arma la lista de ocurrencias: hoy..+7 días para recurrentes
// (filtrando por selectedDays) y hoy..futuro sin tope para los de toma
// única no completados. Agrupado por fecha local y ordenado cronológicamente.
func (s *Service) Upcoming(ctx context.Context) ([]DayGroup, error) {
	meds, err := s.meds.List(ctx)
	if err != nil {
		return nil, err
	}
	hist, err := s.hist.FullHistory(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := dateutil.StartOfDay(now)

	byDay := map[string][]Occurrence{}
	add := func(o Occurrence) {
		key := dateutil.LocalDateKey(o.At)
		byDay[key] = append(byDay[key], o)
	}

	for _, m := range meds {
		if m.IsRegular {
			for i := 0; i < horizonDays; i++ {
				day := today.AddDate(0, 0, i)
				if !m.SelectedDays[int(day.Weekday())] {
					continue
				}
				for _, clock := range m.Times {
					at, err := dateutil.At(day, clock)
					if err != nil {
						continue
					}
					add(s.occurrence(hist, m, at, now))
				}
			}
			continue
		}

		if m.Completed {
			continue
		}
		at, err := m.OneTimeAt()
		if err != nil || at.Before(today) {
			continue
		}
		add(s.occurrence(hist, m, at, now))
	}

	keys := make([]string, 0, len(byDay))
	for k := range byDay {
		keys = append(keys, k)
	}
	sort.Strings(keys) // las claves YYYY-MM-DD ordenan cronológicamente

	out := make([]DayGroup, 0, len(keys))
	for _, key := range keys {
		items := byDay[key]
		sort.Slice(items, func(i, j int) bool {
			if items[i].At.Equal(items[j].At) {
				return items[i].Name < items[j].Name
			}
			return items[i].At.Before(items[j].At)
		})
		out = append(out, DayGroup{
			DateKey: key,
			Label:   dateutil.DayLabel(key, now),
			Items:   items,
		})
	}
	return out, nil
}

// occurrence resuelve el estado a mostrar: el registro del historial si
// existe, o el calculado (pasado -> skipped, si no planned).
func (s *Service) occurrence(h history.History, m medicines.Medicine, at, now time.Time) Occurrence {
	o := Occurrence{
		MedicineID: m.ID,
		Name:       m.Name,
		Dosage:     m.Dosage,
		Time:       dateutil.FormatClock(at),
		At:         at,
		Status:     history.StatusPlanned,
	}

	if rec, ok := h.Find(dateutil.LocalDateKey(at), m.ID, o.Time); ok {
		o.Status = rec.DisplayStatus(now)
		o.Recorded = true
		return o
	}
	if at.Before(now) {
		o.Status = history.StatusSkipped
	}
	return o
}
