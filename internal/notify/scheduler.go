package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"medicine-history/internal/dateutil"
	"medicine-history/internal/domain/history"
	"medicine-history/internal/domain/reminders"
	"medicine-history/internal/platform/bus"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Projection es la vista de próximas tomas que consume el scheduler.
type Projection interface {
	Upcoming(ctx context.Context) ([]reminders.DayGroup, error)
}

// Scheduler revisa periódicamente la proyección de hoy y avisa por cada
// toma vencida que sigue pendiente. Cada ocurrencia se avisa una sola vez
// por proceso; si el medicamento cambia o se borra, sus claves se olvidan
// y el próximo ciclo reevalúa.
type Scheduler struct {
	proj     Projection
	notifier Notifier
	signals  *bus.Bus
	log      *zap.Logger

	cron *cron.Cron
	now  func() time.Time

	mu     sync.Mutex
	sent   map[string]bool // "dateKey|medicineID|HH:MM"
	cancel func()
}

func NewScheduler(proj Projection, notifier Notifier, signals *bus.Bus, log *zap.Logger) *Scheduler {
	return &Scheduler{
		proj:     proj,
		notifier: notifier,
		signals:  signals,
		log:      log,
		now:      time.Now,
		sent:     make(map[string]bool),
	}
}

// Start arranca el cron (spec estilo "* * * * *") y la escucha de señales.
func (s *Scheduler) Start(spec string) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return err
	}

	events, cancel := s.signals.Subscribe()
	s.cancel = cancel
	go func() {
		for e := range events {
			s.onEvent(e)
		}
	}()

	s.cron.Start()
	s.log.Info("reminder scheduler started", zap.String("cron", spec))
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scheduler) tick() {
	ctx, cancelCtx := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelCtx()

	due, err := s.DueNow(ctx)
	if err != nil {
		s.log.Error("reminder scan failed", zap.Error(err))
		return
	}

	for _, r := range due {
		if err := s.notifier.Notify(ctx, r); err != nil {
			s.log.Error("notify failed",
				zap.String("medicine_id", r.MedicineID), zap.Error(err))
		}
	}
}

// DueNow devuelve las ocurrencias de hoy vencidas, aún pendientes y no
// avisadas todavía, marcándolas como avisadas.
func (s *Scheduler) DueNow(ctx context.Context) ([]Reminder, error) {
	groups, err := s.proj.Upcoming(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	todayKey := dateutil.LocalDateKey(now)

	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Reminder
	for _, g := range groups {
		if g.DateKey != todayKey {
			continue
		}
		for _, o := range g.Items {
			// Pendiente y vencida: planned con registro, o skipped calculado
			// sin registro (nadie actuó sobre ella).
			pending := o.At.Before(now) &&
				(o.Status == history.StatusPlanned || (!o.Recorded && o.Status == history.StatusSkipped))
			if !pending {
				continue
			}

			key := g.DateKey + "|" + o.MedicineID + "|" + o.Time
			if s.sent[key] {
				continue
			}
			s.sent[key] = true

			due = append(due, Reminder{
				MedicineID: o.MedicineID,
				Name:       o.Name,
				Dosage:     o.Dosage,
				Time:       o.Time,
				At:         o.At,
			})
		}
	}
	return due, nil
}

func (s *Scheduler) onEvent(e bus.Event) {
	switch e.Kind {
	case bus.MedicineUpdated, bus.MedicineDeleted:
		s.forget(e.MedicineID)
	case bus.HistoryReset:
		s.mu.Lock()
		s.sent = make(map[string]bool)
		s.mu.Unlock()
	}
}

// forget descarta las claves avisadas de un medicamento para que el
// calendario nuevo se reevalúe.
func (s *Scheduler) forget(medicineID string) {
	if medicineID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.sent {
		parts := strings.SplitN(key, "|", 3)
		if len(parts) == 3 && parts[1] == medicineID {
			delete(s.sent, key)
		}
	}
}
