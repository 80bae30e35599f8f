package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reminder es el aviso que se entrega cuando una toma está pendiente.
type Reminder struct {
	MedicineID string
	Name       string
	Dosage     string
	Time       string // "HH:MM"
	At         time.Time
}

// Notifier es el colaborador externo que entrega el aviso. La entrega real
// (push del sistema, vibración) queda fuera de este servicio.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// LogNotifier es la implementación por defecto: deja el aviso en el log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, r Reminder) error {
	n.log.Info("time to take medicine",
		zap.String("medicine_id", r.MedicineID),
		zap.String("name", r.Name),
		zap.String("dosage", r.Dosage),
		zap.String("time", r.Time))
	return nil
}
