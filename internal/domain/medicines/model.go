package medicines

import (
	"time"

	"medicine-history/internal/dateutil"
	"medicine-history/internal/domain/history"
)

// Medicine es la entrada definida por el usuario. Los nombres JSON son el
// formato persistido bajo la clave "medicines".
type Medicine struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Dosage string `json:"dosage"`
	Notes  string `json:"notes"`

	// Clasificación del calendario: recurrente o toma única.
	IsRegular bool `json:"isRegular"`

	// Campos de recurrentes.
	Times        []string `json:"times,omitempty"`  // "HH:MM", sin duplicados
	SelectedDays [7]bool  `json:"selectedDays"`     // 0=domingo .. 6=sábado

	// Campos de toma única.
	OneTimeDate time.Time `json:"oneTimeDate,omitzero"`
	OneTimeTime string    `json:"oneTimeTime,omitempty"` // "HH:MM"

	// Contador opcional de pastillas restantes (solo recurrentes).
	Quantity int `json:"quantity"`

	// true cuando la única toma de un medicamento único se marcó tomada.
	Completed bool `json:"completed"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot devuelve la copia denormalizada que guarda el historial.
func (m Medicine) Snapshot() history.Snapshot {
	return history.Snapshot{ID: m.ID, Name: m.Name, Dosage: m.Dosage}
}

// OneTimeAt combina fecha y hora del medicamento único en un instante.
func (m Medicine) OneTimeAt() (time.Time, error) {
	return dateutil.At(m.OneTimeDate, m.OneTimeTime)
}

// Schedule proyecta el medicamento a lo que el engine necesita para
// recrear ocurrencias.
func (m Medicine) Schedule() history.Schedule {
	sch := history.Schedule{
		Snapshot: m.Snapshot(),
		Regular:  m.IsRegular,
		Times:    m.Times,
	}
	if !m.IsRegular {
		if at, err := m.OneTimeAt(); err == nil {
			sch.OneTime = at
		}
	}
	return sch
}
