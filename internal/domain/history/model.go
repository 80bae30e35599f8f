package history

import (
	"strings"
	"time"
)

// Snapshot es la copia denormalizada (nombre/dosis) que cada registro
// guarda del medicamento. Intencional: el historial debe sobrevivir al
// borrado del medicamento.
type Snapshot struct {
	ID     string
	Name   string
	Dosage string
}

// DoseRecord es una ocurrencia de toma: planificada, tomada o saltada.
// Los nombres JSON son el formato persistido (compartido con versiones
// anteriores de la app, de ahí el campo legacy `taken`).
type DoseRecord struct {
	// ID = "{medicineID}_{sufijo único}". El prefijo es la única join key
	// estable hacia el medicamento.
	ID     string `json:"id"`
	Name   string `json:"name"`
	Dosage string `json:"dosage"`

	Time      string    `json:"time"` // "HH:MM" local
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp,omitzero"`

	// Formato viejo: booleano en lugar de status. Solo lo toca la migración.
	LegacyTaken *bool `json:"taken,omitempty"`
}

// BelongsTo dice si el registro pertenece al medicamento dado.
func (r DoseRecord) BelongsTo(medicineID string) bool {
	return medicineID != "" && strings.HasPrefix(r.ID, medicineID+"_")
}

// DisplayStatus resuelve el estado a mostrar: un planned cuyo timestamp ya
// pasó se muestra como skipped, sin mutar lo persistido.
func (r DoseRecord) DisplayStatus(now time.Time) Status {
	if r.Status == StatusPlanned && !r.Timestamp.IsZero() && r.Timestamp.Before(now) {
		return StatusSkipped
	}
	return r.Status
}

// History es el agregado completo: clave de fecha local -> registros en
// orden de inserción. Una fecha sin registros no se guarda.
type History map[string][]DoseRecord

// Find busca el registro de un medicamento a una hora dada dentro de un día.
func (h History) Find(dateKey, medicineID, clock string) (DoseRecord, bool) {
	for _, r := range h[dateKey] {
		if r.BelongsTo(medicineID) && r.Time == clock {
			return r, true
		}
	}
	return DoseRecord{}, false
}

// DaySummary es el rollup de un día para el calendario.
type DaySummary struct {
	Total   int      `json:"total"`
	Taken   int      `json:"taken"`
	Skipped int      `json:"skipped"`
	Planned int      `json:"planned"`
	State   DayState `json:"state"`
}
