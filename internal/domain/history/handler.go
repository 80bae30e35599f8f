package history

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"medicine-history/internal/dateutil"
	"medicine-history/internal/platform/bus"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, signals *bus.Bus) {
	r.Route("/history", func(hr chi.Router) {
		hr.Get("/", getFullHistoryHandler(svc))
		hr.Get("/calendar", getCalendarHandler(svc))
		hr.Get("/{date}", getHistoryForDateHandler(svc))
		hr.Delete("/{date}", clearDateHandler(svc))
		hr.Post("/reset", resetHistoryHandler(svc, signals))
		hr.Post("/migrate", migrateHistoryHandler(svc))
	})
}

// recordResponse representa un registro de toma devuelto por la API.
// display_status resuelve los planned vencidos como skipped.
type recordResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Dosage        string    `json:"dosage"`
	Time          string    `json:"time"`
	Status        Status    `json:"status"`
	DisplayStatus Status    `json:"display_status"`
	Timestamp     time.Time `json:"timestamp"`
}

type changedResponse struct {
	Changed bool `json:"changed"`
}

func toRecordResponse(r DoseRecord, now time.Time) recordResponse {
	return recordResponse{
		ID:            r.ID,
		Name:          r.Name,
		Dosage:        r.Dosage,
		Time:          r.Time,
		Status:        r.Status,
		DisplayStatus: r.DisplayStatus(now),
		Timestamp:     r.Timestamp,
	}
}

// getFullHistoryHandler godoc
// @Summary Historial completo
// @Description Devuelve el agregado completo: clave de fecha local (YYYY-MM-DD) -> registros de toma de ese día.
// @Tags history
// @Produce json
// @Success 200 {object} map[string][]recordResponse
// @Failure 500 {string} string "internal error"
// @Router /history [get]
func getFullHistoryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, err := svc.FullHistory(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		now := time.Now()
		out := make(map[string][]recordResponse, len(h))
		for dateKey, recs := range h {
			day := make([]recordResponse, 0, len(recs))
			for _, rec := range recs {
				day = append(day, toRecordResponse(rec, now))
			}
			out[dateKey] = day
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// getHistoryForDateHandler godoc
// @Summary Historial de un día
// @Description Registros de toma del día indicado. Lista vacía si no hay ninguno.
// @Tags history
// @Produce json
// @Param date path string true "Fecha local YYYY-MM-DD"
// @Success 200 {array} recordResponse
// @Failure 400 {string} string "date must be YYYY-MM-DD"
// @Failure 500 {string} string "internal error"
// @Router /history/{date} [get]
func getHistoryForDateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := dateutil.ParseDateKey(chi.URLParam(r, "date"), time.Local)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		recs, err := svc.HistoryForDate(r.Context(), day)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		now := time.Now()
		out := make([]recordResponse, 0, len(recs))
		for _, rec := range recs {
			out = append(out, toRecordResponse(rec, now))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// clearDateHandler godoc
// @Summary Vaciar un día del historial
// @Tags history
// @Produce json
// @Param date path string true "Fecha local YYYY-MM-DD"
// @Success 200 {object} changedResponse
// @Failure 400 {string} string "date must be YYYY-MM-DD"
// @Failure 500 {string} string "internal error"
// @Router /history/{date} [delete]
func clearDateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := dateutil.ParseDateKey(chi.URLParam(r, "date"), time.Local)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		changed, err := svc.ClearDate(r.Context(), day)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, changedResponse{Changed: changed})
	}
}

// getCalendarHandler godoc
// @Summary Resumen por día para el calendario
// @Description Rollup por fecha (total/tomadas/saltadas/pendientes y estado del día) calculado con display status.
// @Tags history
// @Produce json
// @Success 200 {object} map[string]DaySummary
// @Failure 500 {string} string "internal error"
// @Router /history/calendar [get]
func getCalendarHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := svc.CalendarSummary(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// resetHistoryHandler godoc
// @Summary Reset destructivo del historial
// @Description Reemplaza el historial por uno vacío. Con recreate=true vuelve a sembrar las ocurrencias planned de hoy para cada medicamento guardado.
// @Tags history
// @Produce json
// @Param recreate query bool false "Recrear las ocurrencias de hoy (default false)"
// @Success 204 {string} string ""
// @Failure 500 {string} string "internal error"
// @Router /history/reset [post]
func resetHistoryHandler(svc *Service, signals *bus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recreate, _ := strconv.ParseBool(r.URL.Query().Get("recreate"))
		if err := svc.ResetAllHistory(r.Context(), recreate); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		signals.Publish(bus.Event{Kind: bus.HistoryReset})
		w.WriteHeader(http.StatusNoContent)
	}
}

// migrateHistoryHandler godoc
// @Summary Migrar registros legacy
// @Description Normaliza registros de formatos viejos (sin timestamp, status desconocido o booleano taken). Idempotente.
// @Tags history
// @Produce json
// @Success 200 {object} changedResponse
// @Failure 500 {string} string "internal error"
// @Router /history/migrate [post]
func migrateHistoryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		changed, err := svc.MigrateLegacyHistory(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, changedResponse{Changed: changed})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
