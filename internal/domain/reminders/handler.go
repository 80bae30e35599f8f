package reminders

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/reminders", listRemindersHandler(svc))
}

// listRemindersHandler godoc
// @Summary Próximas tomas
// @Description Ocurrencias de hoy..+7 días para recurrentes (según selected_days) y hoy..futuro para los de toma única pendientes, agrupadas por fecha local.
// @Tags reminders
// @Produce json
// @Success 200 {array} DayGroup
// @Failure 500 {string} string "internal error"
// @Router /reminders [get]
func listRemindersHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := svc.Upcoming(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(groups)
	}
}
