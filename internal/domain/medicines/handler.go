package medicines

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"medicine-history/internal/domain/history"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/medicines", func(mr chi.Router) {
		mr.Post("/", createMedicineHandler(svc))
		mr.Get("/", listMedicinesHandler(svc))

		mr.Get("/{medicineID}", getMedicineHandler(svc))
		mr.Patch("/{medicineID}", updateMedicineHandler(svc))
		mr.Delete("/{medicineID}", deleteMedicineHandler(svc))

		// Registrar/actualizar una toma de este medicamento.
		mr.Post("/{medicineID}/doses", recordDoseHandler(svc))
	})
}

// createMedicineRequest es el cuerpo para dar de alta un medicamento.
type createMedicineRequest struct {
	Name   string `json:"name"`
	Dosage string `json:"dosage"`
	Notes  string `json:"notes"`

	IsRegular    bool     `json:"is_regular"`
	Times        []string `json:"times"`         // "HH:MM"
	SelectedDays []bool   `json:"selected_days"` // 7 elementos, 0=domingo

	OneTimeDate string `json:"one_time_date"` // YYYY-MM-DD
	OneTimeTime string `json:"one_time_time"` // "HH:MM"

	Quantity int `json:"quantity"`
}

type updateMedicineRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Name   *string `json:"name"`
	Dosage *string `json:"dosage"`
	Notes  *string `json:"notes"`

	IsRegular    *bool     `json:"is_regular"`
	Times        *[]string `json:"times"`
	SelectedDays *[]bool   `json:"selected_days"`

	OneTimeDate *string `json:"one_time_date"`
	OneTimeTime *string `json:"one_time_time"`

	Quantity *int `json:"quantity"`
}

type recordDoseRequest struct {
	Status     history.Status `json:"status" enums:"planned,taken,skipped"`
	OccurredAt string         `json:"occurred_at"` // RFC3339
}

// medicineResponse representa un medicamento devuelto por la API.
type medicineResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Dosage string `json:"dosage"`
	Notes  string `json:"notes"`

	IsRegular    bool     `json:"is_regular"`
	Times        []string `json:"times,omitempty"`
	SelectedDays [7]bool  `json:"selected_days"`

	OneTimeDate string `json:"one_time_date,omitempty"`
	OneTimeTime string `json:"one_time_time,omitempty"`

	Quantity  int  `json:"quantity"`
	Completed bool `json:"completed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toMedicineResponse(m Medicine) medicineResponse {
	resp := medicineResponse{
		ID:           m.ID,
		Name:         m.Name,
		Dosage:       m.Dosage,
		Notes:        m.Notes,
		IsRegular:    m.IsRegular,
		Times:        m.Times,
		SelectedDays: m.SelectedDays,
		OneTimeTime:  m.OneTimeTime,
		Quantity:     m.Quantity,
		Completed:    m.Completed,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if !m.OneTimeDate.IsZero() {
		resp.OneTimeDate = m.OneTimeDate.Format("2006-01-02")
	}
	return resp
}

func toDays(in []bool) ([7]bool, bool) {
	var out [7]bool
	if len(in) == 0 {
		return out, true
	}
	if len(in) != 7 {
		return out, false
	}
	copy(out[:], in)
	return out, true
}

// createMedicineHandler godoc
// @Summary Crear medicamento
// @Description Da de alta un medicamento (recurrente o de toma única) y siembra sus registros planned iniciales en el historial.
// @Tags medicines
// @Accept json
// @Produce json
// @Param payload body createMedicineRequest true "Datos del medicamento; one_time_date en YYYY-MM-DD, horas en HH:MM"
// @Success 201 {object} medicineResponse
// @Failure 400 {string} string "invalid json / reglas de negocio"
// @Failure 500 {string} string "internal error"
// @Router /medicines [post]
func createMedicineHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createMedicineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		days, ok := toDays(req.SelectedDays)
		if !ok {
			http.Error(w, "selected_days must have 7 elements", http.StatusBadRequest)
			return
		}

		in := CreateInput{
			Name:         req.Name,
			Dosage:       req.Dosage,
			Notes:        req.Notes,
			IsRegular:    req.IsRegular,
			Times:        req.Times,
			SelectedDays: days,
			OneTimeTime:  req.OneTimeTime,
			Quantity:     req.Quantity,
		}
		if strings.TrimSpace(req.OneTimeDate) != "" {
			d, err := time.ParseInLocation("2006-01-02", req.OneTimeDate, time.Local)
			if err != nil {
				http.Error(w, "one_time_date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			in.OneTimeDate = d
		}

		m, err := svc.Create(r.Context(), in)
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, toMedicineResponse(m))
	}
}

// listMedicinesHandler godoc
// @Summary Listar medicamentos
// @Tags medicines
// @Produce json
// @Success 200 {array} medicineResponse
// @Failure 500 {string} string "internal error"
// @Router /medicines [get]
func listMedicinesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		out := make([]medicineResponse, 0, len(list))
		for _, m := range list {
			out = append(out, toMedicineResponse(m))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// getMedicineHandler godoc
// @Summary Perfil de un medicamento
// @Tags medicines
// @Produce json
// @Param medicineID path string true "ID del medicamento"
// @Success 200 {object} medicineResponse
// @Failure 404 {string} string "medicine not found"
// @Router /medicines/{medicineID} [get]
func getMedicineHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := svc.GetByID(r.Context(), chi.URLParam(r, "medicineID"))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "medicine not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toMedicineResponse(m))
	}
}

// updateMedicineHandler godoc
// @Summary Editar medicamento
// @Description Aplica un PATCH y reconcilia el historial: un cambio estructural (tipo, set de horas, fecha/hora del único) recrea las ocurrencias planned; uno no estructural solo refresca nombre/dosis en los registros.
// @Tags medicines
// @Accept json
// @Produce json
// @Param medicineID path string true "ID del medicamento"
// @Param payload body updateMedicineRequest true "Campos a tocar (los ausentes se conservan)"
// @Success 200 {object} medicineResponse
// @Failure 400 {string} string "invalid json / reglas de negocio"
// @Failure 404 {string} string "medicine not found"
// @Router /medicines/{medicineID} [patch]
func updateMedicineHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateMedicineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		in := UpdateInput{
			Name:        req.Name,
			Dosage:      req.Dosage,
			Notes:       req.Notes,
			IsRegular:   req.IsRegular,
			Times:       req.Times,
			OneTimeTime: req.OneTimeTime,
			Quantity:    req.Quantity,
		}
		if req.SelectedDays != nil {
			days, ok := toDays(*req.SelectedDays)
			if !ok {
				http.Error(w, "selected_days must have 7 elements", http.StatusBadRequest)
				return
			}
			in.SelectedDays = &days
		}
		if req.OneTimeDate != nil {
			d, err := time.ParseInLocation("2006-01-02", *req.OneTimeDate, time.Local)
			if err != nil {
				http.Error(w, "one_time_date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			in.OneTimeDate = &d
		}

		m, err := svc.Update(r.Context(), chi.URLParam(r, "medicineID"), in)
		if err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				http.Error(w, "medicine not found", http.StatusNotFound)
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusOK, toMedicineResponse(m))
	}
}

// deleteMedicineHandler godoc
// @Summary Borrar medicamento
// @Description Borra el medicamento y sus registros planned. Los taken/skipped quedan en el historial.
// @Tags medicines
// @Param medicineID path string true "ID del medicamento"
// @Success 204 {string} string ""
// @Failure 404 {string} string "medicine not found"
// @Router /medicines/{medicineID} [delete]
func deleteMedicineHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := svc.Delete(r.Context(), chi.URLParam(r, "medicineID"))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "medicine not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// recordDoseHandler godoc
// @Summary Registrar una toma
// @Description Registra (o actualiza in place) la toma de la ocurrencia indicada. Una ocurrencia futura se guarda siempre como planned. Un taken no futuro descuenta pastillas (recurrentes) o completa el medicamento (toma única).
// @Tags medicines
// @Accept json
// @Produce json
// @Param medicineID path string true "ID del medicamento"
// @Param payload body recordDoseRequest true "Estado y occurred_at en RFC3339"
// @Success 200 {object} medicineResponse
// @Failure 400 {string} string "invalid json / occurred_at inválido"
// @Failure 404 {string} string "medicine not found"
// @Router /medicines/{medicineID}/doses [post]
func recordDoseHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordDoseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		at, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			http.Error(w, "occurred_at must be RFC3339", http.StatusBadRequest)
			return
		}

		m, err := svc.SetDoseStatus(r.Context(), chi.URLParam(r, "medicineID"), req.Status, at.Local())
		if err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				http.Error(w, "medicine not found", http.StatusNotFound)
			case errors.Is(err, history.ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusOK, toMedicineResponse(m))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
