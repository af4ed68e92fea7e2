package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/pkg/logging"
)

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func newRouter(c *clinic, logger *logging.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/specialties", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, c.specialties)
	})

	r.Get("/service-types/specialty/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid specialty id")
			return
		}
		writeData(w, http.StatusOK, c.serviceTypes(id))
	})

	r.Get("/availabilities", func(w http.ResponseWriter, r *http.Request) {
		specialtyID, err := strconv.ParseInt(r.URL.Query().Get("specialty_id"), 10, 64)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "specialty_id is required")
			return
		}
		date, err := booking.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		writeData(w, http.StatusOK, c.availabilities(specialtyID, date))
	})

	r.Post("/appointments/guest", func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		var fields []fieldError
		if strings.TrimSpace(req.Name) == "" {
			fields = append(fields, fieldError{"name", "Name is required"})
		}
		if strings.TrimSpace(req.Phone) == "" {
			fields = append(fields, fieldError{"phone", "Phone is required"})
		}
		if len(fields) > 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Validation failed", "errors": fields})
			return
		}
		create(w, c, logger, guestOwner(req.Phone), req)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireBearer)

		r.Post("/appointments", func(w http.ResponseWriter, r *http.Request) {
			var req createRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
				return
			}
			create(w, c, logger, bearer(r), req)
		})

		r.Get("/appointments/my", func(w http.ResponseWriter, r *http.Request) {
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			if page < 1 {
				page = 1
			}
			if limit < 1 {
				limit = 10
			}
			p := c.mine(bearer(r), page, limit)
			writeJSON(w, http.StatusOK, map[string]any{"data": p.Items, "pagination": p.Pagination})
		})

		r.Patch("/appointments/{id}/status", func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
			if err != nil {
				writeMessage(w, http.StatusBadRequest, "Invalid appointment id")
				return
			}
			var body struct {
				Status booking.AppointmentStatus `json:"status"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
				return
			}
			a, err := c.updateStatus(bearer(r), id, body.Status)
			switch {
			case errors.Is(err, errNotFound):
				writeMessage(w, http.StatusNotFound, err.Error())
			case err != nil:
				writeMessage(w, http.StatusConflict, err.Error())
			default:
				writeData(w, http.StatusOK, a)
			}
		})
	})

	return r
}

func create(w http.ResponseWriter, c *clinic, logger *logging.Logger, owner string, req createRequest) {
	a, err := c.create(owner, req)
	switch {
	case errors.Is(err, errSlotTaken):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, errSlotNotFound), errors.Is(err, errServiceNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errTooManyPending):
		writeMessage(w, http.StatusTooManyRequests, err.Error())
	case err != nil:
		writeMessage(w, http.StatusInternalServerError, err.Error())
	default:
		logger.Info("appointment booked", "appointment_id", a.ID, "slot_id", req.AvailabilityID)
		writeData(w, http.StatusCreated, a)
	}
}

func requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) == "" {
			writeMessage(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(r *http.Request) string {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return strings.TrimSpace(token)
}

func writeData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, map[string]any{"data": v})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
