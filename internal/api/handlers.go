package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/dental-booking/internal/appointments"
	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/gateway"
	"github.com/hackgods/dental-booking/internal/identity"
	"github.com/hackgods/dental-booking/internal/session"
	"github.com/hackgods/dental-booking/internal/wizard"
)

var errBadEvent = errors.New("invalid wizard event")

func createSessionHandler(store *session.Store, settle time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := store.Create(identity.FromContext(r.Context()))
		state := settled(r.Context(), sess.Wizard, settle)
		writeJSON(w, http.StatusCreated, SessionResponse{SessionID: sess.ID, State: newStateView(state)})
	}
}

func getSessionHandler(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := lookupSession(w, r, store)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, SessionResponse{SessionID: sess.ID, State: newStateView(sess.Wizard.State())})
	}
}

func deleteSessionHandler(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(chi.URLParam(r, "id"), identity.FromContext(r.Context())); err != nil {
			handleSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// wizardEventHandler applies one event and answers with the state once the
// calls it started have settled or settle has elapsed.
func wizardEventHandler(store *session.Store, settle time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := lookupSession(w, r, store)
		if !ok {
			return
		}

		var req WizardEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if err := applyEvent(sess.Wizard, req); err != nil {
			handleEventError(w, err)
			return
		}

		state := settled(r.Context(), sess.Wizard, settle)
		writeJSON(w, http.StatusOK, SessionResponse{SessionID: sess.ID, State: newStateView(state)})
	}
}

func applyEvent(o *wizard.Orchestrator, req WizardEventRequest) error {
	switch req.Type {
	case EventSelectSpecialty, EventSelectService, EventSelectAvailability:
		if req.ID == nil {
			return fmt.Errorf("%w: %s requires id", errBadEvent, req.Type)
		}
		switch req.Type {
		case EventSelectSpecialty:
			o.SelectSpecialty(*req.ID)
		case EventSelectService:
			o.SelectService(*req.ID)
		default:
			o.SelectAvailability(*req.ID)
		}
	case EventSelectDate:
		if req.Date == nil || req.Date.IsZero() {
			return fmt.Errorf("%w: select_date requires date", errBadEvent)
		}
		o.SelectDate(*req.Date)
	case EventUpdateContact:
		if req.Contact == nil {
			return fmt.Errorf("%w: update_contact requires contact", errBadEvent)
		}
		o.UpdateContact(*req.Contact)
	case EventUpdateNotes:
		if req.Notes == nil {
			return fmt.Errorf("%w: update_notes requires notes", errBadEvent)
		}
		o.UpdateNotes(*req.Notes)
	case EventNext:
		o.Next()
	case EventPrevious:
		o.Previous()
	case EventSubmit:
		_, err := o.Submit()
		return err
	case EventReset:
		o.Reset()
	case EventRetry:
		o.Retry()
	default:
		return fmt.Errorf("%w: unknown type %q", errBadEvent, req.Type)
	}
	return nil
}

func listAppointmentsHandler(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.List(identity.FromContext(r.Context()))
		if err != nil {
			handleSessionError(w, err)
			return
		}

		var page *booking.AppointmentPage
		q := r.URL.Query()
		if q.Has("page") || q.Has("limit") {
			page, err = list.LoadPage(r.Context(), atoi(q.Get("page")), atoi(q.Get("limit")))
		} else {
			page, err = list.Page(r.Context())
		}
		if err != nil {
			handleUpstreamError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentPage(page))
	}
}

func updateStatusHandler(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a positive integer")
			return
		}

		var req StatusUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		list, err := store.List(identity.FromContext(r.Context()))
		if err != nil {
			handleSessionError(w, err)
			return
		}

		updated, err := list.UpdateStatus(r.Context(), id, req.Status)
		if err != nil {
			switch {
			case errors.Is(err, appointments.ErrInvalidTransition):
				writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			case errors.Is(err, appointments.ErrTerminalStatus):
				writeError(w, http.StatusConflict, "terminal_status", err.Error())
			default:
				handleUpstreamError(w, err)
			}
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentView(*updated))
	}
}

func lookupSession(w http.ResponseWriter, r *http.Request, store *session.Store) (*session.Session, bool) {
	sess, err := store.Get(chi.URLParam(r, "id"), identity.FromContext(r.Context()))
	if err != nil {
		handleSessionError(w, err)
		return nil, false
	}
	return sess, true
}

func settled(ctx context.Context, o *wizard.Orchestrator, settle time.Duration) wizard.State {
	if settle > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, settle)
		defer cancel()
		_ = o.Wait(waitCtx)
	}
	return o.State()
}

func handleSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, session.ErrForbidden):
		writeError(w, http.StatusForbidden, "session_forbidden", err.Error())
	case errors.Is(err, session.ErrSignedOut):
		writeError(w, http.StatusUnauthorized, "sign_in_required", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleEventError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadEvent):
		writeError(w, http.StatusBadRequest, "invalid_event", err.Error())
	case errors.Is(err, wizard.ErrNotAtConfirmation):
		writeError(w, http.StatusConflict, "not_at_confirmation", err.Error())
	case errors.Is(err, wizard.ErrSubmissionInProgress):
		writeError(w, http.StatusConflict, "submission_in_progress", err.Error())
	case errors.Is(err, wizard.ErrCompleted):
		writeError(w, http.StatusConflict, "booking_completed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// handleUpstreamError passes the clinic API's status through. Transport
// failures become 502.
func handleUpstreamError(w http.ResponseWriter, err error) {
	apiErr := gateway.AsAPIError(err)
	status := apiErr.StatusCode
	if status == 0 || status >= 500 {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, ErrorResponse{
		Error:       "upstream_error",
		Details:     apiErr.Message,
		FieldErrors: apiErr.Details,
	})
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
