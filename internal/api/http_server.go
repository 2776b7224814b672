package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"citaplan/internal/config"
	"citaplan/internal/database"
	"citaplan/internal/metrics"
	"citaplan/internal/models"
	"citaplan/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking engine over HTTP.
type HTTPServer struct {
	cfg     config.APIConfig
	booking *service.BookingService
	server  *http.Server
	auth    *HTTPAuth
	logger  *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, booking *service.BookingService, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{cfg: cfg, booking: booking, logger: logger}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/types", srv.handleTypes)
	mux.HandleFunc("/api/v1/tariffs", srv.handleTariffs)
	mux.HandleFunc("/api/v1/slots", srv.handleSlots)
	mux.HandleFunc("/api/v1/appointments", srv.handleAppointments)
	mux.HandleFunc("/api/v1/appointments/", srv.handleAppointmentByID)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(srv.userTokenMiddleware(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// userTokenMiddleware copies the caller's token header onto the
// context; identity resolution happens in the service layer only for
// operations that need it.
func (s *HTTPServer) userTokenMiddleware(next http.Handler) http.Handler {
	header := headerOrDefault(s.cfg.Auth.HeaderUserToken, "x-user-token")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := strings.TrimSpace(r.Header.Get(header)); token != "" {
			r = r.WithContext(service.WithUserToken(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("types")

	types, err := s.booking.ListAppointmentTypes(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"types": types})
}

func (s *HTTPServer) handleTariffs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("tariffs")

	typeID, err := queryInt64(r, "type_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tariffs, err := s.booking.ListTariffs(r.Context(), typeID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tariffs": tariffs})
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("slots")

	typeID, err := queryInt64(r, "type_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	staffID, err := queryInt64(r, "staff_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	var slots []models.CandidateSlot
	if raw := strings.TrimSpace(r.URL.Query().Get("tariff_id")); raw != "" {
		tariffID, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid tariff_id")
			return
		}
		slots, err = s.booking.BuildCatalogForTariff(r.Context(), typeID, staffID, date, tariffID)
	} else {
		duration, parseErr := queryInt64(r, "duration_minutes")
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "tariff_id or duration_minutes is required")
			return
		}
		slots, err = s.booking.BuildCatalog(r.Context(), typeID, staffID, date, int(duration))
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

type commitRequest struct {
	AppointmentTypeID int64         `json:"appointment_type_id"`
	StaffID           int64         `json:"staff_id"`
	TariffID          int64         `json:"tariff_id"`
	Slots             []slotRequest `json:"slots"`
}

type slotRequest struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

func (s *HTTPServer) handleAppointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		metrics.IncHTTP("appointments_list")
		appts, err := s.booking.ListMine(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})

	case http.MethodPost:
		metrics.IncHTTP("appointments_create")

		var body commitRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		in := service.CommitInput{
			AppointmentTypeID: body.AppointmentTypeID,
			StaffID:           body.StaffID,
			TariffID:          body.TariffID,
		}
		for _, slot := range body.Slots {
			in.Slots = append(in.Slots, models.SlotRequest{StartAt: slot.StartAt, EndAt: slot.EndAt})
		}

		created, err := s.booking.Commit(r.Context(), in)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"appointments": created})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleAppointmentByID(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/appointments/"
	raw := strings.TrimPrefix(r.URL.Path, prefix)
	if raw == "" || strings.Contains(raw, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("appointments_cancel")

	if err := s.booking.Cancel(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// writeServiceError translates service and storage errors to statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrQuotaExceeded):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, database.ErrSlotConflict):
		writeError(w, http.StatusConflict, "one or more requested slots are no longer available")
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(recorder, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
