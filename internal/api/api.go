// Package api exposes the controller over REST for the dashboard and for
// home-automation integrations. Handlers translate domain errors into HTTP
// statuses; all state changes go through the coordinator and sequencer.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sprinksync/irrigation-controller/db"
	"github.com/sprinksync/irrigation-controller/internal/config"
	"github.com/sprinksync/irrigation-controller/internal/coordinator"
	"github.com/sprinksync/irrigation-controller/internal/model"
	"github.com/sprinksync/irrigation-controller/internal/scheduler"
	"github.com/sprinksync/irrigation-controller/internal/sequencer"
	"github.com/sprinksync/irrigation-controller/internal/zoneerrors"
)

type Server struct {
	db     *sql.DB
	coord  *coordinator.Coordinator
	seq    *sequencer.Sequencer
	sched  *scheduler.Engine
	config *config.Config
}

func NewServer(database *sql.DB, coord *coordinator.Coordinator, seq *sequencer.Sequencer, sched *scheduler.Engine, cfg *config.Config) *Server {
	return &Server{
		db:     database,
		coord:  coord,
		seq:    seq,
		sched:  sched,
		config: cfg,
	}
}

func (s *Server) Start(port int) error {
	mux := http.NewServeMux()

	// Add CORS middleware
	corsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		mux.ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/stop-all", s.handleStopAll)
	mux.HandleFunc("/api/zones", s.handleZones)
	mux.HandleFunc("/api/zones/", s.handleZoneOperations)
	mux.HandleFunc("/api/groups", s.handleGroups)
	mux.HandleFunc("/api/groups/", s.handleGroupOperations)
	mux.HandleFunc("/api/schedules", s.handleSchedules)
	mux.HandleFunc("/api/schedules/", s.handleScheduleOperations)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/history", s.handleHistory)

	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Info().Str("address", addr).Msg("Starting REST API server")

	return http.ListenAndServe(addr, corsHandler)
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Running        interface{} `json:"running_zones"`
	Queued         interface{} `json:"queued_zones"`
	ArmedSchedules int         `json:"armed_schedules"`
}

type ZoneResponse struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	DefaultDuration int    `json:"default_duration"`
	TotalRuntime    int    `json:"total_runtime"`
	LastRun         string `json:"last_run,omitempty"`
	IsRunning       bool   `json:"is_running"`
	RemainingTime   int    `json:"remaining_time"`
}

type ZoneUpdateRequest struct {
	Name            string `json:"name"`
	DefaultDuration int    `json:"default_duration"`
}

type StartRequest struct {
	Duration int `json:"duration"`
}

type GroupCreateRequest struct {
	Name            string `json:"name"`
	DefaultDuration int    `json:"default_duration"`
	ZoneIDs         []int  `json:"zone_ids"`
}

type ScheduleRequest struct {
	ZoneID    *int   `json:"zone_id"`
	GroupID   *int   `json:"group_id"`
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"`
	Days      []int  `json:"days"`
	Enabled   *bool  `json:"enabled"`
}

type ToggleRequest struct {
	Enabled bool `json:"enabled"`
}

type SettingsRequest struct {
	MaxConcurrentZones int `json:"max_concurrent_zones"`
	MinDurationMinutes int `json:"min_duration_minutes"`
	MaxDurationMinutes int `json:"max_duration_minutes"`
	StabilizationMs    int `json:"stabilization_ms"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Running:        s.coord.Running(),
		Queued:         s.coord.Queued(),
		ArmedSchedules: s.sched.ArmedCount(),
	})
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	result := s.coord.StopAll()
	log.Warn().Int("count", result.Count).Msg("Stop-all requested via API")
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	zones, err := db.GetAllZones(s.db)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get zones")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response := make([]ZoneResponse, 0, len(zones))
	for _, zone := range zones {
		state := s.coord.State(zone.ID)
		resp := ZoneResponse{
			ID:              zone.ID,
			Name:            zone.Name,
			DefaultDuration: zone.DefaultDuration,
			TotalRuntime:    zone.TotalRuntime,
			IsRunning:       state.IsRunning,
			RemainingTime:   state.RemainingMinutes,
		}
		if !zone.LastRun.IsZero() {
			resp.LastRun = zone.LastRun.Format("2006-01-02T15:04:05Z07:00")
		}
		response = append(response, resp)
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleZoneOperations(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/zones/")
	parts := strings.Split(path, "/")

	if len(parts) < 1 || parts[0] == "" {
		s.writeError(w, http.StatusNotFound, "Zone ID required")
		return
	}

	zoneID, err := strconv.Atoi(parts[0])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Zone ID must be numeric")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.getZone(w, r, zoneID)
		case http.MethodPut:
			s.updateZone(w, r, zoneID)
		default:
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		switch parts[1] {
		case "start":
			s.startZone(w, r, zoneID)
		case "stop":
			s.stopZone(w, r, zoneID)
		default:
			s.writeError(w, http.StatusNotFound, "Unknown operation")
		}
		return
	}

	s.writeError(w, http.StatusNotFound, "Invalid path")
}

func (s *Server) getZone(w http.ResponseWriter, r *http.Request, zoneID int) {
	zone, err := db.GetZoneByID(s.db, zoneID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	state := s.coord.State(zoneID)
	resp := ZoneResponse{
		ID:              zone.ID,
		Name:            zone.Name,
		DefaultDuration: zone.DefaultDuration,
		TotalRuntime:    zone.TotalRuntime,
		IsRunning:       state.IsRunning,
		RemainingTime:   state.RemainingMinutes,
	}
	if !zone.LastRun.IsZero() {
		resp.LastRun = zone.LastRun.Format("2006-01-02T15:04:05Z07:00")
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) updateZone(w http.ResponseWriter, r *http.Request, zoneID int) {
	var req ZoneUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if req.Name == "" || req.DefaultDuration <= 0 {
		s.writeError(w, http.StatusBadRequest, "Name and positive default duration required")
		return
	}

	if _, err := db.GetZoneByID(s.db, zoneID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	if err := db.UpdateZone(s.db, zoneID, req.Name, req.DefaultDuration); err != nil {
		log.Error().Err(err).Int("zone_id", zoneID).Msg("Failed to update zone")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Int("zone_id", zoneID).Str("name", req.Name).Msg("Zone updated via API")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) startZone(w http.ResponseWriter, r *http.Request, zoneID int) {
	var req StartRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	duration := req.Duration
	if duration <= 0 {
		zone, err := db.GetZoneByID(s.db, zoneID)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		duration = zone.DefaultDuration
	}

	result, err := s.coord.Start(zoneID, duration, model.TriggerManual, nil)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) stopZone(w http.ResponseWriter, r *http.Request, zoneID int) {
	result, err := s.coord.Stop(zoneID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		groups, err := db.GetAllGroups(s.db)
		if err != nil {
			log.Error().Err(err).Msg("Failed to get groups")
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, groups)
	case http.MethodPost:
		var req GroupCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
			return
		}
		if req.Name == "" || len(req.ZoneIDs) == 0 || req.DefaultDuration <= 0 {
			s.writeError(w, http.StatusBadRequest, "Name, positive default duration, and at least one zone required")
			return
		}
		groupID, err := db.CreateGroup(s.db, req.Name, req.DefaultDuration, req.ZoneIDs)
		if err != nil {
			log.Error().Err(err).Str("name", req.Name).Msg("Failed to create group")
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		log.Info().Int("group_id", groupID).Str("name", req.Name).Msg("Group created via API")
		s.writeJSON(w, http.StatusCreated, map[string]int{"id": groupID})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleGroupOperations(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/groups/")
	parts := strings.Split(path, "/")

	if len(parts) < 1 || parts[0] == "" {
		s.writeError(w, http.StatusNotFound, "Group ID required")
		return
	}

	groupID, err := strconv.Atoi(parts[0])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Group ID must be numeric")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.getGroup(w, r, groupID)
		case http.MethodDelete:
			s.deleteGroup(w, r, groupID)
		default:
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	if len(parts) == 2 && parts[1] == "run" && r.Method == http.MethodPost {
		s.runGroup(w, r, groupID)
		return
	}

	s.writeError(w, http.StatusNotFound, "Invalid path")
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request, groupID int) {
	group, err := db.GetGroupByID(s.db, groupID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	members, err := db.GetGroupMembers(s.db, groupID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":               group.ID,
		"name":             group.Name,
		"default_duration": group.DefaultDuration,
		"zones":            members,
	})
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request, groupID int) {
	if _, err := db.GetGroupByID(s.db, groupID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	// Abandon any pending members of a sequence in flight before the rows go.
	s.seq.CancelGroup(groupID)

	if err := db.DeleteGroup(s.db, groupID); err != nil {
		log.Error().Err(err).Int("group_id", groupID).Msg("Failed to delete group")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info().Int("group_id", groupID).Msg("Group deleted via API")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) runGroup(w http.ResponseWriter, r *http.Request, groupID int) {
	var req StartRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := s.seq.Run(groupID, req.Duration, model.TriggerGroup, nil)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		schedules, err := db.GetAllSchedules(s.db)
		if err != nil {
			log.Error().Err(err).Msg("Failed to get schedules")
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, schedules)
	case http.MethodPost:
		s.createSchedule(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	sched, errMsg := scheduleFromRequest(req)
	if errMsg != "" {
		s.writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	id, err := db.CreateSchedule(s.db, sched)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create schedule")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.sched.Rearm(id); err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("Failed to arm new schedule")
	}
	log.Info().Int("schedule_id", id).Msg("Schedule created via API")
	s.writeJSON(w, http.StatusCreated, map[string]int{"id": id})
}

func (s *Server) handleScheduleOperations(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/schedules/")
	parts := strings.Split(path, "/")

	if len(parts) < 1 || parts[0] == "" {
		s.writeError(w, http.StatusNotFound, "Schedule ID required")
		return
	}

	scheduleID, err := strconv.Atoi(parts[0])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Schedule ID must be numeric")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.getSchedule(w, r, scheduleID)
		case http.MethodPut:
			s.updateSchedule(w, r, scheduleID)
		case http.MethodDelete:
			s.deleteSchedule(w, r, scheduleID)
		default:
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	if len(parts) == 2 && parts[1] == "toggle" && r.Method == http.MethodPut {
		s.toggleSchedule(w, r, scheduleID)
		return
	}

	s.writeError(w, http.StatusNotFound, "Invalid path")
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request, scheduleID int) {
	sched, err := db.GetScheduleByID(s.db, scheduleID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sched)
}

func (s *Server) updateSchedule(w http.ResponseWriter, r *http.Request, scheduleID int) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	sched, errMsg := scheduleFromRequest(req)
	if errMsg != "" {
		s.writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	sched.ID = scheduleID

	if _, err := db.GetScheduleByID(s.db, scheduleID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	if err := db.UpdateSchedule(s.db, sched); err != nil {
		log.Error().Err(err).Int("schedule_id", scheduleID).Msg("Failed to update schedule")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.sched.Rearm(scheduleID); err != nil {
		log.Error().Err(err).Int("schedule_id", scheduleID).Msg("Failed to rearm schedule")
	}
	log.Info().Int("schedule_id", scheduleID).Msg("Schedule updated via API")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request, scheduleID int) {
	if _, err := db.GetScheduleByID(s.db, scheduleID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.sched.Disarm(scheduleID)
	if err := db.DeleteSchedule(s.db, scheduleID); err != nil {
		log.Error().Err(err).Int("schedule_id", scheduleID).Msg("Failed to delete schedule")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info().Int("schedule_id", scheduleID).Msg("Schedule deleted via API")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) toggleSchedule(w http.ResponseWriter, r *http.Request, scheduleID int) {
	var req ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if _, err := db.GetScheduleByID(s.db, scheduleID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	if err := db.SetScheduleEnabled(s.db, scheduleID, req.Enabled); err != nil {
		log.Error().Err(err).Int("schedule_id", scheduleID).Msg("Failed to toggle schedule")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.sched.Rearm(scheduleID); err != nil {
		log.Error().Err(err).Int("schedule_id", scheduleID).Msg("Failed to rearm schedule after toggle")
	}
	log.Info().Int("schedule_id", scheduleID).Bool("enabled", req.Enabled).Msg("Schedule toggled via API")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limits, err := db.GetSafetyLimits(s.db)
		if err != nil {
			log.Error().Err(err).Msg("Failed to get settings")
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, SettingsRequest{
			MaxConcurrentZones: limits.MaxConcurrentZones,
			MinDurationMinutes: limits.MinDurationMinutes,
			MaxDurationMinutes: limits.MaxDurationMinutes,
			StabilizationMs:    limits.StabilizationMs,
		})
	case http.MethodPut:
		var req SettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
			return
		}
		if req.MaxConcurrentZones < 1 || req.MinDurationMinutes < 1 || req.MaxDurationMinutes < req.MinDurationMinutes {
			s.writeError(w, http.StatusBadRequest, "Invalid safety limits")
			return
		}
		err := db.UpdateSafetyLimits(s.db, model.SafetyLimits{
			MaxConcurrentZones: req.MaxConcurrentZones,
			MinDurationMinutes: req.MinDurationMinutes,
			MaxDurationMinutes: req.MaxDurationMinutes,
			StabilizationMs:    req.StabilizationMs,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to update settings")
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		log.Info().Int("max_concurrent", req.MaxConcurrentZones).Msg("Safety limits updated via API")
		w.WriteHeader(http.StatusOK)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	records, err := db.GetRecentHistory(s.db, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get history")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

// scheduleFromRequest validates and converts an API schedule payload.
func scheduleFromRequest(req ScheduleRequest) (model.Schedule, string) {
	var sched model.Schedule

	if (req.ZoneID == nil) == (req.GroupID == nil) {
		return sched, "Exactly one of zone_id or group_id required"
	}
	if len(req.StartTime) != 5 || req.StartTime[2] != ':' {
		return sched, "Start time must be HH:MM"
	}
	if req.Duration <= 0 {
		return sched, "Positive duration required"
	}
	for _, d := range req.Days {
		if d < 0 || d > 6 {
			return sched, "Days must be 0 (Sunday) through 6 (Saturday)"
		}
	}

	sched.ZoneID = req.ZoneID
	sched.GroupID = req.GroupID
	sched.StartTime = req.StartTime
	sched.Duration = req.Duration
	for _, d := range req.Days {
		sched.Days = append(sched.Days, time.Weekday(d))
	}
	sched.Enabled = true
	if req.Enabled != nil {
		sched.Enabled = *req.Enabled
	}
	return sched, ""
}

// writeDomainError maps domain errors onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var limitErr *zoneerrors.ConcurrencyLimitError
	var durErr *zoneerrors.InvalidDurationError
	var memberErr *zoneerrors.MemberAlreadyRunningError
	var hwErr *zoneerrors.HardwareError

	switch {
	case errors.Is(err, zoneerrors.ErrZoneNotFound),
		errors.Is(err, zoneerrors.ErrGroupNotFound),
		errors.Is(err, sql.ErrNoRows):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, zoneerrors.ErrAlreadyRunning),
		errors.Is(err, zoneerrors.ErrNotRunning):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &limitErr), errors.As(err, &memberErr):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, zoneerrors.ErrEmptyGroup), errors.As(err, &durErr):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &hwErr):
		log.Error().Err(err).Msg("Hardware fault surfaced via API")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		log.Error().Err(err).Msg("Unexpected error surfaced via API")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
