// Package monitor owns one recurring weather check per scheduled treatment
// and feeds resulting alerts into the batcher.
package monitor

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lawnwatch/internal/alerts"
	"lawnwatch/internal/reschedule"
	"lawnwatch/internal/scheduler"
	"lawnwatch/internal/telemetry"
	"lawnwatch/internal/treatments"
	"lawnwatch/internal/types"
)

// AlertGenerator evaluates a single reading.
type AlertGenerator interface {
	Generate(reading types.WeatherReading, treatmentType types.TreatmentType, c alerts.Context) (*types.WeatherAlert, error)
}

// AlertSink receives generated alerts. The batcher implements it.
type AlertSink interface {
	Add(ctx context.Context, alert types.WeatherAlert)
}

// DateSuggester proposes a better date when a check raises alerts.
type DateSuggester interface {
	FindOptimalTreatmentTime(ctx context.Context, req reschedule.Request) (time.Time, error)
}

// Config holds manager-wide settings.
type Config struct {
	// Default applies when StartRequest.Config is nil.
	Default types.MonitoringConfig
	// CheckTimeout bounds a single check. Default: 30s
	CheckTimeout time.Duration
}

// StartRequest identifies the treatment to monitor.
type StartRequest struct {
	TreatmentID   string
	TreatmentType types.TreatmentType
	Location      types.Location
	ScheduledDate time.Time
	Config        *types.MonitoringConfig
}

// SessionInfo is a read-only view of a monitoring session.
type SessionInfo struct {
	TreatmentID   string                 `json:"treatment_id"`
	TreatmentType types.TreatmentType    `json:"treatment_type"`
	Location      types.Location         `json:"location"`
	ScheduledDate time.Time              `json:"scheduled_date"`
	Config        types.MonitoringConfig `json:"config"`
	StartedAt     time.Time              `json:"started_at"`
	LastCheckedAt *time.Time             `json:"last_checked_at,omitempty"`
	LastError     string                 `json:"last_error,omitempty"`
	Checks        int                    `json:"checks"`
	AlertsRaised  int                    `json:"alerts_raised"`
}

type origin int

const (
	originCaller origin = iota
	originSync
)

type session struct {
	info   SessionInfo
	origin origin
	cancel scheduler.CancelFunc
}

// Deps are the Manager's collaborators. Suggester, Clock, Metrics and
// Logger are optional.
type Deps struct {
	Gateway   types.WeatherGateway
	Generator AlertGenerator
	Sink      AlertSink
	Scheduler scheduler.Scheduler
	Suggester DateSuggester
	Clock     types.Clock
	Metrics   telemetry.Recorder
	Logger    *slog.Logger
}

// Manager tracks at most one session per treatment id. The session table
// is the only mutable state and is guarded by mu.
type Manager struct {
	cfg       Config
	gateway   types.WeatherGateway
	generator AlertGenerator
	sink      AlertSink
	sched     scheduler.Scheduler
	suggester DateSuggester
	clock     types.Clock
	metrics   telemetry.Recorder
	logger    *slog.Logger

	baseCtx  context.Context
	shutdown context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager creates a Manager.
func NewManager(cfg Config, deps Deps) *Manager {
	if cfg.Default == (types.MonitoringConfig{}) {
		cfg.Default = types.MonitoringConfig{CheckIntervalMinutes: 60, ForecastHours: 72}
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 30 * time.Second
	}
	if deps.Clock == nil {
		deps.Clock = types.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:       cfg,
		gateway:   deps.Gateway,
		generator: deps.Generator,
		sink:      deps.Sink,
		sched:     deps.Scheduler,
		suggester: deps.Suggester,
		clock:     deps.Clock,
		metrics:   telemetry.OrNoop(deps.Metrics),
		logger:    deps.Logger.With("component", "monitor"),
		baseCtx:   ctx,
		shutdown:  cancel,
		sessions:  make(map[string]*session),
	}
}

// StartMonitoring registers a session, replacing any existing session for
// the same treatment, then runs one immediate check. A failed immediate
// check is logged and leaves the session active.
func (m *Manager) StartMonitoring(ctx context.Context, req StartRequest) error {
	return m.start(ctx, req, originCaller)
}

func (m *Manager) start(ctx context.Context, req StartRequest, o origin) error {
	if strings.TrimSpace(req.TreatmentID) == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "treatment id is required", nil)
	}
	if _, err := treatments.Lookup(req.TreatmentType); err != nil {
		return err
	}
	if err := types.ValidateLocation(req.Location); err != nil {
		return err
	}
	cfg := m.cfg.Default
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := types.ValidateMonitoringConfig(cfg); err != nil {
		return err
	}

	s := &session{
		origin: o,
		info: SessionInfo{
			TreatmentID:   req.TreatmentID,
			TreatmentType: req.TreatmentType,
			Location:      req.Location,
			ScheduledDate: req.ScheduledDate,
			Config:        cfg,
			StartedAt:     m.clock.Now(),
		},
	}

	m.mu.Lock()
	if old, ok := m.sessions[req.TreatmentID]; ok {
		old.cancel()
	}
	s.cancel = m.sched.Every(cfg.CheckInterval(), func() { m.tick(s) })
	m.sessions[req.TreatmentID] = s
	active := len(m.sessions)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "monitoring started",
		"treatment_id", req.TreatmentID,
		"treatment_type", string(req.TreatmentType),
		"check_interval_minutes", cfg.CheckIntervalMinutes,
		"forecast_hours", cfg.ForecastHours,
	)
	m.metrics.RecordActiveSessions(ctx, active)

	checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.CheckTimeout)
	defer cancel()
	_ = m.check(checkCtx, s)
	return nil
}

// StopMonitoring cancels the session for treatmentID. Stopping an unknown
// id is a no-op. A check already running completes but schedules nothing.
func (m *Manager) StopMonitoring(ctx context.Context, treatmentID string) {
	m.mu.Lock()
	s, ok := m.sessions[treatmentID]
	if ok {
		delete(m.sessions, treatmentID)
	}
	active := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return
	}
	s.cancel()
	m.logger.InfoContext(ctx, "monitoring stopped", "treatment_id", treatmentID)
	m.metrics.RecordActiveSessions(ctx, active)
}

// IsMonitoring reports whether treatmentID has an active session.
func (m *Manager) IsMonitoring(treatmentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[treatmentID]
	return ok
}

// Sessions returns a snapshot of all active sessions ordered by treatment id.
func (m *Manager) Sessions() []SessionInfo {
	m.mu.Lock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.info)
	}
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b SessionInfo) int { return strings.Compare(a.TreatmentID, b.TreatmentID) })
	return out
}

// Shutdown cancels every session and any in-flight check.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.cancel()
	}
	m.shutdown()
	m.logger.InfoContext(ctx, "monitoring shut down", "sessions", len(sessions))
	m.metrics.RecordActiveSessions(ctx, 0)
}

// tick runs a scheduled check if s is still the registered session.
func (m *Manager) tick(s *session) {
	if !m.isCurrent(s) {
		return
	}
	ctx, cancel := context.WithTimeout(m.baseCtx, m.cfg.CheckTimeout)
	defer cancel()
	_ = m.check(ctx, s)
}

func (m *Manager) isCurrent(s *session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[s.info.TreatmentID] == s
}

// check fetches the forecast window and raises alerts for every point that
// violates the treatment's tolerance. Gateway errors are logged and
// returned; they never end the session.
func (m *Manager) check(ctx context.Context, s *session) error {
	info := m.snapshot(s)
	ctx = types.WithRequestID(ctx, uuid.New().String())
	start := m.clock.Now()

	log := m.logger.With(
		"treatment_id", info.TreatmentID,
		"check_id", types.GetRequestID(ctx),
	)

	days := int(math.Ceil(float64(info.Config.ForecastHours) / 24))
	points, err := m.gateway.GetForecast(ctx, info.Location, days)
	if err != nil {
		log.WarnContext(ctx, "monitoring check skipped, forecast unavailable",
			"error_code", string(types.CodeOf(err)),
			"error", err,
		)
		m.record(s, start, 0, err)
		m.metrics.RecordCheck(ctx, info.TreatmentType, m.clock.Now().Sub(start), err)
		return err
	}

	now := m.clock.Now()
	end := now.Add(info.Config.ForecastWindow())

	var raised []types.WeatherAlert
	for _, p := range points {
		if p.Date.Before(now) || p.Date.After(end) {
			continue
		}
		alert, err := m.generator.Generate(p.WeatherReading, info.TreatmentType, alerts.Context{
			TreatmentID:   info.TreatmentID,
			Location:      info.Location,
			ScheduledDate: info.ScheduledDate,
			ForecastDate:  p.Date,
		})
		if err != nil {
			log.ErrorContext(ctx, "alert generation failed", "date", p.Date, "error", err)
			continue
		}
		if alert != nil {
			raised = append(raised, *alert)
		}
	}

	if len(raised) > 0 && m.suggester != nil {
		raised = m.withSuggestion(ctx, log, info, raised)
	}

	for _, a := range raised {
		m.sink.Add(ctx, a)
	}

	m.record(s, start, len(raised), nil)
	m.metrics.RecordCheck(ctx, info.TreatmentType, m.clock.Now().Sub(start), nil)
	log.DebugContext(ctx, "monitoring check completed",
		"forecast_points", len(points),
		"alerts", len(raised),
	)
	return nil
}

func (m *Manager) withSuggestion(ctx context.Context, log *slog.Logger, info SessionInfo, raised []types.WeatherAlert) []types.WeatherAlert {
	date, err := m.suggester.FindOptimalTreatmentTime(ctx, reschedule.Request{
		TreatmentID:   info.TreatmentID,
		TreatmentType: info.TreatmentType,
		Location:      info.Location,
		OriginalDate:  info.ScheduledDate,
	})
	if err != nil {
		log.InfoContext(ctx, "no reschedule suggestion", "error", err)
		return raised
	}
	for i := range raised {
		raised[i] = raised[i].WithSuggestedDate(date)
	}
	return raised
}

func (m *Manager) snapshot(s *session) SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return s.info
}

func (m *Manager) record(s *session, at time.Time, raised int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.info.LastCheckedAt = &at
	s.info.Checks++
	s.info.AlertsRaised += raised
	s.info.LastError = ""
	if err != nil {
		s.info.LastError = err.Error()
	}
}
