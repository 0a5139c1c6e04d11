// -----------------------------------------------------------------------
// Quota Manager - Daily request/token budgeting across Gemini models
// with purpose-based routing and midnight reset
// -----------------------------------------------------------------------

package quota

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/models"
)

// Model identifiers for the tracked free-tier models
const (
	ModelCheapFast    = "gemini-2.0-flash-lite"
	ModelExpFast      = "gemini-2.0-flash-exp"
	ModelStandardFast = "gemini-2.0-flash"
	ModelPremium      = "gemini-1.5-pro"
	ModelExpPremium   = "gemini-exp-1206"
)

// defaultLimits are the free-tier caps per model
var defaultLimits = map[string]models.ModelLimits{
	ModelCheapFast:    {RequestsPerMinute: 30, TokensPerMinute: 1_000_000, RequestsPerDay: 1500},
	ModelExpFast:      {RequestsPerMinute: 10, TokensPerMinute: 1_000_000, RequestsPerDay: 50},
	ModelStandardFast: {RequestsPerMinute: 15, TokensPerMinute: 1_000_000, RequestsPerDay: 1500},
	ModelPremium:      {RequestsPerMinute: 2, TokensPerMinute: 32_000, RequestsPerDay: 50},
	ModelExpPremium:   {RequestsPerMinute: 10, TokensPerMinute: 1_000_000, RequestsPerDay: 50},
}

// purposePreferences order candidate models per task purpose, the
// model sized for the task first
var purposePreferences = map[models.TaskPurpose][]string{
	models.PurposeBulkProcessing:   {ModelCheapFast, ModelExpFast, ModelStandardFast},
	models.PurposeQuickSummary:     {ModelExpFast, ModelStandardFast, ModelCheapFast},
	models.PurposeStandardAnalysis: {ModelStandardFast, ModelExpFast, ModelPremium},
	models.PurposeDetailedAnalysis: {ModelPremium, ModelExpPremium, ModelStandardFast},
	models.PurposeVisionAnalysis:   {ModelStandardFast, ModelPremium, ModelExpFast},
	models.PurposeCriticalTask:     {ModelPremium, ModelExpPremium, ModelStandardFast},
}

// allModels is the exhaustion fallback order when every preferred model
// is out of daily requests
var allModels = []string{ModelCheapFast, ModelStandardFast, ModelExpFast, ModelExpPremium, ModelPremium}

// modelState couples limits, usage counters and an rpm pacer
type modelState struct {
	limits  models.ModelLimits
	usage   models.ModelUsage
	limiter *rate.Limiter
}

// Manager tracks per-model daily usage and routes purposes to models.
// A single mutex guards all state; counters reset when the day key in
// the configured timezone changes.
type Manager struct {
	mu       sync.Mutex
	models   map[string]*modelState
	dayKey   string
	location *time.Location
	budget   int
	spent    int
	enabled  bool
	now      func() time.Time
	cron     *cron.Cron
	logger   arbor.ILogger
}

// NewManager creates a quota manager from configuration. An invalid
// timezone falls back to UTC.
func NewManager(config *common.QuotaConfig, logger arbor.ILogger) *Manager {
	location, err := time.LoadLocation(config.Timezone)
	if err != nil {
		logger.Warn().Str("timezone", config.Timezone).Err(err).Msg("Invalid quota timezone, using UTC")
		location = time.UTC
	}

	m := &Manager{
		models:   make(map[string]*modelState),
		location: location,
		budget:   config.DailyTokenBudget,
		enabled:  config.Enabled,
		now:      time.Now,
		logger:   logger,
	}

	for model, limits := range defaultLimits {
		m.models[model] = &modelState{
			limits:  limits,
			limiter: rate.NewLimiter(rate.Limit(float64(limits.RequestsPerMinute)/60.0), limits.RequestsPerMinute),
		}
	}
	m.dayKey = m.currentDayKey()

	return m
}

// StartResetTicker runs a cron job that fires just after local midnight
// so counters roll over even when the manager is idle
func (m *Manager) StartResetTicker() {
	m.cron = cron.New(cron.WithLocation(m.location))
	m.cron.AddFunc("1 0 * * *", func() {
		m.mu.Lock()
		m.checkAndResetIfNeeded()
		m.mu.Unlock()
		m.logger.Info().Msg("Daily quota counters reset")
	})
	m.cron.Start()
}

// Stop halts the reset ticker
func (m *Manager) Stop() {
	if m.cron != nil {
		m.cron.Stop()
	}
}

// Tracks reports whether the given model is under quota management
func (m *Manager) Tracks(model string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.models[model]
	return ok
}

// SelectModel picks the first model on the purpose's preference list
// with remaining daily requests, falling back to any tracked model.
// When every tracked model is exhausted it returns a quota_exhausted
// error carrying the next reset time. estimatedTokens feeds advisory
// budget warnings only; requests-per-day is the enforced cap.
func (m *Manager) SelectModel(purpose models.TaskPurpose, estimatedTokens int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return ModelStandardFast, nil
	}

	m.checkAndResetIfNeeded()

	if m.budget > 0 && m.spent+estimatedTokens > m.budget {
		m.logger.Warn().
			Int("spent", m.spent).
			Int("estimated", estimatedTokens).
			Int("budget", m.budget).
			Msg("Daily token budget exceeded, continuing")
	}

	preferences, ok := purposePreferences[purpose]
	if !ok {
		preferences = purposePreferences[models.PurposeStandardAnalysis]
	}

	if model := m.firstAvailableLocked(preferences, estimatedTokens); model != "" {
		return model, nil
	}
	// Preferred tiers exhausted, try anything that still has requests
	if model := m.firstAvailableLocked(allModels, estimatedTokens); model != "" {
		return model, nil
	}

	return "", common.QuotaExhaustedError(m.nextResetLocked())
}

// HasAvailableQuota reports whether the model can take another request
// today. Only the requests-per-day cap can refuse; token projections
// just log.
func (m *Manager) HasAvailableQuota(model string, estimatedTokens int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return true
	}
	m.checkAndResetIfNeeded()
	return m.hasQuotaLocked(model, estimatedTokens)
}

// RecordUsage charges one request and the given tokens to a model.
// Unknown models are ignored. The per-minute pacer is consulted here
// so bursts past the rpm limit show up in the logs.
func (m *Manager) RecordUsage(model string, tokens int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkAndResetIfNeeded()

	state, ok := m.models[model]
	if !ok {
		return
	}
	state.usage.RequestsToday++
	state.usage.TokensToday += tokens
	state.usage.LastRequest = m.now()
	m.spent += tokens

	if !state.limiter.Allow() {
		m.logger.Warn().
			Str("model", model).
			Int("rpm_limit", state.limits.RequestsPerMinute).
			Msg("Request rate above the per-minute limit")
	}
}

// NextResetTime returns the upcoming local-midnight reset
func (m *Manager) NextResetTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextResetLocked()
}

// Snapshot returns a copy of all tracked model quotas for diagnostics
func (m *Manager) Snapshot() models.QuotaSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkAndResetIfNeeded()

	snap := models.QuotaSnapshot{
		DayKey:    m.dayKey,
		NextReset: m.nextResetLocked(),
	}
	for _, model := range allModels {
		state := m.models[model]
		snap.Models = append(snap.Models, models.ModelQuota{
			Model:  model,
			Limits: state.limits,
			Usage:  state.usage,
		})
	}
	return snap
}

// ResetForTests clears all counters. Test hook only.
func (m *Manager) ResetForTests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// SetClock replaces the time source. Test hook only.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	m.dayKey = m.currentDayKey()
}

// firstAvailableLocked returns the first candidate with daily requests
// remaining
func (m *Manager) firstAvailableLocked(candidates []string, estimatedTokens int) string {
	for _, model := range candidates {
		if m.hasQuotaLocked(model, estimatedTokens) {
			return model
		}
	}
	return ""
}

// hasQuotaLocked is the single availability rule: a model is out of
// quota only when its requests-per-day cap is reached. A projected
// token-per-minute overrun is logged but never refuses the model.
func (m *Manager) hasQuotaLocked(model string, estimatedTokens int) bool {
	state, ok := m.models[model]
	if !ok {
		return false
	}
	if state.usage.RequestsToday >= state.limits.RequestsPerDay {
		return false
	}
	if estimatedTokens > 0 && estimatedTokens > state.limits.TokensPerMinute {
		m.logger.Warn().
			Str("model", model).
			Int("estimated", estimatedTokens).
			Int("tpm_limit", state.limits.TokensPerMinute).
			Msg("Estimated tokens above the per-minute limit, continuing")
	}
	return true
}

// checkAndResetIfNeeded rolls counters over when the local day changed.
// Callers must hold the mutex.
func (m *Manager) checkAndResetIfNeeded() {
	key := m.currentDayKey()
	if key != m.dayKey {
		m.resetLocked()
		m.dayKey = key
	}
}

func (m *Manager) resetLocked() {
	for _, state := range m.models {
		state.usage = models.ModelUsage{}
	}
	m.spent = 0
}

func (m *Manager) currentDayKey() string {
	t := m.now().In(m.location)
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), t.Month(), t.Day())
}

// nextResetLocked computes the next local midnight
func (m *Manager) nextResetLocked() time.Time {
	t := m.now().In(m.location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, m.location).AddDate(0, 0, 1)
}
