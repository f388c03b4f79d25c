package quota

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/parla-labs/parla/internal/events"
	"github.com/parla-labs/parla/internal/metrics"
	"github.com/parla-labs/parla/internal/users"
)

// Service is the admission controller and usage recorder over the ledger
// store. Admission is strictly read-only; recording is post-flight and
// never part of the same transaction as the check. One concurrent call
// slipping through between check and record is accepted.
type Service struct {
	store           Store
	pub             *events.Publisher
	defaultTTSLimit int
}

func NewService(store Store, pub *events.Publisher, defaultTTSLimit int) *Service {
	return &Service{
		store:           store,
		pub:             pub,
		defaultTTSLimit: defaultTTSLimit,
	}
}

// AdmitConversation checks the user's current calendar month against
// their minute allowance. Quota-exempt users always pass. On a store
// read failure the request is allowed through with a warning, matching
// the rest of the platform's fail-open posture for infra faults.
func (s *Service) AdmitConversation(ctx context.Context, user *users.User) (*MinutesAdmission, error) {
	used, err := s.store.MonthlyMinuteTotal(ctx, user.ID, MonthStart(time.Now()))
	if err != nil {
		slog.Warn("quota: monthly total read failed, allowing request", "error", err, "user_id", user.ID)
		return &MinutesAdmission{Admitted: true, Limit: user.MinutesLimit}, nil
	}

	adm := &MinutesAdmission{
		Admitted: user.QuotaExempt || AdmitMinutes(used, user.MinutesLimit),
		Used:     used,
		Limit:    user.MinutesLimit,
	}
	return adm, nil
}

// AdmitTTS checks today's call count against the configured global
// daily limit. Quota-exempt users always pass.
func (s *Service) AdmitTTS(ctx context.Context, user *users.User) (*TTSAdmission, error) {
	limit := s.DailyTTSLimit(ctx)

	used, err := s.store.DailyTTSCount(ctx, user.ID, Day(time.Now()))
	if err != nil {
		slog.Warn("quota: daily tts count read failed, allowing request", "error", err, "user_id", user.ID)
		return &TTSAdmission{Admitted: true, Limit: limit}, nil
	}

	adm := &TTSAdmission{
		Admitted: user.QuotaExempt || AdmitCalls(used, limit),
		Used:     used,
		Limit:    limit,
	}
	return adm, nil
}

// DailyTTSLimit resolves the global daily TTS cap from settings,
// falling back to the configured default when unset or unparseable.
func (s *Service) DailyTTSLimit(ctx context.Context) int {
	raw, ok, err := s.store.GetSetting(ctx, SettingTTSDailyLimit)
	if err != nil {
		slog.Warn("quota: reading tts daily limit, using default", "error", err, "default", s.defaultTTSLimit)
		return s.defaultTTSLimit
	}
	if !ok {
		return s.defaultTTSLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		slog.Warn("quota: malformed tts daily limit setting, using default", "value", raw, "default", s.defaultTTSLimit)
		return s.defaultTTSLimit
	}
	return limit
}

// SetDailyTTSLimit stores a new global daily TTS cap. Last write wins.
func (s *Service) SetDailyTTSLimit(ctx context.Context, limit int) error {
	if limit < 0 {
		return fmt.Errorf("tts daily limit must not be negative, got %d", limit)
	}
	return s.store.SetSetting(ctx, SettingTTSDailyLimit, strconv.Itoa(limit))
}

// RecordMinutes commits a conversation cost into today's ledger row via
// the atomic additive upsert. The first usage of a day creates the row
// with exactly amount; later calls add to it.
func (s *Service) RecordMinutes(ctx context.Context, userID uuid.UUID, amount float64) error {
	day := Day(time.Now())
	if err := s.store.AddMinutes(ctx, userID, day, amount); err != nil {
		return err
	}

	metrics.MinutesRecordedTotal.Add(amount)

	if err := s.pub.PublishMinutesRecorded(ctx, events.MinutesRecorded{
		UserID:     userID,
		Day:        day.Format("2006-01-02"),
		Minutes:    amount,
		RecordedAt: time.Now(),
	}); err != nil {
		slog.Warn("quota: publishing minutes event", "error", err)
	}
	return nil
}

// RecordTTSCall appends one row to the TTS ledger. No read-modify-write.
func (s *Service) RecordTTSCall(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.InsertTTSCall(ctx, userID); err != nil {
		return err
	}

	metrics.TTSCallsTotal.Inc()

	if err := s.pub.PublishTTSRecorded(ctx, events.TTSRecorded{
		UserID:     userID,
		RecordedAt: time.Now(),
	}); err != nil {
		slog.Warn("quota: publishing tts event", "error", err)
	}
	return nil
}

// NoteDenial publishes a denial event for the usage trail. Best effort.
func (s *Service) NoteDenial(ctx context.Context, userID uuid.UUID, resource string, used, limit float64) {
	metrics.QuotaDenialsTotal.WithLabelValues(resource).Inc()
	if err := s.pub.PublishQuotaDenied(ctx, events.QuotaDenied{
		UserID:   userID,
		Resource: resource,
		Used:     used,
		Limit:    limit,
		DeniedAt: time.Now(),
	}); err != nil {
		slog.Warn("quota: publishing denial event", "error", err)
	}
}

// Status returns the user's consumption against both metered resources
// for API display. Minute values are rounded here, not in admission.
func (s *Service) Status(ctx context.Context, user *users.User) (*UsageStatus, error) {
	now := time.Now()

	minutes, err := s.store.MonthlyMinuteTotal(ctx, user.ID, MonthStart(now))
	if err != nil {
		return nil, fmt.Errorf("getting monthly minutes: %w", err)
	}

	ttsUsed, err := s.store.DailyTTSCount(ctx, user.ID, Day(now))
	if err != nil {
		return nil, fmt.Errorf("getting daily tts count: %w", err)
	}

	return &UsageStatus{
		MinutesUsed:   RoundMinutes(minutes),
		MinutesLimit:  user.MinutesLimit,
		TTSUsedToday:  ttsUsed,
		TTSDailyLimit: s.DailyTTSLimit(ctx),
		QuotaExempt:   user.QuotaExempt,
	}, nil
}

// ResetPriorMonths deletes minutes rows from before the current month.
// Returns the number of rows removed.
func (s *Service) ResetPriorMonths(ctx context.Context) (int64, error) {
	return s.store.PurgeMinutesBefore(ctx, MonthStart(time.Now()))
}
