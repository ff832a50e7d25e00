package api

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type checklistRequestMetrics struct {
	logger             *log.Logger
	route              string
	start              time.Time
	authDuration       time.Duration
	loadDuration       time.Duration
	encodeDuration     time.Duration
	category           string
	checklistsReturned int
	errorStage         string
}

func newChecklistRequestMetrics(logger *log.Logger, route string) *checklistRequestMetrics {
	return &checklistRequestMetrics{
		logger: logger,
		route:  route,
		start:  time.Now(),
	}
}

func (m *checklistRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *checklistRequestMetrics) ObserveLoad(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.loadDuration = duration
}

func (m *checklistRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *checklistRequestMetrics) SetCategory(category string) {
	m.category = category
}

func (m *checklistRequestMetrics) SetChecklistsReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.checklistsReturned = count
}

func (m *checklistRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *checklistRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":               m.route,
		"status":              status,
		"total_ms":            durationToMillis(time.Since(m.start)),
		"checklists_returned": m.checklistsReturned,
	}

	if m.category != "" {
		fields["category"] = m.category
	}
	if m.authDuration > 0 {
		fields["auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.loadDuration > 0 {
		fields["load_ms"] = durationToMillis(m.loadDuration)
	}
	if m.encodeDuration > 0 {
		fields["encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("checklists.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
