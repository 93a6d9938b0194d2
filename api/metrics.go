package api

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type actionRequestMetrics struct {
	logger        *log.Logger
	start         time.Time
	actionType    string
	authDuration  time.Duration
	storeDuration time.Duration
	buildDuration time.Duration
	deduped       bool
	errorStage    string
}

func newActionRequestMetrics(logger *log.Logger) *actionRequestMetrics {
	return &actionRequestMetrics{logger: logger, start: time.Now()}
}

func (m *actionRequestMetrics) SetActionType(t string) {
	m.actionType = t
}

func (m *actionRequestMetrics) ObserveAuth(d time.Duration) {
	if d > 0 {
		m.authDuration = d
	}
}

func (m *actionRequestMetrics) ObserveStore(d time.Duration) {
	if d > 0 {
		m.storeDuration = d
	}
}

func (m *actionRequestMetrics) ObserveBuild(d time.Duration) {
	if d > 0 {
		m.buildDuration = d
	}
}

func (m *actionRequestMetrics) SetDeduped() {
	m.deduped = true
}

func (m *actionRequestMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

func (m *actionRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":    "/chatkit/actions",
		"status":   status,
		"total_ms": durationToMillis(time.Since(m.start)),
	}
	if m.actionType != "" {
		fields["action_type"] = m.actionType
	}
	if m.authDuration > 0 {
		fields["auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.storeDuration > 0 {
		fields["store_ms"] = durationToMillis(m.storeDuration)
	}
	if m.buildDuration > 0 {
		fields["build_ms"] = durationToMillis(m.buildDuration)
	}
	if m.deduped {
		fields["deduped"] = true
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("actions.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
