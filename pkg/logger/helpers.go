package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs a completed HTTP exchange
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 500:
		l.WarnWithFields("HTTP request server error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogRateLimitWait logs that the limiter is holding a request back
func LogRateLimitWait(l Logger, wait time.Duration, quota string) {
	fields := map[string]interface{}{
		"wait":  wait.Round(time.Millisecond).String(),
		"quota": quota,
	}
	if wait >= time.Minute {
		l.InfoWithFields("Rate limit reached, waiting", fields)
		return
	}
	l.DebugWithFields("Rate limit reached, waiting", fields)
}

// LogGiveawayProgress logs "giveaway N of M"
func LogGiveawayProgress(l Logger, link string, index, total int) {
	l.InfoWithFields(fmt.Sprintf("Processing giveaway %d of %d", index, total), map[string]interface{}{
		"giveaway": link,
	})
}

// LogPageProgress logs "entry page P of Q"
func LogPageProgress(l Logger, link string, page, pages int) {
	l.DebugWithFields(fmt.Sprintf("Entry page %d of %d", page, pages), map[string]interface{}{
		"giveaway": link,
	})
}

// LogUserProgress logs collection progress every n users
func LogUserProgress(l Logger, done, total, every int) {
	if every <= 0 || (done%every != 0 && done != total) {
		return
	}
	percentage := 0.0
	if total > 0 {
		percentage = float64(done) / float64(total) * 100
	}
	l.InfoWithFields("Collection progress", map[string]interface{}{
		"done":       done,
		"total":      total,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	l = l.WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
