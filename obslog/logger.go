// Package obslog provides the zerolog-backed request/reply logging that
// proxyreq.Context installs as its primary and additional loggers, and as
// its completion hook.
package obslog

import (
	"os"

	"github.com/mcrelay/mcrelay/proxyreq"
	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger and implements proxyreq.ReplyLogger. The
// zero value is not usable; construct one with New or NewFromWriter.
type Logger struct {
	log zerolog.Logger
}

// New returns a Logger writing leveled JSON to os.Stderr.
func New(component string) *Logger {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("component", component).Logger()
	return &Logger{log: log}
}

// NewFromWriter returns a Logger writing through w, letting callers swap
// in zerolog.ConsoleWriter for local development or a test buffer.
func NewFromWriter(w zerolog.LevelWriter, component string) *Logger {
	log := zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	return &Logger{log: log}
}

// LogReply implements proxyreq.ReplyLogger: one log event per backend
// reply, whether or not it became the client-visible reply.
func (l *Logger) LogReply(event proxyreq.ReplyLogEvent) {
	l.log.Info().
		Str("pool", event.Pool).
		Str("access_point", addressOf(event.AccessPoint)).
		Str("routing_prefix", event.RoutingPrefix).
		Str("request", event.RequestSummary).
		Str("reply", event.ReplySummary).
		Int64("duration_us", event.EndTimeUs-event.StartTimeUs).
		Msg("reply received")
}

// CompletionHook returns a proxyreq.CompletionHook that logs one event
// per completed request: it fires after any client-visible reply has
// already been logged via LogReply, so aggregators reading this stream
// always see the reply before the completion.
func (l *Logger) CompletionHook() proxyreq.CompletionHook {
	return func(event proxyreq.CompletionEvent) {
		l.log.Info().
			Uint64("request_id", event.RequestID).
			Uint64("sender_id", event.SenderID).
			Bool("replied", event.Replied).
			Msg("request completed")
	}
}

func addressOf(ap interface{ Address() string }) string {
	if ap == nil {
		return ""
	}
	return ap.Address()
}
