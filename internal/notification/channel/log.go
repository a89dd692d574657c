package channel

import "context"

// Log writes notifications to the logger. Useful during commissioning when
// no push provider is configured.
type Log struct {
	id     string
	logger Logger
}

// NewLog creates a log channel reporting itself as id.
func NewLog(id string, logger Logger) *Log {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Log{id: id, logger: logger}
}

func (l *Log) SendTextMessage(_ context.Context, title, body string) {
	l.logger.Info("notification", "channel_id", l.id, "title", title, "body", body)
}
