package storage

import (
	"chronolog/server/base"
	"context"
)

// Appender appends records to a roll log. Appends from multiple appenders are serialized by the log.
type Appender struct {
	rl *RollLog
}

// Append appends a single record to the log and returns its index.
func (a *Appender) Append(data []byte) (base.Index, error) {
	return a.rl.appendRecord(context.Background(), data)
}

// AppendWithContext is the same as Append but gives up if ctx is done before the record is written.
func (a *Appender) AppendWithContext(ctx context.Context, data []byte) (base.Index, error) {
	return a.rl.appendRecord(ctx, data)
}
