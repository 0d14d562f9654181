package logger

import "github.com/robfig/cron/v3"

type cronLogger struct {
	log Logger
}

// Cron adapts Logger to the cron.Logger interface. Routine scheduling chatter
// goes to debug so ticks do not flood production logs.
func Cron(log Logger) cron.Logger {
	return cronLogger{log: log}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
