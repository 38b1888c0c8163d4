package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/op/go-logging"
)

var (
	logger    *logging.Logger
	logBuffer []*LogEntry
)

const bufferSize = 10240

type LogEntry struct {
	Time    time.Time
	Level   logging.Level
	Message string
}

func init() {
	InitLogger(logging.INFO)
}

func InitLogger(level logging.Level) {
	newLogger := logging.MustGetLogger("packettunnel")
	var backend logging.Backend
	backend = logging.NewLogBackend(os.Stderr, "", 0)
	format := logging.MustStringFormatter(`%{time:2006/01/02 15:04:05} %{level} - %{message}`)
	backend = logging.NewBackendFormatter(backend, format)
	leveledBackend := logging.AddModuleLevel(backend)
	leveledBackend.SetLevel(level, "packettunnel")
	newLogger.SetBackend(leveledBackend)

	logger = newLogger
}

func Debug(args ...any) {
	logger.Debug(args...)
	addToBuffer(logging.DEBUG, fmt.Sprint(args...))
}

func Debugf(format string, args ...any) {
	logger.Debugf(format, args...)
	addToBuffer(logging.DEBUG, fmt.Sprintf(format, args...))
}

func Info(args ...any) {
	logger.Info(args...)
	addToBuffer(logging.INFO, fmt.Sprint(args...))
}

func Infof(format string, args ...any) {
	logger.Infof(format, args...)
	addToBuffer(logging.INFO, fmt.Sprintf(format, args...))
}

func Warning(args ...any) {
	logger.Warning(args...)
	addToBuffer(logging.WARNING, fmt.Sprint(args...))
}

func Warningf(format string, args ...any) {
	logger.Warningf(format, args...)
	addToBuffer(logging.WARNING, fmt.Sprintf(format, args...))
}

func Error(args ...any) {
	logger.Error(args...)
	addToBuffer(logging.ERROR, fmt.Sprint(args...))
}

func Errorf(format string, args ...any) {
	logger.Errorf(format, args...)
	addToBuffer(logging.ERROR, fmt.Sprintf(format, args...))
}

func addToBuffer(level logging.Level, message string) {
	if len(logBuffer) >= bufferSize {
		logBuffer = logBuffer[1:]
	}
	logBuffer = append(logBuffer, &LogEntry{
		Time:    time.Now(),
		Level:   level,
		Message: message,
	})
}

// GetLogs returns up to count buffered entries at or above the named level,
// oldest first.
func GetLogs(count int, level string) []string {
	var logs []string
	logLevel, err := logging.LogLevel(level)
	if err != nil {
		logLevel = logging.INFO
	}
	for i := len(logBuffer) - 1; i >= 0 && len(logs) < count; i-- {
		entry := logBuffer[i]
		if entry.Level > logLevel {
			continue
		}
		logs = append(logs, fmt.Sprintf("%s %s - %s",
			entry.Time.Format("2006/01/02 15:04:05"), entry.Level, entry.Message))
	}
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	return logs
}
