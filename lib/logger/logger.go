// Package logger wraps github.com/sirupsen/logrus with the proxy's
// file-per-day setup and adds a per-session correlation id so log
// lines from one connection can be grepped together.
//
// Grounded on chuimengdaoxizhou-go-redis/lib/logger/logger.go (file
// handle + logrus.TextFormatter + daily filename), generalized with
// package-level Info/Error/Warn/Debug wrappers — the teacher's file
// called logger.Error/logger.Info from resp/handler/handler.go and
// resp/client/client.go without ever defining them in the retrieved
// source, so they're filled in here in the same style logrus itself
// encourages (logrus.Fields-based structured fields), rather than
// left as dangling calls.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Settings configures the log output file.
type Settings struct {
	Path       string
	Name       string
	Ext        string
	TimeFormat string
}

var std = logrus.New()

// Setup points std at a daily log file under settings.Path. Call once
// at startup; before Setup, std logs to stderr.
func Setup(settings *Settings) error {
	if err := os.MkdirAll(settings.Path, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create log directory: %v", err)
	}

	currentDate := time.Now().Format(settings.TimeFormat)
	logFileName := fmt.Sprintf("%s_%s.%s", settings.Name, currentDate, settings.Ext)
	logFilePath := filepath.Join(settings.Path, logFileName)

	logFile, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %v", err)
	}

	std.SetOutput(logFile)
	std.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: settings.TimeFormat,
	})
	std.SetLevel(logrus.InfoLevel)
	std.Info("logging setup complete")
	return nil
}

func Info(args ...interface{})          { std.Info(args...) }
func Infof(f string, a ...interface{})  { std.Infof(f, a...) }
func Warn(args ...interface{})          { std.Warn(args...) }
func Error(args ...interface{})         { std.Error(args...) }
func Debug(args ...interface{})         { std.Debug(args...) }
func Fatal(args ...interface{})         { std.Fatal(args...) }
func Fatalf(f string, a ...interface{}) { std.Fatalf(f, a...) }

// Session returns a *logrus.Entry tagged with a fresh correlation id
// for one client connection, so every log line from that connection's
// lifetime can be filtered by session_id without the id ever
// reaching the wire.
func Session(remoteAddr string) *logrus.Entry {
	return std.WithFields(logrus.Fields{
		"session_id": uuid.NewString(),
		"remote":     remoteAddr,
	})
}
