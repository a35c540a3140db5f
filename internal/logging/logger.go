// Package logging builds the process logger. Output goes to a rotating file
// because the terminal board owns stdout.
package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/valter-silva-au/focus/pkg/models"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SystemName is written as the event source of every entry.
const SystemName = "focus"

// Formatter renders one entry per line with its fields in key order.
type Formatter struct {
	SystemName string
}

func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	b.WriteString(fmt.Sprintf("Date: %s, Time: %s, ", entry.Time.Format("2006-01-02"), entry.Time.Format("15:04:05")))
	b.WriteString(fmt.Sprintf("Event Source: %s, ", f.SystemName))
	b.WriteString(fmt.Sprintf("Event Type: %s, ", strings.ToUpper(entry.Level.String())))
	b.WriteString(fmt.Sprintf("Event ID: %s, ", uuid.New().String()))
	b.WriteString(fmt.Sprintf("Message: %s", entry.Message))

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(", %s=%v", k, entry.Data[k]))
	}

	if entry.HasCaller() {
		b.WriteString(fmt.Sprintf(", Location: %s:%d in %s", entry.Caller.File, entry.Caller.Line, entry.Caller.Function))
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

// New returns a logger writing to cfg.File, resolved against basePath when
// relative, rotated by lumberjack. The returned rotator must be closed on
// shutdown.
func New(basePath string, cfg models.LogConfig) (*logrus.Logger, *lumberjack.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing log level: %w", err)
	}

	file := cfg.File
	if file == "" {
		file = filepath.Join("logs", "focus.log")
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(basePath, file)
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}

	logger := logrus.New()
	logger.SetOutput(rotator)
	logger.SetFormatter(&Formatter{SystemName: SystemName})
	logger.SetLevel(level)
	logger.SetReportCaller(level >= logrus.DebugLevel)
	return logger, rotator, nil
}
