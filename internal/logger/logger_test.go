package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected logger to be enabled")
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("draft batch written")

	output := buf.String()
	if output == "" {
		t.Error("Expected log output, got empty string")
	}
	if !strings.Contains(output, "draft batch written") {
		t.Errorf("Expected output to contain message, got: %s", output)
	}
}

func TestNewWithLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log := NewWithLevel(tt.level, true)
			if log.GetLevel() != tt.want {
				t.Errorf("Expected level %v, got %v", tt.want, log.GetLevel())
			}
		})
	}
}

func TestWithContext(t *testing.T) {
	log := New()
	ctx := context.Background()

	ctxWithLogger := WithContext(ctx, log)

	if ctxWithLogger.Value(LoggerKey) == nil {
		t.Error("Expected logger in context, got nil")
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	testLog := NewWithWriter(buf)
	ctx := WithContext(context.Background(), testLog)

	retrievedLog := FromContext(ctx)
	retrievedLog.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())

	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithJob(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithJob(NewWithWriter(buf), "job-42")
	log.Info().Msg("processing")

	if !strings.Contains(buf.String(), `"job_id":"job-42"`) {
		t.Errorf("Expected job_id field, got: %s", buf.String())
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	fields := map[string]interface{}{
		"chunk":  3,
		"worker": 1,
	}

	child := WithFields(log, fields)
	child.Info().Msg("chunk parsed")

	output := buf.String()
	if !strings.Contains(output, `"chunk":3`) {
		t.Errorf("Expected output to contain chunk field, got: %s", output)
	}
	if !strings.Contains(output, `"worker":1`) {
		t.Errorf("Expected output to contain worker field, got: %s", output)
	}
}
