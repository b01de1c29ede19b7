package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"production", "PROD", "development", ""} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		l.Sync()
	}
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("service", "PointsLedger").Info("Points awarded", "user_id", "u1", "points", 5)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	ctx := entries[0].ContextMap()
	if entries[0].Message != "Points awarded" || ctx["service"] != "PointsLedger" || ctx["user_id"] != "u1" || ctx["points"] != int64(5) {
		t.Fatalf("entry = %+v, fields = %v", entries[0].Entry, ctx)
	}
}
