package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	level  string
	msg    string
	fields map[string]any
}

type testLogger struct {
	entries []entry
}

func (l *testLogger) add(level string, fields map[string]any, msg string) {
	l.entries = append(l.entries, entry{level: level, msg: msg, fields: fields})
}

func (l *testLogger) Info(f map[string]any, msg string)  { l.add("INFO", f, msg) }
func (l *testLogger) Error(f map[string]any, msg string) { l.add("ERROR", f, msg) }
func (l *testLogger) Debug(f map[string]any, msg string) { l.add("DEBUG", f, msg) }
func (l *testLogger) Warn(f map[string]any, msg string)  { l.add("WARN", f, msg) }
func (l *testLogger) Panic(map[string]any, string)       {}
func (l *testLogger) Fatal(map[string]any, string)       {}

func swapGlobal(t *testing.T, l Logger) {
	t.Helper()
	orig := GetLogger()
	t.Cleanup(func() { SetLogger(orig) })
	SetLogger(l)
}

func TestActualZapLogger(t *testing.T) {
	require.NoError(t, Configure("prod", "debug"))
	t.Cleanup(func() { _ = Configure("prod", "info") })

	Debug(map[string]any{"txid": 7, "name": "shop.amazone.com", "err": errors.New("boom")}, "test debug")
	Info(nil, "test info")
	Warn(nil, "test warn")
	Error(nil, "test error")

	assert.Panics(t, func() { Panic(nil, "test panic") })
}

func TestSetLoggerAndGlobalLogging(t *testing.T) {
	tlog := &testLogger{}
	swapGlobal(t, tlog)

	Info(nil, "info msg")
	Error(nil, "error msg")
	Debug(nil, "debug msg")
	Warn(nil, "warn msg")

	require.Len(t, tlog.entries, 4)
	assert.Equal(t, "INFO", tlog.entries[0].level)
	assert.Equal(t, "ERROR", tlog.entries[1].level)
	assert.Equal(t, "DEBUG", tlog.entries[2].level)
	assert.Equal(t, "WARN", tlog.entries[3].level)
	assert.Equal(t, "warn msg", tlog.entries[3].msg)
}

func TestNamed_WrapsForeignLogger(t *testing.T) {
	tlog := &testLogger{}
	swapGlobal(t, tlog)

	engine := Named("engine")
	engine.Info(map[string]any{"txid": 5}, "answered")

	require.Len(t, tlog.entries, 1)
	assert.Equal(t, "engine", tlog.entries[0].fields["component"])
	assert.Equal(t, 5, tlog.entries[0].fields["txid"])
}

func TestNamed_CallerFieldsWin(t *testing.T) {
	tlog := &testLogger{}
	swapGlobal(t, tlog)

	Named("engine").Warn(map[string]any{"component": "override"}, "x")
	assert.Equal(t, "override", tlog.entries[0].fields["component"])
}

func TestNamed_ZapBacked(t *testing.T) {
	require.NoError(t, Configure("dev", "error"))
	t.Cleanup(func() { _ = Configure("prod", "info") })

	l := Named("transport")
	_, ok := l.(*zapLogger)
	assert.True(t, ok, "zap-backed global should yield a zap child")
	l.Debug(nil, "filtered out")
}

func TestConfigure_Levels(t *testing.T) {
	swapGlobal(t, &testLogger{})

	tests := []struct {
		env, level string
		wantErr    bool
	}{
		{"dev", "debug", false},
		{"prod", "info", false},
		{"prod", "WARN", false},
		{"dev", "notalevel", true},
	}
	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			err := Configure(tt.env, tt.level)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNoopLogger_AllLevels(t *testing.T) {
	swapGlobal(t, NewNoopLogger())

	Debug(nil, "debug message")
	Info(nil, "info message")
	Warn(nil, "warn message")
	Error(nil, "error message")
	Panic(nil, "panic message")
	Fatal(nil, "fatal message")
}
