package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.viam.com/test"
)

// logParts splits one console line into its tab delimited parts.
func logParts(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	line, err := buf.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)
	return strings.Split(strings.TrimSuffix(line, "\n"), "\t")
}

func TestConsoleLogFormat(t *testing.T) {
	logger := NewBlankLogger("")
	logger.SetLevel(INFO)
	buf := &bytes.Buffer{}
	logger.AddAppender(NewWriterAppender(buf))

	logger.Debug("dropped")
	test.That(t, buf.Len(), test.ShouldEqual, 0)

	logger.Info("info", " message")
	parts := logParts(t, buf)
	test.That(t, parts, test.ShouldHaveLength, 4)
	test.That(t, parts[1], test.ShouldEqual, "INFO")
	test.That(t, parts[2], test.ShouldStartWith, "logging/impl_test.go:")
	test.That(t, parts[3], test.ShouldEqual, "info message")

	logger.Warnf("speed %d", 40)
	parts = logParts(t, buf)
	test.That(t, parts[1], test.ShouldEqual, "WARN")
	test.That(t, parts[3], test.ShouldEqual, "speed 40")

	logger.Errorw("pin failed", "pin", "in1", "attempt", 2)
	parts = logParts(t, buf)
	test.That(t, parts, test.ShouldHaveLength, 5)
	test.That(t, parts[1], test.ShouldEqual, "ERROR")
	fields := map[string]interface{}{}
	test.That(t, json.Unmarshal([]byte(parts[4]), &fields), test.ShouldBeNil)
	test.That(t, fields, test.ShouldResemble, map[string]interface{}{"pin": "in1", "attempt": 2.0})
}

func TestUnpairedKey(t *testing.T) {
	logger := NewBlankLogger("")
	buf := &bytes.Buffer{}
	logger.AddAppender(NewWriterAppender(buf))

	logger.Infow("unpaired", "lonely")
	parts := logParts(t, buf)
	test.That(t, parts[len(parts)-1], test.ShouldContainSubstring, "unpaired log key")
}

func TestSublogger(t *testing.T) {
	logger := NewBlankLogger("tb6612")
	buf := &bytes.Buffer{}
	logger.AddAppender(NewWriterAppender(buf))

	sub := logger.Sublogger("motor_a")
	sub.Info("hello")
	parts := logParts(t, buf)
	test.That(t, parts[2], test.ShouldEqual, "tb6612.motor_a")

	sub.SetLevel(ERROR)
	sub.Info("quiet")
	test.That(t, buf.Len(), test.ShouldEqual, 0)
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)
}

func TestContextDebugMode(t *testing.T) {
	logger := NewBlankLogger("")
	logger.SetLevel(INFO)
	buf := &bytes.Buffer{}
	logger.AddAppender(NewWriterAppender(buf))

	ctx := context.Background()
	logger.CDebugw(ctx, "hidden", "k", "v")
	test.That(t, buf.Len(), test.ShouldEqual, 0)

	ctx = EnableDebugMode(ctx, "")
	test.That(t, IsDebugMode(ctx), test.ShouldBeTrue)
	test.That(t, GetName(ctx), test.ShouldHaveLength, 6)
	logger.CDebugw(ctx, "shown", "k", "v")
	parts := logParts(t, buf)
	test.That(t, parts[1], test.ShouldEqual, "DEBUG")
	test.That(t, parts[3], test.ShouldEqual, "shown")
}

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Debugw("driving", "command", "forward(10)")
	logger.Sublogger("x").Info("other")

	test.That(t, logs.FilterMessage("driving").Len(), test.ShouldEqual, 1)
	entry := logs.FilterMessage("driving").All()[0]
	test.That(t, entry.ContextMap()["command"], test.ShouldEqual, "forward(10)")
	test.That(t, logs.Len(), test.ShouldEqual, 2)
	test.That(t, logger.Sync(), test.ShouldBeNil)
}

func TestLevelFromString(t *testing.T) {
	for input, expected := range map[string]Level{
		"debug": DEBUG, "INFO": INFO, "Warn": WARN, "warning": WARN, "error": ERROR,
	} {
		level, err := LevelFromString(input)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, expected)
	}

	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, INFO.String(), test.ShouldEqual, "Info")
}
