package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevLevel, prevFormatter := defaultLogger.Out, defaultLogger.GetLevel(), defaultLogger.Formatter
	defaultLogger.SetOutput(&buf)
	t.Cleanup(func() {
		defaultLogger.SetOutput(prevOut)
		defaultLogger.SetLevel(prevLevel)
		defaultLogger.SetFormatter(prevFormatter)
	})
	return &buf
}

func TestSetOutputs(t *testing.T) {
	prev := defaultLogger.Out
	t.Cleanup(func() { defaultLogger.SetOutput(prev) })

	t.Run("default", func(t *testing.T) {
		current := defaultLogger.Out
		if err := SetOutputs(nil, 0, 0); err != nil {
			t.Fatal(err)
		}
		if defaultLogger.Out != current {
			t.Error("output changed without outputs")
		}
	})

	t.Run("stdout", func(t *testing.T) {
		if err := SetOutputs([]string{"-"}, 0, 0); err != nil {
			t.Fatal(err)
		}
		if defaultLogger.Out != os.Stdout {
			t.Error("output should be stdout")
		}
	})

	t.Run("stderr", func(t *testing.T) {
		if err := SetOutputs([]string{"="}, 0, 0); err != nil {
			t.Fatal(err)
		}
		if defaultLogger.Out != os.Stderr {
			t.Error("output should be stderr")
		}
	})

	t.Run("two_files", func(t *testing.T) {
		dir := t.TempDir()
		log1 := filepath.Join(dir, "a.log")
		log2 := filepath.Join(dir, "b.log")
		if err := SetOutputs([]string{log1, log2}, 1, 1); err != nil {
			t.Fatal(err)
		}
		const content = "hello log"
		if _, err := io.WriteString(defaultLogger.Out, content); err != nil {
			t.Fatal(err)
		}
		for _, p := range []string{log1, log2} {
			data, err := os.ReadFile(p)
			if err != nil {
				t.Fatalf("read %s: %v", p, err)
			}
			if string(data) != content {
				t.Errorf("%s = %q, want %q", p, data, content)
			}
		}
	})
}

func TestSetLevel(t *testing.T) {
	captureOutput(t)
	for _, tt := range []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"INFO", logrus.InfoLevel},
		{"warning", logrus.WarnLevel},
		{"", logrus.WarnLevel},
		{"trace", logrus.TraceLevel},
	} {
		if err := SetLevel(tt.in); err != nil {
			t.Fatalf("SetLevel(%q): %v", tt.in, err)
		}
		if defaultLogger.GetLevel() != tt.want {
			t.Errorf("SetLevel(%q) = %s, want %s", tt.in, defaultLogger.GetLevel(), tt.want)
		}
	}
	if err := SetLevel("loud"); err == nil {
		t.Error("unknown level accepted")
	}
	if Level() != "trace" {
		t.Errorf("failed SetLevel changed level to %s", Level())
	}
}

func TestContextFieldsInJSON(t *testing.T) {
	buf := captureOutput(t)
	if err := SetOutputFormat("json"); err != nil {
		t.Fatal(err)
	}
	if err := SetLevel("debug"); err != nil {
		t.Fatal(err)
	}

	parent := AddFields(context.Background(), Fields{OpFieldKey: "merge"})
	child := AddFields(parent, Fields{TargetFieldKey: "topic"})
	FromContext(child).WithField(StepFieldKey, 2).Debug("applying")

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if entry["op"] != "merge" || entry["target"] != "topic" || entry["msg"] != "applying" {
		t.Errorf("entry = %v", entry)
	}
	if entry["step"] != float64(2) {
		t.Errorf("step = %v", entry["step"])
	}

	buf.Reset()
	FromContext(parent).Info("parent only")
	if strings.Contains(buf.String(), "topic") {
		t.Error("child fields leaked into the parent context")
	}
}

func TestSetOutputFormatRejectsUnknown(t *testing.T) {
	captureOutput(t)
	if err := SetOutputFormat("xml"); err == nil {
		t.Error("unknown format accepted")
	}
}

func TestNoneLevelDiscards(t *testing.T) {
	buf := captureOutput(t)
	if err := SetLevel("none"); err != nil {
		t.Fatal(err)
	}
	Default().Error("dropped")
	if buf.Len() != 0 {
		t.Errorf("output = %q", buf.String())
	}
}
