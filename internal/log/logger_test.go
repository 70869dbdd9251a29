/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInitWritesJSONFile(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "annot.json")
	var console bytes.Buffer
	Init(Options{Level: "debug", Format: "json", File: fpath, Writer: &console})
	t.Cleanup(func() { Init(Options{Level: "error", Writer: &bytes.Buffer{}}) })

	WithOperation(WithComponent("viewport"), "rotate").Info("rotated", slog.Float64("deg", 90))

	b, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var last string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal json log %q: %v", last, err)
	}
	if m["app"] != "imgannotate" || m["component"] != "viewport" || m["op"] != "rotate" || m["msg"] != "rotated" {
		t.Fatalf("unexpected record: %v", m)
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver attr")
	}
	if !strings.Contains(console.String(), `"msg":"rotated"`) {
		t.Fatalf("console json handler got %q", console.String())
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("ANNOT_LOG_LEVEL", "warn")
	t.Setenv("ANNOT_LOG_FORMAT", "json")
	t.Setenv("ANNOT_LOG_SOURCE", "true")
	t.Setenv("ANNOT_LOG_FILE", "")
	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}
	if v := getenv("ANNOT_SURELY_UNSET", "fallback"); v != "fallback" {
		t.Fatalf("getenv fallback failed: %q", v)
	}
}

func TestPrettyTextHandler(t *testing.T) {
	var buf bytes.Buffer
	h := &prettyTextHandler{opts: prettyOpts{Level: slog.LevelWarn}, w: &buf}
	if h.Enabled(nil, slog.LevelInfo) {
		t.Fatalf("info should not be enabled at warn level")
	}
	h2 := h.WithAttrs([]slog.Attr{
		slog.String("app", "imgannotate"),
		slog.String("component", "resize"),
		slog.String("op", "vector"),
		slog.String("k", "v"),
	}).WithGroup("drag")
	r := slog.Record{Time: time.Now(), Level: slog.LevelError, Message: "flip"}
	r.AddAttrs(slog.Int("n", 42), slog.Float64("w", 20.5), slog.Bool("ok", true), slog.String("corner", "top left"))
	if err := h2.Handle(nil, r); err != nil {
		t.Fatalf("handle error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ERR [resize/vector] flip", " k=v", "drag.n=42", "drag.w=20.5", "drag.ok=true", `drag.corner="top left"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "app=") || strings.Contains(out, "drag.k=") {
		t.Fatalf("unexpected attribute rendering in %q", out)
	}
}
