/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"imgannotate/internal/shape"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestEnvOverridesMinSize(t *testing.T) {
	t.Setenv("ANNOT_MIN_SIZE", "7.5")
	t.Setenv("ANNOT_UNDO_MIN_INTERVAL", "0s")
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.Canvas.MinSize != 7.5 {
		t.Fatalf("Canvas.MinSize = %v, want 7.5", cfg.Canvas.MinSize)
	}
	if cfg.Undo.MinInterval != 0 {
		t.Fatalf("Undo.MinInterval = %v, want 0 from env", cfg.Undo.MinInterval)
	}
	if name, ok := EnvOverrideFor("canvas.min_size"); !ok || name != "ANNOT_MIN_SIZE" {
		t.Fatalf("EnvOverrideFor = %q %v", name, ok)
	}
	if _, ok := EnvOverrideFor("canvas.font_size"); ok {
		t.Fatalf("font_size has no env override")
	}
}

func TestEnvOverrideInvalidValue(t *testing.T) {
	t.Setenv("ANNOT_UNDO_MAX_DEPTH", "many")
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for a non-numeric override")
	}
}

func TestFileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "canvas:\n  snap_threshold: 8\n  stroke_color: '#00ff00'\nundo:\n  min_interval: 1s\nlogging:\n  level: DEBUG\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.Canvas.SnapThreshold != 8 || cfg.Canvas.MinSize != 2 {
		t.Fatalf("canvas not merged: %+v", cfg.Canvas)
	}
	if cfg.Undo.MinInterval != time.Second || cfg.Undo.MaxDepth != 200 {
		t.Fatalf("undo not merged: %+v", cfg.Undo)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	sc := cfg.ShapeConfig()
	if sc.Options.Stroke != (shape.Color{G: 255, A: 255}) {
		t.Fatalf("stroke colour = %+v", sc.Options.Stroke)
	}
	if ro := cfg.ResizeOptions(); ro.SnapThreshold != 8 {
		t.Fatalf("resize options = %+v", ro)
	}
}

func TestMalformedFileStillReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("canvas: [oops"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if cfg.Canvas.MinSize != Defaults().Canvas.MinSize {
		t.Fatalf("defaults lost on parse error: %+v", cfg.Canvas)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Defaults()
	cfg.Canvas.RotateSnap = 15
	cfg.Storage.JournalPath = "/tmp/journal.db"
	cfg.Logging.Format = "json"
	if err := SaveFile(path, cfg); err != nil {
		t.Fatalf("SaveFile() error: %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if got != cfg {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
}

func TestConversions(t *testing.T) {
	cfg := Defaults()
	cfg.Canvas.StrokeColor = "not a colour"
	if cfg.ShapeConfig().Options.Stroke != shape.DefaultOptions.Stroke {
		t.Fatalf("invalid colour should fall back to the default")
	}
	uc := cfg.UndoConfig()
	if uc.MaxBytes != 16*1024*1024 || uc.MinInterval != 250*time.Millisecond {
		t.Fatalf("undo config = %+v", uc)
	}
	lo := cfg.LogOptions()
	if lo.Level != "info" || lo.Format != "console" {
		t.Fatalf("log options = %+v", lo)
	}
}

func TestConfigPath(t *testing.T) {
	p, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath() error: %v", err)
	}
	if filepath.Base(p) != "config.yaml" {
		t.Fatalf("unexpected config path %q", p)
	}
}
