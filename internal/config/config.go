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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	applog "imgannotate/internal/log"
	"imgannotate/internal/resize"
	"imgannotate/internal/shape"
	"imgannotate/internal/undo"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type CanvasConfig struct {
	// MinSize is the smallest width/height (diagonal for lines) an object
	// may be created with; smaller objects are dropped on pointer-up.
	MinSize         float64 `yaml:"min_size"`
	ArrowHeadLength float64 `yaml:"arrow_head_length"` // 0: 6 + 2*stroke
	ArrowHeadAngle  float64 `yaml:"arrow_head_angle"`
	FontSize        float64 `yaml:"font_size"`
	SnapThreshold   float64 `yaml:"snap_threshold"`
	RotateSnap      float64 `yaml:"rotate_snap"`
	StrokeColor     string  `yaml:"stroke_color"`
	FillColor       string  `yaml:"fill_color"`
	StrokeWidth     float64 `yaml:"stroke_width"`
}

type UndoConfig struct {
	MaxBytes    int           `yaml:"max_bytes"`
	MaxDepth    int           `yaml:"max_depth"`
	MinInterval time.Duration `yaml:"min_interval"`
}

type StorageConfig struct {
	JournalPath string `yaml:"journal_path"`
	KeepLast    int    `yaml:"keep_last"`
	Backups     int    `yaml:"backups"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Canvas        CanvasConfig  `yaml:"canvas"`
	Undo          UndoConfig    `yaml:"undo"`
	Storage       StorageConfig `yaml:"storage"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Canvas: CanvasConfig{
			MinSize:        2,
			ArrowHeadAngle: 30,
			FontSize:       16,
			SnapThreshold:  4,
			StrokeColor:    shape.DefaultOptions.Stroke.Hex(),
			FillColor:      shape.DefaultOptions.Fill.Hex(),
			StrokeWidth:    shape.DefaultOptions.StrokeWidth,
		},
		Undo:    UndoConfig{MaxBytes: 16 * 1024 * 1024, MaxDepth: 200, MinInterval: 250 * time.Millisecond},
		Storage: StorageConfig{KeepLast: 100, Backups: 5},
		Logging: LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// EnvPrefix is prepended to every override variable, e.g. ANNOT_MIN_SIZE.
const EnvPrefix = "ANNOT"

// envOverrides lists the variables read by envconfig. Pointers stay nil
// when the variable is unset so that only set values override.
type envOverrides struct {
	MinSize         *float64       `envconfig:"MIN_SIZE"`
	ArrowHeadLength *float64       `envconfig:"ARROW_HEAD_LENGTH"`
	SnapThreshold   *float64       `envconfig:"SNAP_THRESHOLD"`
	RotateSnap      *float64       `envconfig:"ROTATE_SNAP"`
	StrokeColor     *string        `envconfig:"STROKE_COLOR"`
	UndoMaxBytes    *int           `envconfig:"UNDO_MAX_BYTES"`
	UndoMaxDepth    *int           `envconfig:"UNDO_MAX_DEPTH"`
	UndoMinInterval *time.Duration `envconfig:"UNDO_MIN_INTERVAL"`
	JournalPath     *string        `envconfig:"JOURNAL"`
	LogLevel        *string        `envconfig:"LOG_LEVEL"`
	LogFormat       *string        `envconfig:"LOG_FORMAT"`
	LogSource       *bool          `envconfig:"LOG_SOURCE"`
	LogFile         *string        `envconfig:"LOG_FILE"`
}

// envKeys maps config keys to the variable overriding them.
var envKeys = map[string]string{
	"canvas.min_size":          "MIN_SIZE",
	"canvas.arrow_head_length": "ARROW_HEAD_LENGTH",
	"canvas.snap_threshold":    "SNAP_THRESHOLD",
	"canvas.rotate_snap":       "ROTATE_SNAP",
	"canvas.stroke_color":      "STROKE_COLOR",
	"undo.max_bytes":           "UNDO_MAX_BYTES",
	"undo.max_depth":           "UNDO_MAX_DEPTH",
	"undo.min_interval":        "UNDO_MIN_INTERVAL",
	"storage.journal_path":     "JOURNAL",
	"logging.level":            "LOG_LEVEL",
	"logging.format":           "LOG_FORMAT",
	"logging.source":           "LOG_SOURCE",
	"logging.file":             "LOG_FILE",
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "ImgAnnotate")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "ImgAnnotate")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "imgannotate")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges
// environment overrides.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), err
	}
	return LoadFile(path)
}

// LoadFile is Load for an explicit path. A missing file yields the defaults;
// a malformed one is reported, with the defaults and env overrides still returned.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	var fileErr error
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			fileErr = fmt.Errorf("parse %s: %w", path, err)
		} else {
			mergeInto(&cfg, &fileCfg)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		fileErr = fmt.Errorf("read %s: %w", path, err)
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, errors.Join(fileErr, err)
	}
	return cfg, fileErr
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(path, cfg)
}

func SaveFile(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// canvas: zero means "not set" except for the explicit 0-able knobs below
	c := src.Canvas
	if c.MinSize > 0 {
		dst.Canvas.MinSize = c.MinSize
	}
	if c.ArrowHeadLength > 0 {
		dst.Canvas.ArrowHeadLength = c.ArrowHeadLength
	}
	if c.ArrowHeadAngle > 0 {
		dst.Canvas.ArrowHeadAngle = c.ArrowHeadAngle
	}
	if c.FontSize > 0 {
		dst.Canvas.FontSize = c.FontSize
	}
	if c.SnapThreshold > 0 {
		dst.Canvas.SnapThreshold = c.SnapThreshold
	}
	if c.RotateSnap > 0 {
		dst.Canvas.RotateSnap = c.RotateSnap
	}
	if strings.TrimSpace(c.StrokeColor) != "" {
		dst.Canvas.StrokeColor = strings.TrimSpace(c.StrokeColor)
	}
	if strings.TrimSpace(c.FillColor) != "" {
		dst.Canvas.FillColor = strings.TrimSpace(c.FillColor)
	}
	if c.StrokeWidth > 0 {
		dst.Canvas.StrokeWidth = c.StrokeWidth
	}
	// undo
	if src.Undo.MaxBytes > 0 {
		dst.Undo.MaxBytes = src.Undo.MaxBytes
	}
	if src.Undo.MaxDepth > 0 {
		dst.Undo.MaxDepth = src.Undo.MaxDepth
	}
	if src.Undo.MinInterval != 0 {
		dst.Undo.MinInterval = max(src.Undo.MinInterval, 0)
	}
	// storage
	if strings.TrimSpace(src.Storage.JournalPath) != "" {
		dst.Storage.JournalPath = strings.TrimSpace(src.Storage.JournalPath)
	}
	if src.Storage.KeepLast > 0 {
		dst.Storage.KeepLast = src.Storage.KeepLast
	}
	if src.Storage.Backups > 0 {
		dst.Storage.Backups = src.Storage.Backups
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func applyEnvOverrides(cfg *AppConfig) error {
	var ov envOverrides
	if err := envconfig.Process(EnvPrefix, &ov); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	setIf(&cfg.Canvas.MinSize, ov.MinSize)
	setIf(&cfg.Canvas.ArrowHeadLength, ov.ArrowHeadLength)
	setIf(&cfg.Canvas.SnapThreshold, ov.SnapThreshold)
	setIf(&cfg.Canvas.RotateSnap, ov.RotateSnap)
	setIf(&cfg.Canvas.StrokeColor, ov.StrokeColor)
	setIf(&cfg.Undo.MaxBytes, ov.UndoMaxBytes)
	setIf(&cfg.Undo.MaxDepth, ov.UndoMaxDepth)
	setIf(&cfg.Undo.MinInterval, ov.UndoMinInterval)
	setIf(&cfg.Storage.JournalPath, ov.JournalPath)
	setIf(&cfg.Logging.Source, ov.LogSource)
	setIf(&cfg.Logging.File, ov.LogFile)
	if ov.LogLevel != nil {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*ov.LogLevel))
	}
	if ov.LogFormat != nil {
		cfg.Logging.Format = strings.ToLower(strings.TrimSpace(*ov.LogFormat))
	}
	return nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	suffix, ok := envKeys[key]
	if !ok {
		return "", false
	}
	name := EnvPrefix + "_" + suffix
	if os.Getenv(name) != "" {
		return name, true
	}
	return "", false
}

// ShapeConfig converts the canvas section for the object registry.
// Invalid colours fall back to the defaults.
func (c AppConfig) ShapeConfig() shape.Config {
	opts := shape.DefaultOptions
	if col, err := shape.ParseHex(c.Canvas.StrokeColor); err == nil {
		opts.Stroke = col
	}
	if col, err := shape.ParseHex(c.Canvas.FillColor); err == nil {
		opts.Fill = col
	}
	if c.Canvas.StrokeWidth > 0 {
		opts.StrokeWidth = c.Canvas.StrokeWidth
	}
	return shape.Config{
		MinSize:         c.Canvas.MinSize,
		ArrowHeadLength: c.Canvas.ArrowHeadLength,
		ArrowHeadAngle:  c.Canvas.ArrowHeadAngle,
		FontSize:        c.Canvas.FontSize,
		Options:         opts,
	}
}

// ResizeOptions converts the snapping knobs for the gesture controller.
func (c AppConfig) ResizeOptions() resize.Options {
	return resize.Options{SnapThreshold: c.Canvas.SnapThreshold, RotateSnap: c.Canvas.RotateSnap}
}

func (c AppConfig) UndoConfig() undo.Config {
	return undo.Config{MaxBytes: c.Undo.MaxBytes, MaxDepth: c.Undo.MaxDepth, MinInterval: c.Undo.MinInterval}
}

func (c AppConfig) LogOptions() applog.Options {
	return applog.Options{Level: c.Logging.Level, Format: c.Logging.Format, AddSource: c.Logging.Source, File: c.Logging.File}
}
