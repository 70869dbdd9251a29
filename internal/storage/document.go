/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	applog "imgannotate/internal/log"
	"imgannotate/internal/shape"
	"imgannotate/internal/viewport"
)

const (
	// DocumentVersion is written into every document; bump on incompatible changes.
	DocumentVersion = 1
	BackupsDirName  = "backups"
	// DefaultKeepBackups is how many backups SaveDocument leaves per document.
	DefaultKeepBackups = 5
)

// ErrInvalidDocument wraps every validation failure of a loaded document.
var ErrInvalidDocument = errors.New("invalid document")

// Document is the persisted state of one annotated image: the global
// transform and every object record in z-order.
type Document struct {
	Version     int                `json:"version"`
	Image       string             `json:"image,omitempty"`
	ImageWidth  float64            `json:"imageWidth"`
	ImageHeight float64            `json:"imageHeight"`
	Transform   viewport.Transform `json:"transform"`
	Objects     []shape.Record     `json:"objects"`
	SavedAt     time.Time          `json:"savedAt"`
}

// Validate checks the image size, the rotation and every record against the
// record schema.
func (d Document) Validate() error {
	if d.ImageWidth <= 0 || d.ImageHeight <= 0 {
		return fmt.Errorf("%w: image size %vx%v", ErrInvalidDocument, d.ImageWidth, d.ImageHeight)
	}
	if math.Mod(d.Transform.Rotation, 90) != 0 {
		return fmt.Errorf("%w: rotation %v", ErrInvalidDocument, d.Transform.Rotation)
	}
	seen := make(map[string]bool, len(d.Objects))
	for i, rec := range d.Objects {
		if err := shape.ValidateRecord(rec); err != nil {
			return fmt.Errorf("%w: object %d: %v", ErrInvalidDocument, i, err)
		}
		if seen[rec.ID] {
			return fmt.Errorf("%w: duplicate object id %s", ErrInvalidDocument, rec.ID)
		}
		seen[rec.ID] = true
	}
	return nil
}

// SaveDocument writes doc to path with transactional semantics and a
// timestamped backup of the previous file (if present) in a backups folder
// next to it.
func SaveDocument(path string, doc Document) error {
	l := applog.WithOperation(applog.WithComponent("storage"), "save").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return errors.New("document path is required")
	}
	if doc.Version == 0 {
		doc.Version = DocumentVersion
	}
	if doc.Objects == nil {
		doc.Objects = []shape.Record{}
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	doc.SavedAt = time.Now().UTC()
	// Marshal in human-readable form
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure document dir: %w", err)
	}
	// If a current document exists, copy it to a timestamped backup before replacing
	if _, statErr := os.Stat(path); statErr == nil {
		bdir := filepath.Join(dir, BackupsDirName)
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
		if cerr := copyFile(path, bpath); cerr != nil {
			return fmt.Errorf("backup current document: %w", cerr)
		}
	}

	// Transactional write: to temp file in same directory, then rename over target
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp document: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace document: %w", rerr)
	}
	if _, err := PruneBackups(path, DefaultKeepBackups); err != nil {
		l.Warn("prune backups failed", slog.Any("err", err))
	}
	l.Debug("document saved", slog.Int("objects", len(doc.Objects)))
	return nil
}

// OpenDocument loads and validates the document at path. If it cannot be
// read, parsed or validated, the newest backup is tried instead.
func OpenDocument(path string) (Document, error) {
	doc, err := readDocument(path)
	if err == nil {
		return doc, nil
	}
	bdoc, berr := openFromLatestBackup(path)
	if berr != nil {
		return Document{}, fmt.Errorf("open document: %w; backup attempt: %v", err, berr)
	}
	applog.WithOperation(applog.WithComponent("storage"), "open").Warn("document restored from backup",
		slog.String("path", path), slog.Any("err", err))
	return bdoc, nil
}

func readDocument(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return Document{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if err := d.Validate(); err != nil {
		return Document{}, err
	}
	return d, nil
}

// Autosave writes doc next to the backups of path under a crash-stamped
// name, without touching path itself. It returns the written file.
func Autosave(path string, doc Document) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("document path is required")
	}
	if doc.Version == 0 {
		doc.Version = DocumentVersion
	}
	doc.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal autosave: %w", err)
	}
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	stamp := time.Now().Format("20060102-150405.000")
	out := filepath.Join(bdir, fmt.Sprintf("%s.crash-%s.json", filepath.Base(path), stamp))
	if err := writeFileSync(out, append(data, '\n')); err != nil {
		return "", fmt.Errorf("write autosave: %w", err)
	}
	return out, nil
}

// Backups lists the backups of the document at path, oldest first.
func Backups(path string) ([]string, error) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(path) + "."
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	return candidates, nil
}

// PruneBackups keeps the newest keep backups of path and removes the rest.
func PruneBackups(path string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	all, err := Backups(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for len(all)-removed > keep {
		if err := os.Remove(all[removed]); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// openFromLatestBackup tries the backups newest first.
func openFromLatestBackup(path string) (Document, error) {
	candidates, err := Backups(path)
	if err != nil {
		return Document{}, err
	}
	if len(candidates) == 0 {
		return Document{}, errors.New("no backups found")
	}
	var errs []error
	for i := len(candidates) - 1; i >= 0; i-- {
		d, err := readDocument(candidates[i])
		if err == nil {
			return d, nil
		}
		errs = append(errs, err)
	}
	return Document{}, fmt.Errorf("no usable backup: %w", errors.Join(errs...))
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
