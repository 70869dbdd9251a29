/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"imgannotate/internal/geom"
	"imgannotate/internal/shape"
	"imgannotate/internal/viewport"
)

func sampleDoc(t *testing.T) Document {
	t.Helper()
	reg := shape.NewRegistry(shape.DefaultConfig)
	var recs []shape.Record
	for _, kind := range []string{shape.KindRect, shape.KindArrow} {
		o, err := reg.New(kind, geom.P(10, 20), nil)
		if err != nil {
			t.Fatalf("New(%s): %v", kind, err)
		}
		o.SetLayout(geom.B(10, 20, 30, 40), geom.Vector{X: 1, Y: -1})
		rec, err := o.Record()
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		recs = append(recs, rec)
	}
	crop := geom.B(0, 0, 100, 50)
	return Document{
		Image:       "photo.png",
		ImageWidth:  200,
		ImageHeight: 100,
		Transform:   viewport.Transform{Scale: 0.5, Rotation: 90, Crop: &crop},
		Objects:     recs,
	}
}

func TestSaveAndOpenDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.annot.json")
	doc := sampleDoc(t)
	if err := SaveDocument(path, doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	got, err := OpenDocument(path)
	if err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}
	if got.Version != DocumentVersion || got.SavedAt.IsZero() {
		t.Fatalf("missing version or timestamp: %+v", got)
	}
	if !reflect.DeepEqual(got.Objects, doc.Objects) {
		t.Fatalf("objects differ:\n got %+v\nwant %+v", got.Objects, doc.Objects)
	}
	if got.Transform.Crop == nil || *got.Transform.Crop != *doc.Transform.Crop || got.Transform.Rotation != 90 {
		t.Fatalf("transform differs: %+v", got.Transform)
	}
	// first save leaves no backup
	if b, _ := Backups(path); len(b) != 0 {
		t.Fatalf("unexpected backups %v", b)
	}
}

func TestSaveCreatesBackupAndOpenFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	doc := sampleDoc(t)
	if err := SaveDocument(path, doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	doc.Objects = doc.Objects[:1]
	if err := SaveDocument(path, doc); err != nil {
		t.Fatalf("second SaveDocument: %v", err)
	}
	backups, err := Backups(path)
	if err != nil || len(backups) != 1 {
		t.Fatalf("expected one backup, got %v err %v", backups, err)
	}
	// corrupt the current file: the backup (two objects) is used
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	got, err := OpenDocument(path)
	if err != nil {
		t.Fatalf("OpenDocument with backup: %v", err)
	}
	if len(got.Objects) != 2 {
		t.Fatalf("expected backup with 2 objects, got %d", len(got.Objects))
	}
}

func TestOpenDocumentWithoutBackupFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	if _, err := OpenDocument(path); err == nil {
		t.Fatalf("expected error for missing document")
	}
}

func TestValidateRejectsBadDocuments(t *testing.T) {
	doc := sampleDoc(t)
	bad := doc
	bad.ImageWidth = 0
	if err := bad.Validate(); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument for empty image, got %v", err)
	}
	bad = doc
	bad.Transform.Rotation = 45
	if err := bad.Validate(); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument for 45°, got %v", err)
	}
	bad = doc
	bad.Objects = []shape.Record{doc.Objects[0], doc.Objects[0]}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected duplicate id rejection, got %v", err)
	}
	bad = doc
	rec := doc.Objects[0]
	rec.Type = "hexagon"
	bad.Objects = []shape.Record{rec}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected schema rejection, got %v", err)
	}
	if err := SaveDocument(filepath.Join(t.TempDir(), "x.json"), bad); err == nil {
		t.Fatalf("SaveDocument must refuse an invalid document")
	}
}

func TestPruneBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	bdir := filepath.Join(dir, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, stamp := range []string{"20250101-000000.000", "20250102-000000.000", "20250103-000000.000"} {
		if err := os.WriteFile(filepath.Join(bdir, "doc.json."+stamp+".bak"), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// a backup of another document is left alone
	if err := os.WriteFile(filepath.Join(bdir, "other.json.20250101-000000.000.bak"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	n, err := PruneBackups(path, 1)
	if err != nil || n != 2 {
		t.Fatalf("PruneBackups removed %d err %v", n, err)
	}
	left, _ := Backups(path)
	if len(left) != 1 || filepath.Base(left[0]) != "doc.json.20250103-000000.000.bak" {
		t.Fatalf("wrong backup kept: %v", left)
	}
	if _, err := os.Stat(filepath.Join(bdir, "other.json.20250101-000000.000.bak")); err != nil {
		t.Fatalf("foreign backup removed: %v", err)
	}
}

func TestAutosaveLeavesDocumentAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	out, err := Autosave(path, sampleDoc(t))
	if err != nil {
		t.Fatalf("Autosave: %v", err)
	}
	if filepath.Dir(out) != filepath.Join(filepath.Dir(path), BackupsDirName) {
		t.Fatalf("autosave written to %s", out)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("autosave must not create the document itself: %v", err)
	}
	// an autosave is not a backup
	if b, _ := Backups(path); len(b) != 0 {
		t.Fatalf("autosave listed as backup: %v", b)
	}
}
