/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"imgannotate/internal/geom"
	"imgannotate/internal/shape"
	"imgannotate/internal/undo"
	"imgannotate/internal/viewport"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "state", "journal.sqlite"))
	if err != nil {
		t.Fatalf("OpenJournal error: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func objectCheckpoint(t *testing.T, left float64) undo.Checkpoint {
	t.Helper()
	o, err := shape.NewRegistry(shape.DefaultConfig).New(shape.KindEllipse, geom.P(left, 0), nil)
	if err != nil {
		t.Fatal(err)
	}
	o.SetLayout(geom.B(left, 0, 10, 10), geom.Vector{})
	cp, err := undo.ObjectCheckpoint(o)
	if err != nil {
		t.Fatal(err)
	}
	return cp
}

func TestJournalCRUD(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	session := NewSessionID()

	if _, ok, err := j.Latest(ctx, session); err != nil || ok {
		t.Fatalf("empty journal Latest ok=%v err=%v", ok, err)
	}
	var ids []string
	for i := 0; i < 5; i++ {
		cp := objectCheckpoint(t, float64(i))
		ids = append(ids, cp.ID)
		if err := j.Append(ctx, session, cp); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if err := j.Append(ctx, session, undo.CanvasCheckpoint(viewport.Transform{Scale: 1, Rotation: 180}, nil, false)); err != nil {
		t.Fatalf("Append canvas: %v", err)
	}
	latest, ok, err := j.Latest(ctx, session)
	if err != nil || !ok {
		t.Fatalf("Latest ok=%v err=%v", ok, err)
	}
	if latest.Type != undo.TypeCanvas || latest.Canvas.Transform.Rotation != 180 {
		t.Fatalf("unexpected latest %+v", latest)
	}

	list, err := j.List(ctx, session, 10)
	if err != nil || len(list) != 6 {
		t.Fatalf("List got %d err %v", len(list), err)
	}
	if list[1].Checkpoint.ID != ids[4] || list[1].Checkpoint.Object.Layout.Left != 4 {
		t.Fatalf("List not newest first: %+v", list[1].Checkpoint)
	}
	if list[0].Seq <= list[1].Seq || list[0].TS.IsZero() {
		t.Fatalf("bad sequence/timestamp: %+v", list[:2])
	}

	n, err := j.Prune(ctx, session, 3)
	if err != nil || n != 3 {
		t.Fatalf("Prune removed %d err %v", n, err)
	}
	list, err = j.List(ctx, session, 10)
	if err != nil || len(list) != 3 {
		t.Fatalf("List after prune got %d err %v", len(list), err)
	}
}

func TestJournalSessionsAreSeparate(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	a, b := NewSessionID(), NewSessionID()
	if a == b {
		t.Fatalf("session ids must differ")
	}
	if err := j.Append(ctx, a, objectCheckpoint(t, 1)); err != nil {
		t.Fatal(err)
	}
	if err := j.Append(ctx, b, objectCheckpoint(t, 2)); err != nil {
		t.Fatal(err)
	}
	if _, err := j.Prune(ctx, a, 1); err != nil {
		t.Fatal(err)
	}
	sessions, err := j.Sessions(ctx)
	if err != nil || len(sessions) != 2 || sessions[0] != b {
		t.Fatalf("Sessions = %v err %v", sessions, err)
	}
	cp, ok, err := j.Latest(ctx, a)
	if err != nil || !ok || cp.Object.Layout.Left != 1 {
		t.Fatalf("Latest(a) = %+v ok=%v err=%v", cp, ok, err)
	}
}

func TestJournalRejectsInvalidCheckpoint(t *testing.T) {
	j := openTestJournal(t)
	if err := j.Append(context.Background(), NewSessionID(), undo.Checkpoint{Type: "bogus"}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestJournalReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.sqlite")
	j, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	ctx := context.Background()
	session := NewSessionID()
	if err := j.Append(ctx, session, objectCheckpoint(t, 7)); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}
	j, err = OpenJournal(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j.Close()
	v, err := j.SchemaVersion(ctx)
	if err != nil || v != schemaVersion {
		t.Fatalf("schema version %d err %v", v, err)
	}
	if _, ok, _ := j.Latest(ctx, session); !ok {
		t.Fatalf("checkpoint lost across reopen")
	}
	if _, err := os.Stat(j.Path()); err != nil {
		t.Fatalf("journal file missing: %v", err)
	}
}

func TestOpenJournalRequiresPath(t *testing.T) {
	if _, err := OpenJournal("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
