/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"imgannotate/internal/canvas"
	applog "imgannotate/internal/log"
	"imgannotate/internal/storage"
)

// workspace is one document opened for editing.
type workspace struct {
	g       *globals
	path    string
	image   string
	canvas  *canvas.Canvas
	journal *storage.Journal
	session string
	log     *slog.Logger
}

func (g *globals) canvasOptions() canvas.Options {
	opts := canvas.DefaultOptions
	opts.Shape = g.cfg.ShapeConfig()
	opts.Undo = g.cfg.UndoConfig()
	opts.Resize = g.cfg.ResizeOptions()
	return opts
}

// open loads the document at path onto a fresh canvas and, when a journal
// is configured, mirrors every checkpoint into it.
func (g *globals) open(path string) (*workspace, error) {
	doc, err := storage.OpenDocument(path)
	if err != nil {
		return nil, err
	}
	c, err := canvas.New(doc.ImageWidth, doc.ImageHeight, g.canvasOptions())
	if err != nil {
		return nil, err
	}
	if err := c.Load(doc); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	w := &workspace{
		g:      g,
		path:   path,
		image:  doc.Image,
		canvas: c,
		log:    applog.WithComponent("cli").With(slog.String("doc", path)),
	}
	if jp := g.cfg.Storage.JournalPath; jp != "" {
		j, err := storage.OpenJournal(jp)
		if err != nil {
			return nil, err
		}
		w.journal = j
		w.session = storage.NewSessionID()
		c.AttachJournal(j, w.session)
		w.log.Debug("journal attached", slog.String("journal", jp), slog.String("session", w.session))
	}
	if g.session != nil {
		g.session.Path = path
		g.session.Source = w
	}
	return w, nil
}

// Snapshot is the canvas snapshot with the image reference kept.
func (w *workspace) Snapshot() (storage.Document, error) {
	doc, err := w.canvas.Snapshot()
	if err != nil {
		return storage.Document{}, err
	}
	doc.Image = w.image
	return doc, nil
}

// save writes the document and trims its backups to the configured count.
func (w *workspace) save() error {
	doc, err := w.Snapshot()
	if err != nil {
		return err
	}
	if err := storage.SaveDocument(w.path, doc); err != nil {
		return err
	}
	if keep := w.g.cfg.Storage.Backups; keep > 0 {
		if _, err := storage.PruneBackups(w.path, keep); err != nil {
			w.log.Warn("prune backups failed", slog.Any("err", err))
		}
	}
	w.log.Info("document saved", slog.Int("objects", len(doc.Objects)))
	return nil
}

// close prunes this session's journal to storage.keep_last and closes it.
func (w *workspace) close() error {
	if w.g.session != nil && w.g.session.Source == w {
		w.g.session.Source = nil
	}
	if w.journal == nil {
		return nil
	}
	var errs []error
	if keep := w.g.cfg.Storage.KeepLast; keep > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		n, err := w.journal.Prune(ctx, w.session, keep)
		cancel()
		if err != nil {
			errs = append(errs, err)
		} else if n > 0 {
			w.log.Debug("journal pruned", slog.Int64("removed", n))
		}
	}
	errs = append(errs, w.journal.Close())
	return errors.Join(errs...)
}

// edit opens path, runs fn and saves the result.
func (g *globals) edit(path string, fn func(w *workspace) error) (err error) {
	w, err := g.open(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.close(); err == nil {
			err = cerr
		}
	}()
	if err := fn(w); err != nil {
		return err
	}
	return w.save()
}
