/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo keeps the checkpoints taken before every mutating gesture.
// Checkpoints are pushed before the mutation; applying them back onto the
// canvas is the caller's job.
package undo

import (
	"sync"
	"time"
)

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxDepth limits the number of undo entries (0 means unlimited).
	MaxDepth int
	// MinInterval coalesces checkpoints for the same target captured within
	// the interval: the older one is kept since it holds the state from
	// before the burst. A sealed checkpoint is never coalesced into. Zero
	// disables coalescing.
	MinInterval time.Duration
}

// Inverse captures the current state of whatever cp restores, so that the
// opposite stack can bring it back.
type Inverse func(cp Checkpoint) (Checkpoint, error)

type entry struct {
	cp   Checkpoint
	size int
	// sealed closes the entry: the next push always starts a new one
	sealed bool
}

// Manager provides in-memory undo/redo stacks with performance safeguards.
// It is safe for concurrent use.
type Manager struct {
	cfg  Config
	mu   sync.Mutex
	undo []entry
	redo []entry
	// accounting, undo stack only
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	// Set conservative defaults if not provided
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	return &Manager{cfg: cfg}
}

// Push records a checkpoint taken before a mutation. Any new change
// invalidates redo. It reports false when cp was coalesced into the newest
// entry instead of being stored.
func (m *Manager) Push(cp Checkpoint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redo = nil
	if n := len(m.undo); n > 0 && m.cfg.MinInterval > 0 && !m.undo[n-1].sealed {
		last := m.undo[n-1].cp
		if last.Target() == cp.Target() && cp.TS.Sub(last.TS) < m.cfg.MinInterval {
			// Coalesce: the older entry already holds the pre-burst state
			return false
		}
	}
	m.pushLocked(cp)
	return true
}

// Seal closes the newest entry so that the next push is kept on its own
// however soon it follows. Callers seal at the end of every discrete
// operation; only edits left unsealed coalesce.
func (m *Manager) Seal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.undo); n > 0 {
		m.undo[n-1].sealed = true
	}
}

func (m *Manager) pushLocked(cp Checkpoint) {
	e := entry{cp: cp, size: cp.Size()}
	m.undo = append(m.undo, e)
	m.totalBytes += e.size
	m.enforceCapsLocked()
}

// Undo pops the newest checkpoint and returns it for the caller to apply.
// Before that, inverse captures the state being replaced onto the redo stack.
// If inverse fails nothing is popped.
func (m *Manager) Undo(inverse Inverse) (Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undo) == 0 {
		return Checkpoint{}, false, nil
	}
	e := m.undo[len(m.undo)-1]
	inv, err := inverse(e.cp)
	if err != nil {
		return Checkpoint{}, false, err
	}
	m.undo = m.undo[:len(m.undo)-1]
	m.totalBytes -= e.size
	m.redo = append(m.redo, entry{cp: inv, size: inv.Size(), sealed: true})
	if n := len(m.undo); n > 0 {
		m.undo[n-1].sealed = true
	}
	return e.cp, true, nil
}

// Redo pops the newest redo checkpoint and pushes the inverse back to undo.
func (m *Manager) Redo(inverse Inverse) (Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.redo) == 0 {
		return Checkpoint{}, false, nil
	}
	e := m.redo[len(m.redo)-1]
	inv, err := inverse(e.cp)
	if err != nil {
		return Checkpoint{}, false, err
	}
	m.redo = m.redo[:len(m.redo)-1]
	m.pushLocked(inv)
	m.undo[len(m.undo)-1].sealed = true
	return e.cp, true, nil
}

// CanUndo and CanRedo report whether the stacks are non-empty.
func (m *Manager) CanUndo() bool { m.mu.Lock(); defer m.mu.Unlock(); return len(m.undo) > 0 }
func (m *Manager) CanRedo() bool { m.mu.Lock(); defer m.mu.Unlock(); return len(m.redo) > 0 }

// Peek returns the newest undo checkpoint without popping it.
func (m *Manager) Peek() (Checkpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undo) == 0 {
		return Checkpoint{}, false
	}
	return m.undo[len(m.undo)-1].cp, true
}

// Clear drops both stacks to free memory.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo, m.redo = nil, nil
	m.totalBytes = 0
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, undoDepth int, redoDepth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalBytes, len(m.undo), len(m.redo)
}

func (m *Manager) enforceCapsLocked() {
	// Depth cap
	if m.cfg.MaxDepth > 0 && len(m.undo) > m.cfg.MaxDepth {
		// drop the oldest extras
		toDrop := len(m.undo) - m.cfg.MaxDepth
		for i := 0; i < toDrop; i++ {
			m.totalBytes -= m.undo[i].size
		}
		m.undo = append([]entry{}, m.undo[toDrop:]...)
	}
	// Memory cap: prune oldest, but never the entry just pushed
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes && len(m.undo) > 1 {
		m.totalBytes -= m.undo[0].size
		m.undo = m.undo[1:]
	}
}
