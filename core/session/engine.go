/*

 Iris - Decentralized Storage Validator Network
 Copyright (C) 2025 Vadim Filin, https://github.com/Warp-net,
 <github.com.mecdy@passmail.net>

 This program is free software: you can redistribute it and/or modify
 it under the terms of the GNU Affero General Public License as published by
 the Free Software Foundation, either version 3 of the License, or
 (at your option) any later version.

 This program is distributed in the hope that it will be useful,
 but WITHOUT ANY WARRANTY; without even the implied warranty of
 MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 GNU Affero General Public License for more details.

 You should have received a copy of the GNU Affero General Public License
 along with this program.  If not, see <https://www.gnu.org/licenses/>.

Iris is provided “as is” without warranty of any kind, either expressed or implied.
Use at your own risk. The maintainers shall not be liable for any damages or data loss
resulting from the use or misuse of this software.
*/

// Copyright 2025 Vadim Filin
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"

	"github.com/Warp-net/iris/domain"
	log "github.com/sirupsen/logrus"
)

type IndexStore interface {
	SessionIndex() (domain.SessionIndex, error)
	SetSessionIndex(index domain.SessionIndex) error
}

type Activator interface {
	Activate(index domain.SessionIndex, validators []domain.AccountID)
}

// Engine rotates sessions every length blocks. A planned set is queued and
// only becomes effective one rotation later, so a registry change shows up
// in the effective set after up to two rotations.
type Engine struct {
	mx sync.Mutex

	planner   SessionPlanner
	activator Activator
	store     IndexStore
	length    uint64

	current   domain.SessionIndex
	effective []domain.AccountID
	started   bool
	queued    []domain.AccountID
	hasNext   bool
}

func NewEngine(planner SessionPlanner, activator Activator, store IndexStore, length uint64) (*Engine, error) {
	if length == 0 {
		length = 1
	}
	e := &Engine{
		planner:   planner,
		activator: activator,
		store:     store,
		length:    length,
	}
	if store != nil {
		index, err := store.SessionIndex()
		if err != nil {
			return nil, err
		}
		e.current = index
	}
	return e, nil
}

// Start begins the current session with the genesis set.
func (e *Engine) Start(validators []domain.AccountID) {
	e.mx.Lock()
	defer e.mx.Unlock()

	e.effective = append([]domain.AccountID{}, validators...)
	e.started = true
	if e.activator != nil {
		e.activator.Activate(e.current, e.effective)
	}
	e.planner.OnSessionStart(e.current)
}

func (e *Engine) CurrentIndex() domain.SessionIndex {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.current
}

// OnBlock rotates the session when block closes one. It reports whether a
// rotation happened.
func (e *Engine) OnBlock(block uint64) bool {
	if block == 0 || block%e.length != 0 {
		return false
	}
	e.mx.Lock()
	defer e.mx.Unlock()

	e.planner.OnSessionEnd(e.current)

	next := e.current + 1
	planned, ok := e.planner.OnSessionPlan(next + 1)

	// Without a queued plan the effective set carries over to next.
	if e.hasNext {
		e.effective, e.started = e.queued, true
	}
	if e.started && e.activator != nil {
		e.activator.Activate(next, e.effective)
	}
	e.current = next
	if ok {
		e.queued, e.hasNext = planned, true
	}
	if e.store != nil {
		if err := e.store.SetSessionIndex(e.current); err != nil {
			log.Errorf("session: persisting index %d: %v", e.current, err)
		}
	}
	e.planner.OnSessionStart(e.current)
	return true
}
