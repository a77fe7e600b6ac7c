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

// SessionPlanner is consumed by the session rotation engine.
type SessionPlanner interface {
	// OnSessionPlan returns the validator set planned for index.
	OnSessionPlan(index domain.SessionIndex) ([]domain.AccountID, bool)
	OnSessionStart(index domain.SessionIndex)
	OnSessionEnd(index domain.SessionIndex)
}

// ValidatorSetSource exposes the currently effective session.
type ValidatorSetSource interface {
	SessionIndex() domain.SessionIndex
	Validators() []domain.AccountID
}

type ValidatorRegistry interface {
	RemoveOfflineValidators() ([]domain.AccountID, error)
	Validators() []domain.AccountID
}

type Coordinator struct {
	mx       sync.RWMutex
	registry ValidatorRegistry

	current   domain.SessionIndex
	effective []domain.AccountID
}

var (
	_ SessionPlanner     = (*Coordinator)(nil)
	_ ValidatorSetSource = (*Coordinator)(nil)
)

func NewCoordinator(registry ValidatorRegistry) *Coordinator {
	return &Coordinator{
		registry:  registry,
		effective: registry.Validators(),
	}
}

// OnSessionPlan applies pending offline removals and always proposes the
// current active set, since removals may have happened.
func (c *Coordinator) OnSessionPlan(index domain.SessionIndex) ([]domain.AccountID, bool) {
	log.Infof("session: planning session %d", index)

	removed, err := c.registry.RemoveOfflineValidators()
	if err != nil {
		log.Errorf("session: applying offline removals for %d: %v", index, err)
	}
	if len(removed) > 0 {
		log.Infof("session: %d offline validators dropped from session %d", len(removed), index)
	}
	return c.registry.Validators(), true
}

func (c *Coordinator) OnSessionStart(index domain.SessionIndex) {
	log.Infof("session: starting session %d", index)
}

func (c *Coordinator) OnSessionEnd(index domain.SessionIndex) {
	log.Infof("session: ending session %d", index)
}

// Activate records the validator set the engine made effective for index.
func (c *Coordinator) Activate(index domain.SessionIndex, validators []domain.AccountID) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.current = index
	c.effective = append([]domain.AccountID{}, validators...)
}

func (c *Coordinator) SessionIndex() domain.SessionIndex {
	c.mx.RLock()
	defer c.mx.RUnlock()
	return c.current
}

func (c *Coordinator) Validators() []domain.AccountID {
	c.mx.RLock()
	defer c.mx.RUnlock()
	return append([]domain.AccountID{}, c.effective...)
}
