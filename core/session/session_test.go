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
	"testing"

	"github.com/Warp-net/iris/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeRegistry struct {
	mx      sync.Mutex
	active  []domain.AccountID
	offline []domain.AccountID
	applied int
}

func (f *fakeRegistry) RemoveOfflineValidators() ([]domain.AccountID, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.applied++
	var removed []domain.AccountID
	kept := f.active[:0]
	for _, v := range f.active {
		drop := false
		for _, o := range f.offline {
			if o == v {
				drop = true
				break
			}
		}
		if drop {
			removed = append(removed, v)
			continue
		}
		kept = append(kept, v)
	}
	f.active = kept
	f.offline = nil
	return removed, nil
}

func (f *fakeRegistry) Validators() []domain.AccountID {
	f.mx.Lock()
	defer f.mx.Unlock()
	return append([]domain.AccountID{}, f.active...)
}

type memoryIndex struct {
	index domain.SessionIndex
}

func (m *memoryIndex) SessionIndex() (domain.SessionIndex, error)      { return m.index, nil }
func (m *memoryIndex) SetSessionIndex(index domain.SessionIndex) error { m.index = index; return nil }

func TestPlanAppliesOfflineRemovals(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := &fakeRegistry{active: []domain.AccountID{"A", "B", "C"}, offline: []domain.AccountID{"A", "B", "A"}}
	c := NewCoordinator(reg)

	set, ok := c.OnSessionPlan(3)
	require.True(t, ok)
	require.Equal(t, []domain.AccountID{"C"}, set)
	require.Empty(t, reg.offline)
	require.Equal(t, 1, reg.applied)

	set, ok = c.OnSessionPlan(4)
	require.True(t, ok)
	require.Equal(t, []domain.AccountID{"C"}, set)
}

func TestCoordinatorStartEndAreObservational(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := &fakeRegistry{active: []domain.AccountID{"A", "B"}, offline: []domain.AccountID{"A"}}
	c := NewCoordinator(reg)
	c.OnSessionStart(1)
	c.OnSessionEnd(1)
	require.Equal(t, []domain.AccountID{"A", "B"}, reg.Validators())
	require.Zero(t, reg.applied)
	require.Equal(t, []domain.AccountID{"A", "B"}, c.Validators())
	require.Zero(t, c.SessionIndex())
}

func TestEngineTwoStageRotation(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := &fakeRegistry{active: []domain.AccountID{"A", "B", "C"}}
	c := NewCoordinator(reg)
	idx := &memoryIndex{}
	e, err := NewEngine(c, c, idx, 10)
	require.NoError(t, err)
	e.Start(reg.Validators())

	require.False(t, e.OnBlock(5))
	require.False(t, e.OnBlock(0))

	reg.mx.Lock()
	reg.offline = []domain.AccountID{"C"}
	reg.mx.Unlock()

	require.True(t, e.OnBlock(10))
	require.Equal(t, domain.SessionIndex(1), e.CurrentIndex())
	require.Equal(t, domain.SessionIndex(1), idx.index)
	require.Equal(t, e.CurrentIndex(), c.SessionIndex())
	require.Equal(t, []domain.AccountID{"A", "B", "C"}, c.Validators())

	require.True(t, e.OnBlock(20))
	require.Equal(t, domain.SessionIndex(2), c.SessionIndex())
	require.Equal(t, []domain.AccountID{"A", "B"}, c.Validators())

	require.True(t, e.OnBlock(30))
	require.Equal(t, domain.SessionIndex(3), c.SessionIndex())
	require.Equal(t, []domain.AccountID{"A", "B"}, c.Validators())
}

func TestEngineResumesIndex(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := &fakeRegistry{active: []domain.AccountID{"A", "B"}}
	c := NewCoordinator(reg)
	e, err := NewEngine(c, c, &memoryIndex{index: 7}, 0)
	require.NoError(t, err)
	require.Equal(t, domain.SessionIndex(7), e.CurrentIndex())
	require.True(t, e.OnBlock(1))
	require.Equal(t, domain.SessionIndex(8), e.CurrentIndex())
}
