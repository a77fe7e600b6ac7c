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

package validator

import (
	"slices"
	"sync"

	"github.com/Warp-net/iris/domain"
	"github.com/Warp-net/iris/event"
	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
)

// MinimumInitialValidators is the smallest genesis validator set accepted.
const MinimumInitialValidators = 2

type StateStore interface {
	LoadState() (domain.ValidatorState, error)
	SaveState(state domain.ValidatorState) error
}

// Registry owns the validator-set lifecycle state. Every mutation is
// validated, persisted and only then applied in memory.
type Registry struct {
	mx sync.RWMutex

	store         StateStore
	emitter       event.Emitter
	minValidators int

	state       domain.ValidatorState
	initialized bool
}

func NewRegistry(store StateStore, emitter event.Emitter, minValidators int) *Registry {
	if minValidators < 0 {
		minValidators = 0
	}
	return &Registry{
		store:         store,
		emitter:       emitter,
		minValidators: minValidators,
	}
}

// Load restores a previously persisted state. It reports false when there
// is nothing to restore.
func (r *Registry) Load(isNotFound func(error) bool) (bool, error) {
	r.mx.Lock()
	defer r.mx.Unlock()

	state, err := r.store.LoadState()
	if err != nil {
		if isNotFound != nil && isNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "validator: load state")
	}
	r.state = state.Clone()
	r.initialized = true
	log.Infof("validator: restored %d active, %d approved, %d offline",
		len(state.Active), len(state.Approved), len(state.Offline))
	return true, nil
}

// Initialize applies the genesis validator set to both the active and the
// approved sets. It must run exactly once.
func (r *Registry) Initialize(initial []domain.AccountID) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if r.initialized {
		return errors.New("validator: already initialized")
	}
	if len(initial) < MinimumInitialValidators {
		return errors.Newf("validator: at least %d initial validators required, got %d",
			MinimumInitialValidators, len(initial))
	}
	next := domain.ValidatorState{
		Active:   slices.Clone(initial),
		Approved: slices.Clone(initial),
	}
	if err := r.commit(next); err != nil {
		return err
	}
	r.initialized = true
	log.Infof("validator: initialized with %d validators", len(initial))
	return nil
}

func (r *Registry) IsInitialized() bool {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return r.initialized
}

func (r *Registry) MinValidators() int {
	return r.minValidators
}

// commit persists next and swaps it in. Callers hold the write lock.
func (r *Registry) commit(next domain.ValidatorState) error {
	if err := r.store.SaveState(next); err != nil {
		return errors.Wrap(err, "validator: persist state")
	}
	r.state = next
	return nil
}

func (r *Registry) emit(ev event.Event) {
	if r.emitter == nil {
		return
	}
	r.emitter.Emit(ev)
}

func (r *Registry) AddValidator(id domain.AccountID) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.addValidator(id)
}

func (r *Registry) addValidator(id domain.AccountID) error {
	if slices.Contains(r.state.Active, id) {
		return domain.ErrDuplicateValidator
	}
	next := r.state.Clone()
	next.Active = append(next.Active, id)
	if err := r.commit(next); err != nil {
		return err
	}
	log.Infof("validator: %s added, becomes effective on rotation", id)
	r.emit(event.ValidatorAdditionInitiated{ValidatorId: id})
	return nil
}

func (r *Registry) RemoveValidator(id domain.AccountID) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if len(r.state.Active)-1 < r.minValidators {
		return domain.ErrTooFewValidators
	}
	next := r.state.Clone()
	next.Active = slices.DeleteFunc(next.Active, func(v domain.AccountID) bool { return v == id })
	if err := r.commit(next); err != nil {
		return err
	}
	log.Infof("validator: %s removed, becomes effective on rotation", id)
	r.emit(event.ValidatorRemovalInitiated{ValidatorId: id})
	return nil
}

func (r *Registry) ApproveValidator(id domain.AccountID) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if slices.Contains(r.state.Approved, id) {
		return domain.ErrDuplicateValidator
	}
	next := r.state.Clone()
	next.Approved = append(next.Approved, id)
	return r.commit(next)
}

func (r *Registry) UnapproveValidator(id domain.AccountID) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	next := r.state.Clone()
	next.Approved = slices.DeleteFunc(next.Approved, func(v domain.AccountID) bool { return v == id })
	return r.commit(next)
}

// AddAndApproveValidator adds id to the active set and approves it for later
// re-addition in one commit. Nothing changes if either step is rejected.
func (r *Registry) AddAndApproveValidator(id domain.AccountID) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if slices.Contains(r.state.Active, id) || slices.Contains(r.state.Approved, id) {
		return domain.ErrDuplicateValidator
	}
	next := r.state.Clone()
	next.Active = append(next.Active, id)
	next.Approved = append(next.Approved, id)
	if err := r.commit(next); err != nil {
		return err
	}
	log.Infof("validator: %s added and approved, becomes effective on rotation", id)
	r.emit(event.ValidatorAdditionInitiated{ValidatorId: id})
	return nil
}

// RemoveAndUnapproveValidator removes id from the active set and revokes its
// approval in one commit.
func (r *Registry) RemoveAndUnapproveValidator(id domain.AccountID) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if len(r.state.Active)-1 < r.minValidators {
		return domain.ErrTooFewValidators
	}
	next := r.state.Clone()
	next.Active = slices.DeleteFunc(next.Active, func(v domain.AccountID) bool { return v == id })
	next.Approved = slices.DeleteFunc(next.Approved, func(v domain.AccountID) bool { return v == id })
	if err := r.commit(next); err != nil {
		return err
	}
	log.Infof("validator: %s removed and unapproved, becomes effective on rotation", id)
	r.emit(event.ValidatorRemovalInitiated{ValidatorId: id})
	return nil
}

// ReinstateValidator lets an approved validator add itself back.
func (r *Registry) ReinstateValidator(caller, id domain.AccountID) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if caller != id {
		return domain.ErrUnauthorizedCaller
	}
	if !slices.Contains(r.state.Approved, id) {
		return domain.ErrNotApproved
	}
	return r.addValidator(id)
}

// MarkForRemoval queues id for removal at the next session boundary.
func (r *Registry) MarkForRemoval(id domain.AccountID) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	next := r.state.Clone()
	next.Offline = append(next.Offline, id)
	if err := r.commit(next); err != nil {
		return err
	}
	log.Warnf("validator: %s marked offline", id)
	return nil
}

// RemoveOfflineValidators drops every offline id from the active set and
// clears the offline list. The minimum validator count is not enforced here.
func (r *Registry) RemoveOfflineValidators() ([]domain.AccountID, error) {
	r.mx.Lock()
	defer r.mx.Unlock()

	if len(r.state.Offline) == 0 {
		return nil, nil
	}
	offline := make(map[domain.AccountID]struct{}, len(r.state.Offline))
	for _, id := range r.state.Offline {
		offline[id] = struct{}{}
	}

	next := r.state.Clone()
	removed := make([]domain.AccountID, 0, len(offline))
	next.Active = slices.DeleteFunc(next.Active, func(v domain.AccountID) bool {
		_, ok := offline[v]
		if ok {
			removed = append(removed, v)
		}
		return ok
	})
	next.Offline = nil
	if err := r.commit(next); err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		log.Infof("validator: removed offline validators %v", removed)
	}
	if len(next.Active) < r.minValidators {
		log.Warnf("validator: active set is below minimum: %d < %d", len(next.Active), r.minValidators)
	}
	return removed, nil
}

func (r *Registry) Validators() []domain.AccountID {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return slices.Clone(r.state.Active)
}

func (r *Registry) ApprovedValidators() []domain.AccountID {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return slices.Clone(r.state.Approved)
}

func (r *Registry) OfflineValidators() []domain.AccountID {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return slices.Clone(r.state.Offline)
}

func (r *Registry) State() domain.ValidatorState {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return r.state.Clone()
}
