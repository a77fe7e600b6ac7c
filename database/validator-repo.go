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

package database

import (
	"errors"

	"github.com/Warp-net/iris/database/local"
	"github.com/Warp-net/iris/domain"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	ValidatorsNamespace = "/VALIDATORS"
	stateSubName        = "STATE"
	sessionSubName      = "SESSION"

	ErrNilValidatorRepo       = local.DBError("validator repo is nil")
	ErrValidatorStateNotFound = local.DBError("validator state not found")
)

type ValidatorStorer interface {
	Get(key local.DatabaseKey) ([]byte, error)
	Set(key local.DatabaseKey, value []byte) error
}

// ValidatorRepo persists the validator lifecycle state as a single record.
type ValidatorRepo struct {
	db ValidatorStorer
}

func NewValidatorRepo(db ValidatorStorer) *ValidatorRepo {
	return &ValidatorRepo{db: db}
}

func (repo *ValidatorRepo) LoadState() (domain.ValidatorState, error) {
	if repo == nil {
		return domain.ValidatorState{}, ErrNilValidatorRepo
	}
	key := local.NewPrefixBuilder(ValidatorsNamespace).AddSubPrefix(stateSubName).Build()

	bt, err := repo.db.Get(key)
	if local.IsNotFoundError(err) {
		return domain.ValidatorState{}, ErrValidatorStateNotFound
	}
	if err != nil {
		return domain.ValidatorState{}, err
	}

	var state domain.ValidatorState
	if err := msgpack.Unmarshal(bt, &state); err != nil {
		return domain.ValidatorState{}, err
	}
	return state, nil
}

func (repo *ValidatorRepo) SaveState(state domain.ValidatorState) error {
	if repo == nil {
		return ErrNilValidatorRepo
	}
	bt, err := msgpack.Marshal(state)
	if err != nil {
		return err
	}
	key := local.NewPrefixBuilder(ValidatorsNamespace).AddSubPrefix(stateSubName).Build()
	return repo.db.Set(key, bt)
}

// SessionIndex returns the last started session index or zero.
func (repo *ValidatorRepo) SessionIndex() (domain.SessionIndex, error) {
	if repo == nil {
		return 0, ErrNilValidatorRepo
	}
	key := local.NewPrefixBuilder(ValidatorsNamespace).AddSubPrefix(sessionSubName).Build()
	bt, err := repo.db.Get(key)
	if local.IsNotFoundError(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var index domain.SessionIndex
	err = msgpack.Unmarshal(bt, &index)
	return index, err
}

func (repo *ValidatorRepo) SetSessionIndex(index domain.SessionIndex) error {
	if repo == nil {
		return ErrNilValidatorRepo
	}
	bt, err := msgpack.Marshal(index)
	if err != nil {
		return err
	}
	key := local.NewPrefixBuilder(ValidatorsNamespace).AddSubPrefix(sessionSubName).Build()
	return repo.db.Set(key, bt)
}

func IsStateNotFound(err error) bool {
	return errors.Is(err, ErrValidatorStateNotFound)
}
