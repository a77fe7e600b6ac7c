//nolint:all
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
	"testing"

	"github.com/Warp-net/iris/database/local"
	"github.com/Warp-net/iris/domain"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

type ValidatorRepoTestSuite struct {
	suite.Suite

	db   *local.DB
	repo *ValidatorRepo
}

func (s *ValidatorRepoTestSuite) SetupTest() {
	var err error
	s.db, err = local.New("", local.DefaultOptions().WithInMemory(true))
	s.Require().NoError(err)
	s.Require().NoError(s.db.Run("test", "test"))

	s.repo = NewValidatorRepo(s.db)
}

func (s *ValidatorRepoTestSuite) TearDownTest() {
	s.db.Close()
}

func (s *ValidatorRepoTestSuite) TestStateNotFound() {
	_, err := s.repo.LoadState()
	s.Require().ErrorIs(err, ErrValidatorStateNotFound)
	s.True(IsStateNotFound(err))
}

func (s *ValidatorRepoTestSuite) TestSaveAndLoadState() {
	state := domain.ValidatorState{
		Active:   []domain.AccountID{"a", "b", "c"},
		Approved: []domain.AccountID{"a", "b"},
		Offline:  []domain.AccountID{"c", "c"},
	}
	s.Require().NoError(s.repo.SaveState(state))

	loaded, err := s.repo.LoadState()
	s.Require().NoError(err)
	s.Equal(state, loaded)

	state.Offline = nil
	s.Require().NoError(s.repo.SaveState(state))
	loaded, err = s.repo.LoadState()
	s.Require().NoError(err)
	s.Empty(loaded.Offline)
	s.Equal([]domain.AccountID{"a", "b", "c"}, loaded.Active)
}

func (s *ValidatorRepoTestSuite) TestSessionIndex() {
	index, err := s.repo.SessionIndex()
	s.Require().NoError(err)
	s.Zero(index)

	s.Require().NoError(s.repo.SetSessionIndex(42))
	index, err = s.repo.SessionIndex()
	s.Require().NoError(err)
	s.Equal(domain.SessionIndex(42), index)
}

func (s *ValidatorRepoTestSuite) TestClosedDatabase() {
	s.db.Close()
	_, err := s.repo.LoadState()
	s.ErrorIs(err, local.ErrNotRunning)
}

func TestValidatorRepoTestSuite(t *testing.T) {
	defer goleak.VerifyNone(t)
	suite.Run(t, new(ValidatorRepoTestSuite))
}
