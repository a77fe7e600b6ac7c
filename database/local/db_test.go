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

package local

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type DBTestSuite struct {
	suite.Suite

	db *DB
}

func (s *DBTestSuite) SetupTest() {
	var err error
	s.db, err = New("", DefaultOptions().WithInMemory(true))
	s.Require().NoError(err)
	s.Require().NoError(s.db.Run("test", "test"))
}

func (s *DBTestSuite) TearDownTest() {
	s.db.Close()
}

func (s *DBTestSuite) TestPrefixBuilder() {
	key := NewPrefixBuilder("/LEDGER").AddSubPrefix("OWNED").AddRootID("").AddParentId("owner").AddRange(FixedRangeKey).Build()
	s.Equal(DatabaseKey("/LEDGER/OWNED/owner/fixed"), key)
	s.Equal("/LEDGER/OWNED/owner", key.DropId())
	s.Equal("plain", DatabaseKey("plain").DropId())
}

func (s *DBTestSuite) TestSetGetDelete() {
	key := NewPrefixBuilder("/TEST").AddRootID("a").Build()
	s.Require().NoError(s.db.Set(key, []byte("value")))

	v, err := s.db.Get(key)
	s.Require().NoError(err)
	s.Equal([]byte("value"), v)

	s.Require().NoError(s.db.Delete(key))
	_, err = s.db.Get(key)
	s.True(IsNotFoundError(err))
	s.False(IsNotFoundError(nil))
}

func (s *DBTestSuite) TestTxnListOrdered() {
	txn, err := s.db.NewTxn()
	s.Require().NoError(err)
	for _, id := range []string{"c", "a", "b"} {
		s.Require().NoError(txn.Set(NewPrefixBuilder("/TEST").AddSubPrefix("LIST").AddRootID(id).Build(), []byte(id)))
	}
	s.Require().NoError(txn.Set(NewPrefixBuilder("/TEST").AddSubPrefix("OTHER").AddRootID("x").Build(), []byte("x")))
	s.Require().NoError(txn.Commit())

	txn, err = s.db.NewTxn()
	s.Require().NoError(err)
	defer txn.Rollback()

	items, err := txn.List(NewPrefixBuilder("/TEST").AddSubPrefix("LIST").Build())
	s.Require().NoError(err)
	s.Require().Len(items, 3)
	s.Equal("/TEST/LIST/a", items[0].Key)
	s.Equal([]byte("c"), items[2].Value)

	_, err = txn.List(NewPrefixBuilder("/TEST").AddRange(FixedRangeKey).Build())
	s.Error(err)
}

func (s *DBTestSuite) TestRollbackDiscards() {
	key := NewPrefixBuilder("/TEST").AddRootID("rolled").Build()
	txn, err := s.db.NewTxn()
	s.Require().NoError(err)
	s.Require().NoError(txn.Set(key, []byte("v")))
	txn.Rollback()

	_, err = s.db.Get(key)
	s.True(IsNotFoundError(err))
}

func (s *DBTestSuite) TestStats() {
	stats := s.db.Stats()
	s.Contains(stats, "size")
	s.Contains(stats, "max_version")
}

func (s *DBTestSuite) TestNotRunning() {
	db, err := New("", DefaultOptions().WithInMemory(true))
	s.Require().NoError(err)
	s.True(db.IsClosed())

	_, err = db.Get("k")
	s.ErrorIs(err, ErrNotRunning)
	s.ErrorIs(db.Set("k", nil), ErrNotRunning)
	_, err = db.NewTxn()
	s.ErrorIs(err, ErrNotRunning)

	s.Error(db.Run("", ""))
}

func (s *DBTestSuite) TestFirstRunAndWrongPassword() {
	dir := s.T().TempDir()

	db, err := New(dir, DefaultOptions())
	s.Require().NoError(err)
	s.True(db.IsFirstRun())
	s.Require().NoError(db.Run("user", "pass"))
	s.Require().NoError(db.Set("k", []byte("v")))
	db.Close()

	db, err = New(dir, DefaultOptions())
	s.Require().NoError(err)
	s.False(db.IsFirstRun())
	s.ErrorIs(db.Run("user", "wrong"), ErrWrongPassword)

	db, err = New(dir, DefaultOptions())
	s.Require().NoError(err)
	s.Require().NoError(db.Run("user", "pass"))
	v, err := db.Get("k")
	s.Require().NoError(err)
	s.Equal([]byte("v"), v)
	s.Equal(dir, db.Path())
	db.Close()
}

func TestDBTestSuite(t *testing.T) {
	suite.Run(t, new(DBTestSuite))
}
