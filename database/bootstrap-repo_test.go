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

type BootstrapRepoTestSuite struct {
	suite.Suite

	db   *local.DB
	repo *BootstrapRepo
}

func (s *BootstrapRepoTestSuite) SetupTest() {
	var err error
	s.db, err = local.New("", local.DefaultOptions().WithInMemory(true))
	s.Require().NoError(err)
	s.Require().NoError(s.db.Run("test", "test"))

	s.repo = NewBootstrapRepo(s.db)
}

func (s *BootstrapRepoTestSuite) TearDownTest() {
	s.db.Close()
}

func (s *BootstrapRepoTestSuite) TestAddGetContains() {
	node := domain.BootstrapNode{
		PublicKey: []byte("public-key-1"),
		Addrs:     []string{"/ip4/127.0.0.1/tcp/4001", "/ip4/10.0.0.1/tcp/4001"},
	}
	s.Require().NoError(s.repo.Add(node))

	got, err := s.repo.Get(node.PublicKey)
	s.Require().NoError(err)
	s.Equal(node, got)

	ok, err := s.repo.Contains(node.PublicKey)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.repo.Contains([]byte("unknown"))
	s.Require().NoError(err)
	s.False(ok)
}

func (s *BootstrapRepoTestSuite) TestInvalidNode() {
	s.ErrorIs(s.repo.Add(domain.BootstrapNode{}), ErrBootstrapNodeInvalid)
	s.ErrorIs(s.repo.Add(domain.BootstrapNode{
		PublicKey: []byte("k"),
		Addrs:     []string{"not-a-multiaddr"},
	}), ErrBootstrapNodeInvalid)
}

func (s *BootstrapRepoTestSuite) TestListAndRemove() {
	for _, k := range []string{"k1", "k2", "k3"} {
		s.Require().NoError(s.repo.Add(domain.BootstrapNode{
			PublicKey: []byte(k),
			Addrs:     []string{"/ip4/127.0.0.1/tcp/4001"},
		}))
	}
	nodes, err := s.repo.List()
	s.Require().NoError(err)
	s.Len(nodes, 3)

	again, err := s.repo.List()
	s.Require().NoError(err)
	s.Equal(nodes, again)

	s.Require().NoError(s.repo.Remove([]byte("k2")))
	nodes, err = s.repo.List()
	s.Require().NoError(err)
	s.Len(nodes, 2)

	_, err = s.repo.Get([]byte("k2"))
	s.ErrorIs(err, ErrBootstrapNotFound)
}

func TestBootstrapRepoTestSuite(t *testing.T) {
	defer goleak.VerifyNone(t)
	suite.Run(t, new(BootstrapRepoTestSuite))
}
