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
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/Warp-net/iris/database/local"
	"github.com/Warp-net/iris/domain"
	"github.com/Warp-net/iris/security"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/suite"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/goleak"
)

type LedgerRepoTestSuite struct {
	suite.Suite

	db   *local.DB
	repo *LedgerRepo

	key     ed25519.PrivateKey
	account domain.AccountID
}

func (s *LedgerRepoTestSuite) SetupTest() {
	var err error
	s.db, err = local.New("", local.DefaultOptions().WithInMemory(true))
	s.Require().NoError(err)
	s.Require().NoError(s.db.Run("test", "test"))

	s.repo = NewLedgerRepo(s.db)

	s.key, err = security.GenerateKeyFromSeed([]byte("ledger-signer"))
	s.Require().NoError(err)
	s.account, err = security.AccountFromPublicKey(s.key.Public().(ed25519.PublicKey))
	s.Require().NoError(err)
}

func (s *LedgerRepoTestSuite) TearDownTest() {
	s.db.Close()
}

func (s *LedgerRepoTestSuite) sign(call domain.Call) domain.SignedCall {
	payload, err := msgpack.Marshal(call)
	s.Require().NoError(err)
	return domain.SignedCall{
		Id:        uuid.New().String(),
		Signer:    s.account,
		Kind:      call.CallKind(),
		Payload:   payload,
		Signature: security.Sign(s.key, payload),
		Timestamp: time.Now(),
	}
}

func (s *LedgerRepoTestSuite) TestResolveMissingContent() {
	_, err := s.repo.ResolveAssetID(context.Background(), "owner", "cid")
	s.ErrorIs(err, domain.ErrNoSuchOwnedContent)
}

func (s *LedgerRepoTestSuite) TestBalanceDefaultsToZero() {
	bal, err := s.repo.BalanceOf(context.Background(), 7, "nobody")
	s.Require().NoError(err)
	s.True(bal.IsZero())
}

func (s *LedgerRepoTestSuite) TestSetBalanceBeyondUint64() {
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 70)
	s.Require().NoError(s.repo.SetBalance(3, "rich", huge))

	bal, err := s.repo.BalanceOf(context.Background(), 3, "rich")
	s.Require().NoError(err)
	s.Equal(huge, bal)
	s.False(bal.IsUint64())
}

func (s *LedgerRepoTestSuite) TestApplyPublishResult() {
	ctx := context.Background()
	call := s.sign(domain.PublishResultCall{Admin: "admin", CID: "new-cid", AssetID: 9, Balance: 100})
	s.Require().NoError(s.repo.Apply(ctx, call))

	asset, err := s.repo.ResolveAssetID(ctx, "admin", "new-cid")
	s.Require().NoError(err)
	s.Equal(domain.AssetID(9), asset)

	bal, err := s.repo.BalanceOf(ctx, 9, "admin")
	s.Require().NoError(err)
	s.Equal(uint64(100), bal.Uint64())

	s.ErrorIs(s.repo.Apply(ctx, call), ErrCallApplied)
}

func (s *LedgerRepoTestSuite) TestApplyFetchReadyAndCandidacy() {
	ctx := context.Background()
	s.Require().NoError(s.repo.Apply(ctx, s.sign(domain.FetchReadyCall{Recipient: "bob"})))
	s.Require().NoError(s.repo.Apply(ctx, s.sign(domain.CandidacyCall{Origin: "carol", PoolID: 4})))

	ready, err := s.repo.ReadyFor("bob")
	s.Require().NoError(err)
	s.Equal([]string{s.account}, ready)

	candidates, err := s.repo.Candidates(4)
	s.Require().NoError(err)
	s.Equal([]domain.AccountID{"carol"}, candidates)
}

func (s *LedgerRepoTestSuite) TestApplyRejectsBadSignature() {
	call := s.sign(domain.FetchReadyCall{Recipient: "bob"})
	call.Payload = append(call.Payload, 0x01)
	s.ErrorIs(s.repo.Apply(context.Background(), call), domain.ErrInvalidSignature)

	ready, err := s.repo.ReadyFor("bob")
	s.Require().NoError(err)
	s.Empty(ready)
}

func (s *LedgerRepoTestSuite) TestApplyUnknownKind() {
	call := s.sign(domain.FetchReadyCall{Recipient: "bob"})
	call.Kind = "mint_everything"
	s.ErrorIs(s.repo.Apply(context.Background(), call), ErrUnknownCall)
}

func (s *LedgerRepoTestSuite) TestDequeueThroughLedger() {
	_, err := s.repo.Queue().Enqueue(domain.FetchCommand{Owner: "o", CID: "c", Recipient: "r"})
	s.Require().NoError(err)

	cmds, err := s.repo.DequeueAll(context.Background())
	s.Require().NoError(err)
	s.Len(cmds, 1)
}

func TestLedgerRepoTestSuite(t *testing.T) {
	defer goleak.VerifyNone(t)
	suite.Run(t, new(LedgerRepoTestSuite))
}
