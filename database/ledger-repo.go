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
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/Warp-net/iris/database/local"
	"github.com/Warp-net/iris/domain"
	"github.com/Warp-net/iris/security"
	"github.com/holiman/uint256"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	LedgerNamespace  = "/LEDGER"
	ownedSubName     = "OWNED"
	balanceSubName   = "BALANCE"
	candidateSubName = "CANDIDATE"
	readySubName     = "READY"
	appliedSubName   = "APPLIED"
	contentSubName   = "CONTENT"

	ErrNilLedgerRepo = local.DBError("ledger repo is nil")
	ErrUnknownCall   = local.DBError("ledger: unknown call kind")
	ErrCallApplied   = local.DBError("ledger: call already applied")
)

type LedgerStorer interface {
	NewTxn() (local.IrisTransactioner, error)
	Get(key local.DatabaseKey) ([]byte, error)
	Set(key local.DatabaseKey, value []byte) error
}

// AssetRecord is the asset class minted for published content.
type AssetRecord struct {
	AssetID domain.AssetID   `msgpack:"asset_id" json:"asset_id"`
	Admin   domain.AccountID `msgpack:"admin" json:"admin"`
	CID     domain.ContentID `msgpack:"cid" json:"cid"`
}

// LedgerRepo is the local stand-in for the asset ledger: data command queue,
// asset ownership, balances, storage pool candidacy and fetch-ready
// notifications. It accepts signed calls only from verified signers.
type LedgerRepo struct {
	mx    sync.Mutex
	db    LedgerStorer
	queue *QueueRepo
}

func NewLedgerRepo(db interface {
	LedgerStorer
	QueueStorer
}) *LedgerRepo {
	return &LedgerRepo{db: db, queue: NewQueueRepo(db)}
}

func (repo *LedgerRepo) Queue() *QueueRepo {
	return repo.queue
}

func (repo *LedgerRepo) DequeueAll(_ context.Context) ([]domain.DataCommand, error) {
	if repo == nil {
		return nil, ErrNilLedgerRepo
	}
	return repo.queue.DequeueAll()
}

func ownedKey(owner domain.AccountID, cid domain.ContentID) local.DatabaseKey {
	return local.NewPrefixBuilder(LedgerNamespace).
		AddSubPrefix(ownedSubName).
		AddRootID(owner).
		AddParentId(cid).
		Build()
}

func balanceKey(asset domain.AssetID, account domain.AccountID) local.DatabaseKey {
	return local.NewPrefixBuilder(LedgerNamespace).
		AddSubPrefix(balanceSubName).
		AddRootID(strconv.FormatUint(asset, 10)).
		AddParentId(account).
		Build()
}

// ResolveAssetID maps owned content to its asset id.
func (repo *LedgerRepo) ResolveAssetID(_ context.Context, owner domain.AccountID, cid domain.ContentID) (domain.AssetID, error) {
	if repo == nil {
		return 0, ErrNilLedgerRepo
	}
	bt, err := repo.db.Get(ownedKey(owner, cid))
	if local.IsNotFoundError(err) {
		return 0, domain.ErrNoSuchOwnedContent
	}
	if err != nil {
		return 0, err
	}
	var rec AssetRecord
	if err := msgpack.Unmarshal(bt, &rec); err != nil {
		return 0, err
	}
	return rec.AssetID, nil
}

// BalanceOf returns the account balance of an asset. Unknown accounts hold zero.
func (repo *LedgerRepo) BalanceOf(_ context.Context, asset domain.AssetID, account domain.AccountID) (*domain.Balance, error) {
	if repo == nil {
		return nil, ErrNilLedgerRepo
	}
	bt, err := repo.db.Get(balanceKey(asset, account))
	if local.IsNotFoundError(err) {
		return uint256.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(bt), nil
}

func (repo *LedgerRepo) SetBalance(asset domain.AssetID, account domain.AccountID, amount *domain.Balance) error {
	if repo == nil {
		return ErrNilLedgerRepo
	}
	if amount == nil {
		amount = uint256.NewInt(0)
	}
	return repo.db.Set(balanceKey(asset, account), amount.Bytes())
}

// Candidates lists storage pool candidates of an asset.
func (repo *LedgerRepo) Candidates(pool domain.AssetID) ([]domain.AccountID, error) {
	return repo.listIds(local.NewPrefixBuilder(LedgerNamespace).
		AddSubPrefix(candidateSubName).
		AddRootID(strconv.FormatUint(pool, 10)).
		Build())
}

// ReadyFor lists the content notifications delivered to a recipient.
func (repo *LedgerRepo) ReadyFor(recipient domain.AccountID) ([]string, error) {
	return repo.listIds(local.NewPrefixBuilder(LedgerNamespace).
		AddSubPrefix(readySubName).
		AddRootID(recipient).
		Build())
}

func (repo *LedgerRepo) listIds(prefix local.DatabaseKey) ([]string, error) {
	if repo == nil {
		return nil, ErrNilLedgerRepo
	}
	txn, err := repo.db.NewTxn()
	if err != nil {
		return nil, err
	}
	defer txn.Rollback()

	items, err := txn.List(prefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, string(item.Value))
	}
	return ids, txn.Commit()
}

// Apply verifies and executes a signed call.
func (repo *LedgerRepo) Apply(_ context.Context, call domain.SignedCall) error {
	if repo == nil {
		return ErrNilLedgerRepo
	}
	pub, err := security.PublicKeyFromAccount(call.Signer)
	if err != nil {
		return fmt.Errorf("ledger: signer %s: %w", call.Signer, err)
	}
	if err := security.VerifySignature(pub, call.Payload, call.Signature); err != nil {
		return errors.Join(domain.ErrInvalidSignature, err)
	}

	repo.mx.Lock()
	defer repo.mx.Unlock()

	txn, err := repo.db.NewTxn()
	if err != nil {
		return err
	}
	defer txn.Rollback()

	appliedKey := local.NewPrefixBuilder(LedgerNamespace).
		AddSubPrefix(appliedSubName).
		AddRootID(call.Id).
		Build()
	if _, err := txn.Get(appliedKey); err == nil {
		return ErrCallApplied
	} else if !local.IsNotFoundError(err) {
		return err
	}

	switch call.Kind {
	case domain.PublishResultCallKind:
		var c domain.PublishResultCall
		if err := msgpack.Unmarshal(call.Payload, &c); err != nil {
			return err
		}
		err = repo.applyPublishResult(txn, c)
	case domain.FetchReadyCallKind:
		var c domain.FetchReadyCall
		if err := msgpack.Unmarshal(call.Payload, &c); err != nil {
			return err
		}
		err = txn.Set(
			local.NewPrefixBuilder(LedgerNamespace).
				AddSubPrefix(readySubName).
				AddRootID(c.Recipient).
				AddParentId(call.Id).
				Build(),
			[]byte(call.Signer),
		)
	case domain.CandidacyCallKind:
		var c domain.CandidacyCall
		if err := msgpack.Unmarshal(call.Payload, &c); err != nil {
			return err
		}
		err = txn.Set(
			local.NewPrefixBuilder(LedgerNamespace).
				AddSubPrefix(candidateSubName).
				AddRootID(strconv.FormatUint(c.PoolID, 10)).
				AddParentId(c.Origin).
				Build(),
			[]byte(c.Origin),
		)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCall, call.Kind)
	}
	if err != nil {
		return err
	}
	if err := txn.Set(appliedKey, []byte(call.Kind)); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	log.Debugf("ledger: applied %s from %s", call.Kind, call.Signer)
	return nil
}

// applyPublishResult mints the asset record for new content and credits
// the admin with the initial balance.
func (repo *LedgerRepo) applyPublishResult(txn local.IrisTransactioner, c domain.PublishResultCall) error {
	rec := AssetRecord{AssetID: c.AssetID, Admin: c.Admin, CID: c.CID}
	bt, err := msgpack.Marshal(rec)
	if err != nil {
		return err
	}
	if err := txn.Set(ownedKey(c.Admin, c.CID), bt); err != nil {
		return err
	}
	contentKey := local.NewPrefixBuilder(LedgerNamespace).
		AddSubPrefix(contentSubName).
		AddRootID(strconv.FormatUint(c.AssetID, 10)).
		Build()
	if err := txn.Set(contentKey, bt); err != nil {
		return err
	}
	return txn.Set(balanceKey(c.AssetID, c.Admin), uint256.NewInt(c.Balance).Bytes())
}
