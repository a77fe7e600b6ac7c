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
	"encoding/hex"
	"errors"

	"github.com/Warp-net/iris/database/local"
	"github.com/Warp-net/iris/domain"
	"github.com/multiformats/go-multiaddr"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/blake2b"
)

const (
	BootstrapNamespace = "/BOOTSTRAP"
	nodesSubName       = "NODES"

	ErrNilBootstrapRepo     = local.DBError("bootstrap repo is nil")
	ErrBootstrapNodeInvalid = local.DBError("bootstrap node is invalid")
	ErrBootstrapNotFound    = local.DBError("bootstrap node not found")
)

type BootstrapStorer interface {
	NewTxn() (local.IrisTransactioner, error)
	Get(key local.DatabaseKey) ([]byte, error)
	Set(key local.DatabaseKey, value []byte) error
	Delete(key local.DatabaseKey) error
}

// BootstrapRepo is the bootstrap directory: public key to known multiaddresses.
// Entries are keyed by blake2b-128 of the public key followed by the key itself,
// so iteration order is stable and independent of insertion order.
type BootstrapRepo struct {
	db BootstrapStorer
}

func NewBootstrapRepo(db BootstrapStorer) *BootstrapRepo {
	return &BootstrapRepo{db: db}
}

func bootstrapKey(publicKey []byte) (local.DatabaseKey, error) {
	h, err := blake2b.New(16, nil)
	if err != nil {
		return "", err
	}
	h.Write(publicKey)
	concat := append(h.Sum(nil), publicKey...)

	return local.NewPrefixBuilder(BootstrapNamespace).
		AddSubPrefix(nodesSubName).
		AddRootID(hex.EncodeToString(concat)).
		Build(), nil
}

func (repo *BootstrapRepo) Add(node domain.BootstrapNode) error {
	if repo == nil {
		return ErrNilBootstrapRepo
	}
	if len(node.PublicKey) == 0 || len(node.Addrs) == 0 {
		return ErrBootstrapNodeInvalid
	}
	for _, addr := range node.Addrs {
		if _, err := multiaddr.NewMultiaddr(addr); err != nil {
			return errors.Join(ErrBootstrapNodeInvalid, err)
		}
	}

	key, err := bootstrapKey(node.PublicKey)
	if err != nil {
		return err
	}
	bt, err := msgpack.Marshal(node)
	if err != nil {
		return err
	}
	return repo.db.Set(key, bt)
}

func (repo *BootstrapRepo) Get(publicKey []byte) (domain.BootstrapNode, error) {
	if repo == nil {
		return domain.BootstrapNode{}, ErrNilBootstrapRepo
	}
	key, err := bootstrapKey(publicKey)
	if err != nil {
		return domain.BootstrapNode{}, err
	}
	bt, err := repo.db.Get(key)
	if local.IsNotFoundError(err) {
		return domain.BootstrapNode{}, ErrBootstrapNotFound
	}
	if err != nil {
		return domain.BootstrapNode{}, err
	}
	var node domain.BootstrapNode
	err = msgpack.Unmarshal(bt, &node)
	return node, err
}

// Contains reports whether the public key is a directory member.
func (repo *BootstrapRepo) Contains(publicKey []byte) (bool, error) {
	_, err := repo.Get(publicKey)
	if errors.Is(err, ErrBootstrapNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (repo *BootstrapRepo) Remove(publicKey []byte) error {
	if repo == nil {
		return ErrNilBootstrapRepo
	}
	key, err := bootstrapKey(publicKey)
	if err != nil {
		return err
	}
	return repo.db.Delete(key)
}

func (repo *BootstrapRepo) List() ([]domain.BootstrapNode, error) {
	if repo == nil {
		return nil, ErrNilBootstrapRepo
	}
	txn, err := repo.db.NewTxn()
	if err != nil {
		return nil, err
	}
	defer txn.Rollback()

	prefix := local.NewPrefixBuilder(BootstrapNamespace).AddSubPrefix(nodesSubName).Build()
	items, err := txn.List(prefix)
	if err != nil {
		return nil, err
	}

	nodes := make([]domain.BootstrapNode, 0, len(items))
	for _, item := range items {
		var node domain.BootstrapNode
		if err := msgpack.Unmarshal(item.Value, &node); err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, txn.Commit()
}
