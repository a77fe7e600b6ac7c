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
	"sync"

	"github.com/Warp-net/iris/database/local"
	"github.com/klauspost/compress/zstd"
)

const (
	OffchainNamespace = "/OFFCHAIN"
	storageSubName    = "STORAGE"

	ErrNilOffchainRepo = local.DBError("offchain repo is nil")
	ErrContentNotFound = local.DBError("offchain content not found")
)

type OffchainStorer interface {
	Get(key local.DatabaseKey) ([]byte, error)
	Set(key local.DatabaseKey, value []byte) error
}

// OffchainRepo is node-local persistent storage for fetched content.
// Values are zstd compressed.
type OffchainRepo struct {
	db OffchainStorer

	once    sync.Once
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	initErr error
}

func NewOffchainRepo(db OffchainStorer) *OffchainRepo {
	return &OffchainRepo{db: db}
}

func (repo *OffchainRepo) init() error {
	repo.once.Do(func() {
		repo.encoder, repo.initErr = zstd.NewWriter(
			nil,
			zstd.WithEncoderConcurrency(1),
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithZeroFrames(true),
		)
		if repo.initErr != nil {
			return
		}
		repo.decoder, repo.initErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
	return repo.initErr
}

func storageKey(key string) local.DatabaseKey {
	return local.NewPrefixBuilder(OffchainNamespace).
		AddSubPrefix(storageSubName).
		AddRootID(key).
		Build()
}

func (repo *OffchainRepo) Set(key string, value []byte) error {
	if repo == nil {
		return ErrNilOffchainRepo
	}
	if key == "" {
		return local.DBError("offchain: empty key")
	}
	if err := repo.init(); err != nil {
		return err
	}
	compressed := repo.encoder.EncodeAll(value, make([]byte, 0, len(value)/2+16))
	return repo.db.Set(storageKey(key), compressed)
}

func (repo *OffchainRepo) Get(key string) ([]byte, error) {
	if repo == nil {
		return nil, ErrNilOffchainRepo
	}
	if err := repo.init(); err != nil {
		return nil, err
	}
	bt, err := repo.db.Get(storageKey(key))
	if local.IsNotFoundError(err) {
		return nil, ErrContentNotFound
	}
	if err != nil {
		return nil, err
	}
	return repo.decoder.DecodeAll(bt, nil)
}

func (repo *OffchainRepo) Close() {
	if repo == nil {
		return
	}
	if repo.encoder != nil {
		_ = repo.encoder.Close()
	}
	if repo.decoder != nil {
		repo.decoder.Close()
	}
}
