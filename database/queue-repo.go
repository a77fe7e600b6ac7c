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
	"github.com/Warp-net/iris/database/local"
	"github.com/Warp-net/iris/domain"
	"github.com/oklog/ulid/v2"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	QueueNamespace  = "/QUEUE"
	commandsSubName = "COMMANDS"

	ErrNilQueueRepo = local.DBError("queue repo is nil")
)

type QueueStorer interface {
	NewTxn() (local.IrisTransactioner, error)
	Set(key local.DatabaseKey, value []byte) error
}

// QueueRepo is the data command queue. ULID keys keep submission order.
type QueueRepo struct {
	db QueueStorer
}

func NewQueueRepo(db QueueStorer) *QueueRepo {
	return &QueueRepo{db: db}
}

func (repo *QueueRepo) Enqueue(cmd domain.DataCommand) (string, error) {
	if repo == nil {
		return "", ErrNilQueueRepo
	}
	if cmd == nil {
		return "", local.DBError("queue: nil command")
	}
	id := ulid.Make().String()
	queued, err := domain.NewQueuedCommand(id, cmd)
	if err != nil {
		return "", err
	}
	bt, err := msgpack.Marshal(queued)
	if err != nil {
		return "", err
	}
	key := local.NewPrefixBuilder(QueueNamespace).
		AddSubPrefix(commandsSubName).
		AddRootID(id).
		Build()
	return id, repo.db.Set(key, bt)
}

// DequeueAll removes and returns every queued command in submission order.
// Draining happens in one transaction, so a command is handed out at most once.
func (repo *QueueRepo) DequeueAll() ([]domain.DataCommand, error) {
	if repo == nil {
		return nil, ErrNilQueueRepo
	}
	txn, err := repo.db.NewTxn()
	if err != nil {
		return nil, err
	}
	defer txn.Rollback()

	prefix := local.NewPrefixBuilder(QueueNamespace).AddSubPrefix(commandsSubName).Build()
	items, err := txn.List(prefix)
	if err != nil {
		return nil, err
	}

	cmds := make([]domain.DataCommand, 0, len(items))
	for _, item := range items {
		if err := txn.Delete(local.DatabaseKey(item.Key)); err != nil {
			return nil, err
		}
		var queued domain.QueuedCommand
		if err := msgpack.Unmarshal(item.Value, &queued); err != nil {
			log.Errorf("queue: malformed entry %s dropped: %v", item.Key, err)
			continue
		}
		cmd, err := queued.Command()
		if err != nil {
			log.Errorf("queue: %v", err)
			continue
		}
		cmds = append(cmds, cmd)
	}
	return cmds, txn.Commit()
}

func (repo *QueueRepo) Len() (int, error) {
	if repo == nil {
		return 0, ErrNilQueueRepo
	}
	txn, err := repo.db.NewTxn()
	if err != nil {
		return 0, err
	}
	defer txn.Rollback()

	prefix := local.NewPrefixBuilder(QueueNamespace).AddSubPrefix(commandsSubName).Build()
	items, err := txn.List(prefix)
	if err != nil {
		return 0, err
	}
	return len(items), txn.Commit()
}
