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

package handler

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/Warp-net/iris/core/irisnet"
	"github.com/Warp-net/iris/domain"
	"github.com/Warp-net/iris/event"
	"github.com/Warp-net/iris/json"
	"github.com/Warp-net/iris/security"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/ipfs/go-cid"
	log "github.com/sirupsen/logrus"
)

const (
	retrieveCacheSize = 128
	retrieveCacheTTL  = 10 * time.Minute
)

type CommandEnqueuer interface {
	Enqueue(cmd domain.DataCommand) (string, error)
}

type BytesGetter interface {
	Get(key string) ([]byte, error)
}

// StreamPublishDataHandler queues a request to copy content from a remote
// peer into the local content store.
func StreamPublishDataHandler(queue CommandEnqueuer) irisnet.IrisHandlerFunc {
	if queue == nil {
		panic("publish data handler called with nil queue")
	}
	return func(buf []byte, _ irisnet.IrisStream) (any, error) {
		var ev event.PublishDataEvent
		if err := json.Unmarshal(buf, &ev); err != nil {
			return nil, err
		}
		if ev.Source == "" || ev.Admin == "" {
			return nil, errors.New("publish data handler: source and admin are required")
		}
		if _, err := irisnet.NewMultiaddr(ev.Source); err != nil {
			return nil, err
		}
		if _, err := cid.Decode(ev.CID); err != nil {
			return nil, err
		}
		id, err := queue.Enqueue(ev)
		if err != nil {
			return nil, err
		}
		return event.EnqueuedResponse{Id: id}, nil
	}
}

// StreamFetchDataHandler queues a request to deliver owned content to the
// calling peer. The recipient is always the caller.
func StreamFetchDataHandler(queue CommandEnqueuer) irisnet.IrisHandlerFunc {
	if queue == nil {
		panic("fetch data handler called with nil queue")
	}
	return func(buf []byte, s irisnet.IrisStream) (any, error) {
		var ev event.FetchDataEvent
		if err := json.Unmarshal(buf, &ev); err != nil {
			return nil, err
		}
		if ev.Owner == "" || ev.CID == "" {
			return nil, errors.New("fetch data handler: owner and cid are required")
		}
		ev.Recipient = s.Conn().RemotePeer().String()
		id, err := queue.Enqueue(ev)
		if err != nil {
			return nil, err
		}
		return event.EnqueuedResponse{Id: id}, nil
	}
}

// StreamRetrieveBytesHandler returns content stored locally by the data
// pipeline. The message is the storage key and must be signed by the
// supplied public key.
func StreamRetrieveBytesHandler(storage BytesGetter) irisnet.IrisHandlerFunc {
	if storage == nil {
		panic("retrieve bytes handler called with nil storage")
	}
	cache := expirable.NewLRU[string, []byte](retrieveCacheSize, nil, retrieveCacheTTL)

	return func(buf []byte, _ irisnet.IrisStream) (any, error) {
		var ev event.RetrieveBytesEvent
		if err := json.Unmarshal(buf, &ev); err != nil {
			return nil, err
		}
		if len(ev.PublicKey) != ed25519.PublicKeySize || len(ev.Message) == 0 {
			return nil, domain.ErrInvalidSignature
		}
		// Proves possession of the key only. The key is not matched against
		// the recipient of a fetch ready notification.
		if err := security.VerifySignature(ev.PublicKey, ev.Message, ev.Signature); err != nil {
			log.Warnf("retrieve bytes handler: %v", err)
			return nil, domain.ErrInvalidSignature
		}

		key := string(ev.Message)
		if data, ok := cache.Get(key); ok {
			return event.RetrieveBytesResponse{Data: data}, nil
		}
		data, err := storage.Get(key)
		if err != nil {
			return nil, err
		}
		cache.Add(key, data)
		return event.RetrieveBytesResponse{Data: data}, nil
	}
}
