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

package ipfs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Warp-net/iris/core/irisnet"
	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/multiformats/go-multihash"
)

const ErrContentNotFound = irisnet.IrisError("ipfs: content not found")

// MemoryStore is an in-process Store. It backs dry runs and tests.
type MemoryStore struct {
	mx sync.RWMutex

	publicKey []byte
	addrs     []multiaddr.Multiaddr
	blocks    map[string][]byte
	peers     map[irisnet.IrisPeerID]multiaddr.Multiaddr

	// per-operation hooks
	failures map[RequestKind]error
	delays   map[RequestKind]time.Duration
	calls    []RequestKind
}

func NewMemoryStore(publicKey []byte, addrs ...multiaddr.Multiaddr) *MemoryStore {
	return &MemoryStore{
		publicKey: publicKey,
		addrs:     addrs,
		blocks:    make(map[string][]byte),
		peers:     make(map[irisnet.IrisPeerID]multiaddr.Multiaddr),
		failures:  make(map[RequestKind]error),
		delays:    make(map[RequestKind]time.Duration),
	}
}

// FailOn makes every following request of kind fail with err. A nil err clears it.
func (m *MemoryStore) FailOn(kind RequestKind, err error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err == nil {
		delete(m.failures, kind)
		return
	}
	m.failures[kind] = err
}

// DelayOn stalls requests of kind, ignoring cancellation.
func (m *MemoryStore) DelayOn(kind RequestKind, d time.Duration) {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.delays[kind] = d
}

// Calls returns the request kinds served so far in order.
func (m *MemoryStore) Calls() []RequestKind {
	m.mx.RLock()
	defer m.mx.RUnlock()
	return append([]RequestKind{}, m.calls...)
}

func (m *MemoryStore) enter(kind RequestKind) error {
	m.mx.Lock()
	m.calls = append(m.calls, kind)
	err := m.failures[kind]
	delay := m.delays[kind]
	m.mx.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return err
}

func (m *MemoryStore) Identity(_ context.Context) ([]byte, []multiaddr.Multiaddr, error) {
	if err := m.enter(IdentityRequest); err != nil {
		return nil, nil, err
	}
	return m.publicKey, m.addrs, nil
}

func (m *MemoryStore) Connect(_ context.Context, info irisnet.IrisAddrInfo) error {
	if err := m.enter(ConnectRequest); err != nil {
		return err
	}
	m.mx.Lock()
	defer m.mx.Unlock()
	addrs, err := peer.AddrInfoToP2pAddrs(&info)
	if err != nil || len(addrs) == 0 {
		return fmt.Errorf("ipfs: connect %s: no address", info.ID)
	}
	m.peers[info.ID] = addrs[0]
	return nil
}

func (m *MemoryStore) Disconnect(_ context.Context, addr multiaddr.Multiaddr) error {
	if err := m.enter(DisconnectRequest); err != nil {
		return err
	}
	info, err := irisnet.AddrInfoFromString(addr.String())
	if err != nil {
		return nil
	}
	m.mx.Lock()
	defer m.mx.Unlock()
	delete(m.peers, info.ID)
	return nil
}

func (m *MemoryStore) Cat(_ context.Context, id cid.Cid) ([]byte, error) {
	if err := m.enter(CatBytesRequest); err != nil {
		return nil, err
	}
	m.mx.RLock()
	defer m.mx.RUnlock()
	data, ok := m.blocks[id.KeyString()]
	if !ok {
		return nil, ErrContentNotFound
	}
	return append([]byte{}, data...), nil
}

func (m *MemoryStore) Add(_ context.Context, data []byte) (cid.Cid, error) {
	if err := m.enter(AddBytesRequest); err != nil {
		return cid.Undef, err
	}
	return m.Put(data)
}

// Put stores data without recording a call.
func (m *MemoryStore) Put(data []byte) (cid.Cid, error) {
	hash, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	id := cid.NewCidV1(cid.Raw, hash)

	m.mx.Lock()
	defer m.mx.Unlock()
	m.blocks[id.KeyString()] = append([]byte{}, data...)
	return id, nil
}

func (m *MemoryStore) Peers(_ context.Context) ([]multiaddr.Multiaddr, error) {
	if err := m.enter(PeersRequest); err != nil {
		return nil, err
	}
	m.mx.RLock()
	defer m.mx.RUnlock()
	peers := make([]multiaddr.Multiaddr, 0, len(m.peers))
	for _, addr := range m.peers {
		peers = append(peers, addr)
	}
	return peers, nil
}

func (m *MemoryStore) IsConnected(id irisnet.IrisPeerID) bool {
	m.mx.RLock()
	defer m.mx.RUnlock()
	_, ok := m.peers[id]
	return ok
}
