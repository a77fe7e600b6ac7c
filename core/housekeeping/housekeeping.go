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

package housekeeping

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/Warp-net/iris/core/ipfs"
	"github.com/Warp-net/iris/core/irisnet"
	"github.com/Warp-net/iris/domain"
	"github.com/multiformats/go-multiaddr"
	log "github.com/sirupsen/logrus"
)

// maxBootstrapAttempts bounds the reachability fallback: the last address of
// the entry first, then the second to last.
const maxBootstrapAttempts = 2

type Requester interface {
	Request(ctx context.Context, req ipfs.Request, deadline time.Duration) (ipfs.Response, error)
}

type Directory interface {
	Contains(publicKey []byte) (bool, error)
	List() ([]domain.BootstrapNode, error)
}

type PeersGauge interface {
	SetConnectedPeers(n int)
}

type Housekeeper struct {
	client    Requester
	directory Directory
	gauge     PeersGauge
	deadline  time.Duration
}

func NewHousekeeper(client Requester, directory Directory, gauge PeersGauge, deadline time.Duration) *Housekeeper {
	return &Housekeeper{client: client, directory: directory, gauge: gauge, deadline: deadline}
}

// Run makes sure the node can reach the bootstrap directory. Only a failed
// identity query is returned; connect failures are logged.
func (h *Housekeeper) Run(ctx context.Context) error {
	resp, err := h.client.Request(ctx, ipfs.Identity(), h.deadline)
	if err != nil {
		return fmt.Errorf("housekeeping: identity: %w", err)
	}
	identity := ipfs.MustIdentity(resp)
	log.Debugf("housekeeping: own addresses %v", identity.Addrs)

	isMember, err := h.directory.Contains(identity.PublicKey)
	if err != nil {
		log.Errorf("housekeeping: bootstrap directory lookup: %v", err)
		return nil
	}
	if isMember {
		log.Debugln("housekeeping: node is a bootstrap directory member")
		return nil
	}

	nodes, err := h.directory.List()
	if err != nil {
		log.Errorf("housekeeping: bootstrap directory listing: %v", err)
		return nil
	}
	if len(nodes) == 0 {
		log.Warnln("housekeeping: bootstrap directory is empty")
		return nil
	}

	entry := nodes[0]
	for attempt := 0; attempt < maxBootstrapAttempts && attempt < len(entry.Addrs); attempt++ {
		addr := withPeerID(entry.Addrs[len(entry.Addrs)-1-attempt], entry.PublicKey)

		log.Infof("housekeeping: connecting to bootstrap node %s", addr)
		resp, err := h.client.Request(ctx, ipfs.Connect(addr), h.deadline)
		if err != nil {
			log.Warnf("housekeeping: connecting to %s: %v", addr, err)
			continue
		}
		ipfs.MustSuccess(resp)
		log.Infof("housekeeping: connected to bootstrap node %s", addr)
		return nil
	}
	log.Warnln("housekeeping: bootstrap node is unreachable")
	return nil
}

// withPeerID appends the /p2p/ component derived from the entry key when the
// address lacks one.
func withPeerID(addr string, publicKey []byte) string {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return addr
	}
	if _, err := ma.ValueForProtocol(multiaddr.P_P2P); err == nil {
		return addr
	}
	if len(publicKey) != ed25519.PublicKeySize {
		return addr
	}
	id, err := irisnet.IDFromPublicKey(publicKey)
	if err != nil {
		return addr
	}
	return addr + "/p2p/" + id.String()
}

// ProbeMetadata logs how many peers the content store is connected to.
func (h *Housekeeper) ProbeMetadata(ctx context.Context) error {
	resp, err := h.client.Request(ctx, ipfs.Peers(), h.deadline)
	if err != nil {
		return fmt.Errorf("housekeeping: peers: %w", err)
	}
	peers := ipfs.MustPeers(resp).Peers
	log.Infof("housekeeping: currently connected to %d peer(s)", len(peers))
	if h.gauge != nil {
		h.gauge.SetConnectedPeers(len(peers))
	}
	return nil
}
