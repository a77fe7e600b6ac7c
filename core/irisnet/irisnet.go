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

package irisnet

import (
	"crypto/ed25519"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/docker/go-units"
	"github.com/libp2p/go-libp2p"
	p2pCrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/pnet"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/core/transport"
	rcmgr "github.com/libp2p/go-libp2p/p2p/host/resource-manager"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/libp2p/go-libp2p/p2p/net/swarm"
	tptu "github.com/libp2p/go-libp2p/p2p/net/upgrader"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	"github.com/libp2p/go-libp2p/p2p/transport/tcpreuse"
	"github.com/multiformats/go-multiaddr"
)

var ErrAllDialsFailed = swarm.ErrAllDialsFailed

const (
	IrisName = "iris"
	NoiseID  = noise.ID

	Connected = network.Connected
	Limited   = network.Limited

	P_P2P = multiaddr.P_P2P

	ErrNodeIsOffline = IrisError("node is offline")
)

type IrisError string

func (e IrisError) Error() string {
	return string(e)
}

type (
	IrisPrivateKey p2pCrypto.PrivKey

	// aliases
	IrisOption      = libp2p.Option
	PSK             = pnet.PSK
	IrisProtocolID  = protocol.ID
	IrisStream      = network.Stream
	StreamHandler   = network.StreamHandler
	IrisAddrInfo    = peer.AddrInfo
	IrisPeerID      = peer.ID
	IrisAddress     = multiaddr.Multiaddr
	IrisNetwork     = network.Network
	IrisConnManager = connmgr.BasicConnMgr
	P2PNode         = host.Host
)

// IrisStreamBody carries the already read and verified request body.
type IrisStreamBody struct {
	IrisStream
	Body []byte
}

type IrisHandlerFunc func(msg []byte, s IrisStream) (any, error)

type IrisStreamHandler struct {
	Path    IrisProtocolID
	Handler IrisHandlerFunc
}

func (wh *IrisStreamHandler) IsValid() bool {
	if !strings.HasPrefix(string(wh.Path), "/") {
		return false
	}
	if !(strings.Contains(string(wh.Path), "get") ||
		strings.Contains(string(wh.Path), "delete") ||
		strings.Contains(string(wh.Path), "post")) {
		return false
	}
	if !(strings.Contains(string(wh.Path), "private") ||
		strings.Contains(string(wh.Path), "public")) {
		return false
	}
	return true
}

func (wh *IrisStreamHandler) String() string {
	return fmt.Sprintf("%s %T", wh.Path, wh.Handler)
}

type NodeInfo struct {
	ID         IrisPeerID       `json:"node_id"`
	Version    *semver.Version  `json:"version"`
	Addresses  []string         `json:"addresses"`
	StartTime  time.Time        `json:"start_time"`
	Protocols  []IrisProtocolID `json:"protocols"`
	Validators int              `json:"validators"`
}

func NewP2PNode(opts ...libp2p.Option) (P2PNode, error) {
	return libp2p.New(opts...)
}

func NewNoise(id protocol.ID, pk p2pCrypto.PrivKey, mxs []tptu.StreamMuxer) (*noise.Transport, error) {
	return noise.New(id, pk, mxs)
}

func NewTCPTransport(u transport.Upgrader, r network.ResourceManager, s *tcpreuse.ConnMgr, o ...tcp.Option) (*tcp.TcpTransport, error) {
	return tcp.NewTCPTransport(u, r, s, o...)
}

func NewAutoScaledLimiter() rcmgr.Limiter {
	return rcmgr.NewFixedLimiter(rcmgr.DefaultLimits.AutoScale())
}

func NewConnManager(limiter rcmgr.Limiter) (*connmgr.BasicConnMgr, error) {
	return connmgr.NewConnManager(
		32,
		limiter.GetConnLimits().GetConnTotalLimit(),
		connmgr.WithGracePeriod(time.Hour),
	)
}

func NewResourceManager(limiter rcmgr.Limiter) (network.ResourceManager, error) {
	return rcmgr.NewResourceManager(limiter)
}

func GetMemoryStats() map[string]string {
	memStats := runtime.MemStats{}
	runtime.ReadMemStats(&memStats)

	return map[string]string{
		"heap":    units.HumanSize(float64(memStats.Alloc)),
		"stack":   units.HumanSize(float64(memStats.StackInuse)),
		"last_gc": time.Unix(0, int64(memStats.LastGC)).Format(time.DateTime),
	}
}

func FromStringToPeerID(s string) IrisPeerID {
	peerID, err := peer.Decode(s)
	if err != nil {
		return ""
	}
	return peerID
}

func FromIDToPubKey(id peer.ID) ed25519.PublicKey {
	pubKey, _ := id.ExtractPublicKey()
	if pubKey == nil {
		return []byte{}
	}
	rawPubKey, _ := pubKey.Raw()
	return rawPubKey
}

func NewMultiaddr(s string) (multiaddr.Multiaddr, error) {
	return multiaddr.NewMultiaddr(s)
}

// AddrInfoFromString parses a multiaddress that must carry a /p2p/ component.
func AddrInfoFromString(s string) (*IrisAddrInfo, error) {
	ma, err := multiaddr.NewMultiaddr(s)
	if err != nil {
		return nil, err
	}
	return peer.AddrInfoFromP2pAddr(ma)
}

func IDFromPublicKey(pk ed25519.PublicKey) (IrisPeerID, error) {
	pub, err := p2pCrypto.UnmarshalEd25519PublicKey(pk)
	if err != nil {
		return "", err
	}
	return peer.IDFromPublicKey(pub)
}

func PrivateKeyFromEd25519(pk ed25519.PrivateKey) (p2pCrypto.PrivKey, error) {
	return p2pCrypto.UnmarshalEd25519PrivateKey(pk)
}
