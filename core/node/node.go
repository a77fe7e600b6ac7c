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

package node

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/Warp-net/iris/core/backoff"
	"github.com/Warp-net/iris/core/irisnet"
	"github.com/Warp-net/iris/core/middleware"
	"github.com/Warp-net/iris/core/stream"
	"github.com/Warp-net/iris/domain"
	"github.com/Warp-net/iris/json"
	"github.com/Warp-net/iris/security"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/p2p/net/swarm"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTimeout = 60 * time.Second

	ErrSelfRequest = irisnet.IrisError("self request is not allowed")
	ErrNotStarted  = irisnet.IrisError("node is not initialized")
)

type Streamer interface {
	Send(peerAddr irisnet.IrisAddrInfo, r stream.IrisRoute, data []byte) ([]byte, error)
}

type BackoffEnabler interface {
	IsBackoffEnabled(id irisnet.IrisPeerID) bool
	Reset(id irisnet.IrisPeerID)
}

type ValidatorCounter interface {
	Validators() []domain.AccountID
}

type Options struct {
	PrivKey     ed25519.PrivateKey
	PSK         security.PSK
	ListenAddrs []string
	Version     *semver.Version
	Validators  ValidatorCounter
}

// ValidatorNode is the libp2p host of a validator. It serves the node
// routes and is shared with the embedded content store.
type ValidatorNode struct {
	ctx        context.Context
	node       irisnet.P2PNode
	streamer   Streamer
	backoff    BackoffEnabler
	validators ValidatorCounter

	isClosed  *atomic.Bool
	version   *semver.Version
	startTime time.Time
}

func NewValidatorNode(ctx context.Context, opts Options) (*ValidatorNode, error) {
	if len(opts.PrivKey) != ed25519.PrivateKeySize {
		return nil, security.ErrInvalidPublicKey
	}
	if opts.Version == nil {
		return nil, fmt.Errorf("node: version is required")
	}

	limiter := irisnet.NewAutoScaledLimiter()
	manager, err := irisnet.NewConnManager(limiter)
	if err != nil {
		return nil, err
	}
	rm, err := irisnet.NewResourceManager(limiter)
	if err != nil {
		return nil, err
	}

	p2pPrivKey, err := irisnet.PrivateKeyFromEd25519(opts.PrivKey)
	if err != nil {
		return nil, err
	}

	pskOption := libp2p.ChainOptions()
	if len(opts.PSK) > 0 {
		pskOption = libp2p.PrivateNetwork(irisnet.PSK(opts.PSK))
	}

	n, err := irisnet.NewP2PNode(
		libp2p.WithDialTimeout(DefaultTimeout),
		libp2p.ListenAddrStrings(opts.ListenAddrs...),
		libp2p.SwarmOpts(
			swarm.WithDialTimeout(DefaultTimeout),
			swarm.WithDialTimeoutLocal(DefaultTimeout),
		),
		libp2p.Transport(irisnet.NewTCPTransport, tcp.WithConnectionTimeout(DefaultTimeout)),
		libp2p.Identity(p2pPrivKey),
		libp2p.Ping(true),
		libp2p.Security(irisnet.NoiseID, irisnet.NewNoise),
		libp2p.ResourceManager(rm),
		libp2p.ConnectionManager(manager),
		libp2p.UserAgent(irisnet.IrisName),
		pskOption,
	)
	if err != nil {
		return nil, fmt.Errorf("node: failed to init node: %v", err)
	}

	streamer, err := stream.NewStreamPool(ctx, n, opts.Version.String())
	if err != nil {
		_ = n.Close()
		return nil, fmt.Errorf("node: stream pool: %w", err)
	}

	vn := &ValidatorNode{
		ctx:        ctx,
		node:       n,
		streamer:   streamer,
		backoff:    backoff.New(ctx, time.Minute, backoff.DefaultAttempts),
		validators: opts.Validators,
		isClosed:   new(atomic.Bool),
		version:    opts.Version,
		startTime:  time.Now(),
	}
	log.Infof("node: started %s on %v", n.ID(), n.Addrs())
	return vn, nil
}

func (n *ValidatorNode) Connect(p irisnet.IrisAddrInfo) error {
	if n == nil || n.node == nil {
		return ErrNotStarted
	}
	state := n.node.Network().Connectedness(p.ID)
	if state == irisnet.Connected || state == irisnet.Limited {
		return nil
	}
	if n.backoff.IsBackoffEnabled(p.ID) {
		return backoff.ErrBackoffEnabled
	}

	log.Debugf("node: connect attempt to node: %s", p.String())
	if err := n.node.Connect(n.ctx, p); err != nil {
		return fmt.Errorf("node: failed to connect to node: %w", err)
	}
	n.backoff.Reset(p.ID)
	return nil
}

// IsReachable reports whether account is this node or a connected peer.
func (n *ValidatorNode) IsReachable(account domain.AccountID) bool {
	if n == nil || n.node == nil {
		return false
	}
	id := irisnet.FromStringToPeerID(account)
	if id == "" {
		return false
	}
	if id == n.node.ID() {
		return true
	}
	state := n.node.Network().Connectedness(id)
	return state == irisnet.Connected || state == irisnet.Limited
}

func (n *ValidatorNode) SetStreamHandler(route stream.IrisRoute, handler irisnet.StreamHandler) {
	if !stream.IsValidRoute(route) {
		log.Fatalf("node: invalid route: %v", route)
	}
	n.node.SetStreamHandler(route.ProtocolID(), handler)
}

// RegisterHandlers serves every handler behind the logging, auth and unwrap
// middlewares.
func (n *ValidatorNode) RegisterHandlers(mw *middleware.IrisMiddleware, handlers ...irisnet.IrisStreamHandler) {
	for _, h := range handlers {
		if !h.IsValid() {
			log.Fatalf("node: invalid stream handler: %s", h.String())
		}
		n.SetStreamHandler(
			stream.FromPrIDToRoute(h.Path),
			mw.LoggingMiddleware(mw.AuthMiddleware(mw.UnwrapStreamMiddleware(h.Handler))),
		)
	}
}

func (n *ValidatorNode) NodeInfo() irisnet.NodeInfo {
	if n == nil || n.node == nil || n.node.Network() == nil {
		return irisnet.NodeInfo{}
	}
	addrs := n.node.Addrs()
	addresses := make([]string, 0, len(addrs))
	for _, ma := range addrs {
		addresses = append(addresses, ma.String())
	}

	var protocols []irisnet.IrisProtocolID
	for _, p := range n.node.Mux().Protocols() {
		if stream.IsValidRoute(stream.FromPrIDToRoute(p)) {
			protocols = append(protocols, p)
		}
	}
	slices.Sort(protocols)

	info := irisnet.NodeInfo{
		ID:        n.node.ID(),
		Version:   n.version,
		Addresses: addresses,
		StartTime: n.startTime,
		Protocols: protocols,
	}
	if n.validators != nil {
		info.Validators = len(n.validators.Validators())
	}
	return info
}

func (n *ValidatorNode) Node() irisnet.P2PNode {
	if n == nil || n.node == nil {
		return nil
	}
	return n.node
}

func (n *ValidatorNode) ID() irisnet.IrisPeerID {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.ID()
}

// Stream sends data, JSON encoded unless already bytes, to nodeId on path.
func (n *ValidatorNode) Stream(nodeId irisnet.IrisPeerID, path stream.IrisRoute, data any) (_ []byte, err error) {
	if n == nil || n.streamer == nil {
		return nil, ErrNotStarted
	}
	if nodeId == "" {
		return nil, irisnet.IrisError("node: empty node id")
	}
	if n.node.ID() == nodeId {
		return nil, ErrSelfRequest
	}

	peerInfo := n.node.Peerstore().PeerInfo(nodeId)
	if len(peerInfo.Addrs) == 0 {
		log.Warningf("node: %v is offline", nodeId)
		return nil, irisnet.ErrNodeIsOffline
	}

	var bt []byte
	if data != nil {
		var ok bool
		bt, ok = data.([]byte)
		if !ok {
			bt, err = json.Marshal(data)
			if err != nil {
				return nil, fmt.Errorf("node: stream: marshal data %v %v", err, data)
			}
		}
	}
	return n.streamer.Send(peerInfo, path, bt)
}

func (n *ValidatorNode) StopNode() {
	log.Infoln("node: shutting down node...")
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("node: recovered: %v", r)
		}
	}()
	if n == nil || n.node == nil || n.isClosed.Load() {
		return
	}
	if err := n.node.Close(); err != nil {
		log.Errorf("node: failed to close: %v", err)
	}
	n.isClosed.Store(true)
}
