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

package kubo

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Warp-net/iris/core/irisnet"
	"github.com/ipfs/boxo/files"
	"github.com/ipfs/boxo/path"
	"github.com/ipfs/go-cid"
	golog "github.com/ipfs/go-log/v2"
	"github.com/ipfs/kubo/config"
	"github.com/ipfs/kubo/core"
	"github.com/ipfs/kubo/core/coreapi"
	coreiface "github.com/ipfs/kubo/core/coreiface"
	"github.com/ipfs/kubo/core/coreiface/options"
	kubop2p "github.com/ipfs/kubo/core/node/libp2p"
	"github.com/ipfs/kubo/plugin/loader"
	"github.com/ipfs/kubo/repo/fsrepo"
	"github.com/libp2p/go-libp2p"
	p2pCrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/multiformats/go-multiaddr"
	"github.com/multiformats/go-multihash"
	log "github.com/sirupsen/logrus"

	_ "github.com/ipfs/go-ds-flatfs"
)

const maxContentSize = 64 << 20

var (
	ErrNilNode      = errors.New("kubo: node is not running")
	ErrNotAFile     = errors.New("kubo: content is not a file")
	ErrContentLarge = errors.New("kubo: content is too large")
)

// Node is an embedded kubo node sharing the validator's libp2p host.
type Node struct {
	api  coreiface.CoreAPI
	node *core.IpfsNode
	pub  ed25519.PublicKey
}

func NewNode(ctx context.Context, repoPath string, privKey ed25519.PrivateKey, n host.Host) (*Node, error) {
	if repoPath == "" {
		return nil, errors.New("kubo: empty repo path")
	}
	_ = golog.SetLogLevel("core", "error")
	_ = golog.SetLogLevel("bitswap", "error")

	plugins, err := loader.NewPluginLoader(repoPath)
	if err != nil {
		return nil, fmt.Errorf("kubo: loading plugins: %w", err)
	}
	if err := plugins.Initialize(); err != nil {
		return nil, fmt.Errorf("kubo: initializing plugins: %w", err)
	}
	if err := plugins.Inject(); err != nil {
		return nil, fmt.Errorf("kubo: injecting plugins: %w", err)
	}

	if _, err := os.Stat(repoPath); os.IsNotExist(err) {
		if err := os.MkdirAll(repoPath, 0o700); err != nil {
			return nil, fmt.Errorf("kubo: failed to create repo dir: %w", err)
		}
	}

	identity, err := identityConfig(privKey)
	if err != nil {
		return nil, err
	}
	cfg, err := config.InitWithIdentity(identity)
	if err != nil {
		return nil, fmt.Errorf("kubo: config init failed: %w", err)
	}

	addrs := make([]string, 0, len(n.Addrs()))
	for _, a := range n.Addrs() {
		addrs = append(addrs, a.String())
	}
	// everything that talks to the outside world goes through the shared host
	cfg.Bootstrap = []string{}
	cfg.Addresses.API = []string{}
	cfg.Addresses.Gateway = []string{}
	cfg.Addresses.Swarm = addrs
	cfg.AutoTLS.Enabled = config.False
	cfg.AutoTLS.AutoWSS = config.False
	cfg.Routing.Type = config.NewOptionalString("none")
	cfg.Discovery.MDNS.Enabled = false
	cfg.Datastore = config.Datastore{
		StorageMax:         "10GB",
		StorageGCWatermark: 90,
		GCPeriod:           "1h",
		HashOnRead:         false,
		Spec:               defaultDatastoreSpec(),
	}

	if !fsrepo.IsInitialized(repoPath) {
		if err := fsrepo.Init(repoPath, cfg); err != nil {
			return nil, fmt.Errorf("kubo: repo init failed: %w", err)
		}
	}
	repo, err := fsrepo.Open(repoPath)
	if err != nil {
		return nil, fmt.Errorf("kubo: repo open failed: %w", err)
	}
	if err := repo.SetConfig(cfg); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("kubo: repo config failed: %w", err)
	}

	node, err := core.NewNode(ctx, &core.BuildCfg{
		Online:    true,
		Permanent: true,
		Routing:   kubop2p.NilRouterOption,
		Repo:      repo,
		Host: func(_ peer.ID, _ peerstore.Peerstore, _ ...libp2p.Option) (host.Host, error) {
			return n, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("kubo: node create failed: %w", err)
	}

	api, err := coreapi.NewCoreAPI(node)
	if err != nil {
		_ = node.Close()
		return nil, fmt.Errorf("kubo: coreapi init failed: %w", err)
	}
	log.Infof("kubo: node %s started, repo %s", node.Identity, repoPath)

	return &Node{
		api:  api,
		node: node,
		pub:  privKey.Public().(ed25519.PublicKey),
	}, nil
}

func identityConfig(privKey ed25519.PrivateKey) (config.Identity, error) {
	p2pKey, err := p2pCrypto.UnmarshalEd25519PrivateKey(privKey)
	if err != nil {
		return config.Identity{}, err
	}
	id, err := peer.IDFromPrivateKey(p2pKey)
	if err != nil {
		return config.Identity{}, err
	}
	raw, err := p2pCrypto.MarshalPrivateKey(p2pKey)
	if err != nil {
		return config.Identity{}, err
	}
	return config.Identity{
		PeerID:  id.String(),
		PrivKey: base64.StdEncoding.EncodeToString(raw),
	}, nil
}

func defaultDatastoreSpec() map[string]interface{} {
	return map[string]interface{}{
		"type": "mount",
		"mounts": []interface{}{
			map[string]interface{}{
				"mountpoint": "/blocks",
				"type":       "measure",
				"prefix":     "flatfs.datastore",
				"child": map[string]interface{}{
					"type":      "flatfs",
					"path":      "blocks",
					"sync":      true,
					"shardFunc": "/repo/flatfs/shard/v1/next-to-last/2",
				},
			},
			map[string]interface{}{
				"mountpoint": "/",
				"type":       "measure",
				"prefix":     "leveldb.datastore",
				"child": map[string]interface{}{
					"type": "levelds",
					"path": "datastore",
				},
			},
		},
	}
}

func (n *Node) ID() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.Identity.String()
}

func (n *Node) Identity(ctx context.Context) ([]byte, []multiaddr.Multiaddr, error) {
	if n == nil || n.api == nil {
		return nil, nil, ErrNilNode
	}
	addrs, err := n.api.Swarm().LocalAddrs(ctx)
	if err != nil {
		return nil, nil, err
	}
	return append([]byte{}, n.pub...), addrs, nil
}

func (n *Node) Connect(ctx context.Context, info irisnet.IrisAddrInfo) error {
	if n == nil || n.api == nil {
		return ErrNilNode
	}
	return n.api.Swarm().Connect(ctx, info)
}

func (n *Node) Disconnect(ctx context.Context, addr multiaddr.Multiaddr) error {
	if n == nil || n.api == nil {
		return ErrNilNode
	}
	return n.api.Swarm().Disconnect(ctx, addr)
}

func (n *Node) Peers(ctx context.Context) ([]multiaddr.Multiaddr, error) {
	if n == nil || n.api == nil {
		return nil, ErrNilNode
	}
	conns, err := n.api.Swarm().Peers(ctx)
	if err != nil {
		return nil, err
	}
	addrs := make([]multiaddr.Multiaddr, 0, len(conns))
	for _, c := range conns {
		addrs = append(addrs, c.Address())
	}
	return addrs, nil
}

// Add stores data as a unixfs file and pins it.
func (n *Node) Add(ctx context.Context, data []byte) (cid.Cid, error) {
	if n == nil || n.api == nil {
		return cid.Undef, ErrNilNode
	}
	immPath, err := n.api.Unixfs().Add(
		ctx,
		files.NewBytesFile(data),
		options.Unixfs.CidVersion(1),
		options.Unixfs.Hash(multihash.SHA2_256),
		options.Unixfs.RawLeaves(true),
	)
	if err != nil {
		return cid.Undef, fmt.Errorf("kubo: add: %w", err)
	}
	if err := n.api.Pin().Add(ctx, immPath); err != nil {
		log.Errorf("kubo: failed to pin CID %s: %v", immPath.RootCid(), err)
	}
	return immPath.RootCid(), nil
}

// Cat reads a unixfs file fully.
func (n *Node) Cat(ctx context.Context, id cid.Cid) ([]byte, error) {
	if n == nil || n.api == nil {
		return nil, ErrNilNode
	}
	nodeFile, err := n.api.Unixfs().Get(ctx, path.FromCid(id))
	if err != nil {
		return nil, fmt.Errorf("kubo: get: %w", err)
	}
	defer nodeFile.Close()

	f, ok := nodeFile.(files.File)
	if !ok {
		return nil, ErrNotAFile
	}

	buf := bytes.NewBuffer(nil)
	read, err := io.Copy(buf, io.LimitReader(f, maxContentSize+1))
	if err != nil {
		return nil, fmt.Errorf("kubo: read: %w", err)
	}
	if read > maxContentSize {
		return nil, ErrContentLarge
	}
	return buf.Bytes(), nil
}

func (n *Node) Close() error {
	if n == nil || n.node == nil {
		return nil
	}
	return n.node.Close()
}
