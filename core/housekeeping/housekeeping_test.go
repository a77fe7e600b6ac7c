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
	"errors"
	"testing"
	"time"

	"github.com/Warp-net/iris/core/ipfs"
	"github.com/Warp-net/iris/core/irisnet"
	"github.com/Warp-net/iris/domain"
	"github.com/Warp-net/iris/security"
	"github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/suite"
)

type scriptedRequester struct {
	requests    []ipfs.Request
	identity    ipfs.IdentityResponse
	identityErr error
	failConnect map[string]bool
	peers       []multiaddr.Multiaddr
}

func (r *scriptedRequester) Request(_ context.Context, req ipfs.Request, _ time.Duration) (ipfs.Response, error) {
	r.requests = append(r.requests, req)
	switch req.Kind {
	case ipfs.IdentityRequest:
		if r.identityErr != nil {
			return nil, r.identityErr
		}
		return r.identity, nil
	case ipfs.ConnectRequest:
		if r.failConnect[req.Addr] {
			return nil, domain.ErrRequestTimedOut
		}
		return ipfs.SuccessResponse{}, nil
	case ipfs.PeersRequest:
		return ipfs.PeersResponse{Peers: r.peers}, nil
	}
	return nil, domain.ErrRequestConstructionFailed
}

func (r *scriptedRequester) connects() []string {
	var out []string
	for _, req := range r.requests {
		if req.Kind == ipfs.ConnectRequest {
			out = append(out, req.Addr)
		}
	}
	return out
}

type staticDirectory struct {
	nodes []domain.BootstrapNode
	err   error
}

func (d *staticDirectory) Contains(publicKey []byte) (bool, error) {
	for _, n := range d.nodes {
		if string(n.PublicKey) == string(publicKey) {
			return true, nil
		}
	}
	return false, d.err
}

func (d *staticDirectory) List() ([]domain.BootstrapNode, error) {
	return d.nodes, d.err
}

type gauge struct{ n int }

func (g *gauge) SetConnectedPeers(n int) { g.n = n }

type HousekeeperTestSuite struct {
	suite.Suite

	requester *scriptedRequester
	directory *staticDirectory
	gauge     *gauge
	hk        *Housekeeper

	bootKey  ed25519.PublicKey
	bootPeer irisnet.IrisPeerID
}

func (s *HousekeeperTestSuite) SetupTest() {
	priv, err := security.GenerateKeyFromSeed([]byte("bootstrap"))
	s.Require().NoError(err)
	s.bootKey = priv.Public().(ed25519.PublicKey)
	s.bootPeer, err = irisnet.IDFromPublicKey(s.bootKey)
	s.Require().NoError(err)

	s.requester = &scriptedRequester{
		identity:    ipfs.IdentityResponse{PublicKey: []byte("own")},
		failConnect: map[string]bool{},
	}
	s.directory = &staticDirectory{nodes: []domain.BootstrapNode{{
		PublicKey: s.bootKey,
		Addrs: []string{
			"/ip4/10.0.0.1/tcp/4001",
			"/ip4/10.0.0.2/tcp/4001",
			"/ip4/10.0.0.3/tcp/4001",
		},
	}}}
	s.gauge = &gauge{}
	s.hk = NewHousekeeper(s.requester, s.directory, s.gauge, time.Second)
}

func (s *HousekeeperTestSuite) addr(ip string) string {
	return "/ip4/" + ip + "/tcp/4001/p2p/" + s.bootPeer.String()
}

func (s *HousekeeperTestSuite) TestConnectsToLastAddress() {
	s.Require().NoError(s.hk.Run(context.Background()))
	s.Equal([]string{s.addr("10.0.0.3")}, s.requester.connects())
}

func (s *HousekeeperTestSuite) TestFallsBackExactlyOnce() {
	s.requester.failConnect[s.addr("10.0.0.3")] = true
	s.requester.failConnect[s.addr("10.0.0.2")] = true

	s.Require().NoError(s.hk.Run(context.Background()))
	s.Equal([]string{s.addr("10.0.0.3"), s.addr("10.0.0.2")}, s.requester.connects())
}

func (s *HousekeeperTestSuite) TestSecondAddressSucceeds() {
	s.requester.failConnect[s.addr("10.0.0.3")] = true
	s.Require().NoError(s.hk.Run(context.Background()))
	s.Equal([]string{s.addr("10.0.0.3"), s.addr("10.0.0.2")}, s.requester.connects())
}

func (s *HousekeeperTestSuite) TestMemberSkipsConnect() {
	s.requester.identity.PublicKey = s.bootKey
	s.Require().NoError(s.hk.Run(context.Background()))
	s.Empty(s.requester.connects())
}

func (s *HousekeeperTestSuite) TestEmptyDirectory() {
	s.directory.nodes = nil
	s.Require().NoError(s.hk.Run(context.Background()))
	s.Empty(s.requester.connects())
}

func (s *HousekeeperTestSuite) TestSingleAddressEntry() {
	s.directory.nodes[0].Addrs = []string{"/ip4/10.0.0.9/tcp/4001"}
	s.requester.failConnect[s.addr("10.0.0.9")] = true
	s.Require().NoError(s.hk.Run(context.Background()))
	s.Equal([]string{s.addr("10.0.0.9")}, s.requester.connects())
}

func (s *HousekeeperTestSuite) TestIdentityFailureReturned() {
	s.requester.identityErr = domain.ErrRequestTimedOut
	err := s.hk.Run(context.Background())
	s.ErrorIs(err, domain.ErrRequestTimedOut)
	s.Empty(s.requester.connects())
}

func (s *HousekeeperTestSuite) TestDirectoryFailureIsNotFatal() {
	s.directory.err = errors.New("db closed")
	s.directory.nodes = nil
	s.NoError(s.hk.Run(context.Background()))
}

func (s *HousekeeperTestSuite) TestProbeMetadata() {
	s.requester.peers = []multiaddr.Multiaddr{
		multiaddr.StringCast("/ip4/10.0.0.1/tcp/4001"),
		multiaddr.StringCast("/ip4/10.0.0.2/tcp/4001"),
	}
	s.Require().NoError(s.hk.ProbeMetadata(context.Background()))
	s.Equal(2, s.gauge.n)
}

func (s *HousekeeperTestSuite) TestKeepsExplicitPeerID() {
	addr := s.addr("10.0.0.7")
	s.Equal(addr, withPeerID(addr, []byte("ignored")))
	s.Equal("/ip4/10.0.0.8/tcp/4001", withPeerID("/ip4/10.0.0.8/tcp/4001", []byte("short")))
}

func TestHousekeeperTestSuite(t *testing.T) {
	suite.Run(t, new(HousekeeperTestSuite))
}
