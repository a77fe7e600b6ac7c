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

package stream

import (
	"context"
	"net"
	"time"

	"github.com/Warp-net/iris/core/irisnet"
	p2pCrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"
)

// LoopbackConn is an in-process connection between two peers over net.Pipe.
type LoopbackConn struct {
	Proto        protocol.ID
	LocalPeerID  irisnet.IrisPeerID
	RemotePeerID irisnet.IrisPeerID
	WriteConn    net.Conn
	ReadConn     net.Conn
	isClosed     bool
}

func (l *LoopbackConn) Close() error {
	_ = l.WriteConn.Close()
	_ = l.ReadConn.Close()
	l.isClosed = true
	return nil
}

func (l *LoopbackConn) LocalPeer() peer.ID {
	return l.LocalPeerID
}

func (l *LoopbackConn) RemotePeer() peer.ID {
	return l.RemotePeerID
}

func (l *LoopbackConn) RemotePublicKey() p2pCrypto.PubKey {
	pub, _ := l.RemotePeerID.ExtractPublicKey()
	return pub
}

func (l *LoopbackConn) As(_ any) bool {
	return false
}

func (l *LoopbackConn) ConnState() network.ConnectionState {
	return network.ConnectionState{
		StreamMultiplexer: "loopback",
		Security:          "loopback",
		Transport:         "loopback",
	}
}

func (l *LoopbackConn) LocalMultiaddr() multiaddr.Multiaddr {
	return multiaddr.StringCast("/ip4/127.0.0.1/tcp/0")
}

func (l *LoopbackConn) RemoteMultiaddr() multiaddr.Multiaddr {
	return multiaddr.StringCast("/ip4/127.0.0.1/tcp/0")
}

func (l *LoopbackConn) Stat() network.ConnStats {
	return network.ConnStats{
		Stats: network.Stats{
			Direction: network.DirInbound,
			Opened:    time.Now(),
		},
		NumStreams: 1,
	}
}

func (l *LoopbackConn) Scope() network.ConnScope {
	return nil
}

func (l *LoopbackConn) CloseWithError(_ network.ConnErrorCode) error {
	return l.Close()
}

func (l *LoopbackConn) ID() string {
	return l.LocalPeerID.String() + "-" + l.RemotePeerID.String()
}

func (l *LoopbackConn) NewStream(_ context.Context) (network.Stream, error) {
	return l.stream(), nil
}

func (l *LoopbackConn) GetStreams() []network.Stream {
	return []network.Stream{l.stream()}
}

func (l *LoopbackConn) IsClosed() bool {
	return l.isClosed
}

func (l *LoopbackConn) stream() *LoopbackStream {
	return &LoopbackStream{
		WriteConn:    l.WriteConn,
		ReadConn:     l.ReadConn,
		Proto:        l.Proto,
		LocalPeerID:  l.LocalPeerID,
		RemotePeerID: l.RemotePeerID,
	}
}

type LoopbackStream struct {
	WriteConn    net.Conn
	ReadConn     net.Conn
	Proto        irisnet.IrisProtocolID
	LocalPeerID  irisnet.IrisPeerID
	RemotePeerID irisnet.IrisPeerID
}

func (s *LoopbackStream) Protocol() protocol.ID           { return s.Proto }
func (s *LoopbackStream) SetProtocol(p protocol.ID) error { s.Proto = p; return nil }
func (s *LoopbackStream) Stat() network.Stats             { return network.Stats{Direction: network.DirInbound} }
func (s *LoopbackStream) Conn() network.Conn {
	return &LoopbackConn{
		WriteConn:    s.WriteConn,
		ReadConn:     s.ReadConn,
		Proto:        s.Proto,
		LocalPeerID:  s.LocalPeerID,
		RemotePeerID: s.RemotePeerID,
	}
}
func (s *LoopbackStream) CloseRead() error                               { return s.ReadConn.Close() }
func (s *LoopbackStream) CloseWrite() error                              { return s.WriteConn.Close() }
func (s *LoopbackStream) Reset() error                                   { return s.Close() }
func (s *LoopbackStream) ResetWithError(_ network.StreamErrorCode) error { return s.Close() }
func (s *LoopbackStream) Read(p []byte) (int, error)                     { return s.ReadConn.Read(p) }
func (s *LoopbackStream) Write(p []byte) (int, error)                    { return s.WriteConn.Write(p) }
func (s *LoopbackStream) Close() error {
	_ = s.CloseWrite()
	_ = s.CloseRead()
	return nil
}
func (s *LoopbackStream) SetDeadline(t time.Time) error {
	_ = s.WriteConn.SetDeadline(t)
	return s.ReadConn.SetDeadline(t)
}
func (s *LoopbackStream) SetReadDeadline(t time.Time) error  { return s.ReadConn.SetReadDeadline(t) }
func (s *LoopbackStream) SetWriteDeadline(t time.Time) error { return s.WriteConn.SetWriteDeadline(t) }
func (s *LoopbackStream) ID() string                         { return "loopback" }
func (s *LoopbackStream) Scope() network.StreamScope         { return nil }

// NewLoopbackStream returns both ends of an in-process stream. The server end
// sees client as its remote peer.
func NewLoopbackStream(
	server, client irisnet.IrisPeerID, proto irisnet.IrisProtocolID,
) (serverEnd *LoopbackStream, clientEnd *LoopbackStream) {
	serverRead, clientWrite := net.Pipe()
	clientRead, serverWrite := net.Pipe()

	serverEnd = &LoopbackStream{
		ReadConn: serverRead, WriteConn: serverWrite,
		LocalPeerID: server, RemotePeerID: client, Proto: proto,
	}
	clientEnd = &LoopbackStream{
		ReadConn: clientRead, WriteConn: clientWrite,
		LocalPeerID: client, RemotePeerID: server, Proto: proto,
	}
	return serverEnd, clientEnd
}
