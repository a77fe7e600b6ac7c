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
	"bufio"
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Warp-net/iris/core/irisnet"
	"github.com/Warp-net/iris/event"
	"github.com/Warp-net/iris/json"
	"github.com/Warp-net/iris/security"
	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/network"
	log "github.com/sirupsen/logrus"
)

const DefaultSendTimeout = time.Minute

var emptyBody = []byte("{}")

type NodeStreamer interface {
	NewStream(ctx context.Context, p irisnet.IrisPeerID, pids ...irisnet.IrisProtocolID) (irisnet.IrisStream, error)
	Network() network.Network
	ID() irisnet.IrisPeerID
}

type streamPool struct {
	ctx     context.Context
	n       NodeStreamer
	privKey ed25519.PrivateKey
	version string
}

// NewStreamPool returns a client sending signed requests to other nodes.
func NewStreamPool(ctx context.Context, n NodeStreamer, version string) (*streamPool, error) {
	privKey, err := n.Network().Peerstore().PrivKey(n.ID()).Raw()
	if err != nil {
		return nil, err
	}
	return &streamPool{ctx: ctx, n: n, privKey: privKey, version: version}, nil
}

func (p *streamPool) Send(peerAddr irisnet.IrisAddrInfo, r IrisRoute, data []byte) ([]byte, error) {
	if p == nil {
		return nil, irisnet.IrisError("nil stream pool")
	}
	if p.ctx.Err() != nil {
		return nil, p.ctx.Err()
	}

	ctx, cancel := context.WithTimeout(p.ctx, DefaultSendTimeout)
	defer cancel()

	if len(peerAddr.Addrs) > 0 {
		p.n.Network().Peerstore().AddAddrs(peerAddr.ID, peerAddr.Addrs, time.Hour)
	}
	if p.n.Network().Connectedness(peerAddr.ID) == network.Limited {
		log.Debugf("stream: peer %s has limited connection", peerAddr.ID.String())
		ctx = network.WithAllowLimitedConn(ctx, irisnet.IrisName)
	}
	return p.send(ctx, peerAddr, r, data)
}

func (p *streamPool) send(
	ctx context.Context, serverInfo irisnet.IrisAddrInfo, r IrisRoute, bodyBytes []byte,
) ([]byte, error) {
	if p.n == nil || serverInfo.ID == "" || r == "" {
		return nil, irisnet.IrisError("stream: parameters improperly configured")
	}
	if err := serverInfo.ID.Validate(); err != nil {
		return nil, err
	}

	stream, err := p.n.NewStream(ctx, serverInfo.ID, r.ProtocolID())
	if err != nil {
		log.Debugf("stream: new: failed to create stream: %v", err)
		if errors.Is(err, irisnet.ErrAllDialsFailed) {
			err = irisnet.ErrAllDialsFailed
		}
		return nil, fmt.Errorf("stream: new: %w", err)
	}
	defer closeStream(stream)

	if len(bodyBytes) == 0 {
		bodyBytes = emptyBody
	}
	msg := event.Message{
		Body:        json.RawMessage(bodyBytes),
		MessageId:   uuid.New().String(),
		NodeId:      p.n.ID().String(),
		Destination: r.String(),
		Timestamp:   time.Now(),
		Version:     p.version,
		Signature:   security.Sign(p.privKey, bodyBytes),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("stream: marshal: %w", err)
	}

	rw := bufio.NewReadWriter(bufio.NewReader(stream), bufio.NewWriter(stream))
	log.Debugf("stream: sent to %s data with size %d", r, len(data))
	_, err = rw.Write(data)
	flush(rw)
	closeWrite(stream)
	if err != nil {
		return nil, fmt.Errorf("stream: writing: %w", err)
	}

	buf := bytes.NewBuffer(nil)
	if _, err = buf.ReadFrom(rw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("stream: reading response from %s: %w", serverInfo.ID.String(), err)
	}
	return buf.Bytes(), nil
}

func closeStream(stream irisnet.IrisStream) {
	if err := stream.Close(); err != nil {
		log.Errorf("stream: closing: %s", err)
	}
}

func flush(rw *bufio.ReadWriter) {
	if err := rw.Flush(); err != nil {
		log.Errorf("stream: flush: %s", err)
	}
}

func closeWrite(s irisnet.IrisStream) {
	if err := s.CloseWrite(); err != nil {
		log.Errorf("stream: close write: %s", err)
	}
}
