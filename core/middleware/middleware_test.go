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

package middleware

import (
	"crypto/ed25519"
	"io"
	"testing"
	"time"

	"github.com/Warp-net/iris/core/irisnet"
	"github.com/Warp-net/iris/core/stream"
	"github.com/Warp-net/iris/event"
	"github.com/Warp-net/iris/json"
	"github.com/Warp-net/iris/security"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type peerKey struct {
	id   irisnet.IrisPeerID
	priv ed25519.PrivateKey
}

func newPeer(t *testing.T, seed string) peerKey {
	priv, err := security.GenerateKeyFromSeed([]byte(seed))
	require.NoError(t, err)
	id, err := irisnet.IDFromPublicKey(priv.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	return peerKey{id: id, priv: priv}
}

func exchange(
	t *testing.T, h irisnet.StreamHandler, server, client peerKey, route stream.IrisRoute, body []byte, signer ed25519.PrivateKey,
) []byte {
	serverEnd, clientEnd := stream.NewLoopbackStream(server.id, client.id, route.ProtocolID())

	done := make(chan struct{})
	go func() {
		defer close(done)
		h(serverEnd)
	}()

	msg := event.Message{
		Body:        json.RawMessage(body),
		MessageId:   "message-1",
		NodeId:      client.id.String(),
		Destination: route.String(),
		Timestamp:   time.Now(),
		Version:     "0.1.0",
		Signature:   security.Sign(signer, body),
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	written := make(chan struct{})
	go func() {
		defer close(written)
		_, _ = clientEnd.Write(data)
		_ = clientEnd.CloseWrite()
	}()

	resp, err := io.ReadAll(clientEnd)
	require.NoError(t, err)
	<-done
	<-written
	_ = clientEnd.Close()
	return resp
}

func echoHandler(msg []byte, s irisnet.IrisStream) (any, error) {
	return map[string]string{"echo": string(msg), "from": s.Conn().RemotePeer().String()}, nil
}

func TestPublicRouteSignedRequest(t *testing.T) {
	defer goleak.VerifyNone(t)

	server, client := newPeer(t, "server"), newPeer(t, "client")
	mw := NewIrisMiddleware(server.id)
	h := mw.LoggingMiddleware(mw.AuthMiddleware(mw.UnwrapStreamMiddleware(echoHandler)))

	resp := exchange(t, h, server, client, stream.GetValidators, []byte(`{"a":1}`), client.priv)

	var out map[string]string
	require.NoError(t, json.Unmarshal(resp, &out))
	require.Equal(t, `{"a":1}`, out["echo"])
	require.Equal(t, client.id.String(), out["from"])
}

func TestPrivateRouteRejectsNonAdmin(t *testing.T) {
	defer goleak.VerifyNone(t)

	server, client := newPeer(t, "server"), newPeer(t, "client")
	mw := NewIrisMiddleware(server.id)
	h := mw.LoggingMiddleware(mw.AuthMiddleware(mw.UnwrapStreamMiddleware(echoHandler)))

	resp := exchange(t, h, server, client, stream.AddValidator, []byte(`{}`), client.priv)
	require.Equal(t, ErrUnknownClientPeer.Bytes(), resp)
}

func TestPrivateRouteAllowsAdmin(t *testing.T) {
	defer goleak.VerifyNone(t)

	server, admin := newPeer(t, "server"), newPeer(t, "admin")
	mw := NewIrisMiddleware(admin.id)
	require.True(t, mw.IsAdmin(admin.id))
	h := mw.LoggingMiddleware(mw.AuthMiddleware(mw.UnwrapStreamMiddleware(echoHandler)))

	resp := exchange(t, h, server, admin, stream.AddValidator, []byte(`{}`), admin.priv)
	var out map[string]string
	require.NoError(t, json.Unmarshal(resp, &out))
	require.Equal(t, admin.id.String(), out["from"])
}

func TestForgedSignatureRejected(t *testing.T) {
	defer goleak.VerifyNone(t)

	server, client, forger := newPeer(t, "server"), newPeer(t, "client"), newPeer(t, "forger")
	mw := NewIrisMiddleware()
	h := mw.LoggingMiddleware(mw.AuthMiddleware(mw.UnwrapStreamMiddleware(echoHandler)))

	resp := exchange(t, h, server, client, stream.GetValidators, []byte(`{}`), forger.priv)
	require.Equal(t, ErrSignatureInvalid.Bytes(), resp)
}

func TestHandlerPanicRecovered(t *testing.T) {
	defer goleak.VerifyNone(t)

	server, client := newPeer(t, "server"), newPeer(t, "client")
	mw := NewIrisMiddleware()
	h := mw.LoggingMiddleware(mw.AuthMiddleware(mw.UnwrapStreamMiddleware(
		func([]byte, irisnet.IrisStream) (any, error) { panic("boom") },
	)))

	resp := exchange(t, h, server, client, stream.GetInfo, []byte(`{}`), client.priv)
	require.Empty(t, resp)
}
