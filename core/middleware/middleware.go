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
	"errors"
	"io"
	"runtime/debug"
	"time"

	"github.com/Warp-net/iris/core/irisnet"
	"github.com/Warp-net/iris/core/stream"
	"github.com/Warp-net/iris/domain"
	"github.com/Warp-net/iris/event"
	"github.com/Warp-net/iris/json"
	"github.com/Warp-net/iris/security"
	"github.com/docker/go-units"
	log "github.com/sirupsen/logrus"
)

type middlewareError string

func (e middlewareError) Error() string {
	return string(e)
}
func (e middlewareError) Bytes() []byte {
	return []byte(e)
}

const (
	ErrUnknownClientPeer middlewareError = `["middleware: auth: unknown client peer"]`
	ErrStreamReadError   middlewareError = `["middleware: stream: reading failed"]`
	ErrInternalNodeError middlewareError = `["middleware: internal node error"]`
	ErrSignatureInvalid  middlewareError = `["middleware: auth: signature invalid"]`

	maxRequestSize = units.MiB * 5
)

// IrisMiddleware guards stream handlers. Private routes are served only to
// admin peers; every request must be signed by the remote peer key.
type IrisMiddleware struct {
	admins map[irisnet.IrisPeerID]struct{}
}

func NewIrisMiddleware(admins ...irisnet.IrisPeerID) *IrisMiddleware {
	m := &IrisMiddleware{admins: make(map[irisnet.IrisPeerID]struct{}, len(admins))}
	for _, a := range admins {
		if a == "" {
			continue
		}
		m.admins[a] = struct{}{}
	}
	return m
}

func (p *IrisMiddleware) IsAdmin(id irisnet.IrisPeerID) bool {
	_, ok := p.admins[id]
	return ok
}

func (p *IrisMiddleware) LoggingMiddleware(next irisnet.StreamHandler) irisnet.StreamHandler {
	return func(s irisnet.IrisStream) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("middleware: panic: %v %s", r, debug.Stack())
			}
		}() //#nosec

		log.Debugf("middleware: server stream opened: %s %s", s.Protocol(), s.Conn().RemotePeer())
		before := time.Now()
		next(s)
		log.Debugf(
			"middleware: server stream closed: %s %s, elapsed: %s",
			s.Protocol(),
			s.Conn().RemotePeer(),
			time.Since(before).String(),
		)
	}
}

func (p *IrisMiddleware) AuthMiddleware(next irisnet.StreamHandler) irisnet.StreamHandler {
	return func(s irisnet.IrisStream) {
		var isAuthSuccess bool
		defer func() {
			if isAuthSuccess {
				return
			}
			_ = s.Close()
		}()
		if s.Conn() == nil || s.Conn().RemotePeer().Size() == 0 {
			log.Errorf("middleware: auth: connection is not ready")
			_, _ = s.Write(ErrInternalNodeError.Bytes())
			return
		}

		var (
			route      = stream.FromPrIDToRoute(s.Protocol())
			remotePeer = s.Conn().RemotePeer()
		)
		if route.IsPrivate() && !p.IsAdmin(remotePeer) {
			log.Errorf("middleware: auth: %s is not an admin, ignoring private route: %s", remotePeer, route)
			_, _ = s.Write(ErrUnknownClientPeer.Bytes())
			return
		}

		data, err := io.ReadAll(io.LimitReader(s, maxRequestSize))
		if err != nil && !errors.Is(err, io.EOF) {
			log.Errorf("middleware: reading from stream: %v", err)
			_, _ = s.Write(ErrStreamReadError.Bytes())
			return
		}

		var msg event.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.MessageId == "" {
			log.Errorf("middleware: auth: unmarshaling data: %s %v", route, err)
			_, _ = s.Write(ErrInternalNodeError.Bytes())
			return
		}
		if msg.Signature == "" {
			log.Errorf("middleware: auth: signature missing: %s", route)
			_, _ = s.Write(ErrSignatureInvalid.Bytes())
			return
		}

		pubKey := irisnet.FromIDToPubKey(remotePeer)
		if err := security.VerifySignature(pubKey, msg.Body, msg.Signature); err != nil {
			log.Errorf("middleware: auth: signature invalid: %v", err)
			_, _ = s.Write(ErrSignatureInvalid.Bytes())
			return
		}

		isAuthSuccess = true
		next(&irisnet.IrisStreamBody{
			IrisStream: s,
			Body:       msg.Body,
		})
	}
}

func (p *IrisMiddleware) UnwrapStreamMiddleware(handler irisnet.IrisHandlerFunc) irisnet.StreamHandler {
	return func(s irisnet.IrisStream) {
		defer s.Close()

		var (
			response any
			err      error
			data     []byte
		)

		switch body := s.(type) {
		case *irisnet.IrisStreamBody:
			data = body.Body
		default:
			data, err = io.ReadAll(io.LimitReader(s, maxRequestSize))
			if err != nil && !errors.Is(err, io.EOF) {
				log.Errorf("middleware: reading from stream: %v", err)
				response = event.ErrorResponse{Message: ErrStreamReadError.Error()}
			}
		}

		log.Debugf(">>> STREAM REQUEST %s %d bytes", s.Protocol(), len(data))

		if response == nil {
			response, err = handler(data, s)
			if err != nil {
				log.Errorf("middleware: handling of %s %s failed: %v", s.Protocol(), s.Conn().RemotePeer(), err)
				response = event.ErrorResponse{Code: errorCode(err), Message: err.Error()}
			}
		}

		log.Debugf("<<< STREAM RESPONSE: %s %T", s.Protocol(), response)
		if response == nil {
			response = event.ErrorResponse{Message: "empty response"}
		}

		switch r := response.(type) {
		case []byte:
			if _, err := s.Write(r); err != nil {
				log.Errorf("middleware: writing raw bytes to stream: %v", err)
			}
		case string:
			if _, err := s.Write([]byte(r)); err != nil {
				log.Errorf("middleware: writing string to stream: %v", err)
			}
		default:
			if err := json.NewEncoder(s).Encode(response); err != nil {
				log.Errorf("middleware: failed encoding generic response: %v %v", response, err)
			}
		}
	}
}

func errorCode(err error) int {
	var irisErr domain.IrisError
	switch {
	case errors.As(err, &irisErr):
		return 400
	default:
		return 500
	}
}
