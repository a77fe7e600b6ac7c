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
	"errors"
	"fmt"
	"time"

	"github.com/Warp-net/iris/core/irisnet"
	"github.com/Warp-net/iris/domain"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multiaddr"
	log "github.com/sirupsen/logrus"
)

const DefaultDeadline = 5000 * time.Millisecond

// Store is the content store node the client talks to.
type Store interface {
	Identity(ctx context.Context) (publicKey []byte, addrs []multiaddr.Multiaddr, err error)
	Connect(ctx context.Context, info irisnet.IrisAddrInfo) error
	Disconnect(ctx context.Context, addr multiaddr.Multiaddr) error
	Cat(ctx context.Context, id cid.Cid) ([]byte, error)
	Add(ctx context.Context, data []byte) (cid.Cid, error)
	Peers(ctx context.Context) ([]multiaddr.Multiaddr, error)
}

type RequestKind string

const (
	IdentityRequest   RequestKind = "identity"
	ConnectRequest    RequestKind = "connect"
	DisconnectRequest RequestKind = "disconnect"
	CatBytesRequest   RequestKind = "cat_bytes"
	AddBytesRequest   RequestKind = "add_bytes"
	PeersRequest      RequestKind = "peers"
)

type Request struct {
	Kind RequestKind
	Addr string
	CID  domain.ContentID
	Data []byte
}

func Identity() Request                    { return Request{Kind: IdentityRequest} }
func Connect(addr string) Request          { return Request{Kind: ConnectRequest, Addr: addr} }
func Disconnect(addr string) Request       { return Request{Kind: DisconnectRequest, Addr: addr} }
func CatBytes(id domain.ContentID) Request { return Request{Kind: CatBytesRequest, CID: id} }
func AddBytes(data []byte) Request         { return Request{Kind: AddBytesRequest, Data: data} }
func Peers() Request                       { return Request{Kind: PeersRequest} }

func (r Request) String() string {
	switch r.Kind {
	case ConnectRequest, DisconnectRequest:
		return fmt.Sprintf("%s(%s)", r.Kind, r.Addr)
	case CatBytesRequest:
		return fmt.Sprintf("%s(%s)", r.Kind, r.CID)
	case AddBytesRequest:
		return fmt.Sprintf("%s(%d bytes)", r.Kind, len(r.Data))
	default:
		return string(r.Kind)
	}
}

type Response interface {
	responseKind() RequestKind
}

type IdentityResponse struct {
	PublicKey []byte
	Addrs     []multiaddr.Multiaddr
}

type SuccessResponse struct{}

type CatBytesResponse struct {
	Data []byte
}

type AddBytesResponse struct {
	CID domain.ContentID
}

type PeersResponse struct {
	Peers []multiaddr.Multiaddr
}

func (IdentityResponse) responseKind() RequestKind { return IdentityRequest }
func (SuccessResponse) responseKind() RequestKind  { return ConnectRequest }
func (CatBytesResponse) responseKind() RequestKind { return CatBytesRequest }
func (AddBytesResponse) responseKind() RequestKind { return AddBytesRequest }
func (PeersResponse) responseKind() RequestKind    { return PeersRequest }

type call func(ctx context.Context) (Response, error)

// Client issues deadline bounded requests to a Store.
type Client struct {
	store    Store
	deadline time.Duration
}

func NewClient(store Store, deadline time.Duration) *Client {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Client{store: store, deadline: deadline}
}

func (c *Client) Deadline() time.Duration {
	return c.deadline
}

// Request performs req and waits at most deadline for the answer, whether or
// not the store honours context cancellation. A zero deadline means the
// client default.
func (c *Client) Request(ctx context.Context, req Request, deadline time.Duration) (Response, error) {
	if c == nil || c.store == nil {
		return nil, domain.ErrRequestConstructionFailed
	}
	if deadline <= 0 {
		deadline = c.deadline
	}

	fn, err := c.build(req)
	if err != nil {
		log.Errorf("IPFS: %s: %v", req, err)
		return nil, domain.ErrRequestConstructionFailed
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	type result struct {
		resp Response
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		resp, err := fn(ctx)
		resultCh <- result{resp, err}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		if res.err != nil {
			log.Errorf("IPFS: %s failed: %v", req, res.err)
			return nil, domain.ErrRequestFailed
		}
		return res.resp, nil
	case <-timer.C:
		log.Warnf("IPFS: %s timed out after %s", req, deadline)
		return nil, domain.ErrRequestTimedOut
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warnf("IPFS: %s timed out after %s", req, deadline)
			return nil, domain.ErrRequestTimedOut
		}
		log.Errorf("IPFS: %s cancelled: %v", req, ctx.Err())
		return nil, domain.ErrRequestFailed
	}
}

func (c *Client) build(req Request) (call, error) {
	switch req.Kind {
	case IdentityRequest:
		return func(ctx context.Context) (Response, error) {
			pub, addrs, err := c.store.Identity(ctx)
			if err != nil {
				return nil, err
			}
			return IdentityResponse{PublicKey: pub, Addrs: addrs}, nil
		}, nil

	case ConnectRequest:
		info, err := irisnet.AddrInfoFromString(req.Addr)
		if err != nil {
			return nil, fmt.Errorf("connect address %q: %w", req.Addr, err)
		}
		return func(ctx context.Context) (Response, error) {
			return SuccessResponse{}, c.store.Connect(ctx, *info)
		}, nil

	case DisconnectRequest:
		addr, err := irisnet.NewMultiaddr(req.Addr)
		if err != nil {
			return nil, fmt.Errorf("disconnect address %q: %w", req.Addr, err)
		}
		return func(ctx context.Context) (Response, error) {
			return SuccessResponse{}, c.store.Disconnect(ctx, addr)
		}, nil

	case CatBytesRequest:
		id, err := cid.Decode(req.CID)
		if err != nil {
			return nil, fmt.Errorf("content id %q: %w", req.CID, err)
		}
		return func(ctx context.Context) (Response, error) {
			data, err := c.store.Cat(ctx, id)
			if err != nil {
				return nil, err
			}
			return CatBytesResponse{Data: data}, nil
		}, nil

	case AddBytesRequest:
		if req.Data == nil {
			return nil, errors.New("nil payload")
		}
		return func(ctx context.Context) (Response, error) {
			id, err := c.store.Add(ctx, req.Data)
			if err != nil {
				return nil, err
			}
			return AddBytesResponse{CID: id.String()}, nil
		}, nil

	case PeersRequest:
		return func(ctx context.Context) (Response, error) {
			peers, err := c.store.Peers(ctx)
			if err != nil {
				return nil, err
			}
			return PeersResponse{Peers: peers}, nil
		}, nil
	}
	return nil, fmt.Errorf("unknown request kind %q", req.Kind)
}

// Must* helpers unwrap the response variant a request kind always yields.
// A mismatch is a programming fault and panics.

func MustIdentity(resp Response) IdentityResponse {
	r, ok := resp.(IdentityResponse)
	if !ok {
		panic(fmt.Sprintf("ipfs: expected identity response, got %T", resp))
	}
	return r
}

func MustSuccess(resp Response) SuccessResponse {
	r, ok := resp.(SuccessResponse)
	if !ok {
		panic(fmt.Sprintf("ipfs: expected success response, got %T", resp))
	}
	return r
}

func MustCatBytes(resp Response) CatBytesResponse {
	r, ok := resp.(CatBytesResponse)
	if !ok {
		panic(fmt.Sprintf("ipfs: expected cat bytes response, got %T", resp))
	}
	return r
}

func MustAddBytes(resp Response) AddBytesResponse {
	r, ok := resp.(AddBytesResponse)
	if !ok {
		panic(fmt.Sprintf("ipfs: expected add bytes response, got %T", resp))
	}
	return r
}

func MustPeers(resp Response) PeersResponse {
	r, ok := resp.(PeersResponse)
	if !ok {
		panic(fmt.Sprintf("ipfs: expected peers response, got %T", resp))
	}
	return r
}
