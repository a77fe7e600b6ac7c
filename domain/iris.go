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

package domain

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

// AccountID is an opaque account identity. Validators, admins, recipients
// and signing identities are all addressed by it.
type AccountID = string

// ContentID is a content identifier as produced by the content store.
type ContentID = string

type AssetID = uint64

type SessionIndex = uint32

// ValidatorState is the persisted validator-set lifecycle state.
type ValidatorState struct {
	Active   []AccountID `msgpack:"active" json:"active"`
	Approved []AccountID `msgpack:"approved" json:"approved"`
	// Offline accumulates between session boundaries.
	Offline []AccountID `msgpack:"offline" json:"offline"`
}

func (s ValidatorState) Clone() ValidatorState {
	return ValidatorState{
		Active:   append([]AccountID{}, s.Active...),
		Approved: append([]AccountID{}, s.Approved...),
		Offline:  append([]AccountID{}, s.Offline...),
	}
}

type DataCommandKind string

const (
	PublishCommandKind DataCommandKind = "publish"
	FetchCommandKind   DataCommandKind = "fetch"
)

// DataCommand is one of PublishCommand or FetchCommand.
type DataCommand interface {
	Kind() DataCommandKind
	fmt.Stringer
}

// PublishCommand asks the node to fetch content from a remote peer and
// publish it locally, crediting an asset record to Admin.
type PublishCommand struct {
	Source  string    `msgpack:"source" json:"source"`
	CID     ContentID `msgpack:"cid" json:"cid"`
	Admin   AccountID `msgpack:"admin" json:"admin"`
	Name    string    `msgpack:"name" json:"name"`
	AssetID AssetID   `msgpack:"asset_id" json:"asset_id"`
	Balance uint64    `msgpack:"balance" json:"balance"`
}

func (PublishCommand) Kind() DataCommandKind { return PublishCommandKind }

func (c PublishCommand) String() string {
	return fmt.Sprintf("publish(source=%s cid=%s admin=%s asset=%d)", c.Source, c.CID, c.Admin, c.AssetID)
}

// FetchCommand asks the node to retrieve content on behalf of Recipient.
// Access is gated by the recipient's balance of the asset owned by Owner.
type FetchCommand struct {
	Owner     AccountID `msgpack:"owner" json:"owner"`
	CID       ContentID `msgpack:"cid" json:"cid"`
	Recipient AccountID `msgpack:"recipient" json:"recipient"`
}

func (FetchCommand) Kind() DataCommandKind { return FetchCommandKind }

func (c FetchCommand) String() string {
	return fmt.Sprintf("fetch(owner=%s cid=%s recipient=%s)", c.Owner, c.CID, c.Recipient)
}

// QueuedCommand is the storage envelope of a DataCommand.
type QueuedCommand struct {
	Id        string          `msgpack:"id" json:"id"`
	Kind      DataCommandKind `msgpack:"kind" json:"kind"`
	Publish   *PublishCommand `msgpack:"publish,omitempty" json:"publish,omitempty"`
	Fetch     *FetchCommand   `msgpack:"fetch,omitempty" json:"fetch,omitempty"`
	CreatedAt time.Time       `msgpack:"created_at" json:"created_at"`
}

func (q QueuedCommand) Command() (DataCommand, error) {
	switch {
	case q.Kind == PublishCommandKind && q.Publish != nil:
		return *q.Publish, nil
	case q.Kind == FetchCommandKind && q.Fetch != nil:
		return *q.Fetch, nil
	default:
		return nil, fmt.Errorf("queued command %s: malformed %q entry", q.Id, q.Kind)
	}
}

func NewQueuedCommand(id string, cmd DataCommand) (QueuedCommand, error) {
	q := QueuedCommand{Id: id, Kind: cmd.Kind(), CreatedAt: time.Now()}
	switch c := cmd.(type) {
	case PublishCommand:
		q.Publish = &c
	case FetchCommand:
		q.Fetch = &c
	default:
		return q, fmt.Errorf("unknown data command type %T", cmd)
	}
	return q, nil
}

type CallKind string

const (
	PublishResultCallKind CallKind = "submit_ipfs_add_results"
	FetchReadyCallKind    CallKind = "submit_rpc_ready"
	CandidacyCallKind     CallKind = "try_add_candidate_storage_provider"
)

// Call is a ledger call carried by a signed transaction.
type Call interface {
	CallKind() CallKind
}

// PublishResultCall reports newly published content to the ledger.
type PublishResultCall struct {
	Admin   AccountID `msgpack:"admin" json:"admin"`
	CID     ContentID `msgpack:"cid" json:"cid"`
	AssetID AssetID   `msgpack:"asset_id" json:"asset_id"`
	Balance uint64    `msgpack:"balance" json:"balance"`
}

func (PublishResultCall) CallKind() CallKind { return PublishResultCallKind }

// FetchReadyCall notifies the ledger that content is ready for Recipient.
type FetchReadyCall struct {
	Recipient AccountID `msgpack:"recipient" json:"recipient"`
}

func (FetchReadyCall) CallKind() CallKind { return FetchReadyCallKind }

// CandidacyCall requests joining the storage pool of an asset.
type CandidacyCall struct {
	Origin AccountID `msgpack:"origin" json:"origin"`
	PoolID AssetID   `msgpack:"pool_id" json:"pool_id"`
}

func (CandidacyCall) CallKind() CallKind { return CandidacyCallKind }

// SignedCall is a msgpack-encoded call together with its signer.
type SignedCall struct {
	Id        string    `msgpack:"id" json:"id"`
	Signer    AccountID `msgpack:"signer" json:"signer"`
	Kind      CallKind  `msgpack:"kind" json:"kind"`
	Payload   []byte    `msgpack:"payload" json:"payload"`
	Signature string    `msgpack:"signature" json:"signature"`
	Timestamp time.Time `msgpack:"timestamp" json:"timestamp"`
}

// Balance is a ledger balance.
type Balance = uint256.Int

// BootstrapNode is an entry of the bootstrap directory.
type BootstrapNode struct {
	PublicKey []byte   `msgpack:"public_key" json:"public_key"`
	Addrs     []string `msgpack:"addrs" json:"addrs"`
}
