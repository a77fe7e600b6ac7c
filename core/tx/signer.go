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

package tx

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/Warp-net/iris/domain"
	"github.com/Warp-net/iris/security"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// CallSink receives signed calls. The ledger implements it.
type CallSink interface {
	Apply(ctx context.Context, call domain.SignedCall) error
}

// Signer submits calls signed by every local signing identity.
type Signer interface {
	HasSigningIdentity() bool
	SubmitSigned(ctx context.Context, build func(account domain.AccountID) domain.Call) []Result
}

// Result is the submission outcome for one signing identity.
type Result struct {
	Account domain.AccountID
	CallId  string
	Err     error
}

type identity struct {
	account domain.AccountID
	key     ed25519.PrivateKey
}

type KeySigner struct {
	mx         sync.RWMutex
	identities []identity
	sink       CallSink
}

var _ Signer = (*KeySigner)(nil)

func NewKeySigner(sink CallSink, keys ...ed25519.PrivateKey) (*KeySigner, error) {
	s := &KeySigner{sink: sink}
	for _, k := range keys {
		if err := s.AddKey(k); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *KeySigner) AddKey(key ed25519.PrivateKey) error {
	if len(key) != ed25519.PrivateKeySize {
		return security.ErrInvalidPublicKey
	}
	account, err := security.AccountFromPublicKey(key.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}
	s.mx.Lock()
	defer s.mx.Unlock()
	for _, id := range s.identities {
		if id.account == account {
			return nil
		}
	}
	s.identities = append(s.identities, identity{account: account, key: key})
	return nil
}

func (s *KeySigner) Accounts() []domain.AccountID {
	s.mx.RLock()
	defer s.mx.RUnlock()
	accounts := make([]domain.AccountID, 0, len(s.identities))
	for _, id := range s.identities {
		accounts = append(accounts, id.account)
	}
	return accounts
}

func (s *KeySigner) HasSigningIdentity() bool {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return len(s.identities) > 0
}

// SubmitSigned builds, signs and applies one call per signing identity.
// Without any identity it returns a single ErrNoSigningIdentity result.
func (s *KeySigner) SubmitSigned(ctx context.Context, build func(account domain.AccountID) domain.Call) []Result {
	s.mx.RLock()
	identities := append([]identity{}, s.identities...)
	s.mx.RUnlock()

	if len(identities) == 0 {
		return []Result{{Err: domain.ErrNoSigningIdentity}}
	}

	results := make([]Result, 0, len(identities))
	for _, id := range identities {
		signed, err := Sign(id.account, id.key, build(id.account))
		if err != nil {
			results = append(results, Result{Account: id.account, Err: err})
			continue
		}
		err = s.sink.Apply(ctx, signed)
		if err != nil {
			log.Errorf("tx: [%s] submitting %s: %v", id.account, signed.Kind, err)
		} else {
			log.Infof("tx: [%s] submitted %s %s", id.account, signed.Kind, signed.Id)
		}
		results = append(results, Result{Account: id.account, CallId: signed.Id, Err: err})
	}
	return results
}

// Sign encodes call with msgpack and signs the encoding.
func Sign(account domain.AccountID, key ed25519.PrivateKey, call domain.Call) (domain.SignedCall, error) {
	if call == nil {
		return domain.SignedCall{}, fmt.Errorf("tx: nil call")
	}
	payload, err := msgpack.Marshal(call)
	if err != nil {
		return domain.SignedCall{}, fmt.Errorf("tx: encoding %s: %w", call.CallKind(), err)
	}
	return domain.SignedCall{
		Id:        uuid.New().String(),
		Signer:    account,
		Kind:      call.CallKind(),
		Payload:   payload,
		Signature: security.Sign(key, payload),
		Timestamp: time.Now(),
	}, nil
}
