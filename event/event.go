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

package event

import (
	"sync"
	"time"

	"github.com/Warp-net/iris/domain"
	"github.com/Warp-net/iris/json"
	log "github.com/sirupsen/logrus"
)

const (
	Accepted            acceptedResponse = `{"code":0,"message":"Accepted"}`
	InternalRoutePrefix string           = "/internal"
)

type acceptedResponse string

// ErrorResponse defines model for ErrorResponse.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e ErrorResponse) Error() string {
	return e.Message
}

// Message is the signed envelope of every stream request.
type Message struct {
	Body        json.RawMessage `json:"body"`
	MessageId   string          `json:"message_id"`
	NodeId      string          `json:"node_id"`
	Destination string          `json:"destination"`
	Timestamp   time.Time       `json:"timestamp"`
	Version     string          `json:"version"`
	Signature   string          `json:"signature"`
}

// AddValidatorEvent defines model for AddValidatorEvent.
type AddValidatorEvent struct {
	ValidatorId domain.AccountID `json:"validator_id"`
}

// RemoveValidatorEvent defines model for RemoveValidatorEvent.
type RemoveValidatorEvent = AddValidatorEvent

// ReAddValidatorEvent defines model for ReAddValidatorEvent.
type ReAddValidatorEvent = AddValidatorEvent

// JoinStoragePoolEvent defines model for JoinStoragePoolEvent.
type JoinStoragePoolEvent struct {
	PoolOwner domain.AccountID `json:"pool_owner"`
	PoolId    domain.AssetID   `json:"pool_id"`
}

// RetrieveBytesEvent defines model for RetrieveBytesEvent. Message is the
// local storage key, signed by the holder of PublicKey.
type RetrieveBytesEvent struct {
	PublicKey []byte `json:"public_key"`
	Signature string `json:"signature"`
	Message   []byte `json:"message"`
}

type RetrieveBytesResponse struct {
	Data []byte `json:"data"`
}

// PublishDataEvent defines model for PublishDataEvent.
type PublishDataEvent = domain.PublishCommand

// FetchDataEvent defines model for FetchDataEvent.
type FetchDataEvent = domain.FetchCommand

type EnqueuedResponse struct {
	Id string `json:"id"`
}

type ValidatorsResponse struct {
	Validators []domain.AccountID `json:"validators"`
	Approved   []domain.AccountID `json:"approved"`
	Offline    []domain.AccountID `json:"offline"`
}

// Event is a notification deposited by a state transition.
type Event interface {
	EventName() string
}

type ValidatorAdditionInitiated struct {
	ValidatorId domain.AccountID `json:"validator_id"`
}

func (ValidatorAdditionInitiated) EventName() string { return "ValidatorAdditionInitiated" }

type ValidatorRemovalInitiated struct {
	ValidatorId domain.AccountID `json:"validator_id"`
}

func (ValidatorRemovalInitiated) EventName() string { return "ValidatorRemovalInitiated" }

type RequestJoinStoragePoolSuccess struct {
	Account domain.AccountID `json:"account"`
	PoolId  domain.AssetID   `json:"pool_id"`
}

func (RequestJoinStoragePoolSuccess) EventName() string { return "RequestJoinStoragePoolSuccess" }

type Emitter interface {
	Emit(ev Event)
}

// LogEmitter writes events to the log and fans them out to subscribers.
type LogEmitter struct {
	mx   sync.RWMutex
	subs []chan Event
}

func NewLogEmitter() *LogEmitter {
	return &LogEmitter{}
}

// Subscribe returns a buffered channel receiving every following event.
// Events are dropped for a subscriber whose buffer is full.
func (e *LogEmitter) Subscribe(size int) <-chan Event {
	ch := make(chan Event, size)
	e.mx.Lock()
	e.subs = append(e.subs, ch)
	e.mx.Unlock()
	return ch
}

func (e *LogEmitter) Emit(ev Event) {
	if e == nil || ev == nil {
		return
	}
	bt, _ := json.Marshal(ev)
	log.Infof("event: %s %s", ev.EventName(), bt)

	e.mx.RLock()
	defer e.mx.RUnlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			log.Warnf("event: subscriber is slow, dropped %s", ev.EventName())
		}
	}
}

func (e *LogEmitter) Close() {
	e.mx.Lock()
	defer e.mx.Unlock()
	for _, ch := range e.subs {
		close(ch)
	}
	e.subs = nil
}
