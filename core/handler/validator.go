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

package handler

import (
	"errors"

	"github.com/Warp-net/iris/core/irisnet"
	"github.com/Warp-net/iris/domain"
	"github.com/Warp-net/iris/event"
	"github.com/Warp-net/iris/json"
	log "github.com/sirupsen/logrus"
)

const ErrInvalidAccount = domain.IrisError("account is not a valid peer id")

type ValidatorManager interface {
	AddAndApproveValidator(id domain.AccountID) error
	RemoveAndUnapproveValidator(id domain.AccountID) error
	ReinstateValidator(caller, id domain.AccountID) error
}

type ValidatorLister interface {
	Validators() []domain.AccountID
	ApprovedValidators() []domain.AccountID
	OfflineValidators() []domain.AccountID
}

func decodeValidatorEvent(buf []byte) (event.AddValidatorEvent, error) {
	var ev event.AddValidatorEvent
	if len(buf) == 0 {
		return ev, errors.New("validator handler: empty data")
	}
	if err := json.Unmarshal(buf, &ev); err != nil {
		return ev, err
	}
	if ev.ValidatorId == "" {
		return ev, errors.New("validator handler: empty validator id")
	}
	if irisnet.FromStringToPeerID(ev.ValidatorId) == "" {
		return ev, ErrInvalidAccount
	}
	return ev, nil
}

// StreamAddValidatorHandler adds a validator and approves it for later
// re-addition. Served on a private route so only admin peers reach it.
func StreamAddValidatorHandler(mgr ValidatorManager) irisnet.IrisHandlerFunc {
	if mgr == nil {
		panic("add validator handler called with nil manager")
	}
	return func(buf []byte, _ irisnet.IrisStream) (any, error) {
		ev, err := decodeValidatorEvent(buf)
		if err != nil {
			return nil, err
		}
		if err := mgr.AddAndApproveValidator(ev.ValidatorId); err != nil {
			return nil, err
		}
		log.Infof("validator handler: %s added and approved", ev.ValidatorId)
		return event.Accepted, nil
	}
}

// StreamRemoveValidatorHandler removes a validator and revokes its approval.
func StreamRemoveValidatorHandler(mgr ValidatorManager) irisnet.IrisHandlerFunc {
	if mgr == nil {
		panic("remove validator handler called with nil manager")
	}
	return func(buf []byte, _ irisnet.IrisStream) (any, error) {
		ev, err := decodeValidatorEvent(buf)
		if err != nil {
			return nil, err
		}
		if err := mgr.RemoveAndUnapproveValidator(ev.ValidatorId); err != nil {
			return nil, err
		}
		log.Infof("validator handler: %s removed and unapproved", ev.ValidatorId)
		return event.Accepted, nil
	}
}

// StreamReAddValidatorHandler lets an approved validator put itself back.
// The caller is the remote peer that signed the request.
func StreamReAddValidatorHandler(mgr ValidatorManager) irisnet.IrisHandlerFunc {
	if mgr == nil {
		panic("re-add validator handler called with nil manager")
	}
	return func(buf []byte, s irisnet.IrisStream) (any, error) {
		ev, err := decodeValidatorEvent(buf)
		if err != nil {
			return nil, err
		}
		caller := s.Conn().RemotePeer().String()
		if err := mgr.ReinstateValidator(caller, ev.ValidatorId); err != nil {
			return nil, err
		}
		return event.Accepted, nil
	}
}

func StreamGetValidatorsHandler(lister ValidatorLister) irisnet.IrisHandlerFunc {
	if lister == nil {
		panic("get validators handler called with nil lister")
	}
	return func(_ []byte, _ irisnet.IrisStream) (any, error) {
		return event.ValidatorsResponse{
			Validators: lister.Validators(),
			Approved:   lister.ApprovedValidators(),
			Offline:    lister.OfflineValidators(),
		}, nil
	}
}
