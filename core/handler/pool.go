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
	"context"
	"errors"

	"github.com/Warp-net/iris/core/irisnet"
	"github.com/Warp-net/iris/core/tx"
	"github.com/Warp-net/iris/domain"
	"github.com/Warp-net/iris/event"
	"github.com/Warp-net/iris/json"
	log "github.com/sirupsen/logrus"
)

type CallSubmitter interface {
	SubmitSigned(ctx context.Context, build func(account domain.AccountID) domain.Call) []tx.Result
}

// StreamJoinStoragePoolHandler asks the ledger to add the calling peer as a
// storage provider candidate of the pool.
func StreamJoinStoragePoolHandler(ctx context.Context, submitter CallSubmitter, emitter event.Emitter) irisnet.IrisHandlerFunc {
	if submitter == nil {
		panic("join storage pool handler called with nil submitter")
	}
	return func(buf []byte, s irisnet.IrisStream) (any, error) {
		var ev event.JoinStoragePoolEvent
		if err := json.Unmarshal(buf, &ev); err != nil {
			return nil, err
		}
		caller := s.Conn().RemotePeer().String()
		log.Debugf("pool handler: %s asks to join pool %d of %s", caller, ev.PoolId, ev.PoolOwner)

		results := submitter.SubmitSigned(ctx, func(domain.AccountID) domain.Call {
			return domain.CandidacyCall{Origin: caller, PoolID: ev.PoolId}
		})
		var errs []error
		for _, r := range results {
			if r.Err == nil {
				errs = nil
				break
			}
			errs = append(errs, r.Err)
		}
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}

		if emitter != nil {
			emitter.Emit(event.RequestJoinStoragePoolSuccess{Account: caller, PoolId: ev.PoolId})
		}
		return event.Accepted, nil
	}
}
