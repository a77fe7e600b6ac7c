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

package offence

import (
	"github.com/Warp-net/iris/domain"
	log "github.com/sirupsen/logrus"
)

const UnresponsivenessKind = "unresponsive"

type Reachability interface {
	IsReachable(id domain.AccountID) bool
}

// LivenessMonitor reports validators unreachable at the end of a session.
type LivenessMonitor struct {
	self domain.AccountID
	net  Reachability
	sink OffenceSink
}

func NewLivenessMonitor(self domain.AccountID, net Reachability, sink OffenceSink) *LivenessMonitor {
	return &LivenessMonitor{self: self, net: net, sink: sink}
}

// Check reports every unreachable validator of the ending session as a
// single offence. It returns the reported offenders.
func (l *LivenessMonitor) Check(session domain.SessionIndex, validators []domain.AccountID) []domain.AccountID {
	var offenders []domain.AccountID
	for _, v := range validators {
		if v == l.self {
			continue
		}
		if !l.net.IsReachable(v) {
			offenders = append(offenders, v)
		}
	}
	if len(offenders) == 0 {
		return nil
	}
	if l.sink.IsKnownOffence(offenders, uint64(session)) {
		return nil
	}
	log.Warnf("offence: session %d: %d validators unreachable", session, len(offenders))
	err := l.sink.ReportOffence([]domain.AccountID{l.self}, Offence{
		Kind:      UnresponsivenessKind,
		TimeSlot:  uint64(session),
		Offenders: offenders,
	})
	if err != nil {
		log.Errorf("offence: session %d: reporting unresponsive validators: %v", session, err)
	}
	return offenders
}
