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

// Offence is a misbehaviour report produced by the offence detector.
type Offence struct {
	Kind      string
	TimeSlot  uint64
	Offenders []domain.AccountID
}

// OffenceSink accepts offence reports.
type OffenceSink interface {
	ReportOffence(reporters []domain.AccountID, offence Offence) error
	IsKnownOffence(offenders []domain.AccountID, timeSlot uint64) bool
}

type Marker interface {
	MarkForRemoval(id domain.AccountID) error
}

// Intake marks reported offenders for removal at the next session boundary.
type Intake struct {
	marker Marker
}

var _ OffenceSink = (*Intake)(nil)

func NewIntake(marker Marker) *Intake {
	return &Intake{marker: marker}
}

// ReportOffence never rejects a report. Marking failures are logged.
func (i *Intake) ReportOffence(reporters []domain.AccountID, offence Offence) error {
	log.Infof("offence: %q at slot %d reported by %v against %v",
		offence.Kind, offence.TimeSlot, reporters, offence.Offenders)

	for _, offender := range offence.Offenders {
		if err := i.marker.MarkForRemoval(offender); err != nil {
			log.Errorf("offence: marking %s for removal: %v", offender, err)
		}
	}
	return nil
}

// IsKnownOffence always reports false: offence instances are not deduplicated.
func (i *Intake) IsKnownOffence(_ []domain.AccountID, _ uint64) bool {
	return false
}
