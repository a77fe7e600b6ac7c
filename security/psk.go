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

package security

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Masterminds/semver/v3"
)

type PSK []byte

func (s PSK) String() string {
	return fmt.Sprintf("%x", []byte(s))
}

var (
	ErrPSKNetworkRequired = errors.New("psk: network required")
	ErrPSKVersionRequired = errors.New("psk: version required")
)

const pskDomain = "/iris/swarm/psk/"

// GeneratePSK derives the private swarm key shared by all nodes of the same
// network and major version.
func GeneratePSK(network string, v *semver.Version) (PSK, error) {
	if network == "" {
		return nil, ErrPSKNetworkRequired
	}
	if v == nil {
		return nil, ErrPSKVersionRequired
	}
	seed := []byte(pskDomain + network + "/" + strconv.FormatUint(v.Major(), 10))
	return ConvertToSHA256(seed), nil
}
