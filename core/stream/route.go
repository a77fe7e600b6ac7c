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

package stream

import (
	"strings"

	"github.com/Warp-net/iris/core/irisnet"
)

const (
	AddValidator    IrisRoute = "/private/post/validator/add/0.0.0"
	RemoveValidator IrisRoute = "/private/post/validator/remove/0.0.0"

	ReAddValidator  IrisRoute = "/public/post/validator/readd/0.0.0"
	JoinStoragePool IrisRoute = "/public/post/pool/join/0.0.0"
	RetrieveBytes   IrisRoute = "/public/get/bytes/0.0.0"
	PublishData     IrisRoute = "/public/post/data/publish/0.0.0"
	FetchData       IrisRoute = "/public/post/data/fetch/0.0.0"
	GetValidators   IrisRoute = "/public/get/validators/0.0.0"
	GetInfo         IrisRoute = "/public/get/info/0.0.0"
)

type IrisRoute string

func (r IrisRoute) ProtocolID() irisnet.IrisProtocolID {
	return irisnet.IrisProtocolID(r)
}

func (r IrisRoute) String() string {
	return string(r)
}

func (r IrisRoute) IsPrivate() bool {
	return strings.HasPrefix(string(r), "/private")
}

func (r IrisRoute) IsPublic() bool {
	return strings.HasPrefix(string(r), "/public")
}

func (r IrisRoute) IsGet() bool {
	return strings.Contains(string(r), "/get/")
}

func FromPrIDToRoute(prID irisnet.IrisProtocolID) IrisRoute {
	return IrisRoute(prID)
}

// IsValidRoute requires /{private|public}/{get|post|delete}/name.../version
func IsValidRoute(route IrisRoute) bool {
	parts := strings.Split(strings.TrimPrefix(string(route), "/"), "/")
	if len(parts) < 4 {
		return false
	}
	switch parts[0] {
	case "private", "public":
	default:
		return false
	}
	switch parts[1] {
	case "get", "post", "delete":
	default:
		return false
	}
	return parts[len(parts)-1] != ""
}
