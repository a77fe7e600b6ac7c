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

package local

import (
	"strings"
)

const (
	delimeter = "/"

	FixedKey      = "fixed"
	FixedRangeKey = RangePrefix(FixedKey)
)

type (
	DatabaseKey string
	RangePrefix string
)

func (k DatabaseKey) String() string {
	return string(k)
}

func (k DatabaseKey) Bytes() []byte {
	return []byte(k)
}

// DropId returns the key without its last segment.
func (k DatabaseKey) DropId() string {
	s := string(k)
	i := strings.LastIndex(s, delimeter)
	if i < 0 {
		return s
	}
	return s[:i]
}

// PrefixBuilder composes namespaced keys: /namespace/sub/root/range/id
type PrefixBuilder struct {
	parts []string
}

func NewPrefixBuilder(namespace string) *PrefixBuilder {
	return &PrefixBuilder{parts: []string{strings.Trim(namespace, delimeter)}}
}

func (pb *PrefixBuilder) AddSubPrefix(p string) *PrefixBuilder {
	return pb.add(p)
}

func (pb *PrefixBuilder) AddRootID(id string) *PrefixBuilder {
	return pb.add(id)
}

func (pb *PrefixBuilder) AddRange(r RangePrefix) *PrefixBuilder {
	return pb.add(string(r))
}

func (pb *PrefixBuilder) AddParentId(id string) *PrefixBuilder {
	return pb.add(id)
}

func (pb *PrefixBuilder) add(part string) *PrefixBuilder {
	if part == "" {
		return pb
	}
	pb.parts = append(pb.parts, part)
	return pb
}

func (pb *PrefixBuilder) Build() DatabaseKey {
	return DatabaseKey(delimeter + strings.Join(pb.parts, delimeter))
}
