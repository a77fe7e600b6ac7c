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
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestQueuedCommandRoundTrip(t *testing.T) {
	for _, cmd := range []DataCommand{
		PublishCommand{Source: "/ip4/1.2.3.4/tcp/1", CID: "c", Admin: "a", Name: "n", AssetID: 2, Balance: 3},
		FetchCommand{Owner: "o", CID: "c", Recipient: "r"},
	} {
		q, err := NewQueuedCommand("id", cmd)
		require.NoError(t, err)
		require.Equal(t, cmd.Kind(), q.Kind)

		bt, err := msgpack.Marshal(q)
		require.NoError(t, err)
		var decoded QueuedCommand
		require.NoError(t, msgpack.Unmarshal(bt, &decoded))

		got, err := decoded.Command()
		require.NoError(t, err)
		require.Equal(t, cmd, got)
	}
}

func TestMalformedQueuedCommand(t *testing.T) {
	_, err := QueuedCommand{Id: "x", Kind: PublishCommandKind}.Command()
	require.Error(t, err)
	_, err = QueuedCommand{Id: "x", Kind: "other"}.Command()
	require.Error(t, err)
}

func TestValidatorStateCloneIsIndependent(t *testing.T) {
	s := ValidatorState{Active: []AccountID{"a"}, Approved: []AccountID{"a"}}
	c := s.Clone()
	c.Active[0] = "b"
	c.Offline = append(c.Offline, "x")
	require.Equal(t, []AccountID{"a"}, s.Active)
	require.Empty(t, s.Offline)
}

func TestErrors(t *testing.T) {
	require.Equal(t, "bad origin", ErrBadOrigin.Error())
}
