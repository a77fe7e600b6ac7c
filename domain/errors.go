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

type IrisError string

func (e IrisError) Error() string {
	return string(e)
}

const (
	ErrDuplicateValidator = IrisError("validator is already in the set")
	ErrTooFewValidators   = IrisError("target validator count is below the minimum")
	ErrNotApproved        = IrisError("validator is not approved for re-addition")
	ErrUnauthorizedCaller = IrisError("only the validator can add itself back")
	ErrNotInitialized     = IrisError("validator set is not initialized")
	ErrBadOrigin          = IrisError("bad origin")

	ErrRequestConstructionFailed = IrisError("could not build the ipfs request")
	ErrRequestTimedOut           = IrisError("the request to ipfs timed out")
	ErrRequestFailed             = IrisError("the request to ipfs failed")

	ErrNoSuchOwnedContent  = IrisError("owner and cid do not map to any owned content")
	ErrInsufficientBalance = IrisError("balance is insufficient to complete this operation")
	ErrNoSigningIdentity   = IrisError("no local accounts available")
	ErrInvalidSignature    = IrisError("signature is invalid")
)
