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

package backoff

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Warp-net/iris/core/irisnet"
)

const ErrBackoffEnabled irisnet.IrisError = "backoff enabled"

const (
	MinDelay        = 100 * time.Millisecond
	MaxDelay        = 5 * time.Minute
	TimeToLive      = 10 * time.Minute
	Multiplier      = 2
	MaxJitterMs     = 100
	DefaultAttempts = 5
)

type attempt struct {
	delay     time.Duration
	lastTried time.Time
	count     int
}

// Backoff throttles repeated dial attempts per peer with an exponential,
// jittered delay. Peers silent for TimeToLive are forgotten.
type Backoff struct {
	mx          sync.Mutex
	attempts    map[irisnet.IrisPeerID]attempt
	maxAttempts int
	now         func() time.Time
}

// New starts a cleanup loop bound to ctx.
func New(ctx context.Context, cleanupInterval time.Duration, maxAttempts int) *Backoff {
	if maxAttempts <= 0 {
		maxAttempts = DefaultAttempts
	}
	b := &Backoff{
		attempts:    make(map[irisnet.IrisPeerID]attempt),
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
	if cleanupInterval > 0 {
		go b.cleanupLoop(ctx, cleanupInterval)
	}
	return b
}

// IsBackoffEnabled records an attempt for id and reports whether it must be
// skipped.
func (b *Backoff) IsBackoffEnabled(id irisnet.IrisPeerID) bool {
	b.mx.Lock()
	defer b.mx.Unlock()

	now := b.now()
	a, ok := b.attempts[id]
	switch {
	case !ok || now.Sub(a.lastTried) > TimeToLive:
		a = attempt{delay: MinDelay}
	case now.Sub(a.lastTried) < a.delay:
		return true
	case a.count >= b.maxAttempts:
		return true
	case a.delay < MaxDelay:
		jitter := time.Duration(rand.IntN(MaxJitterMs)) * time.Millisecond //#nosec
		a.delay = Multiplier*a.delay + jitter
		if a.delay > MaxDelay || a.delay < 0 {
			a.delay = MaxDelay
		}
	}

	a.count++
	a.lastTried = now
	b.attempts[id] = a
	return false
}

func (b *Backoff) Reset(id irisnet.IrisPeerID) {
	b.mx.Lock()
	delete(b.attempts, id)
	b.mx.Unlock()
}

func (b *Backoff) cleanup() {
	b.mx.Lock()
	defer b.mx.Unlock()

	now := b.now()
	for id, a := range b.attempts {
		if now.Sub(a.lastTried) > TimeToLive {
			delete(b.attempts, id)
		}
	}
}

func (b *Backoff) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.cleanup()
		}
	}
}
