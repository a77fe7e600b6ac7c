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

package worker

import (
	"context"
	"sync"

	"github.com/Warp-net/iris/core/pipeline"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultHousekeepingPeriod = 5
	DefaultMetadataPeriod     = 5
)

type Housekeeper interface {
	Run(ctx context.Context) error
	ProbeMetadata(ctx context.Context) error
}

type Processor interface {
	Process(ctx context.Context) []pipeline.Outcome
}

type Options struct {
	HousekeepingPeriod uint64
	MetadataPeriod     uint64
}

// OffchainWorker is the per-block hook of the node. Ticks never overlap.
type OffchainWorker struct {
	mx sync.Mutex

	housekeeper Housekeeper
	processor   Processor

	housekeepingPeriod uint64
	metadataPeriod     uint64
}

func NewOffchainWorker(housekeeper Housekeeper, processor Processor, opts Options) *OffchainWorker {
	if opts.HousekeepingPeriod == 0 {
		opts.HousekeepingPeriod = DefaultHousekeepingPeriod
	}
	if opts.MetadataPeriod == 0 {
		opts.MetadataPeriod = DefaultMetadataPeriod
	}
	return &OffchainWorker{
		housekeeper:        housekeeper,
		processor:          processor,
		housekeepingPeriod: opts.HousekeepingPeriod,
		metadataPeriod:     opts.MetadataPeriod,
	}
}

// OnBlock runs one tick for block n: housekeeping every housekeeping period,
// the data request pipeline on every block and the metadata probe every
// metadata period.
func (w *OffchainWorker) OnBlock(ctx context.Context, n uint64) []pipeline.Outcome {
	w.mx.Lock()
	defer w.mx.Unlock()

	if ctx.Err() != nil {
		return nil
	}

	if n%w.housekeepingPeriod == 0 {
		if err := w.housekeeper.Run(ctx); err != nil {
			log.Errorf("worker: block %d: housekeeping: %v", n, err)
		}
	}

	outcomes := w.processor.Process(ctx)

	if n%w.metadataPeriod == 0 {
		if err := w.housekeeper.ProbeMetadata(ctx); err != nil {
			log.Errorf("worker: block %d: metadata: %v", n, err)
		}
	}
	return outcomes
}
