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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Warp-net/iris/core/ipfs"
	"github.com/Warp-net/iris/core/tx"
	"github.com/Warp-net/iris/domain"
	log "github.com/sirupsen/logrus"
)

// Ledger is the owner of the data command queue, asset ownership and balances.
type Ledger interface {
	DequeueAll(ctx context.Context) ([]domain.DataCommand, error)
	ResolveAssetID(ctx context.Context, owner domain.AccountID, cid domain.ContentID) (domain.AssetID, error)
	BalanceOf(ctx context.Context, asset domain.AssetID, account domain.AccountID) (*domain.Balance, error)
}

// LocalStorage is node-local persistent key-value storage.
type LocalStorage interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}

type Requester interface {
	Request(ctx context.Context, req ipfs.Request, deadline time.Duration) (ipfs.Response, error)
}

type Recorder interface {
	RecordCommand(kind domain.DataCommandKind, stage Stage, err error)
}

type Stage string

const (
	StageDone       Stage = "done"
	StageConnect    Stage = "connect"
	StageCat        Stage = "cat"
	StageDisconnect Stage = "disconnect"
	StageAdd        Stage = "add"
	StageResolve    Stage = "resolve"
	StageBalance    Stage = "balance"
	StageStore      Stage = "store"
	StageSubmit     Stage = "submit"
)

// Outcome describes how a single command ended. Stage is the step that
// failed, or StageDone. Side effects performed before a failed submission
// stay applied and are flagged.
type Outcome struct {
	Command domain.DataCommand
	Stage   Stage
	Err     error
	NewCID  domain.ContentID
	Results []tx.Result

	SideEffectsApplied bool
}

func (o Outcome) Failed() bool {
	return o.Err != nil
}

type Pipeline struct {
	ledger   Ledger
	client   Requester
	storage  LocalStorage
	signer   tx.Signer
	recorder Recorder
	deadline time.Duration
}

func New(ledger Ledger, client Requester, storage LocalStorage, signer tx.Signer, recorder Recorder, deadline time.Duration) *Pipeline {
	return &Pipeline{
		ledger:   ledger,
		client:   client,
		storage:  storage,
		signer:   signer,
		recorder: recorder,
		deadline: deadline,
	}
}

// Process drains the queue and runs every command in submission order. A
// failing command is logged and abandoned; the rest of the queue still runs.
func (p *Pipeline) Process(ctx context.Context) []Outcome {
	cmds, err := p.ledger.DequeueAll(ctx)
	if err != nil {
		log.Errorf("pipeline: draining data queue: %v", err)
		return nil
	}
	if len(cmds) == 0 {
		return nil
	}
	log.Infof("pipeline: processing %d data command(s)", len(cmds))

	outcomes := make([]Outcome, 0, len(cmds))
	for _, cmd := range cmds {
		var o Outcome
		switch c := cmd.(type) {
		case domain.PublishCommand:
			o = p.publish(ctx, c)
		case domain.FetchCommand:
			o = p.fetch(ctx, c)
		default:
			o = Outcome{Command: cmd, Err: fmt.Errorf("pipeline: unknown command %T", cmd)}
		}
		p.report(o)
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (p *Pipeline) report(o Outcome) {
	if p.recorder != nil && o.Command != nil {
		p.recorder.RecordCommand(o.Command.Kind(), o.Stage, o.Err)
	}
	switch {
	case o.Err == nil:
		log.Infof("pipeline: %s done", o.Command)
	case errors.Is(o.Err, domain.ErrNoSuchOwnedContent):
		log.Warnf("pipeline: %s skipped: %v", o.Command, o.Err)
	default:
		log.Errorf("pipeline: %s abandoned at %s: %v", o.Command, o.Stage, o.Err)
	}
}

func (p *Pipeline) publish(ctx context.Context, cmd domain.PublishCommand) Outcome {
	o := Outcome{Command: cmd}

	resp, err := p.client.Request(ctx, ipfs.Connect(cmd.Source), p.deadline)
	if err != nil {
		o.Stage, o.Err = StageConnect, err
		return o
	}
	ipfs.MustSuccess(resp)
	log.Debugf("pipeline: connected to %s", cmd.Source)

	resp, err = p.client.Request(ctx, ipfs.CatBytes(cmd.CID), p.deadline)
	if err != nil {
		o.Stage, o.Err = StageCat, err
		return o
	}
	data := ipfs.MustCatBytes(resp).Data
	log.Debugf("pipeline: fetched %d bytes of %s", len(data), cmd.CID)

	resp, err = p.client.Request(ctx, ipfs.Disconnect(cmd.Source), p.deadline)
	if err != nil {
		o.Stage, o.Err = StageDisconnect, err
		return o
	}
	ipfs.MustSuccess(resp)

	resp, err = p.client.Request(ctx, ipfs.AddBytes(data), p.deadline)
	if err != nil {
		o.Stage, o.Err = StageAdd, err
		return o
	}
	o.NewCID = ipfs.MustAddBytes(resp).CID
	o.SideEffectsApplied = true
	log.Infof("pipeline: published %s as %s", cmd.CID, o.NewCID)

	o.Results = p.signer.SubmitSigned(ctx, func(domain.AccountID) domain.Call {
		return domain.PublishResultCall{
			Admin:   cmd.Admin,
			CID:     o.NewCID,
			AssetID: cmd.AssetID,
			Balance: cmd.Balance,
		}
	})
	o.Stage, o.Err = submissionError(o.Results)
	return o
}

func (p *Pipeline) fetch(ctx context.Context, cmd domain.FetchCommand) Outcome {
	o := Outcome{Command: cmd}

	asset, err := p.ledger.ResolveAssetID(ctx, cmd.Owner, cmd.CID)
	if errors.Is(err, domain.ErrNoSuchOwnedContent) {
		o.Stage, o.Err = StageResolve, domain.ErrNoSuchOwnedContent
		return o
	}
	if err != nil {
		o.Stage, o.Err = StageResolve, err
		return o
	}

	balance, err := p.ledger.BalanceOf(ctx, asset, cmd.Recipient)
	if err != nil {
		o.Stage, o.Err = StageBalance, fmt.Errorf("balance lookup: %w", err)
		return o
	}
	// a balance beyond uint64 counts as a failed conversion: access denied
	if balance == nil || !balance.IsUint64() || balance.Uint64() == 0 {
		o.Stage, o.Err = StageBalance, domain.ErrInsufficientBalance
		return o
	}

	resp, err := p.client.Request(ctx, ipfs.CatBytes(cmd.CID), p.deadline)
	if err != nil {
		o.Stage, o.Err = StageCat, err
		return o
	}
	data := ipfs.MustCatBytes(resp).Data

	if err := p.storage.Set(cmd.CID, data); err != nil {
		o.Stage, o.Err = StageStore, err
		return o
	}
	o.SideEffectsApplied = true
	log.Infof("pipeline: %s stored locally for %s", cmd.CID, cmd.Recipient)

	o.Results = p.signer.SubmitSigned(ctx, func(domain.AccountID) domain.Call {
		return domain.FetchReadyCall{Recipient: cmd.Recipient}
	})
	o.Stage, o.Err = submissionError(o.Results)
	return o
}

// submissionError reports the command failed only when no identity got the
// call through.
func submissionError(results []tx.Result) (Stage, error) {
	var errs []error
	for _, r := range results {
		if r.Err == nil {
			return StageDone, nil
		}
		errs = append(errs, r.Err)
	}
	if len(errs) == 0 {
		return StageSubmit, domain.ErrNoSigningIdentity
	}
	return StageSubmit, errors.Join(errs...)
}
