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

package handler

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/Warp-net/iris/core/irisnet"
	"github.com/Warp-net/iris/core/tx"
	"github.com/Warp-net/iris/core/validator"
	"github.com/Warp-net/iris/domain"
	"github.com/Warp-net/iris/event"
	"github.com/Warp-net/iris/json"
	"github.com/Warp-net/iris/security"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/stretchr/testify/suite"
)

type fakeConn struct {
	network.Conn
	remote irisnet.IrisPeerID
}

func (c fakeConn) RemotePeer() irisnet.IrisPeerID { return c.remote }

type fakeStream struct {
	network.Stream
	conn fakeConn
}

func (s fakeStream) Conn() network.Conn { return s.conn }

func streamFrom(id irisnet.IrisPeerID) irisnet.IrisStream {
	return fakeStream{conn: fakeConn{remote: id}}
}

type managerCall struct {
	op     string
	caller domain.AccountID
	id     domain.AccountID
}

type fakeManager struct {
	calls []managerCall
	err   error
}

func (m *fakeManager) record(op string, caller, id domain.AccountID) error {
	m.calls = append(m.calls, managerCall{op: op, caller: caller, id: id})
	return m.err
}

func (m *fakeManager) AddAndApproveValidator(id domain.AccountID) error {
	return m.record("add", "", id)
}
func (m *fakeManager) RemoveAndUnapproveValidator(id domain.AccountID) error {
	return m.record("remove", "", id)
}
func (m *fakeManager) ReinstateValidator(caller, id domain.AccountID) error {
	return m.record("reinstate", caller, id)
}

type fakeSubmitter struct {
	calls   []domain.Call
	results []tx.Result
}

func (f *fakeSubmitter) SubmitSigned(_ context.Context, build func(domain.AccountID) domain.Call) []tx.Result {
	f.calls = append(f.calls, build("node"))
	return f.results
}

type captureEmitter struct {
	events []event.Event
}

func (c *captureEmitter) Emit(ev event.Event) { c.events = append(c.events, ev) }

type fakeQueue struct {
	cmds []domain.DataCommand
}

func (q *fakeQueue) Enqueue(cmd domain.DataCommand) (string, error) {
	q.cmds = append(q.cmds, cmd)
	return "01J", nil
}

type countingStorage struct {
	data  map[string][]byte
	reads int
}

func (c *countingStorage) Get(key string) ([]byte, error) {
	c.reads++
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return v, nil
}

type HandlerTestSuite struct {
	suite.Suite

	caller    irisnet.IrisPeerID
	callerKey ed25519.PrivateKey
	target    irisnet.IrisPeerID
}

func (s *HandlerTestSuite) SetupSuite() {
	var err error
	s.callerKey, err = security.GenerateKeyFromSeed([]byte("caller"))
	s.Require().NoError(err)
	s.caller, err = irisnet.IDFromPublicKey(s.callerKey.Public().(ed25519.PublicKey))
	s.Require().NoError(err)

	targetKey, err := security.GenerateKeyFromSeed([]byte("target"))
	s.Require().NoError(err)
	s.target, err = irisnet.IDFromPublicKey(targetKey.Public().(ed25519.PublicKey))
	s.Require().NoError(err)
}

func (s *HandlerTestSuite) body(v any) []byte {
	bt, err := json.Marshal(v)
	s.Require().NoError(err)
	return bt
}

func (s *HandlerTestSuite) TestAddValidatorApprovesToo() {
	mgr := &fakeManager{}
	resp, err := StreamAddValidatorHandler(mgr)(
		s.body(event.AddValidatorEvent{ValidatorId: s.target.String()}), streamFrom(s.caller),
	)
	s.Require().NoError(err)
	s.Equal(event.Accepted, resp)
	s.Equal([]managerCall{{op: "add", id: s.target.String()}}, mgr.calls)
}

func (s *HandlerTestSuite) TestAddValidatorStopsOnError() {
	mgr := &fakeManager{err: domain.ErrDuplicateValidator}
	_, err := StreamAddValidatorHandler(mgr)(
		s.body(event.AddValidatorEvent{ValidatorId: s.target.String()}), streamFrom(s.caller),
	)
	s.ErrorIs(err, domain.ErrDuplicateValidator)
	s.Len(mgr.calls, 1)
}

type memoryStateStore struct {
	state domain.ValidatorState
}

func (m *memoryStateStore) LoadState() (domain.ValidatorState, error) { return m.state.Clone(), nil }
func (m *memoryStateStore) SaveState(state domain.ValidatorState) error {
	m.state = state.Clone()
	return nil
}

func (s *HandlerTestSuite) TestAddValidatorLeavesRegistryUntouchedOnError() {
	other := []domain.AccountID{"A", "B"}
	em := &captureEmitter{}
	registry := validator.NewRegistry(&memoryStateStore{}, em, 2)
	s.Require().NoError(registry.Initialize(append(other, s.target.String())))
	s.Require().NoError(registry.MarkForRemoval(s.target.String()))
	_, err := registry.RemoveOfflineValidators()
	s.Require().NoError(err)
	s.Equal(other, registry.Validators())
	before := registry.State()

	_, err = StreamAddValidatorHandler(registry)(
		s.body(event.AddValidatorEvent{ValidatorId: s.target.String()}), streamFrom(s.caller),
	)
	s.ErrorIs(err, domain.ErrDuplicateValidator)
	s.Equal(before, registry.State())
	s.Empty(em.events)

	_, err = StreamReAddValidatorHandler(registry)(
		s.body(event.ReAddValidatorEvent{ValidatorId: s.target.String()}), streamFrom(s.target),
	)
	s.Require().NoError(err)
	s.Contains(registry.Validators(), s.target.String())
	s.Len(em.events, 1)
}

func (s *HandlerTestSuite) TestAddValidatorRejectsBadAccount() {
	mgr := &fakeManager{}
	_, err := StreamAddValidatorHandler(mgr)(s.body(event.AddValidatorEvent{ValidatorId: "nope"}), streamFrom(s.caller))
	s.ErrorIs(err, ErrInvalidAccount)
	s.Empty(mgr.calls)

	_, err = StreamAddValidatorHandler(mgr)(nil, streamFrom(s.caller))
	s.Error(err)
}

func (s *HandlerTestSuite) TestRemoveValidatorUnapprovesToo() {
	mgr := &fakeManager{}
	_, err := StreamRemoveValidatorHandler(mgr)(
		s.body(event.RemoveValidatorEvent{ValidatorId: s.target.String()}), streamFrom(s.caller),
	)
	s.Require().NoError(err)
	s.Equal([]managerCall{{op: "remove", id: s.target.String()}}, mgr.calls)
}

func (s *HandlerTestSuite) TestReAddUsesRemotePeerAsCaller() {
	mgr := &fakeManager{}
	_, err := StreamReAddValidatorHandler(mgr)(
		s.body(event.ReAddValidatorEvent{ValidatorId: s.target.String()}), streamFrom(s.caller),
	)
	s.Require().NoError(err)
	s.Equal([]managerCall{{op: "reinstate", caller: s.caller.String(), id: s.target.String()}}, mgr.calls)
}

func (s *HandlerTestSuite) TestJoinStoragePool() {
	sub := &fakeSubmitter{results: []tx.Result{{Account: "node"}}}
	em := &captureEmitter{}
	resp, err := StreamJoinStoragePoolHandler(context.Background(), sub, em)(
		s.body(event.JoinStoragePoolEvent{PoolOwner: s.target.String(), PoolId: 9}), streamFrom(s.caller),
	)
	s.Require().NoError(err)
	s.Equal(event.Accepted, resp)
	s.Equal([]domain.Call{domain.CandidacyCall{Origin: s.caller.String(), PoolID: 9}}, sub.calls)
	s.Equal([]event.Event{event.RequestJoinStoragePoolSuccess{Account: s.caller.String(), PoolId: 9}}, em.events)
}

func (s *HandlerTestSuite) TestJoinStoragePoolWithoutSigner() {
	sub := &fakeSubmitter{results: []tx.Result{{Err: domain.ErrNoSigningIdentity}}}
	em := &captureEmitter{}
	_, err := StreamJoinStoragePoolHandler(context.Background(), sub, em)(
		s.body(event.JoinStoragePoolEvent{PoolId: 9}), streamFrom(s.caller),
	)
	s.ErrorIs(err, domain.ErrNoSigningIdentity)
	s.Empty(em.events)
}

func (s *HandlerTestSuite) TestFetchDataRecipientIsCaller() {
	q := &fakeQueue{}
	resp, err := StreamFetchDataHandler(q)(
		s.body(event.FetchDataEvent{Owner: "owner", CID: "bafy", Recipient: "someone-else"}), streamFrom(s.caller),
	)
	s.Require().NoError(err)
	s.Equal(event.EnqueuedResponse{Id: "01J"}, resp)
	s.Equal([]domain.DataCommand{domain.FetchCommand{Owner: "owner", CID: "bafy", Recipient: s.caller.String()}}, q.cmds)
}

func (s *HandlerTestSuite) TestPublishDataValidates() {
	q := &fakeQueue{}
	h := StreamPublishDataHandler(q)

	_, err := h(s.body(event.PublishDataEvent{Source: "not an addr", CID: "x", Admin: "a"}), streamFrom(s.caller))
	s.Error(err)
	_, err = h(s.body(event.PublishDataEvent{Source: "/ip4/1.2.3.4/tcp/1", CID: "x", Admin: "a"}), streamFrom(s.caller))
	s.Error(err)
	s.Empty(q.cmds)

	cmd := event.PublishDataEvent{
		Source:  "/ip4/1.2.3.4/tcp/1",
		CID:     "bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku",
		Admin:   "a",
		AssetID: 3,
		Balance: 10,
	}
	_, err = h(s.body(cmd), streamFrom(s.caller))
	s.Require().NoError(err)
	s.Equal([]domain.DataCommand{cmd}, q.cmds)
}

func (s *HandlerTestSuite) TestRetrieveBytes() {
	storage := &countingStorage{data: map[string][]byte{"bafy": []byte("hello")}}
	h := StreamRetrieveBytesHandler(storage)

	req := event.RetrieveBytesEvent{
		PublicKey: s.callerKey.Public().(ed25519.PublicKey),
		Signature: security.Sign(s.callerKey, []byte("bafy")),
		Message:   []byte("bafy"),
	}
	for range 2 {
		resp, err := h(s.body(req), streamFrom(s.caller))
		s.Require().NoError(err)
		s.Equal(event.RetrieveBytesResponse{Data: []byte("hello")}, resp)
	}
	s.Equal(1, storage.reads)
}

func (s *HandlerTestSuite) TestRetrieveBytesRejectsForgedSignature() {
	storage := &countingStorage{data: map[string][]byte{"bafy": []byte("hello")}}
	h := StreamRetrieveBytesHandler(storage)

	req := event.RetrieveBytesEvent{
		PublicKey: s.callerKey.Public().(ed25519.PublicKey),
		Signature: security.Sign(s.callerKey, []byte("other")),
		Message:   []byte("bafy"),
	}
	_, err := h(s.body(req), streamFrom(s.caller))
	s.ErrorIs(err, domain.ErrInvalidSignature)
	s.Zero(storage.reads)
}

type staticInfo irisnet.NodeInfo

func (i staticInfo) NodeInfo() irisnet.NodeInfo { return irisnet.NodeInfo(i) }

func (s *HandlerTestSuite) TestGetInfo() {
	resp, err := StreamGetInfoHandler(staticInfo{ID: s.caller, Validators: 3})(nil, streamFrom(s.target))
	s.Require().NoError(err)
	s.Equal(3, resp.(irisnet.NodeInfo).Validators)
}

type staticLister struct{}

func (staticLister) Validators() []domain.AccountID         { return []domain.AccountID{"a", "b"} }
func (staticLister) ApprovedValidators() []domain.AccountID { return []domain.AccountID{"a"} }
func (staticLister) OfflineValidators() []domain.AccountID  { return nil }

func (s *HandlerTestSuite) TestGetValidators() {
	resp, err := StreamGetValidatorsHandler(staticLister{})(nil, streamFrom(s.caller))
	s.Require().NoError(err)
	s.Equal(event.ValidatorsResponse{Validators: []domain.AccountID{"a", "b"}, Approved: []domain.AccountID{"a"}}, resp)
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}
