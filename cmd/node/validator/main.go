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

package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Warp-net/iris/config"
	"github.com/Warp-net/iris/core/handler"
	"github.com/Warp-net/iris/core/housekeeping"
	"github.com/Warp-net/iris/core/ipfs"
	"github.com/Warp-net/iris/core/irisnet"
	"github.com/Warp-net/iris/core/middleware"
	"github.com/Warp-net/iris/core/node"
	"github.com/Warp-net/iris/core/offence"
	"github.com/Warp-net/iris/core/pipeline"
	"github.com/Warp-net/iris/core/session"
	"github.com/Warp-net/iris/core/stream"
	"github.com/Warp-net/iris/core/tx"
	"github.com/Warp-net/iris/core/validator"
	"github.com/Warp-net/iris/core/worker"
	"github.com/Warp-net/iris/database"
	"github.com/Warp-net/iris/database/kubo"
	"github.com/Warp-net/iris/database/local"
	"github.com/Warp-net/iris/domain"
	"github.com/Warp-net/iris/event"
	"github.com/Warp-net/iris/metrics"
	"github.com/Warp-net/iris/security"
	log "github.com/sirupsen/logrus"
	_ "go.uber.org/automaxprocs" // DO NOT remove
	"golang.org/x/sync/errgroup"
)

const textFormat = "text"

func main() {
	if err := config.Load(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	setupLogging()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		log.Fatalf("validator: %v", err)
	}
	log.Infoln("validator node interrupted...")
}

func setupLogging() {
	cfg := config.Config().Logging
	lvl, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Errorf("failed to parse log level %s: %v, defaulting to INFO level...", cfg.Level, err)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	if cfg.Format == textFormat {
		log.SetFormatter(&log.TextFormatter{TimestampFormat: time.DateTime, FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.DateTime})
	}
	log.SetOutput(os.Stdout)
}

func run(ctx context.Context) error {
	cfg := config.Config()

	privKey, err := security.GenerateKeyFromSeed([]byte(cfg.Node.Seed))
	if err != nil {
		return fmt.Errorf("fail generating key: %w", err)
	}
	account, err := security.AccountFromPublicKey(privKey.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}
	log.Infof("validator: account %s", account)

	psk, err := security.GeneratePSK(cfg.Node.Network, cfg.Version)
	if err != nil {
		return err
	}

	db, err := local.New(cfg.Database.Path, local.DefaultOptions())
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := db.Run(cfg.Database.Username, cfg.Database.Password); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	var (
		validatorRepo = database.NewValidatorRepo(db)
		bootstrapRepo = database.NewBootstrapRepo(db)
		ledgerRepo    = database.NewLedgerRepo(db)
		offchainRepo  = database.NewOffchainRepo(db)
		emitter       = event.NewLogEmitter()
		m             = metrics.NewMetrics()
	)
	defer offchainRepo.Close()
	defer emitter.Close()

	if err := seedBootstrapDirectory(bootstrapRepo); err != nil {
		return err
	}

	registry := validator.NewRegistry(validatorRepo, emitter, cfg.Session.MinValidators)
	restored, err := registry.Load(database.IsStateNotFound)
	if err != nil {
		return err
	}
	if !restored {
		if !db.IsFirstRun() {
			log.Warnln("validator: no persisted validator state, applying genesis set")
		}
		if err := registry.Initialize(cfg.Session.InitialValidators); err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
	}

	vnode, err := node.NewValidatorNode(ctx, node.Options{
		PrivKey:     privKey,
		PSK:         psk,
		ListenAddrs: []string{cfg.Node.ListenAddr()},
		Version:     cfg.Version,
		Validators:  registry,
	})
	if err != nil {
		return err
	}
	defer vnode.StopNode()

	store, closeStore, err := newContentStore(ctx, privKey, vnode)
	if err != nil {
		return err
	}
	defer closeStore()

	signer, err := tx.NewKeySigner(ledgerRepo, privKey)
	if err != nil {
		return err
	}
	for _, seed := range cfg.Node.Signers {
		key, err := security.GenerateKeyFromSeed([]byte(seed))
		if err != nil {
			return err
		}
		if err := signer.AddKey(key); err != nil {
			return err
		}
	}
	log.Infof("validator: signing identities %v", signer.Accounts())

	var (
		client      = ipfs.NewClient(store, cfg.Worker.RequestTimeout)
		pl          = pipeline.New(ledgerRepo, client, offchainRepo, signer, m, cfg.Worker.RequestTimeout)
		housekeeper = housekeeping.NewHousekeeper(client, bootstrapRepo, m, cfg.Worker.RequestTimeout)
		offchain    = worker.NewOffchainWorker(housekeeper, pl, worker.Options{
			HousekeepingPeriod: cfg.Worker.HousekeepingPeriod,
			MetadataPeriod:     cfg.Worker.MetadataPeriod,
		})
		coordinator = session.NewCoordinator(registry)
		liveness    = offence.NewLivenessMonitor(account, vnode, offence.NewIntake(registry))
	)

	engine, err := session.NewEngine(coordinator, coordinator, validatorRepo, cfg.Session.Length)
	if err != nil {
		return err
	}
	engine.Start(registry.Validators())

	admins := make([]irisnet.IrisPeerID, 0, len(cfg.Node.Admins))
	for _, a := range cfg.Node.Admins {
		id := irisnet.FromStringToPeerID(a)
		if id == "" {
			return fmt.Errorf("invalid admin peer id: %s", a)
		}
		admins = append(admins, id)
	}
	vnode.RegisterHandlers(
		middleware.NewIrisMiddleware(admins...),
		irisnet.IrisStreamHandler{Path: stream.AddValidator.ProtocolID(), Handler: handler.StreamAddValidatorHandler(registry)},
		irisnet.IrisStreamHandler{Path: stream.RemoveValidator.ProtocolID(), Handler: handler.StreamRemoveValidatorHandler(registry)},
		irisnet.IrisStreamHandler{Path: stream.ReAddValidator.ProtocolID(), Handler: handler.StreamReAddValidatorHandler(registry)},
		irisnet.IrisStreamHandler{Path: stream.JoinStoragePool.ProtocolID(), Handler: handler.StreamJoinStoragePoolHandler(ctx, signer, emitter)},
		irisnet.IrisStreamHandler{Path: stream.RetrieveBytes.ProtocolID(), Handler: handler.StreamRetrieveBytesHandler(offchainRepo)},
		irisnet.IrisStreamHandler{Path: stream.PublishData.ProtocolID(), Handler: handler.StreamPublishDataHandler(ledgerRepo.Queue())},
		irisnet.IrisStreamHandler{Path: stream.FetchData.ProtocolID(), Handler: handler.StreamFetchDataHandler(ledgerRepo.Queue())},
		irisnet.IrisStreamHandler{Path: stream.GetValidators.ProtocolID(), Handler: handler.StreamGetValidatorsHandler(registry)},
		irisnet.IrisStreamHandler{Path: stream.GetInfo.ProtocolID(), Handler: handler.StreamGetInfoHandler(vnode)},
	)

	infos, err := cfg.Node.AddrInfos()
	if err != nil {
		return err
	}
	for _, info := range infos {
		if info.ID == vnode.ID() {
			continue
		}
		if err := vnode.Connect(info); err != nil {
			log.Warnf("validator: bootstrap %s: %v", info.ID, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Server != "" {
		srv := metrics.NewServer(cfg.Metrics.Server, m)
		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(cfg.Worker.BlockTime)
		defer ticker.Stop()

		var block uint64
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			block++

			if block%cfg.Session.Length == 0 {
				offenders := liveness.Check(engine.CurrentIndex(), coordinator.Validators())
				if len(offenders) > 0 {
					m.RecordOffence(offence.UnresponsivenessKind, len(offenders))
				}
			}
			if engine.OnBlock(block) {
				m.SetSessionIndex(engine.CurrentIndex())
			}
			m.SetActiveValidators(len(registry.Validators()))

			offchain.OnBlock(ctx, block)
		}
	})

	log.Infof("validator: node %s is running", vnode.ID())
	return g.Wait()
}

// seedBootstrapDirectory records the configured bootstrap nodes.
func seedBootstrapDirectory(repo *database.BootstrapRepo) error {
	infos, err := config.Config().Node.AddrInfos()
	if err != nil {
		return err
	}
	for _, info := range infos {
		pub := irisnet.FromIDToPubKey(info.ID)
		if len(pub) != ed25519.PublicKeySize {
			log.Warnf("bootstrap: %s has no inlined ed25519 key, skipped", info.ID)
			continue
		}
		addrs := make([]string, 0, len(info.Addrs))
		for _, a := range info.Addrs {
			addrs = append(addrs, a.String())
		}
		if err := repo.Add(domain.BootstrapNode{PublicKey: pub, Addrs: addrs}); err != nil {
			return fmt.Errorf("bootstrap: %s: %w", info.ID, err)
		}
	}
	return nil
}

func newContentStore(ctx context.Context, privKey ed25519.PrivateKey, vnode *node.ValidatorNode) (ipfs.Store, func(), error) {
	if config.Config().IPFS.InMemory {
		log.Warnln("IPFS: using in-memory content store")
		pub := privKey.Public().(ed25519.PublicKey)
		return ipfs.NewMemoryStore(pub, vnode.Node().Addrs()...), func() {}, nil
	}
	kn, err := kubo.NewNode(ctx, config.Config().IPFS.RepoPath, privKey, vnode.Node())
	if err != nil {
		return nil, nil, fmt.Errorf("IPFS: %w", err)
	}
	return kn, func() {
		if err := kn.Close(); err != nil {
			log.Errorf("IPFS: close: %v", err)
		}
	}, nil
}
