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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/Warp-net/iris/core/irisnet"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	testNetNetwork = "testnet"
	irisNetwork    = "iris"

	appDirName = ".irisdata"
)

const noticeTemplate = " %s version %s. Copyright (C) <%s> <%s>. This program comes with ABSOLUTELY NO WARRANTY; This is free software, and you are welcome to redistribute it under certain conditions.\n\n\n"

// Version is overridden at build time with -ldflags "-X".
var Version = "0.1.0"

var (
	configSingleton config
	loadOnce        sync.Once
)

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(irisnet.IrisName, pflag.ContinueOnError)
	fs.String("database.dir", "storage", "Database directory name")
	fs.String("database.username", "iris", "Database encryption username")
	fs.String("database.password", "", "Database encryption password, node seed if empty")
	fs.String("ipfs.repo", "ipfs", "Content store repository directory name")
	fs.Bool("ipfs.memory", false, "Use an in-memory content store instead of the embedded IPFS node")
	fs.String("node.host.v4", "0.0.0.0", "Node host IPv4")
	fs.String("node.port", "4001", "Node port")
	fs.String("node.seed", "", "Node seed for deterministic ID generation")
	fs.String("node.network", irisNetwork, "Private network. Use 'testnet' for testing env.")
	fs.String("node.bootstrap", "", "Bootstrap nodes multiaddr list, comma separated")
	fs.String("node.admins", "", "Admin peer IDs allowed on private routes, comma separated")
	fs.String("node.signers", "", "Additional signing identity seeds, comma separated")
	fs.Uint64("worker.housekeeping.period", 5, "Run connection housekeeping every N blocks")
	fs.Uint64("worker.metadata.period", 5, "Log content store metadata every N blocks")
	fs.Duration("worker.request.timeout", 5*time.Second, "Content store request deadline")
	fs.Duration("worker.block.time", 6*time.Second, "Block interval of the local ticker")
	fs.Uint64("session.length", 10, "Session length in blocks")
	fs.Int("session.validators.min", 2, "Minimum size of the active validator set")
	fs.String("session.validators.initial", "", "Genesis validator accounts, comma separated")
	fs.String("metrics.server", "", "Metrics server address, disabled if empty")
	fs.String("logging.level", "info", "Logging level")
	fs.String("logging.format", "text", "Logging format: text or json")
	return fs
}

// Load parses args together with IRIS_* style environment variables
// (node.port -> NODE_PORT). It is applied only once.
func Load(args []string) (err error) {
	loadOnce.Do(func() {
		var cfg config
		cfg, err = parse(args)
		if err != nil {
			return
		}
		configSingleton = cfg
		fmt.Printf(noticeTemplate, strings.ToUpper(irisnet.IrisName), cfg.Version, "2025", "Vadim Filin")
	})
	return err
}

func Config() config {
	return configSingleton
}

func parse(args []string) (config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return config{}, err
	}

	version, err := semver.NewVersion(strings.TrimSpace(Version))
	if err != nil {
		return config{}, fmt.Errorf("config: version: %w", err)
	}

	network := strings.TrimSpace(v.GetString("node.network"))
	if network == "" || network == "mainnet" {
		network = irisNetwork
	}

	host := v.GetString("node.host.v4")
	port := v.GetString("node.port")
	dbDir := v.GetString("database.dir")

	seed := strings.TrimSpace(v.GetString("node.seed"))
	if seed == "" {
		seed = "seed" + network + dbDir + host + port
	}
	password := v.GetString("database.password")
	if password == "" {
		password = seed
	}

	appPath, err := getAppPath()
	if err != nil {
		return config{}, err
	}
	networkPath := filepath.Join(appPath, network)

	cfg := config{
		Version: version,
		Node: node{
			Bootstrap: splitList(v.GetString("node.bootstrap")),
			Admins:    splitList(v.GetString("node.admins")),
			Signers:   splitList(v.GetString("node.signers")),
			Seed:      seed,
			HostV4:    host,
			Port:      port,
			Network:   network,
		},
		Database: database{
			Path:     filepath.Join(networkPath, strings.TrimSpace(dbDir)),
			Username: v.GetString("database.username"),
			Password: password,
		},
		IPFS: ipfs{
			RepoPath: filepath.Join(networkPath, strings.TrimSpace(v.GetString("ipfs.repo"))),
			InMemory: v.GetBool("ipfs.memory"),
		},
		Worker: worker{
			HousekeepingPeriod: v.GetUint64("worker.housekeeping.period"),
			MetadataPeriod:     v.GetUint64("worker.metadata.period"),
			RequestTimeout:     v.GetDuration("worker.request.timeout"),
			BlockTime:          v.GetDuration("worker.block.time"),
		},
		Session: session{
			Length:            v.GetUint64("session.length"),
			MinValidators:     v.GetInt("session.validators.min"),
			InitialValidators: splitList(v.GetString("session.validators.initial")),
		},
		Metrics: metrics{Server: v.GetString("metrics.server")},
		Logging: logging{
			Level:  strings.TrimSpace(v.GetString("logging.level")),
			Format: strings.TrimSpace(v.GetString("logging.format")),
		},
	}
	return cfg, cfg.validate()
}

type config struct {
	Version  *semver.Version
	Node     node
	Database database
	IPFS     ipfs
	Worker   worker
	Session  session
	Metrics  metrics
	Logging  logging
}

type node struct {
	Bootstrap []string
	Admins    []string
	Signers   []string
	HostV4    string
	Port      string
	Network   string
	Seed      string
}

type database struct {
	Path     string
	Username string
	Password string
}

type ipfs struct {
	RepoPath string
	InMemory bool
}

type worker struct {
	HousekeepingPeriod uint64
	MetadataPeriod     uint64
	RequestTimeout     time.Duration
	BlockTime          time.Duration
}

type session struct {
	Length            uint64
	MinValidators     int
	InitialValidators []string
}

type metrics struct {
	Server string
}

type logging struct {
	Level  string
	Format string
}

func (c config) validate() error {
	if c.Worker.HousekeepingPeriod == 0 || c.Worker.MetadataPeriod == 0 {
		return errors.New("config: worker periods must be positive")
	}
	if c.Worker.BlockTime <= 0 {
		return errors.New("config: block time must be positive")
	}
	if c.Session.Length == 0 {
		return errors.New("config: session length must be positive")
	}
	if c.Session.MinValidators < 0 {
		return errors.New("config: minimum validators must not be negative")
	}
	return nil
}

func (n node) IsTestnet() bool {
	return n.Network == testNetNetwork
}

func (n node) AddrInfos() (infos []irisnet.IrisAddrInfo, err error) {
	for _, addr := range n.Bootstrap {
		addrInfo, err := irisnet.AddrInfoFromString(addr)
		if err != nil {
			return nil, fmt.Errorf("config: bootstrap %s: %w", addr, err)
		}
		infos = append(infos, *addrInfo)
	}
	return infos, nil
}

func (n node) ListenAddr() string {
	return fmt.Sprintf("/ip4/%s/tcp/%s", n.HostV4, n.Port)
}

func splitList(s string) []string {
	var list []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		list = append(list, item)
	}
	return list
}

func getAppPath() (string, error) {
	var appPath string

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			return "", errors.New("config: failed to get path to LOCALAPPDATA")
		}
		appPath = filepath.Join(appData, "irisdata")
	case "darwin", "linux", "freebsd":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		appPath = filepath.Join(homeDir, appDirName)
	default:
		return "", fmt.Errorf("config: unsupported OS %s", runtime.GOOS)
	}

	if err := os.MkdirAll(appPath, 0750); err != nil {
		return "", err
	}
	return appPath, nil
}
