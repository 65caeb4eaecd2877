// Command validatord runs one validator's threshold-signing daemon:
// watcher (C1) -> machine (C5) -> submitter (C6), backed by a leveldb
// MachineStore/OutboxStore and a separate badger CursorStore (spec.md
// §9's "watcher exclusively owns its follow cursor" split).
package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/shieldnet/validator/chain"
	"github.com/shieldnet/validator/machine"
	"github.com/shieldnet/validator/params"
	"github.com/shieldnet/validator/protocol"
	"github.com/shieldnet/validator/storage"
	"github.com/shieldnet/validator/storage/badgerdb"
	"github.com/shieldnet/validator/storage/leveldb"
	"github.com/shieldnet/validator/submitter"
	"github.com/shieldnet/validator/verify"
	"github.com/shieldnet/validator/watcher"
)

var (
	configFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "path to a TOML configuration file (params.Config)",
		Required: true,
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "directory holding the leveldb (machine/outbox) and badger (cursor) databases",
		Value: "./validatord-data",
	}
	rpcURLFlag = &cli.StringFlag{
		Name:     "rpc-url",
		Usage:    "JSON-RPC endpoint of the chain this validator follows and submits to",
		Required: true,
	}
	privateKeyFileFlag = &cli.StringFlag{
		Name:     "private-key-file",
		Usage:    "file containing this validator's submission-identity private key, hex-encoded",
		Required: true,
	}
)

func main() {
	app := &cli.App{
		Name:  "validatord",
		Usage: "threshold-signing validator daemon",
		Flags: []cli.Flag{configFlag, dataDirFlag, rpcURLFlag, privateKeyFileFlag},
		Action: func(c *cli.Context) error {
			return mainAction(c)
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.Error("validatord exiting", "error", fmt.Sprintf("%+v", err))
		os.Exit(1)
	}
}

func mainAction(c *cli.Context) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := params.Load(c.String(configFlag.Name))
	if err != nil {
		return err
	}

	key, err := loadPrivateKey(c.String(privateKeyFileFlag.Name))
	if err != nil {
		return err
	}

	client, err := chain.Dial(ctx, c.String(rpcURLFlag.Name))
	if err != nil {
		return err
	}
	defer client.Close()

	chainId, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("validatord: fetch chain id: %w", err)
	}

	db, err := openStore(c.String(dataDirFlag.Name))
	if err != nil {
		return err
	}
	defer db.Close()

	curve := unimplementedCurve{}
	verifyEngine := verify.New(curve, cfg.Machine.ConsensusAddress, cfg.Machine.CoordinatorAddress, cfg.Machine.AllowedSelectors)
	m := machine.New(cfg.Machine, curve, verifyEngine)

	signer := submitter.NewPrivateKeySigner(key, chainId)
	addresses := submitter.Addresses{
		Coordinator: common.Address(cfg.Machine.CoordinatorAddress),
		Consensus:   common.Address(cfg.Machine.ConsensusAddress),
	}
	fees := chain.NewFeeEstimator(client)
	encoder := &chain.ABIActionEncoder{}
	sub := submitter.New(cfg.Submitter, client, db, encoder, signer, addresses, chainId, fees)

	decoder := &chain.ABIDecoder{}
	watched := []common.Address{addresses.Coordinator, addresses.Consensus}
	w, err := watcher.New(cfg.Watcher, client, decoder, db, watched)
	if err != nil {
		return fmt.Errorf("validatord: build watcher: %w", err)
	}

	logger.Info("validatord starting",
		"dataDir", c.String(dataDirFlag.Name),
		"rpcURL", c.String(rpcURLFlag.Name),
		"signer", signer.Address(),
		"chainId", chainId)

	d := &daemon{store: db, machine: m, submitter: sub}
	if err := run(ctx, w, d); err != nil {
		// errors.WithStack captures a trace at the one boundary the process
		// actually exits from, so the fatal log line (kind 8, spec.md §7)
		// carries a usable trace even though watcher/machine/submitter wrap
		// their own errors with plain fmt.Errorf.
		return errors.WithStack(err)
	}
	return nil
}

// store composes the two physically separate backends this daemon
// always runs with into one storage.Store: storage/leveldb for
// everything the machine/submitter touch, storage/badgerdb for nothing
// but the watcher's own cursor.
type store struct {
	*leveldb.Store
	cursor *badgerdb.Store
}

var _ storage.Store = (*store)(nil)

func openStore(dataDir string) (*store, error) {
	lvl, err := leveldb.Open(filepath.Join(dataDir, "machine"))
	if err != nil {
		return nil, fmt.Errorf("validatord: open leveldb store: %w", err)
	}
	cur, err := badgerdb.Open(filepath.Join(dataDir, "cursor"))
	if err != nil {
		lvl.Close()
		return nil, fmt.Errorf("validatord: open badger cursor store: %w", err)
	}
	return &store{Store: lvl, cursor: cur}, nil
}

func (s *store) GetCursor(ctx context.Context) (protocol.Cursor, bool, error) {
	return s.cursor.GetCursor(ctx)
}

func (s *store) PutCursor(ctx context.Context, c protocol.Cursor) error {
	return s.cursor.PutCursor(ctx, c)
}

func (s *store) Close() error {
	cursorErr := s.cursor.Close()
	storeErr := s.Store.Close()
	if storeErr != nil {
		return storeErr
	}
	return cursorErr
}

func loadPrivateKey(path string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("validatord: read private key file %s: %w", path, err)
	}
	trimmed := strings.TrimSpace(string(raw))
	trimmed = strings.TrimPrefix(trimmed, "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("validatord: decode private key file %s: %w", path, err)
	}
	key, err := crypto.ToECDSA(decoded)
	if err != nil {
		return nil, fmt.Errorf("validatord: parse private key: %w", err)
	}
	return key, nil
}
