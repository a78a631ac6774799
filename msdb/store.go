// Package msdb implements the multisig wallet coordination store on top of
// badgerhold: an arena of wallet records keyed by id, with per-id locking
// around every mutation so concurrent joins can never overshoot a wallet's
// cosigner count.
package msdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/cosignhq/multisig-gateway/api"
	"github.com/cosignhq/multisig-gateway/credential"
	"github.com/cosignhq/multisig-gateway/interfaces"
	"github.com/cosignhq/multisig-gateway/keychain"
)

// walletData is the persisted form of a wallet record plus the balance the
// store tracks for it.
type walletData struct {
	ID        string
	M         int
	N         int
	Witness   bool
	JoinKey   []byte
	Cosigners []cosignerData

	ConfirmedSat   int64
	UnconfirmedSat int64
}

type cosignerData struct {
	Name      string
	Path      string
	XPub      string
	AuthToken []byte
}

// Store implements interfaces.WalletStore.
type Store struct {
	db  *badgerhold.Store
	net *chaincfg.Params
	log *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New opens the wallet store under dir. An empty dir opens an in-memory
// store, which tests rely on.
func New(dir string, net *chaincfg.Params, log *slog.Logger) (*Store, error) {
	db, err := createDB(dir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet store: %w", err)
	}
	return &Store{
		db:    db,
		net:   net,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

func createDB(dir string, log *slog.Logger) (*badgerhold.Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = badgerSlogAdapter{log}
	if dir == "" {
		opts.InMemory = true
	}
	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}

// idLock returns the mutex serializing mutations of one wallet id.
func (s *Store) idLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *Store) Get(ctx context.Context, id string) (*interfaces.WalletRecord, interfaces.Wallet, error) {
	var data walletData
	if err := s.db.Get(id, &data); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil, api.NotFound("wallet not found")
		}
		return nil, nil, err
	}
	return toRecord(&data), &walletHandle{store: s, id: id}, nil
}

func (s *Store) List(ctx context.Context) ([]*interfaces.WalletRecord, error) {
	var datas []walletData
	if err := s.db.Find(&datas, nil); err != nil {
		return nil, err
	}
	records := make([]*interfaces.WalletRecord, 0, len(datas))
	for i := range datas {
		records = append(records, toRecord(&datas[i]))
	}
	return records, nil
}

func (s *Store) Create(ctx context.Context, opts interfaces.CreateOptions) (*interfaces.WalletRecord, error) {
	if err := interfaces.ValidateWalletID(opts.ID); err != nil {
		return nil, api.Validation(err.Error())
	}
	if opts.M < 1 || opts.N < opts.M {
		return nil, api.Validation(fmt.Sprintf("invalid threshold %d-of-%d", opts.M, opts.N))
	}
	if _, err := keychain.ParseXPub(opts.Cosigner.XPub, s.net); err != nil {
		return nil, api.Validation(err.Error())
	}

	creator := cosignerData{
		Name:      opts.Cosigner.Name,
		Path:      opts.Cosigner.Path,
		XPub:      opts.Cosigner.XPub,
		AuthToken: credential.NewAuthToken(),
	}
	data := walletData{
		ID:        opts.ID,
		M:         opts.M,
		N:         opts.N,
		Witness:   opts.Witness,
		JoinKey:   credential.NewJoinKey(),
		Cosigners: []cosignerData{creator},
	}

	lock := s.idLock(opts.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.db.Insert(opts.ID, &data); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return nil, api.Validation(fmt.Sprintf("wallet %q already exists", opts.ID))
		}
		return nil, err
	}

	s.log.Info("Multisig wallet created", "wallet", opts.ID, "m", opts.M, "n", opts.N)
	return toRecord(&data), nil
}

func (s *Store) Join(ctx context.Context, id string, cosigner interfaces.Cosigner) (*interfaces.WalletRecord, error) {
	lock := s.idLock(id)
	lock.Lock()
	defer lock.Unlock()

	var data walletData
	if err := s.db.Get(id, &data); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, api.NotFound("wallet not found")
		}
		return nil, err
	}

	if len(data.Cosigners) >= data.N {
		return nil, api.PreconditionFailed(fmt.Sprintf("wallet %q already has %d cosigners", id, data.N))
	}
	for _, existing := range data.Cosigners {
		if existing.XPub == cosigner.XPub {
			return nil, api.Validation("cosigner xpub already joined")
		}
	}
	if _, err := keychain.ParseXPub(cosigner.XPub, s.net); err != nil {
		return nil, api.Validation(err.Error())
	}

	data.Cosigners = append(data.Cosigners, cosignerData{
		Name:      cosigner.Name,
		Path:      cosigner.Path,
		XPub:      cosigner.XPub,
		AuthToken: credential.NewAuthToken(),
	})

	if err := s.db.Update(id, &data); err != nil {
		return nil, err
	}

	s.log.Info("Cosigner joined wallet", "wallet", id,
		"cosigners", len(data.Cosigners), "complete", len(data.Cosigners) == data.N)
	return toRecord(&data), nil
}

func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	lock := s.idLock(id)
	lock.Lock()
	defer lock.Unlock()

	if err := s.db.Delete(id, &walletData{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return false, api.NotFound("wallet not found")
		}
		return false, err
	}

	s.log.Info("Multisig wallet removed", "wallet", id)
	return true, nil
}

// SetBalance records the wallet's tracked balance. Balance accounting itself
// happens outside the gateway; this is the ingestion point for it.
func (s *Store) SetBalance(ctx context.Context, id string, balance interfaces.Balance) error {
	lock := s.idLock(id)
	lock.Lock()
	defer lock.Unlock()

	var data walletData
	if err := s.db.Get(id, &data); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return api.NotFound("wallet not found")
		}
		return err
	}
	data.ConfirmedSat = balance.Confirmed
	data.UnconfirmedSat = balance.Unconfirmed
	return s.db.Update(id, &data)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// walletHandle is the underlying wallet view handed to the HTTP layer.
type walletHandle struct {
	store *Store
	id    string
}

func (w *walletHandle) Balance(ctx context.Context) (interfaces.Balance, error) {
	var data walletData
	if err := w.store.db.Get(w.id, &data); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return interfaces.Balance{}, api.NotFound("wallet not found")
		}
		return interfaces.Balance{}, err
	}
	return interfaces.Balance{Confirmed: data.ConfirmedSat, Unconfirmed: data.UnconfirmedSat}, nil
}

// ReceiveAddress derives the wallet's joint receive address at index 0. The
// address exists only once every cosigner has joined.
func (w *walletHandle) ReceiveAddress(ctx context.Context) (string, error) {
	var data walletData
	if err := w.store.db.Get(w.id, &data); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return "", api.NotFound("wallet not found")
		}
		return "", err
	}
	if len(data.Cosigners) != data.N {
		return "", nil
	}

	keys := make([]*hdkeychain.ExtendedKey, 0, len(data.Cosigners))
	for _, cosigner := range data.Cosigners {
		key, err := keychain.ParseXPub(cosigner.XPub, w.store.net)
		if err != nil {
			return "", err
		}
		keys = append(keys, key)
	}
	addr, err := keychain.MultisigAddress(data.M, keys, 0, data.Witness, w.store.net)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

func toRecord(data *walletData) *interfaces.WalletRecord {
	cosigners := make([]interfaces.Cosigner, 0, len(data.Cosigners))
	for _, cosigner := range data.Cosigners {
		cosigners = append(cosigners, interfaces.Cosigner{
			Name:      cosigner.Name,
			Path:      cosigner.Path,
			XPub:      cosigner.XPub,
			AuthToken: cosigner.AuthToken,
		})
	}
	return &interfaces.WalletRecord{
		ID:        data.ID,
		M:         data.M,
		N:         data.N,
		Witness:   data.Witness,
		JoinKey:   data.JoinKey,
		Cosigners: cosigners,
	}
}

// badgerSlogAdapter bridges badger's logger interface onto slog.
type badgerSlogAdapter struct {
	log *slog.Logger
}

func (a badgerSlogAdapter) Errorf(format string, args ...interface{}) {
	a.log.Error(fmt.Sprintf(format, args...))
}

func (a badgerSlogAdapter) Warningf(format string, args ...interface{}) {
	a.log.Warn(fmt.Sprintf(format, args...))
}

func (a badgerSlogAdapter) Infof(format string, args ...interface{}) {
	a.log.Debug(fmt.Sprintf(format, args...))
}

func (a badgerSlogAdapter) Debugf(format string, args ...interface{}) {
	a.log.Debug(fmt.Sprintf(format, args...))
}
