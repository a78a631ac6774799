package msdb

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cosignhq/multisig-gateway/interfaces"
)

// MockStore mocks the interfaces.WalletStore interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, id string) (*interfaces.WalletRecord, interfaces.Wallet, error) {
	args := m.Called(ctx, id)
	record, _ := args.Get(0).(*interfaces.WalletRecord)
	wallet, _ := args.Get(1).(interfaces.Wallet)
	return record, wallet, args.Error(2)
}

func (m *MockStore) List(ctx context.Context) ([]*interfaces.WalletRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]*interfaces.WalletRecord)
	return records, args.Error(1)
}

func (m *MockStore) Create(ctx context.Context, opts interfaces.CreateOptions) (*interfaces.WalletRecord, error) {
	args := m.Called(ctx, opts)
	record, _ := args.Get(0).(*interfaces.WalletRecord)
	return record, args.Error(1)
}

func (m *MockStore) Join(ctx context.Context, id string, cosigner interfaces.Cosigner) (*interfaces.WalletRecord, error) {
	args := m.Called(ctx, id, cosigner)
	record, _ := args.Get(0).(*interfaces.WalletRecord)
	return record, args.Error(1)
}

func (m *MockStore) Remove(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockWallet mocks the interfaces.Wallet handle.
type MockWallet struct {
	mock.Mock
}

func (m *MockWallet) Balance(ctx context.Context) (interfaces.Balance, error) {
	args := m.Called(ctx)
	balance, _ := args.Get(0).(interfaces.Balance)
	return balance, args.Error(1)
}

func (m *MockWallet) ReceiveAddress(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
