package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangwenmai/savanna/internal/model"
	"github.com/yangwenmai/savanna/internal/transport"
)

const testAddress = "K5BulgZMCI0YDANG5YXlOpl0lGjY3gpwCL08EwTdAKc"

// flakyExtension fails address lookups a fixed number of times.
type flakyExtension struct {
	*DevExtension
	mu       sync.Mutex
	failures int
	calls    int
	addr     string
}

func (e *flakyExtension) ActiveAddress(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.calls <= e.failures {
		return "", errors.New("extension busy")
	}
	if e.addr != "" {
		return e.addr, nil
	}
	return e.DevExtension.ActiveAddress(ctx)
}

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress(testAddress))
	assert.True(t, ValidAddress(RandomAddress()))
	assert.False(t, ValidAddress(""))
	assert.False(t, ValidAddress(testAddress+"x"))
	assert.False(t, ValidAddress("has spaces in it has spaces in it has space"))
}

func TestManager_ConnectGrantsAll(t *testing.T) {
	m := NewManager(NewDevExtension(testAddress))

	s, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testAddress, s.Address)
	assert.True(t, s.CanDispatch())
	assert.Equal(t, testAddress, s.Signer.Address())

	cur, err := m.Current()
	require.NoError(t, err)
	assert.Same(t, s, cur)
}

func TestManager_ConnectFallsBackToRequired(t *testing.T) {
	m := NewManager(NewDevExtension(testAddress, PermDispatch))

	s, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RequiredPermissions, s.Permissions)
	assert.False(t, s.CanDispatch())
}

func TestManager_ConnectPermissionDenied(t *testing.T) {
	m := NewManager(NewDevExtension(testAddress, PermSignTransaction))

	_, err := m.Connect(context.Background())
	assert.ErrorIs(t, err, model.ErrPermissionDenied)

	_, err = m.Current()
	assert.ErrorIs(t, err, model.ErrWalletNotConnected)
}

func TestManager_ConnectNoExtension(t *testing.T) {
	_, err := NewManager(nil).Connect(context.Background())
	assert.ErrorIs(t, err, model.ErrWalletUnavailable)
}

func TestManager_AddressRetries(t *testing.T) {
	ext := &flakyExtension{DevExtension: NewDevExtension(testAddress), failures: 2}
	m := NewManager(ext, WithRetryInterval(time.Millisecond))

	s, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testAddress, s.Address)
	assert.Equal(t, 3, ext.calls)
}

func TestManager_AddressRetriesExhausted(t *testing.T) {
	ext := &flakyExtension{DevExtension: NewDevExtension(testAddress), failures: 3}
	m := NewManager(ext, WithRetryInterval(time.Millisecond))

	_, err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 attempts")
	assert.Equal(t, 3, ext.calls)
}

func TestManager_InvalidAddressRejected(t *testing.T) {
	ext := &flakyExtension{DevExtension: NewDevExtension(testAddress), addr: "short"}
	m := NewManager(ext, WithRetryInterval(time.Millisecond))

	_, err := m.Connect(context.Background())
	assert.ErrorIs(t, err, model.ErrInvalidAddress)
}

func TestManager_Disconnect(t *testing.T) {
	m := NewManager(NewDevExtension(testAddress))
	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Disconnect(context.Background()))
	_, err = m.Current()
	assert.ErrorIs(t, err, model.ErrWalletNotConnected)
}

func TestManager_Restore(t *testing.T) {
	ext := NewDevExtension(testAddress)
	require.NoError(t, ext.Connect(context.Background(), RequiredPermissions))
	m := NewManager(ext, WithRetryInterval(time.Millisecond))

	s, err := m.Restore(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, testAddress, s.Address)

	_, err = m.Restore(context.Background(), RandomAddress())
	require.ErrorIs(t, err, model.ErrSessionMismatch)
	_, err = m.Current()
	assert.ErrorIs(t, err, model.ErrWalletNotConnected, "mismatched restore clears the session")

	_, err = m.Restore(context.Background(), "bogus")
	assert.ErrorIs(t, err, model.ErrInvalidAddress)
}

func TestDevSigner_Sign(t *testing.T) {
	s := &DevSigner{address: testAddress}
	item := transport.DataItem{Target: "p", Anchor: "a", Data: "d"}

	a, err := s.Sign(context.Background(), item)
	require.NoError(t, err)
	b, err := s.Sign(context.Background(), item)
	require.NoError(t, err)

	assert.Len(t, a.ID, 43)
	assert.Equal(t, a.ID, b.ID, "same item signs to the same ID")
	assert.Contains(t, string(a.Raw), testAddress)

	_, ok := any(s).(transport.Dispatcher)
	assert.False(t, ok, "dev signer cannot dispatch")
}
