package wallet

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/everFinance/goar"
	"github.com/everFinance/goar/types"

	"github.com/yangwenmai/savanna/internal/model"
	"github.com/yangwenmai/savanna/internal/transport"
)

// KeyfileExtension is a server-held wallet loaded from a JWK keyfile. It signs
// ANS-104 data items locally and cannot dispatch, so sessions on it never
// carry the DISPATCH permission.
type KeyfileExtension struct {
	mu        sync.Mutex
	connected bool
	signer    *KeySigner
}

// LoadKeyfile reads the JWK keyfile at path.
func LoadKeyfile(path string) (*KeyfileExtension, error) {
	s, err := goar.NewSignerFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("load wallet keyfile %s: %w", path, err)
	}
	return NewKeyfileExtension(s)
}

// NewKeyfileExtension wraps an already loaded signer.
func NewKeyfileExtension(s *goar.Signer) (*KeyfileExtension, error) {
	ks, err := NewKeySigner(s)
	if err != nil {
		return nil, err
	}
	return &KeyfileExtension{signer: ks}, nil
}

// Connect grants the requested permissions except DISPATCH.
func (e *KeyfileExtension) Connect(_ context.Context, perms []Permission) error {
	if slices.Contains(perms, PermDispatch) {
		return model.ErrPermissionDenied
	}
	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()
	return nil
}

// ActiveAddress returns the keyfile's address once connected.
func (e *KeyfileExtension) ActiveAddress(_ context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return "", model.ErrWalletNotConnected
	}
	return e.signer.Address(), nil
}

// Disconnect forgets the granted permissions.
func (e *KeyfileExtension) Disconnect(_ context.Context) error {
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
	return nil
}

// Signer returns the keyfile signer.
func (e *KeyfileExtension) Signer() transport.Signer { return e.signer }

// KeySigner signs messages as ANS-104 bundle items with an RSA key.
type KeySigner struct {
	address string
	items   *goar.ItemSigner
}

// NewKeySigner creates a bundle item signer for s.
func NewKeySigner(s *goar.Signer) (*KeySigner, error) {
	items, err := goar.NewItemSigner(s)
	if err != nil {
		return nil, fmt.Errorf("item signer: %w", err)
	}
	return &KeySigner{address: s.Address, items: items}, nil
}

// Address returns the owning wallet address.
func (s *KeySigner) Address() string { return s.address }

// Sign builds and signs the binary data item the messenger unit accepts.
func (s *KeySigner) Sign(_ context.Context, item transport.DataItem) (transport.SignedItem, error) {
	tags := make([]types.Tag, 0, len(item.Tags))
	for _, t := range item.Tags {
		tags = append(tags, types.Tag{Name: t.Name, Value: t.Value})
	}
	bi, err := s.items.CreateAndSignItem([]byte(item.Data), item.Target, item.Anchor, tags)
	if err != nil {
		return transport.SignedItem{}, fmt.Errorf("sign data item: %w", err)
	}
	return transport.SignedItem{ID: bi.Id, Raw: bi.ItemBinary}, nil
}
