package wallet

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"slices"
	"sync"

	"github.com/yangwenmai/savanna/internal/model"
	"github.com/yangwenmai/savanna/internal/transport"
)

// DevExtension is a local wallet for development and tests. It grants every
// permission unless configured otherwise.
type DevExtension struct {
	mu        sync.Mutex
	address   string
	refuse    []Permission
	connected bool
	signer    *DevSigner
}

// NewDevExtension creates a dev wallet. An empty address gets a random one.
func NewDevExtension(address string, refuse ...Permission) *DevExtension {
	if address == "" {
		address = RandomAddress()
	}
	return &DevExtension{
		address: address,
		refuse:  refuse,
		signer:  &DevSigner{address: address},
	}
}

// Connect grants perms unless one of them is refused.
func (e *DevExtension) Connect(_ context.Context, perms []Permission) error {
	for _, p := range perms {
		if slices.Contains(e.refuse, p) {
			return model.ErrPermissionDenied
		}
	}
	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()
	return nil
}

// ActiveAddress returns the dev address once connected.
func (e *DevExtension) ActiveAddress(_ context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return "", model.ErrWalletNotConnected
	}
	return e.address, nil
}

// Disconnect forgets the granted permissions.
func (e *DevExtension) Disconnect(_ context.Context) error {
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
	return nil
}

// Signer returns the dev signer.
func (e *DevExtension) Signer() transport.Signer { return e.signer }

// DevSigner derives item IDs from a content hash. Its signatures are not
// valid on the public network.
type DevSigner struct {
	address string
}

// Address returns the owning wallet address.
func (s *DevSigner) Address() string { return s.address }

// Sign serializes the item and derives its ID.
func (s *DevSigner) Sign(_ context.Context, item transport.DataItem) (transport.SignedItem, error) {
	raw, err := json.Marshal(struct {
		Owner string `json:"owner"`
		transport.DataItem
	}{Owner: s.address, DataItem: item})
	if err != nil {
		return transport.SignedItem{}, err
	}
	return transport.SignedItem{ID: transport.ItemID(raw), Raw: raw}, nil
}

// RandomAddress returns a random, well-formed wallet address.
func RandomAddress() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
