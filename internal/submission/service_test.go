package submission

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangwenmai/savanna/internal/indexer"
	"github.com/yangwenmai/savanna/internal/model"
	"github.com/yangwenmai/savanna/internal/store"
	"github.com/yangwenmai/savanna/internal/transport"
	"github.com/yangwenmai/savanna/internal/wallet"
)

const (
	testWallet  = "K5BulgZMCI0YDANG5YXlOpl0lGjY3gpwCL08EwTdAKc"
	testAssetID = "AbCdEfGhIjKlMnOpQrStUvWxYz0123456789_-ABCDE"
	testProcess = "proc-id"
)

var testAssetURL = "https://bazar.arweave.net/#/asset/" + testAssetID

type fixedResolver struct {
	meta model.AssetMetadata
}

func (r fixedResolver) Resolve(_ context.Context, assetID string) model.AssetMetadata {
	m := r.meta
	m.ID = assetID
	return m
}

// countingSender records each send and fails dispatched ones when asked.
type countingSender struct {
	inner        Sender
	failDispatch bool
	sends        []transport.Message
}

func (s *countingSender) Send(ctx context.Context, msg transport.Message, signer transport.Signer) (string, error) {
	s.sends = append(s.sends, msg)
	if msg.Dispatch && s.failDispatch {
		return "", errors.New("dispatch refused")
	}
	return s.inner.Send(ctx, msg, signer)
}

func connectedWallet(t *testing.T, refuse ...wallet.Permission) *wallet.Manager {
	t.Helper()
	m := wallet.NewManager(wallet.NewDevExtension(testWallet, refuse...))
	_, err := m.Connect(context.Background())
	require.NoError(t, err)
	return m
}

func TestService_Submit(t *testing.T) {
	proc := transport.NewMemoryProcess(testProcess)
	sender := &countingSender{inner: proc}
	tracker := store.NewTracker()
	meta := fixedResolver{meta: model.AssetMetadata{Title: "Lioness", Creator: "Anonymous", ContentType: "image/png"}}

	svc := NewService(connectedWallet(t, wallet.PermDispatch), meta, sender, testProcess, tracker)
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }

	rec, err := svc.Submit(context.Background(), "  "+testAssetURL+" ", "Courage")
	require.NoError(t, err)

	assert.Equal(t, testAssetID, rec.AssetID)
	assert.Equal(t, "Courage", rec.Virtue)
	assert.Equal(t, "Lioness", rec.Title)
	assert.Equal(t, testWallet, rec.Creator, "anonymous creator falls back to the wallet")
	assert.Equal(t, model.StatusPending, rec.Status)
	assert.NotEmpty(t, rec.CorrelationToken)

	require.Len(t, sender.sends, 1, "no dispatch without the permission")
	assert.False(t, sender.sends[0].Dispatch)

	var wire model.WireSubmission
	require.NoError(t, json.Unmarshal([]byte(sender.sends[0].Data), &wire))
	assert.Equal(t, testAssetID, wire.AssetID)
	assert.Equal(t, int64(1700000000), wire.Timestamp)
	assert.Equal(t, "image/png", wire.ContentType)

	entry, err := tracker.Get(rec.CorrelationToken)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, entry.Status)

	require.Len(t, proc.Submissions(), 1)
}

func TestService_DispatchFallsBackToSignedSend(t *testing.T) {
	proc := transport.NewMemoryProcess(testProcess)
	sender := &countingSender{inner: proc, failDispatch: true}

	svc := NewService(connectedWallet(t), indexer.NewResolver(indexer.StubIndexer{}), sender, testProcess, store.NewTracker())
	rec, err := svc.Submit(context.Background(), testAssetURL, "Wisdom")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.CorrelationToken)

	require.Len(t, sender.sends, 2)
	assert.True(t, sender.sends[0].Dispatch)
	assert.False(t, sender.sends[1].Dispatch)
}

func TestService_DevSignerCannotDispatch(t *testing.T) {
	proc := transport.NewMemoryProcess(testProcess)
	sender := &countingSender{inner: proc}

	svc := NewService(connectedWallet(t), indexer.NewResolver(indexer.StubIndexer{}), sender, testProcess, store.NewTracker())
	_, err := svc.Submit(context.Background(), testAssetURL, "Wisdom")
	require.NoError(t, err)
	require.Len(t, sender.sends, 2, "unsupported dispatch is retried as a signed send")
}

func TestService_Errors(t *testing.T) {
	proc := transport.NewMemoryProcess(testProcess)
	resolver := indexer.NewResolver(indexer.StubIndexer{})

	tests := []struct {
		name     string
		wallet   SessionSource
		url      string
		virtue   string
		step     string
		sentinel error
	}{
		{"no wallet", wallet.NewManager(nil), testAssetURL, "Courage", "wallet", model.ErrWalletNotConnected},
		{"empty url", connectedWallet(t), "", "Courage", "validate", model.ErrInvalidAssetURL},
		{"not bazar", connectedWallet(t), "https://example.com/asset/" + testAssetID, "Courage", "validate", model.ErrInvalidAssetURL},
		{"no virtue", connectedWallet(t), testAssetURL, " ", "validate", model.ErrMissingVirtue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := store.NewTracker()
			svc := NewService(tt.wallet, resolver, proc, testProcess, tracker)

			_, err := svc.Submit(context.Background(), tt.url, tt.virtue)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var se *StepError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.step, se.StepName())
			assert.Zero(t, tracker.Pending())
		})
	}
	assert.Empty(t, proc.Submissions())
}

func TestService_WalletMessage(t *testing.T) {
	svc := NewService(wallet.NewManager(nil), indexer.NewResolver(), transport.NewMemoryProcess(testProcess), testProcess, store.NewTracker())
	_, err := svc.Submit(context.Background(), testAssetURL, "Courage")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please connect your wallet first!")
}

func TestService_SendFailure(t *testing.T) {
	proc := transport.NewMemoryProcess(testProcess, transport.WithSendError(errors.New("mu unreachable")))
	tracker := store.NewTracker()
	svc := NewService(connectedWallet(t, wallet.PermDispatch), indexer.NewResolver(indexer.StubIndexer{}), proc, testProcess, tracker)

	_, err := svc.Submit(context.Background(), testAssetURL, "Courage")
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "send", se.StepName())
	assert.Zero(t, tracker.Pending())
}
