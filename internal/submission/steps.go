package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yangwenmai/savanna/internal/model"
	"github.com/yangwenmai/savanna/internal/transport"
	"github.com/yangwenmai/savanna/internal/wallet"
)

// SessionSource yields the connected wallet session.
type SessionSource interface {
	Current() (*wallet.Session, error)
}

// MetadataResolver describes an asset. It never fails; unknown assets get defaults.
type MetadataResolver interface {
	Resolve(ctx context.Context, assetID string) model.AssetMetadata
}

// Sender delivers a message to the process.
type Sender interface {
	Send(ctx context.Context, msg transport.Message, signer transport.Signer) (string, error)
}

// SessionStep requires a connected wallet.
type SessionStep struct {
	Wallet SessionSource
}

func (s *SessionStep) Name() string { return "wallet" }

func (s *SessionStep) Run(_ context.Context, sc *StepContext) error {
	sess, err := s.Wallet.Current()
	if err != nil {
		return model.ErrWalletNotConnected
	}
	sc.Session = sess
	return nil
}

// ValidateStep checks the asset link and the chosen virtue.
type ValidateStep struct{}

func (s *ValidateStep) Name() string { return "validate" }

func (s *ValidateStep) Run(_ context.Context, sc *StepContext) error {
	id, err := model.ValidateAssetURL(sc.AssetURL)
	if err != nil {
		return err
	}
	sc.Virtue = strings.TrimSpace(sc.Virtue)
	if sc.Virtue == "" {
		return &model.ValidationError{Err: model.ErrMissingVirtue, Reason: "Please choose a virtue"}
	}
	sc.AssetURL = strings.TrimSpace(sc.AssetURL)
	sc.AssetID = id
	return nil
}

// MetadataStep looks the asset up on the indexer.
type MetadataStep struct {
	Resolver MetadataResolver
}

func (s *MetadataStep) Name() string { return "metadata" }

func (s *MetadataStep) Run(ctx context.Context, sc *StepContext) error {
	sc.Metadata = s.Resolver.Resolve(ctx, sc.AssetID)
	return nil
}

// BuildStep assembles the wire record and the gallery record.
type BuildStep struct{}

func (s *BuildStep) Name() string { return "build" }

func (s *BuildStep) Run(_ context.Context, sc *StepContext) error {
	sc.Wire, sc.Record = model.NewSubmission(sc.AssetID, sc.AssetURL, sc.Virtue, sc.Session.Address, sc.Metadata, sc.Now)
	return nil
}

// SendStep posts the submit message. A dispatched send is tried first when
// the wallet allows it, then a plain signed send.
type SendStep struct {
	Sender    Sender
	ProcessID string
}

func (s *SendStep) Name() string { return "send" }

func (s *SendStep) Run(ctx context.Context, sc *StepContext) error {
	data, err := json.Marshal(sc.Wire)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	msg := transport.Message{
		Target: s.ProcessID,
		Tags:   []model.Tag{{Name: model.TagAction, Value: model.ActionSubmit}},
		Data:   string(data),
	}

	var token string
	if sc.Session.CanDispatch() {
		msg.Dispatch = true
		token, err = s.Sender.Send(ctx, msg, sc.Session.Signer)
		if err != nil {
			slog.Warn("dispatch failed, retrying without dispatch", "asset_id", sc.AssetID, "error", err)
		}
	}
	if token == "" {
		msg.Dispatch = false
		token, err = s.Sender.Send(ctx, msg, sc.Session.Signer)
		if err != nil {
			return err
		}
	}
	if token == "" {
		return errors.New("process returned no message id")
	}

	sc.Token = token
	sc.Record.CorrelationToken = token
	return nil
}
