package model

import (
	"encoding/json"
	"errors"
)

var (
	ErrWalletNotConnected  = errors.New("Please connect your wallet first!")
	ErrWalletUnavailable   = errors.New("no wallet extension detected")
	ErrPermissionDenied    = errors.New("wallet permission denied")
	ErrInvalidAddress      = errors.New("invalid wallet address format")
	ErrConnectInProgress   = errors.New("wallet connection already in progress")
	ErrSessionMismatch     = errors.New("wallet session invalid, please reconnect")
	ErrInvalidAssetURL     = errors.New("invalid asset URL")
	ErrMissingVirtue       = errors.New("please choose a virtue")
	ErrInvalidToken        = errors.New("correlation token is required")
	ErrMissingAssetID      = errors.New("submission record has no asset ID")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrAlreadyTerminal     = errors.New("submission already reached a terminal state")
	ErrStateUnavailable    = errors.New("process state endpoint not available")
	ErrGalleryUnavailable  = errors.New("could not reach the remote process")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// ValidationError carries a user-facing reason for a rejected input.
type ValidationError struct {
	Err    error
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Unwrap() error { return e.Err }

// ErrorInfo holds structured failure information for a submission attempt.
type ErrorInfo struct {
	FailedStep string `json:"failed_step"`
	Message    string `json:"message"`
	FailedAt   string `json:"failed_at"`
}

// ToJSON serializes ErrorInfo to a JSON string.
func (e ErrorInfo) ToJSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}
