package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// ErrReceiptFailed marks a transaction that was mined but reverted.
var ErrReceiptFailed = errors.New("transaction reverted on chain")

// SubmissionClass groups send failures.
type SubmissionClass string

const (
	// SubmissionReverted means the node simulated the call and it reverted.
	SubmissionReverted SubmissionClass = "reverted"
	// SubmissionRejected means the node refused the transaction, e.g. nonce
	// or fee problems.
	SubmissionRejected SubmissionClass = "rejected"
	// SubmissionNetwork means the request never got an answer.
	SubmissionNetwork SubmissionClass = "network"
)

// SubmissionError is a failed send with its class.
type SubmissionError struct {
	Class SubmissionClass
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission %s: %v", e.Class, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Classify wraps a send error in a SubmissionError.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return err
	}
	return &SubmissionError{Class: classOf(err), Err: err}
}

func classOf(err error) SubmissionClass {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return SubmissionNetwork
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "revert") {
		return SubmissionReverted
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return SubmissionRejected
	}
	for _, hint := range []string{"nonce", "underpriced", "insufficient funds", "fee cap", "gas limit", "already known", "replacement"} {
		if strings.Contains(msg, hint) {
			return SubmissionRejected
		}
	}
	return SubmissionNetwork
}
