package model

import "errors"

var (
	// ErrConfig marks a missing or invalid setting found at startup.
	ErrConfig = errors.New("configuration error")
	// ErrCoordinationLoss means another instance won or a hard stop was requested.
	ErrCoordinationLoss = errors.New("coordination lost")
	// ErrRetriesExhausted ends a buy cycle whose retry budget ran out.
	ErrRetriesExhausted = errors.New("buy retries exhausted")
	// ErrSellFailed ends the run when the sell retry budget ran out.
	ErrSellFailed = errors.New("sell retries exhausted")
)
