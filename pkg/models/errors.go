package models

import "errors"

var (
	ErrSourceUnavailable  = errors.New("source unavailable")
	ErrExtractionFailed   = errors.New("gpu extraction failed")
	ErrNoMarketCandidates = errors.New("no market candidates")
	ErrMatchingFailed     = errors.New("market matching failed")
)
