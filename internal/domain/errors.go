package domain

import "errors"

// common errors
var (
	ErrNotFound            = errors.New("link not found")
	ErrLinkExpired         = errors.New("link has expired")
	ErrLinkInactive        = errors.New("link is inactive")
	ErrInvalidURL          = errors.New("invalid url format")
	ErrAliasTaken          = errors.New("alias already taken")
	ErrInvalidAlias        = errors.New("invalid alias format")
	ErrAllocationExhausted = errors.New("short code allocation exhausted")
	ErrForbidden           = errors.New("link is owned by another user")
	ErrQuotaExceeded       = errors.New("plan quota exceeded")
)
