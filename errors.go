package tabauth

import "errors"

var (
	// ErrTokenMissing reports a login attempt without a token.
	ErrTokenMissing = errors.New("token missing")
	// ErrTokenClaimsMissing reports a token lacking the uid or rid claim.
	ErrTokenClaimsMissing = errors.New("token missing uid or rid claim")
	// ErrSessionExpired reports a stored record whose exp lies in the past.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionTampered reports a stored record whose token claims disagree with the record.
	ErrSessionTampered = errors.New("session record does not match its token")
	// ErrAccountNotFound reports a switch target no other tab has published.
	ErrAccountNotFound = errors.New("account not found in active accounts")
	// ErrStoreClosed reports use of a Store after Close.
	ErrStoreClosed = errors.New("store closed")
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid config")
)
