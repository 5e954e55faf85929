package session

import "errors"

var (
	// ErrQuickLoginFailed means artifacts were restored but the page did
	// not come up logged in. Prior artifacts are left untouched.
	ErrQuickLoginFailed = errors.New("quick login failed")
	// ErrSessionNotFound means no live or suspended session matches the
	// given id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSecondFactorTimeout means a suspended session waited too long
	// for its code and was torn down.
	ErrSecondFactorTimeout = errors.New("second factor wait timed out")
	// ErrLoginFailed means the outcome classification found neither a
	// logged-in state nor a second-factor prompt after the retry ladder.
	ErrLoginFailed = errors.New("login failed")
)
