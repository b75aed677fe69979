package domain

import "errors"

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountUnavailable = errors.New("account temporarily unavailable")
	ErrNoUsableAccounts   = errors.New("no usable accounts")
	ErrAccountExists      = errors.New("account already exists")
	ErrSecretNotFound     = errors.New("secret not found")
)
