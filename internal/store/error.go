package store

import "errors"

var (
	ErrStoreNotFound   = errors.New("store not found")
	ErrFailedGetStore  = errors.New("failed to get store")
	ErrFailedGetStock  = errors.New("failed to search stock")
	ErrInvalidStoreRef = errors.New("invalid store reference")
)
