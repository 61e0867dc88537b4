package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrInsufficientDepth = errors.New("insufficient depth to fill target volume")
	ErrInvalidLevel      = errors.New("invalid orderbook level")
	ErrIncompleteBasket  = errors.New("basket is missing tracked outcomes")
	ErrWSDisconnect      = errors.New("websocket disconnected")
)
