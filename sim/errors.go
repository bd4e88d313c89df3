package sim

import (
	"errors"

	"github.com/rustyeddy/compound/market"
)

var (
	ErrNoQuote            = market.ErrNoQuote
	ErrUnknownInstrument  = market.ErrUnknownInstrument
	ErrInsufficientMargin = errors.New("insufficient margin")
	ErrPositionNotFound   = errors.New("position not found")
	ErrInvalidLots        = errors.New("lots must be positive")
	ErrInvalidLeverage    = errors.New("unsupported leverage")
	ErrInvalidSide        = errors.New("side must be Long or Short")
)
