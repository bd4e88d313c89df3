// market/instruments.go
package market

import (
	"errors"
	"math"
	"sort"
)

// StandardLot is the contract size of one lot for currency pairs and metals.
const StandardLot = 100_000.0

var ErrUnknownInstrument = errors.New("unknown instrument")

type InstrumentMeta struct {
	Name       string  // "EUR/USD"
	Symbol     string  // display symbol for chart widgets
	BasePrice  float64 // feed starting mid price
	PipSize    float64
	SpreadPips float64
	Crypto     bool // quoted against a crypto base asset
}

// ContractSize returns the units per lot: 1 for crypto pairs, StandardLot otherwise.
func (m InstrumentMeta) ContractSize() float64 {
	if m.Crypto {
		return 1
	}
	return StandardLot
}

// Spread returns the ask-bid gap in price terms.
func (m InstrumentMeta) Spread() float64 {
	return m.SpreadPips * m.PipSize
}

// Pips converts a price distance into pips.
func (m InstrumentMeta) Pips(distance float64) float64 {
	if m.PipSize == 0 {
		return 0
	}
	return math.Abs(distance) / m.PipSize
}

var Instruments = map[string]InstrumentMeta{
	"EUR/USD": {
		Name:       "EUR/USD",
		Symbol:     "FX:EURUSD",
		BasePrice:  1.0855,
		PipSize:    0.0001,
		SpreadPips: 1.2,
	},
	"GBP/USD": {
		Name:       "GBP/USD",
		Symbol:     "FX:GBPUSD",
		BasePrice:  1.2650,
		PipSize:    0.0001,
		SpreadPips: 1.5,
	},
	"USD/JPY": {
		Name:       "USD/JPY",
		Symbol:     "FX:USDJPY",
		BasePrice:  149.50,
		PipSize:    0.01,
		SpreadPips: 1.4,
	},
	"XAU/USD": {
		Name:       "XAU/USD",
		Symbol:     "OANDA:XAUUSD",
		BasePrice:  2035.00,
		PipSize:    0.01,
		SpreadPips: 30,
	},
	"BTC/USDT": {
		Name:       "BTC/USDT",
		Symbol:     "BINANCE:BTCUSDT",
		BasePrice:  65000,
		PipSize:    1,
		SpreadPips: 10,
		Crypto:     true,
	},
	"ETH/USDT": {
		Name:       "ETH/USDT",
		Symbol:     "BINANCE:ETHUSDT",
		BasePrice:  3500,
		PipSize:    0.1,
		SpreadPips: 5,
		Crypto:     true,
	},
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (InstrumentMeta, error) {
	meta, ok := Instruments[name]
	if !ok {
		return InstrumentMeta{}, ErrUnknownInstrument
	}
	return meta, nil
}

// Names returns the catalog instrument names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Instruments))
	for name := range Instruments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
