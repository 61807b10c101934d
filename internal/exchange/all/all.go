// Package all 汇总所有内置交易所适配器。
package all

import (
	"market-stream-reconciler/internal/core/model"
	"market-stream-reconciler/internal/exchange"
	"market-stream-reconciler/internal/exchange/binance"
	"market-stream-reconciler/internal/exchange/bybit"
	"market-stream-reconciler/internal/exchange/ftx"
	"market-stream-reconciler/internal/exchange/gateio"
	"market-stream-reconciler/internal/exchange/huobi"
	"market-stream-reconciler/internal/exchange/okx"
)

// Registry 返回包含全部内置适配器的注册表
func Registry() exchange.Registry {
	return exchange.Registry{
		model.PlatformOKX:     okx.New,
		model.PlatformFTX:     ftx.New,
		model.PlatformGate:    gateio.New,
		model.PlatformBybit:   bybit.New,
		model.PlatformHuobi:   huobi.New,
		model.PlatformBinance: binance.New,
	}
}
