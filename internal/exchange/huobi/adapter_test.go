// Package huobi Huobi 适配器测试
package huobi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-stream-reconciler/internal/core/model"
	"market-stream-reconciler/internal/exchange"
)

func TestSubscribeFrame_IncrementingID(t *testing.T) {
	a := New()
	f1, err := a.SubscribeFrame(exchange.Subscription{Channel: model.ChannelOrderBook, Symbol: "BTC-USDT"})
	require.NoError(t, err)
	f2, err := a.SubscribeFrame(exchange.Subscription{Channel: model.ChannelKline, Symbol: "BTC-USDT"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sub":"market.BTC-USDT.depth.step6","id":"id1"}`, string(f1.Data))
	assert.JSONEq(t, `{"sub":"market.BTC-USDT.kline.1min","id":"id2"}`, string(f2.Data))

	_, ok := a.KeepAlive()
	assert.False(t, ok)
	assert.Equal(t, exchange.FramingGzip, a.Framing())
}

func TestParse_Control(t *testing.T) {
	a := New()

	envs, err := a.Parse([]byte(`{"ping":1492420473027}`))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	c := envs[0].(*model.Control)
	assert.Equal(t, model.ControlPing, c.Kind)
	assert.Equal(t, `{"pong":1492420473027}`, string(c.Reply))

	envs, err = a.Parse([]byte(`{"id":"id1","status":"ok","subbed":"market.BTC-USDT.depth.step6","ts":1489474081631}`))
	require.NoError(t, err)
	assert.Equal(t, model.ControlSubscribed, envs[0].(*model.Control).Kind)

	envs, err = a.Parse([]byte(`{"id":"id2","status":"error","err-code":"bad-request","err-msg":"invalid topic","ts":1}`))
	require.NoError(t, err)
	assert.Equal(t, model.ControlRejected, envs[0].(*model.Control).Kind)
}

// TestParse_Depth 数值统一转为定点文本
func TestParse_Depth(t *testing.T) {
	in := `{"ch":"market.BTC-USDT.depth.step6","ts":1603707576468,"tick":{"mrid":1,"id":1603707576,` +
		`"bids":[[13064.9,1e-05],[13064.5,2]],"asks":[[13065,3.5]],"ts":1603707576467,"version":1603707576,"ch":"market.BTC-USDT.depth.step6"}}`
	envs, err := New().Parse([]byte(in))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	s := envs[0].(*model.Snapshot)
	assert.Equal(t, model.RouteKey{Channel: model.ChannelOrderBook, Instrument: "BTC-USDT"}, s.Key)
	assert.Equal(t, []model.Level{{Price: "13064.9", Size: "0.00001"}, {Price: "13064.5", Size: "2"}}, s.Bids)
	assert.Equal(t, []model.Level{{Price: "13065", Size: "3.5"}}, s.Asks)
	assert.Equal(t, int64(1603707576467), s.Timestamp)
}

func TestParse_KlineAndTrades(t *testing.T) {
	a := New()
	kline := `{"ch":"market.BTC-USDT.kline.1min","ts":1603708208346,"tick":{"id":1603708200,"mrid":1,` +
		`"open":13096.7,"close":13093.3,"low":13092.6,"high":13097.7,"amount":5.186,"vol":5186,"trade_turnover":67906.3,"count":55}}`
	envs, err := a.Parse([]byte(kline))
	require.NoError(t, err)
	k := envs[0].(*model.KlineUpdate).Kline
	assert.Equal(t, "13093.3", k.Close)
	assert.Equal(t, "5186", k.Volume)
	assert.Equal(t, "5.186", k.CoinVolume)
	assert.Equal(t, int64(1603708200000), k.Timestamp)

	trades := `{"ch":"market.BTC-USDT.trade.detail","ts":1603708208346,"tick":{"id":131602265,"ts":1603708208335,` +
		`"data":[{"amount":2,"ts":1603708208335,"id":1316022650000,"price":13083,"direction":"buy","quantity":0.002}]}}`
	envs, err = a.Parse([]byte(trades))
	require.NoError(t, err)
	tr := envs[0].(*model.TradeBatch).Trades[0]
	assert.Equal(t, model.SideBuy, tr.Side)
	assert.Equal(t, "13083", tr.Price)
	assert.Equal(t, "2", tr.Quantity)
	assert.Equal(t, "1316022650000", tr.TradeID)
}
