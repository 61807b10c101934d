// Package okx OKX 适配器测试
package okx

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-stream-reconciler/internal/core/model"
	"market-stream-reconciler/internal/exchange"
)

func TestParse_Pong(t *testing.T) {
	envs, err := New().Parse([]byte("pong"))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, model.ControlPong, envs[0].(*model.Control).Kind)
}

func TestParse_Events(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want model.ControlKind
	}{
		{"订阅成功", `{"event":"subscribe","arg":{"channel":"trades","instId":"BTC-USDT"}}`, model.ControlSubscribed},
		{"合约不存在", `{"event":"error","code":"60018","msg":"Wrong URL or channel"}`, model.ControlRejected},
		{"其它错误", `{"event":"error","code":"60011","msg":"Please log in"}`, model.ControlError},
	}
	a := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs, err := a.Parse([]byte(tt.in))
			require.NoError(t, err)
			require.Len(t, envs, 1)
			assert.Equal(t, tt.want, envs[0].(*model.Control).Kind)
		})
	}
}

// TestParse_BookSnapshotAndUpdate 快照与增量带上校验值与路由键
func TestParse_BookSnapshotAndUpdate(t *testing.T) {
	a := New()
	snap := `{"arg":{"channel":"books50-l2-tbt","instId":"BTC-USDT-SWAP"},"action":"snapshot",` +
		`"data":[{"bids":[["100","1","0","1"],["99","2","0","1"]],"asks":[["101","1","0","1"],["102","3","0","1"]],` +
		`"ts":"1700000000000","checksum":-214146010}]}`
	envs, err := a.Parse([]byte(snap))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	s, ok := envs[0].(*model.Snapshot)
	require.True(t, ok)
	assert.Equal(t, model.RouteKey{Channel: model.ChannelOrderBook, Instrument: "BTC-USDT-SWAP"}, s.Key)
	assert.Equal(t, []model.Level{{Price: "100", Size: "1"}, {Price: "99", Size: "2"}}, s.Bids)
	assert.Equal(t, int64(1700000000000), s.Timestamp)
	assert.Equal(t, model.Digest{Value: -214146010, Present: true}, s.Checksum)
	assert.True(t, a.Verifier().Verify(s.Bids, s.Asks, s.Checksum))

	upd := `{"arg":{"channel":"books50-l2-tbt","instId":"BTC-USDT-SWAP"},"action":"update",` +
		`"data":[{"bids":[["99","0","0","0"]],"asks":[["101","5","0","2"]],"ts":"1700000000100"}]}`
	envs, err = a.Parse([]byte(upd))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	d, ok := envs[0].(*model.Delta)
	require.True(t, ok)
	assert.False(t, d.Checksum.Present)
	assert.True(t, a.IsZeroSize(d.Bids[0].Size))
}

func TestParse_TradesAndCandle(t *testing.T) {
	a := New()
	trades := `{"arg":{"channel":"trades","instId":"BTC-USDT"},"data":[` +
		`{"instId":"BTC-USDT","tradeId":"130639474","px":"42219.9","sz":"0.12","side":"buy","ts":"1630048897897"}]}`
	envs, err := a.Parse([]byte(trades))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	batch := envs[0].(*model.TradeBatch)
	require.Len(t, batch.Trades, 1)
	assert.Equal(t, model.Trade{
		Platform: model.PlatformOKX, Symbol: "BTC-USDT", Side: model.SideBuy,
		Price: "42219.9", Quantity: "0.12", TradeID: "130639474", Timestamp: 1630048897897,
	}, batch.Trades[0])

	candle := `{"arg":{"channel":"candle1m","instId":"BTC-USDT"},"data":[` +
		`["1597026383085","8533.02","8553.74","8527.17","8548.26","45247","529.5858061","0","0"]]}`
	envs, err = a.Parse([]byte(candle))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	k := envs[0].(*model.KlineUpdate)
	assert.Equal(t, model.ChannelKline, k.Key.Channel)
	assert.Equal(t, "8548.26", k.Kline.Close)
	assert.Equal(t, "529.5858061", k.Kline.CoinVolume)
	assert.Equal(t, model.Kline1Min, k.Kline.KlineType)
	assert.Equal(t, int64(1597026383085), k.Kline.Timestamp)
}

func TestParse_Invalid(t *testing.T) {
	a := New()
	_, err := a.Parse([]byte(`{not json`))
	assert.Error(t, err)

	_, err = a.Parse([]byte(`{"arg":{"channel":"candle1m","instId":"X"},"data":[["1","2"]]}`))
	assert.Error(t, err)

	envs, err := a.Parse([]byte(`{"event":"login"}`))
	require.NoError(t, err)
	assert.Empty(t, envs)
}

func TestSubscribeFrame(t *testing.T) {
	a := New()
	f, err := a.SubscribeFrame(exchange.Subscription{Channel: model.ChannelOrderBook, Symbol: "ETH-USDT-SWAP"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"subscribe","args":[{"channel":"books50-l2-tbt","instId":"ETH-USDT-SWAP"}]}`, string(f.Data))

	_, err = a.SubscribeFrame(exchange.Subscription{Channel: "funding", Symbol: "ETH-USDT-SWAP"})
	assert.ErrorIs(t, err, exchange.ErrUnsupportedChannel)

	ka, ok := a.KeepAlive()
	assert.True(t, ok)
	assert.Equal(t, "ping", string(ka.Data))
}

// TestParser_RoundTrip 解析后保留价格、数量与合约
func TestParser_RoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	a := New()

	properties.Property("解析保留价格和数量", prop.ForAll(
		func(bidPx, bidQty float64, ts int64, instId string) bool {
			px := fmt.Sprintf("%.2f", bidPx)
			qty := fmt.Sprintf("%.4f", bidQty)
			msg := Message{
				Arg:    &SubscribeArg{Channel: ChannelBooks, InstId: instId},
				Action: "update",
			}
			raw, err := json.Marshal([]BookData{{
				Bids: [][]string{{px, qty, "0", "1"}},
				Asks: [][]string{},
				Ts:   fmt.Sprintf("%d", ts),
			}})
			if err != nil {
				return false
			}
			msg.Data = raw
			data, err := json.Marshal(msg)
			if err != nil {
				return false
			}

			envs, err := a.Parse(data)
			if err != nil || len(envs) != 1 {
				return false
			}
			d, ok := envs[0].(*model.Delta)
			if !ok {
				return false
			}
			return d.Key.Instrument == instId &&
				d.Timestamp == ts &&
				len(d.Bids) == 1 && d.Bids[0].Price == px && d.Bids[0].Size == qty &&
				len(d.Asks) == 0
		},
		gen.Float64Range(1, 100000),
		gen.Float64Range(0.0001, 1000),
		gen.Int64Range(1600000000000, 1800000000000),
		gen.OneConstOf("BTC-USDT-SWAP", "ETH-USDT-SWAP", "SOL-USDT"),
	))

	properties.TestingRun(t)
}
