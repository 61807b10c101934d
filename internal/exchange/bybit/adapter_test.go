// Package bybit Bybit 适配器测试
package bybit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-stream-reconciler/internal/core/book"
	"market-stream-reconciler/internal/core/model"
	"market-stream-reconciler/internal/exchange"
)

func TestSubscribeFrame(t *testing.T) {
	a := New()
	tests := []struct {
		ch   model.ChannelKind
		want string
	}{
		{model.ChannelOrderBook, `{"op":"subscribe","args":["orderBookL2_25.BTCUSD"]}`},
		{model.ChannelTrade, `{"op":"subscribe","args":["trade.BTCUSD"]}`},
		{model.ChannelKline, `{"op":"subscribe","args":["klineV2.1.BTCUSD"]}`},
	}
	for _, tt := range tests {
		f, err := a.SubscribeFrame(exchange.Subscription{Channel: tt.ch, Symbol: "BTCUSD"})
		require.NoError(t, err)
		assert.JSONEq(t, tt.want, string(f.Data))
	}
}

func TestParse_Responses(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want model.ControlKind
	}{
		{"pong", `{"success":true,"ret_msg":"pong","conn_id":"x","request":{"op":"ping","args":null}}`, model.ControlPong},
		{"订阅成功", `{"success":true,"ret_msg":"","request":{"op":"subscribe","args":["trade.BTCUSD"]}}`, model.ControlSubscribed},
		{"订阅失败", `{"success":false,"ret_msg":"error:topic:trade.FOO not found","request":{"op":"subscribe","args":["trade.FOO"]}}`, model.ControlRejected},
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

// TestParse_SnapshotAndDelta delete 条目没有 size，按删除处理
func TestParse_SnapshotAndDelta(t *testing.T) {
	a := New()
	snap := `{"topic":"orderBookL2_25.BTCUSD","type":"snapshot","data":[` +
		`{"price":"99.0","symbol":"BTCUSD","id":990,"side":"Buy","size":2},` +
		`{"price":"100.0","symbol":"BTCUSD","id":1000,"side":"Buy","size":1},` +
		`{"price":"101.0","symbol":"BTCUSD","id":1010,"side":"Sell","size":1},` +
		`{"price":"102.0","symbol":"BTCUSD","id":1020,"side":"Sell","size":3}],` +
		`"cross_seq":11518,"timestamp_e6":1555647164875373}`
	envs, err := a.Parse([]byte(snap))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	s := envs[0].(*model.Snapshot)
	assert.Equal(t, "BTCUSD", s.Key.Instrument)
	assert.Equal(t, int64(1555647164875), s.Timestamp)
	assert.Len(t, s.Bids, 2)
	assert.Len(t, s.Asks, 2)

	b := book.New(model.PlatformBybit, "BTCUSD", book.Options{Verifier: a.Verifier(), IsZero: a.IsZeroSize})
	require.NoError(t, b.ApplySnapshot(s.Bids, s.Asks, s.Timestamp, s.Checksum))

	delta := `{"topic":"orderBookL2_25.BTCUSD","type":"delta","data":{` +
		`"delete":[{"price":"99.0","symbol":"BTCUSD","id":990,"side":"Buy"}],` +
		`"update":[{"price":"101.0","symbol":"BTCUSD","id":1010,"side":"Sell","size":5}],` +
		`"insert":[]},"cross_seq":11519,"timestamp_e6":"1555647164875400"}`
	envs, err = a.Parse([]byte(delta))
	require.NoError(t, err)
	d := envs[0].(*model.Delta)
	require.NoError(t, b.ApplyDiff(d.Bids, d.Asks, d.Timestamp, d.Checksum))

	view := b.PublishedView()
	assert.Equal(t, []model.Level{{Price: "100.0", Size: "1"}}, view.Bids)
	assert.Equal(t, []model.Level{{Price: "101.0", Size: "5"}, {Price: "102.0", Size: "3"}}, view.Asks)
}

func TestParse_TradesAndKline(t *testing.T) {
	a := New()
	trades := `{"topic":"trade.BTCUSD","data":[{"timestamp":"2020-01-12T16:59:59.000Z","trade_time_ms":1578848399000,` +
		`"symbol":"BTCUSD","side":"Sell","size":328,"price":8098,"tick_direction":"MinusTick",` +
		`"trade_id":"00c706e1-ba52-5bb0-98d0-bf694bdc69f7","cross_seq":1052816407}]}`
	envs, err := a.Parse([]byte(trades))
	require.NoError(t, err)
	tr := envs[0].(*model.TradeBatch).Trades[0]
	assert.Equal(t, model.SideSell, tr.Side)
	assert.Equal(t, "8098", tr.Price)
	assert.Equal(t, "328", tr.Quantity)
	assert.Equal(t, int64(1578848399000), tr.Timestamp)

	kline := `{"topic":"klineV2.1.BTCUSD","data":[{"start":1572425640,"end":1572425700,"open":9200,"close":9202.5,` +
		`"high":9202.5,"low":9196,"volume":81790,"turnover":8.889247899999999,"confirm":false,"cross_seq":297503466,"timestamp":1572425676958323}],` +
		`"timestamp_e6":1572425677047994}`
	envs, err = a.Parse([]byte(kline))
	require.NoError(t, err)
	k := envs[0].(*model.KlineUpdate)
	assert.Equal(t, "9202.5", k.Kline.Close)
	assert.Equal(t, "8.889247899999999", k.Kline.CoinVolume)
	assert.Equal(t, int64(1572425640000), k.Kline.Timestamp)
}

func TestParse_UnknownTopic(t *testing.T) {
	envs, err := New().Parse([]byte(`{"topic":"instrument_info.100ms.BTCUSD","data":{}}`))
	require.NoError(t, err)
	assert.Empty(t, envs)
}
