// Package jsonl 输出模块测试
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"market-stream-reconciler/internal/core/model"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return lines
}

func TestWriter_WriteAndClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "test.jsonl")

	w, err := NewWriter(path, Options{BufferSize: 100})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := w.Write(map[string]any{"i": i}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	// 无法编码的记录被跳过
	if err := w.Write(map[string]any{"bad": make(chan int)}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Write(1); err == nil {
		t.Fatal("关闭后写入应返回错误")
	}

	if lines := readLines(t, path); len(lines) != 10 {
		t.Fatalf("lines=%d, want 10", len(lines))
	}
	if w.EncodeErrors() != 1 {
		t.Fatalf("EncodeErrors=%d, want 1", w.EncodeErrors())
	}
}

func TestWriter_Flush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flush.jsonl")
	w, err := NewWriter(path, Options{})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if err := w.Write(map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if lines := readLines(t, path); len(lines) != 1 || lines[0] != `{"k":"v"}` {
		t.Fatalf("lines=%v", lines)
	}
}

// TestSink_OrderBookRecord 属性: 订单簿记录按 [price, size] 数组输出且字段完整
func TestSink_OrderBookRecord(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("orderbook JSON 必含必需字段", prop.ForAll(
		func(price, size uint32, ts int64) bool {
			dir := t.TempDir()
			sink, err := NewSink(dir, Options{BufferSize: 8})
			if err != nil {
				return false
			}
			p := model.Level{Price: itoa(price), Size: itoa(size)}
			ob := &model.OrderBook{Platform: "okx", Symbol: "BTC-USDT-SWAP", Bids: []model.Level{p}, Asks: []model.Level{}, Timestamp: ts}
			if err := sink.Consumers().OrderBook[0](context.Background(), ob); err != nil {
				return false
			}
			if err := sink.Close(); err != nil {
				return false
			}

			lines := readLines(t, filepath.Join(dir, OrderBookFile))
			if len(lines) != 1 {
				return false
			}
			var m struct {
				Platform  string      `json:"platform"`
				Symbol    string      `json:"symbol"`
				Bids      [][2]string `json:"bids"`
				Asks      [][2]string `json:"asks"`
				Timestamp int64       `json:"timestamp"`
			}
			if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
				return false
			}
			return m.Platform == "okx" && m.Timestamp == ts && len(m.Bids) == 1 &&
				m.Bids[0] == [2]string{p.Price, p.Size} && m.Asks != nil
		},
		gen.UInt32(),
		gen.UInt32(),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestSink_TradeAndKline(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir, Options{})
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	c := sink.Consumers()
	ctx := context.Background()
	if err := c.Trade[0](ctx, &model.Trade{Platform: "ftx", Symbol: "BTC-PERP", Side: model.SideBuy, Price: "1", Quantity: "2"}); err != nil {
		t.Fatalf("trade: %v", err)
	}
	if err := c.Kline[0](ctx, &model.Kline{Platform: "binance", Symbol: "btcusdt", KlineType: model.Kline5Min}); err != nil {
		t.Fatalf("kline: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	trades := readLines(t, filepath.Join(dir, TradeFile))
	if len(trades) != 1 {
		t.Fatalf("trades=%d", len(trades))
	}
	var tr model.Trade
	if err := json.Unmarshal([]byte(trades[0]), &tr); err != nil || tr.Side != model.SideBuy || tr.Symbol != "BTC-PERP" {
		t.Fatalf("trade=%+v err=%v", tr, err)
	}
	if klines := readLines(t, filepath.Join(dir, KlineFile)); len(klines) != 1 {
		t.Fatalf("klines=%d", len(klines))
	}
}

func itoa(v uint32) string {
	b, _ := json.Marshal(v)
	return string(b)
}
