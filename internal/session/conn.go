package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"

	"market-stream-reconciler/internal/exchange"
)

// Conn 会话使用的 WebSocket 连接
// 除 WriteControl 与 Close 外不允许并发写，由 Session.connMu 串行化
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Dialer 建立连接
type Dialer interface {
	DialContext(ctx context.Context, url string, header http.Header) (Conn, error)
}

// WSDialer 基于 gorilla/websocket 的 Dialer
type WSDialer struct {
	// HandshakeTimeout 握手超时
	HandshakeTimeout time.Duration
}

// DialContext 建立 WebSocket 连接
func (d WSDialer) DialContext(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("握手失败 (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return conn, nil
}

// controlWriteTimeout 控制帧写超时
const controlWriteTimeout = 5 * time.Second

// writeFrame 写出一帧，控制帧走 WriteControl
func writeFrame(conn Conn, f exchange.Frame) error {
	switch f.Type {
	case websocket.PingMessage, websocket.PongMessage, websocket.CloseMessage:
		return conn.WriteControl(f.Type, f.Data, time.Now().Add(controlWriteTimeout))
	}
	return conn.WriteMessage(f.Type, f.Data)
}

// decode 按适配器声明的压缩格式解压二进制帧，文本帧原样返回
func decode(framing exchange.Framing, messageType int, data []byte) ([]byte, error) {
	if messageType != websocket.BinaryMessage || framing != exchange.FramingGzip {
		return data, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip 解压失败: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip 解压失败: %w", err)
	}
	return out, nil
}
