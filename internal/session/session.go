// Package session 实现交易所流式会话。
// 一个会话对应一个交易所连接：建连 → 订阅 → 接收推送 → 断线重连，
// 深度推送经订单簿合并与校验后交给分发器，成交与 K 线直接分发。
// 心跳发送与链路检查由外部心跳调度器驱动，与接收循环相互独立。
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"market-stream-reconciler/internal/core/book"
	"market-stream-reconciler/internal/core/model"
	"market-stream-reconciler/internal/dispatch"
	"market-stream-reconciler/internal/exchange"
	"market-stream-reconciler/internal/heartbeat"
	"market-stream-reconciler/internal/logging"
	"market-stream-reconciler/internal/metrics"
	"market-stream-reconciler/internal/util/backoff"
	"market-stream-reconciler/internal/util/timeutil"
)

var (
	// ErrConfig 会话配置错误，构造时返回
	ErrConfig = errors.New("会话配置错误")
	// ErrSubscribeRejected 服务端拒绝订阅，会话终止
	ErrSubscribeRejected = errors.New("订阅被拒绝")
)

// 默认值
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultRecentFrames     = 32
)

// State 会话生命周期状态
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribing
	StateLive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribing:
		return "subscribing"
	case StateLive:
		return "live"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Config 会话配置
type Config struct {
	// URL 连接地址，为空时使用适配器默认地址
	URL string
	// Symbols 交易所原生交易对
	Symbols []string
	// Channels 订阅频道
	Channels []model.ChannelKind
	// OrderBookLength 发布的订单簿深度
	OrderBookLength int
	// PingInterval 心跳发送间隔（调度器 tick 数），0 表示不发送
	PingInterval int
	// CheckInterval 链路检查间隔（调度器 tick 数），0 表示不检查
	CheckInterval int
	// StaleAfter 超过该时长未收到任何帧视为链路失效，0 表示不检查
	StaleAfter time.Duration
	// HandshakeTimeout 握手超时
	HandshakeTimeout time.Duration
	// SubscribeRate 每秒最多发送的订阅帧数，0 表示不限速
	SubscribeRate float64
	// RecentFrames 保留的最近原始帧数量，用于校验失败时排查
	RecentFrames int
}

// Deps 会话依赖，由调用方注入
type Deps struct {
	// Scheduler 心跳调度器（必需）
	Scheduler *heartbeat.Scheduler
	// Dispatcher 分发器（必需）
	Dispatcher *dispatch.Dispatcher
	// Consumers 下游消费者
	Consumers model.Consumers
	// Logger 日志记录器
	Logger *zap.Logger
	// Metrics Prometheus 指标，可为空
	Metrics *metrics.Metrics
	// Dialer 为空时使用 gorilla/websocket
	Dialer Dialer
	// Backoff 拨号失败退避，为空时使用默认值
	Backoff *backoff.Backoff
}

// Session 流式会话
type Session struct {
	// cfg 会话配置
	cfg Config
	// adapter 交易所适配器
	adapter exchange.Adapter
	// platform 交易所标识
	platform string
	// deps 注入的依赖
	deps Deps
	// logger 日志记录器
	logger *zap.Logger
	// subs 订阅列表（频道 × 交易对）
	subs []exchange.Subscription
	// limiter 订阅帧限速
	limiter *rate.Limiter
	// backoff 拨号退避
	backoff *backoff.Backoff

	// conn 当前连接
	conn Conn
	// connMu 连接锁，同时串行化写入
	connMu sync.Mutex

	// procMu 串行化帧处理
	procMu sync.Mutex
	// books 订单簿（按路由键）
	books map[model.RouteKey]*book.Book

	// routes 路由表: 路由键 → 配置中的交易对，每次建连重建
	routes map[model.RouteKey]string
	// routesMu 路由表锁
	routesMu sync.RWMutex

	// recent 最近原始帧
	recent deque.Deque[[]byte]
	// recentMu 最近帧锁
	recentMu sync.Mutex

	// state 生命周期状态
	state atomic.Int32
	// reason 待处理的重连原因
	reason atomic.Value
	// lastFrameNs 最后收到帧的时间（纳秒）
	lastFrameNs atomic.Int64
	// lastPingSentNs 上次发送心跳的时间（纳秒）
	lastPingSentNs atomic.Int64
	// rttMs 最近一次心跳往返时延
	rttMs atomic.Int64

	// 计数器
	frames           atomic.Int64
	reconnects       atomic.Int64
	checksumFailures atomic.Int64
	subscribeAcks    atomic.Int64
	published        atomic.Int64

	// parseErrs 解析错误采样（每 100 次最多一条，至少间隔 1 分钟）
	parseErrs *logging.Sampler
}

// New 创建会话，配置错误返回 ErrConfig
func New(cfg Config, adapter exchange.Adapter, deps Deps) (*Session, error) {
	if adapter == nil {
		return nil, fmt.Errorf("%w: 适配器为空", ErrConfig)
	}
	platform := adapter.Platform()
	if err := validate(&cfg, adapter, &deps); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfig, platform, err)
	}
	if cfg.URL == "" {
		cfg.URL = adapter.Endpoint()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.RecentFrames <= 0 {
		cfg.RecentFrames = DefaultRecentFrames
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Dialer == nil {
		deps.Dialer = WSDialer{HandshakeTimeout: cfg.HandshakeTimeout}
	}
	if deps.Backoff == nil {
		deps.Backoff = backoff.NewDefault()
	}

	limit := rate.Inf
	if cfg.SubscribeRate > 0 {
		limit = rate.Limit(cfg.SubscribeRate)
	}

	s := &Session{
		cfg:       cfg,
		adapter:   adapter,
		platform:  platform,
		deps:      deps,
		logger:    deps.Logger.Named(platform),
		limiter:   rate.NewLimiter(limit, 1),
		backoff:   deps.Backoff,
		books:     make(map[model.RouteKey]*book.Book),
		routes:    make(map[model.RouteKey]string),
		parseErrs: logging.NewSampler(100, time.Minute),
	}
	s.reason.Store("")

	for _, ch := range cfg.Channels {
		for _, symbol := range cfg.Symbols {
			sub := exchange.Subscription{Channel: ch, Symbol: symbol}
			s.subs = append(s.subs, sub)
			if ch == model.ChannelOrderBook {
				s.books[adapter.RouteKey(sub)] = book.New(platform, symbol, book.Options{
					Depth:    cfg.OrderBookLength,
					Verifier: adapter.Verifier(),
					IsZero:   adapter.IsZeroSize,
				})
			}
		}
	}
	return s, nil
}

// validate 校验配置与依赖，返回第一个问题
func validate(cfg *Config, adapter exchange.Adapter, deps *Deps) error {
	if deps.Scheduler == nil {
		return errors.New("缺少心跳调度器")
	}
	if deps.Dispatcher == nil {
		return errors.New("缺少分发器")
	}
	if len(cfg.Symbols) == 0 {
		return errors.New("未配置交易对")
	}
	if len(cfg.Channels) == 0 {
		return errors.New("未配置频道")
	}
	seen := make(map[string]bool, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		if s == "" {
			return errors.New("交易对不能为空")
		}
		if seen[s] {
			return fmt.Errorf("交易对重复: %s", s)
		}
		seen[s] = true
	}
	for _, ch := range cfg.Channels {
		if _, ok := model.ParseChannelKind(string(ch)); !ok {
			return fmt.Errorf("未知频道: %q", ch)
		}
		if !exchange.Supports(adapter, ch) {
			return exchange.Unsupported(adapter.Platform(), ch)
		}
		if !deps.Consumers.For(ch) {
			return fmt.Errorf("频道 %s 没有注册消费者", ch)
		}
	}
	if cfg.OrderBookLength <= 0 {
		return fmt.Errorf("orderbook_length 必须大于 0: %d", cfg.OrderBookLength)
	}
	if cfg.PingInterval < 0 || cfg.CheckInterval < 0 {
		return errors.New("心跳间隔不能为负数")
	}
	return nil
}

// Platform 交易所标识
func (s *Session) Platform() string { return s.platform }

// State 当前状态
func (s *Session) State() State { return State(s.state.Load()) }

// Routes 当前路由表的副本
func (s *Session) Routes() map[model.RouteKey]string {
	s.routesMu.RLock()
	defer s.routesMu.RUnlock()
	out := make(map[model.RouteKey]string, len(s.routes))
	for k, v := range s.routes {
		out[k] = v
	}
	return out
}

// Book 返回某交易对订单簿的完整副本，未订阅或尚无快照时返回 nil
func (s *Session) Book(symbol string) *model.OrderBook {
	key := s.adapter.RouteKey(exchange.Subscription{Channel: model.ChannelOrderBook, Symbol: symbol})
	s.procMu.Lock()
	defer s.procMu.Unlock()
	b, ok := s.books[key]
	if !ok || !b.Ready() {
		return nil
	}
	return b.State()
}

// Run 会话主循环，ctx 取消时返回 nil，订阅被拒绝时返回 ErrSubscribeRejected
func (s *Session) Run(ctx context.Context) error {
	ids := s.registerTasks()
	defer func() {
		for _, id := range ids {
			s.deps.Scheduler.Unregister(id)
		}
		s.closeConn()
		s.setState(StateStopped)
		s.logger.Info("会话已停止")
	}()

	stop := context.AfterFunc(ctx, s.closeConn)
	defer stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		s.setState(StateConnecting)
		conn, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("连接失败", zap.String("url", s.cfg.URL), zap.Int("attempt", s.backoff.Attempt()+1), zap.Error(err))
			s.countReconnect("dial")
			if s.backoff.Wait(ctx) != nil {
				return nil
			}
			continue
		}
		s.backoff.Reset()

		s.setState(StateSubscribing)
		if err := s.subscribe(ctx, conn); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("订阅失败", zap.Error(err))
			s.closeConn()
			s.countReconnect("subscribe")
			if s.backoff.Wait(ctx) != nil {
				return nil
			}
			continue
		}

		s.setState(StateLive)
		err = s.readLoop(conn)
		s.closeConn()
		s.setState(StateDisconnected)

		if errors.Is(err, ErrSubscribeRejected) {
			s.logger.Error("订阅被拒绝，会话终止", zap.Error(err))
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		reason := s.takeReason()
		if reason == "" {
			reason = "read"
		}
		s.countReconnect(reason)
		s.logger.Info("连接断开，立即重连", zap.String("reason", reason), zap.Error(err))
	}
}

// registerTasks 向调度器注册心跳发送与链路检查
func (s *Session) registerTasks() []uuid.UUID {
	var ids []uuid.UUID
	if _, ok := s.adapter.KeepAlive(); ok && s.cfg.PingInterval > 0 {
		id, err := s.deps.Scheduler.Register(func(ctx context.Context, _ heartbeat.Call) {
			s.SendHeartbeat()
		}, s.cfg.PingInterval)
		if err == nil {
			ids = append(ids, id)
		}
	}
	if s.cfg.CheckInterval > 0 {
		id, err := s.deps.Scheduler.Register(func(ctx context.Context, _ heartbeat.Call) {
			s.CheckLink()
		}, s.cfg.CheckInterval)
		if err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// connect 建立连接，ctx 已取消时关闭新连接
func (s *Session) connect(ctx context.Context) (Conn, error) {
	conn, err := s.deps.Dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("连接 %s 失败: %w", s.platform, err)
	}
	conn.SetPongHandler(func(string) error {
		s.onPong()
		return nil
	})

	s.connMu.Lock()
	if ctx.Err() != nil {
		s.connMu.Unlock()
		conn.Close()
		return nil, ctx.Err()
	}
	s.conn = conn
	s.connMu.Unlock()

	s.lastFrameNs.Store(timeutil.NowNano())
	s.takeReason()
	s.logger.Info("WebSocket 连接成功", zap.String("url", s.cfg.URL))
	return conn, nil
}

// subscribe 重建路由表、重置订单簿，然后为每个 (频道, 交易对) 发送一条订阅
func (s *Session) subscribe(ctx context.Context, conn Conn) error {
	routes := make(map[model.RouteKey]string, len(s.subs))
	for _, sub := range s.subs {
		routes[s.adapter.RouteKey(sub)] = sub.Symbol
	}
	s.routesMu.Lock()
	s.routes = routes
	s.routesMu.Unlock()

	s.procMu.Lock()
	for _, b := range s.books {
		b.Reset()
	}
	s.procMu.Unlock()

	for _, sub := range s.subs {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		frame, err := s.adapter.SubscribeFrame(sub)
		if err != nil {
			return err
		}
		if err := s.write(conn, frame); err != nil {
			return fmt.Errorf("发送订阅请求失败: %w", err)
		}
	}
	s.logger.Info("订阅请求已发送", zap.Int("subscriptions", len(s.subs)))
	return nil
}

// readLoop 读取循环，读失败或订阅被拒绝时返回
func (s *Session) readLoop(conn Conn) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("读取消息失败: %w", err)
		}
		if err := s.handleFrame(messageType, data); err != nil {
			return err
		}
	}
}

// SendHeartbeat 发送适配器的心跳，发送失败时触发重连
func (s *Session) SendHeartbeat() {
	if s.State() != StateLive {
		return
	}
	frame, ok := s.adapter.KeepAlive()
	if !ok {
		return
	}

	s.connMu.Lock()
	conn := s.conn
	if conn == nil {
		s.connMu.Unlock()
		return
	}
	sentAt := timeutil.NowNano()
	err := writeFrame(conn, frame)
	s.connMu.Unlock()

	if err != nil {
		s.logger.Warn("发送心跳失败", zap.Error(err))
		s.dropConn(conn, "heartbeat")
		return
	}
	s.lastPingSentNs.Store(sentAt)
}

// CheckLink 链路已关闭或超过 StaleAfter 未收到帧时触发重连
func (s *Session) CheckLink() {
	if s.State() != StateLive {
		return
	}
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		s.requestReconnect("closed")
		return
	}
	if s.cfg.StaleAfter <= 0 {
		return
	}
	age := timeutil.SinceNano(s.lastFrameNs.Load())
	if age > s.cfg.StaleAfter && s.dropConn(conn, "stale") {
		s.logger.Warn("链路超时，触发重连", zap.Duration("age", age))
	}
}

// requestReconnect 关闭当前连接使读取循环退出，由主循环重连
func (s *Session) requestReconnect(reason string) {
	s.reason.CompareAndSwap("", reason)
	s.closeConn()
}

// dropConn 仅当 conn 仍是当前连接时关闭它并记录重连原因
func (s *Session) dropConn(conn Conn, reason string) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if conn == nil || s.conn != conn {
		return false
	}
	s.reason.CompareAndSwap("", reason)
	conn.Close()
	s.conn = nil
	return true
}

func (s *Session) takeReason() string {
	return s.reason.Swap("").(string)
}

// write 串行化写入
func (s *Session) write(conn Conn, f exchange.Frame) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return writeFrame(conn, f)
}

// closeConn 关闭连接
func (s *Session) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	if s.deps.Metrics != nil {
		s.deps.Metrics.SessionState.WithLabelValues(s.platform).Set(float64(st))
	}
}

func (s *Session) countReconnect(reason string) {
	s.reconnects.Add(1)
	if s.deps.Metrics != nil {
		s.deps.Metrics.Reconnects.WithLabelValues(s.platform, reason).Inc()
	}
}
