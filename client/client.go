// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

// Package client implements the speaker's broker link: a single persistent
// MQTT 3.1.1 session driven by one engine goroutine that owns the socket.
// All wire I/O, including the chunked streaming of large audio payloads to
// staged files, happens on that goroutine; publish and subscribe calls from
// other goroutines are forwarded to it as commands.
package client

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rapidreach/speakerlink/packets"
	"github.com/rapidreach/speakerlink/stage"
	"github.com/rapidreach/speakerlink/topics"
)

// cmdKind identifies a command forwarded to the engine goroutine.
type cmdKind int

const (
	cmdPublish cmdKind = iota
	cmdSubscribe
	cmdUnsubscribe
)

// command is a wire operation requested by another goroutine. The engine
// answers on resp exactly once: immediately for QoS 0 publishes, or when
// the matching acknowledgment arrives.
type command struct {
	kind    cmdKind
	topic   string
	payload []byte
	qos     byte
	retain  bool
	handler Handler
	resp    chan error
}

// Client is the broker link. One engine goroutine owns the connection and
// the reconnection state machine; Publish, Subscribe and Unsubscribe are
// safe to call from any goroutine.
type Client struct {
	opts   *Options
	logger *slog.Logger

	state    *stateManager
	pending  *pendingStore
	registry *registry
	dispatch *dispatcher
	arena    *stage.Arena

	// conn is touched only by the engine goroutine.
	conn net.Conn

	cmdCh  chan command
	stopCh chan struct{}
	doneCh chan struct{}

	// attempts counts consecutive failed connects, engine-only.
	attempts int

	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once

	// Reconnect bookkeeping, read by observers under mu. Sent and
	// received activity are tracked separately: pings are scheduled off
	// the send side, liveness is judged off the receive side.
	mu        sync.Mutex
	backoff   time.Duration
	waitUntil time.Time
	lastSent  time.Time
	lastRecv  time.Time
}

// New creates a client. The arena receives large payloads streamed off the
// wire; it may be nil, in which case every payload is read into memory and
// oversized ones are dropped.
func New(opts *Options, arena *stage.Arena) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("client_id", opts.ClientID))

	return &Client{
		opts:     opts,
		logger:   logger,
		state:    newStateManager(),
		pending:  newPendingStore(opts.MaxInflight),
		registry: newRegistry(opts.MaxSubscriptions),
		dispatch: newDispatcher(opts.DispatchDepth, logger),
		arena:    arena,
		cmdCh:    make(chan command, opts.MaxInflight),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		backoff:  opts.ReconnectMin,
	}, nil
}

// Start launches the engine goroutine. The engine connects, reconnects
// with exponential backoff, and services the socket until Stop is called.
func (c *Client) Start() error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if c.state.isClosed() {
		return ErrClientClosed
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	go c.run()
	return nil
}

// Stop shuts the engine down, joins it, and drains the worker. It is safe
// to call more than once; the client cannot be restarted.
func (c *Client) Stop() error {
	c.stopOnce.Do(func() {
		c.startMu.Lock()
		started := c.started
		c.startMu.Unlock()

		close(c.stopCh)
		if started {
			<-c.doneCh
		} else {
			c.state.set(StateClosed)
		}
		c.dispatch.close()
	})
	return nil
}

// IsConnected reports whether the session is established.
func (c *Client) IsConnected() bool {
	return c.state.isConnected()
}

// State returns the current connection state.
func (c *Client) State() State {
	return c.state.get()
}

// Backoff returns the current reconnect delay, for observability.
func (c *Client) Backoff() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backoff
}

// Publish sends a message. QoS 1 blocks until the PUBACK arrives or the
// ack timeout expires.
func (c *Client) Publish(topic string, payload []byte, qos byte, retain bool) error {
	if qos > 1 {
		return ErrInvalidQoS
	}
	if err := topics.ValidateTopicName(topic); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	return c.roundTrip(command{
		kind:    cmdPublish,
		topic:   topic,
		payload: payload,
		qos:     qos,
		retain:  retain,
	})
}

// Subscribe binds a handler to a topic filter and asserts the subscription
// to the broker. The binding survives reconnects: it is re-asserted after
// every successful connection until Unsubscribe is called.
func (c *Client) Subscribe(filter string, qos byte, h Handler) error {
	if qos > 1 {
		return ErrInvalidQoS
	}
	if err := topics.ValidateFilter(filter); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, filter)
	}
	if h == nil {
		return errors.New("nil handler")
	}

	return c.roundTrip(command{
		kind:    cmdSubscribe,
		topic:   filter,
		qos:     qos,
		handler: h,
	})
}

// Unsubscribe removes a subscription.
func (c *Client) Unsubscribe(filter string) error {
	return c.roundTrip(command{kind: cmdUnsubscribe, topic: filter})
}

// roundTrip forwards a command to the engine and waits for its response.
func (c *Client) roundTrip(cmd command) error {
	if c.state.isClosed() {
		return ErrClientClosed
	}
	if !c.state.isConnected() {
		return ErrNotConnected
	}

	cmd.resp = make(chan error, 1)

	select {
	case c.cmdCh <- cmd:
	case <-c.stopCh:
		return ErrClientClosed
	}

	select {
	case err := <-cmd.resp:
		return err
	case <-time.After(c.opts.AckTimeout):
		return ErrTimeout
	case <-c.stopCh:
		return ErrClientClosed
	}
}

// run is the engine loop. It is the only goroutine that touches the socket.
func (c *Client) run() {
	defer close(c.doneCh)
	defer c.state.set(StateClosed)
	defer c.teardown(nil)

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		switch c.state.get() {
		case StateDisconnected:
			if !c.waitBackoff() {
				return
			}
			c.connectOnce()
		case StateConnected:
			if err := c.service(); err != nil {
				c.connectionLost(err)
			}
		default:
			return
		}
	}
}

// waitBackoff sleeps until the backoff deadline armed by the last failure.
// Returns false if the client is stopping.
func (c *Client) waitBackoff() bool {
	c.mu.Lock()
	wait := time.Until(c.waitUntil)
	c.mu.Unlock()

	if wait <= 0 {
		return true
	}

	select {
	case <-time.After(wait):
		return true
	case <-c.stopCh:
		return false
	}
}

// armBackoff schedules the next connection attempt after the current
// backoff interval, then doubles the interval up to the ceiling.
func (c *Client) armBackoff() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.waitUntil = time.Now().Add(c.backoff)
	c.backoff *= 2
	if c.backoff > c.opts.ReconnectMax {
		c.backoff = c.opts.ReconnectMax
	}
}

// connectOnce performs one connection attempt. Failure doubles the backoff
// up to the ceiling; success resets it to the floor and re-asserts every
// active subscription.
func (c *Client) connectOnce() {
	c.state.set(StateConnecting)

	c.attempts++
	c.emit(Event{Kind: EventReconnecting, Attempt: c.attempts})

	conn, err := c.dial()
	if err == nil {
		err = c.handshake(conn)
		if err != nil {
			conn.Close()
		}
	}

	if err != nil {
		c.logger.Warn("connect failed",
			slog.String("server", c.opts.Server),
			slog.Any("error", err))

		c.armBackoff()
		c.state.set(StateDisconnected)
		return
	}

	c.conn = conn
	now := time.Now()
	c.mu.Lock()
	c.lastSent = now
	c.lastRecv = now
	c.mu.Unlock()
	c.attempts = 0

	c.mu.Lock()
	c.backoff = c.opts.ReconnectMin
	c.mu.Unlock()

	c.state.set(StateConnected)
	c.logger.Info("connected", slog.String("server", c.opts.Server))
	c.emit(Event{Kind: EventConnected})

	c.resubscribe()
}

func (c *Client) dial() (net.Conn, error) {
	if isWebSocketURL(c.opts.Server) {
		return dialWebSocket(c.opts.Server, c.opts.ConnectTimeout, c.opts.TLSConfig)
	}

	dialer := &net.Dialer{Timeout: c.opts.ConnectTimeout}
	if c.opts.TLSConfig != nil {
		return tls.DialWithDialer(dialer, "tcp", c.opts.Server, c.opts.TLSConfig)
	}
	return dialer.Dial("tcp", c.opts.Server)
}

// handshake sends CONNECT and waits for CONNACK.
func (c *Client) handshake(conn net.Conn) error {
	pkt := &packets.Connect{
		FixedHeader:     packets.FixedHeader{PacketType: packets.ConnectType},
		ProtocolName:    "MQTT",
		ProtocolVersion: packets.V311,
		ClientID:        c.opts.ClientID,
		CleanSession:    c.opts.CleanSession,
		KeepAlive:       uint16(c.opts.KeepAlive.Seconds()),
	}

	if c.opts.Username != "" {
		pkt.UsernameFlag = true
		pkt.Username = c.opts.Username
	}
	if c.opts.Password != "" {
		pkt.PasswordFlag = true
		pkt.Password = []byte(c.opts.Password)
	}
	if c.opts.Will != nil {
		pkt.WillFlag = true
		pkt.WillTopic = c.opts.Will.Topic
		pkt.WillMessage = c.opts.Will.Payload
		pkt.WillQoS = c.opts.Will.QoS
		pkt.WillRetain = c.opts.Will.Retain
	}

	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := pkt.Pack(conn); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	conn.SetWriteDeadline(time.Time{})

	conn.SetReadDeadline(time.Now().Add(c.opts.ConnectTimeout))
	defer conn.SetReadDeadline(time.Time{})

	resp, err := packets.ReadPacket(conn)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	ack, ok := resp.(*packets.ConnAck)
	if !ok {
		return ErrUnexpectedPacket
	}
	if ack.ReturnCode != packets.ConnAccepted {
		return fmt.Errorf("%w: %s", ErrConnectRejected, connAckError(ack.ReturnCode))
	}

	return nil
}

// resubscribe re-asserts every active subscription after a (re)connect.
func (c *Client) resubscribe() {
	subs := c.registry.active()
	if len(subs) == 0 {
		return
	}

	ts := make([]packets.Topic, 0, len(subs))
	for _, s := range subs {
		ts = append(ts, packets.Topic{Name: s.filter, QoS: s.qos})
	}

	id := c.pending.nextPacketID()
	if id == 0 {
		c.logger.Error("no packet ID available for resubscribe")
		return
	}

	pkt := &packets.Subscribe{
		FixedHeader: packets.FixedHeader{PacketType: packets.SubscribeType, QoS: 1},
		ID:          id,
		Topics:      ts,
	}

	if err := c.write(pkt); err != nil {
		c.logger.Warn("resubscribe failed", slog.Any("error", err))
		return
	}

	// The SUBACK is consumed by the poll loop; no pending op is
	// registered since the slots are already active.
	c.logger.Debug("resubscribed", slog.Int("count", len(subs)))
}

// service performs one engine iteration: forward queued commands, keep the
// session alive, and poll the socket for one inbound packet.
func (c *Client) service() error {
	for {
		select {
		case cmd := <-c.cmdCh:
			c.handleCommand(cmd)
			continue
		case <-c.stopCh:
			c.shutdownSession()
			return nil
		default:
		}
		break
	}

	if err := c.keepAlive(); err != nil {
		return err
	}

	return c.poll()
}

// shutdownSession sends DISCONNECT and closes the socket on explicit stop.
func (c *Client) shutdownSession() {
	if c.conn == nil {
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	pkt := &packets.Disconnect{FixedHeader: packets.FixedHeader{PacketType: packets.DisconnectType}}
	pkt.Pack(c.conn)
	c.teardown(nil)
}

// keepAlive sends PINGREQ when nothing has been sent for half the
// keepalive interval, and declares the connection dead when nothing has
// ARRIVED for a full interval plus the write timeout. Outbound traffic
// never feeds the liveness check: on a half-open link writes keep
// succeeding while the broker is gone, and only the silence on the
// receive side tells the truth.
func (c *Client) keepAlive() error {
	if c.opts.KeepAlive <= 0 {
		return nil
	}

	c.mu.Lock()
	sentIdle := time.Since(c.lastSent)
	recvIdle := time.Since(c.lastRecv)
	c.mu.Unlock()

	if recvIdle > c.opts.KeepAlive+c.opts.WriteTimeout {
		return fmt.Errorf("%w: keepalive expired", ErrConnectionLost)
	}

	if sentIdle >= c.opts.KeepAlive/2 {
		pkt := &packets.PingReq{FixedHeader: packets.FixedHeader{PacketType: packets.PingReqType}}
		if err := c.write(pkt); err != nil {
			return err
		}
	}
	return nil
}

// poll waits up to the poll interval for inbound data and processes one
// packet if any arrives. A deadline timeout is a normal idle cycle.
func (c *Client) poll() error {
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PollInterval))

	first := make([]byte, 1)
	if _, err := io.ReadFull(c.conn, first); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil
		}
		return err
	}

	// A packet has started; give the rest of it a real deadline.
	c.conn.SetReadDeadline(time.Now().Add(c.opts.ConnectTimeout))
	defer c.conn.SetReadDeadline(time.Time{})

	var fh packets.FixedHeader
	if err := fh.Decode(first[0], c.conn); err != nil {
		return err
	}

	c.touchRecv()

	if fh.PacketType == packets.PublishType {
		return c.handleInboundPublish(fh)
	}

	pkt := packets.NewControlPacket(fh.PacketType)
	if pkt == nil {
		return fmt.Errorf("%w: %d", packets.ErrUnknownPacketType, fh.PacketType)
	}
	body := io.LimitReader(c.conn, int64(fh.RemainingLength))
	if err := pkt.Unpack(body); err != nil {
		return err
	}
	// Anything the packet left unread still has to come off the wire.
	if _, err := io.Copy(io.Discard, body); err != nil {
		return err
	}

	c.handlePacket(pkt)
	return nil
}

func (c *Client) handlePacket(pkt packets.ControlPacket) {
	switch p := pkt.(type) {
	case *packets.PubAck:
		if op := c.pending.take(p.ID); op != nil {
			op.complete()
		}
	case *packets.SubAck:
		c.handleSubAck(p)
	case *packets.UnsubAck:
		if op := c.pending.take(p.ID); op != nil {
			c.registry.remove(op.filter)
			op.complete()
		}
	case *packets.PingResp:
		// Keep-alive response, nothing to do.
	default:
		c.logger.Debug("ignoring packet", slog.String("type", packets.PacketNames[pkt.Type()]))
	}
}

func (c *Client) handleSubAck(p *packets.SubAck) {
	op := c.pending.take(p.ID)
	if op == nil {
		// Resubscribe ack.
		return
	}

	for _, rc := range p.ReturnCodes {
		if rc == packets.SubAckFailure {
			c.registry.remove(op.filter)
			op.fail(ErrSubscribeFailed)
			return
		}
	}
	op.complete()
}

// handleCommand executes one forwarded wire operation.
func (c *Client) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdPublish:
		c.doPublish(cmd)
	case cmdSubscribe:
		c.doSubscribe(cmd)
	case cmdUnsubscribe:
		c.doUnsubscribe(cmd)
	}
}

func (c *Client) doPublish(cmd command) {
	pkt := &packets.Publish{
		FixedHeader: packets.FixedHeader{
			PacketType: packets.PublishType,
			QoS:        cmd.qos,
			Retain:     cmd.retain,
		},
		TopicName: cmd.topic,
		Payload:   cmd.payload,
	}

	if cmd.qos == 0 {
		cmd.resp <- c.write(pkt)
		return
	}

	id := c.pending.nextPacketID()
	if id == 0 {
		cmd.resp <- ErrMaxInflight
		return
	}
	pkt.ID = id

	op := &pendingOp{id: id, opType: pendingPublish, resp: cmd.resp}
	if err := c.pending.add(op); err != nil {
		cmd.resp <- err
		return
	}

	if err := c.write(pkt); err != nil {
		c.pending.remove(id)
		cmd.resp <- err
	}
}

func (c *Client) doSubscribe(cmd command) {
	if _, err := c.registry.add(cmd.topic, cmd.qos, cmd.handler); err != nil {
		cmd.resp <- err
		return
	}

	id := c.pending.nextPacketID()
	if id == 0 {
		c.registry.remove(cmd.topic)
		cmd.resp <- ErrMaxInflight
		return
	}

	op := &pendingOp{
		id:      id,
		opType:  pendingSubscribe,
		resp:    cmd.resp,
		filter:  cmd.topic,
		qos:     cmd.qos,
		handler: cmd.handler,
	}
	if err := c.pending.add(op); err != nil {
		c.registry.remove(cmd.topic)
		cmd.resp <- err
		return
	}

	pkt := &packets.Subscribe{
		FixedHeader: packets.FixedHeader{PacketType: packets.SubscribeType, QoS: 1},
		ID:          id,
		Topics:      []packets.Topic{{Name: cmd.topic, QoS: cmd.qos}},
	}

	if err := c.write(pkt); err != nil {
		c.pending.remove(id)
		c.registry.remove(cmd.topic)
		cmd.resp <- err
	}
}

func (c *Client) doUnsubscribe(cmd command) {
	id := c.pending.nextPacketID()
	if id == 0 {
		cmd.resp <- ErrMaxInflight
		return
	}

	op := &pendingOp{id: id, opType: pendingUnsubscribe, resp: cmd.resp, filter: cmd.topic}
	if err := c.pending.add(op); err != nil {
		cmd.resp <- err
		return
	}

	pkt := &packets.Unsubscribe{
		FixedHeader: packets.FixedHeader{PacketType: packets.UnsubscribeType, QoS: 1},
		ID:          id,
		Topics:      []string{cmd.topic},
	}

	if err := c.write(pkt); err != nil {
		c.pending.remove(id)
		cmd.resp <- err
	}
}

// write sends a packet on the engine goroutine with the write deadline
// applied.
func (c *Client) write(pkt packets.ControlPacket) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	defer c.conn.SetWriteDeadline(time.Time{})

	if err := pkt.Pack(c.conn); err != nil {
		return err
	}
	c.touchSent()
	return nil
}

// connectionLost tears the session down and arms the backoff timer. It is
// never fatal; the engine loop falls back to reconnecting.
func (c *Client) connectionLost(err error) {
	if !c.state.transition(StateConnected, StateDisconnected) {
		return
	}

	c.logger.Warn("connection lost", slog.Any("error", err))
	c.teardown(ErrConnectionLost)
	c.drainCommands(ErrConnectionLost)
	c.armBackoff()

	c.emit(Event{Kind: EventDisconnected, Err: err})
}

// teardown closes the socket and fails every pending operation.
func (c *Client) teardown(cause error) {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if cause != nil {
		c.pending.clear(cause)
	}
}

// drainCommands fails every command still queued for the engine, so
// callers are not left waiting out their full ack timeout.
func (c *Client) drainCommands(err error) {
	for {
		select {
		case cmd := <-c.cmdCh:
			cmd.resp <- err
		default:
			return
		}
	}
}

func (c *Client) emit(ev Event) {
	if c.opts.OnEvent != nil {
		c.opts.OnEvent(ev)
	}
}

func (c *Client) touchSent() {
	c.mu.Lock()
	c.lastSent = time.Now()
	c.mu.Unlock()
}

func (c *Client) touchRecv() {
	c.mu.Lock()
	c.lastRecv = time.Now()
	c.mu.Unlock()
}
