package quic

import (
	"context"
	"errors"
	"net"
	"time"
)

// EventPump is the single-threaded cooperative event loop of spec.md
// §4.8 (C8). It owns the UDP socket and drives one Connection; handlers
// run to completion and never block (spec.md §5 "Suspension points": a
// task may suspend only at socket read, socket write, timer wait).
type EventPump struct {
	conn *Connection
	sock net.PacketConn
	peer net.Addr

	readBuf []byte

	RetransmitTick time.Duration
	IdleCheckTick  time.Duration

	// OnLocalWritable is polled once per loop iteration for data the
	// local protocol sinks (§6) want written into streams; it returns
	// false when there is nothing pending right now.
	OnLocalWritable func(c *Connection) bool
}

// NewEventPump constructs a pump bound to sock, driving conn. peer is the
// remote address packets are sent to; for a server it is learned from the
// first received datagram and may be updated via SetPeer.
func NewEventPump(conn *Connection, sock net.PacketConn, peer net.Addr) *EventPump {
	return &EventPump{
		conn:           conn,
		sock:           sock,
		peer:           peer,
		readBuf:        make([]byte, 64*1024),
		RetransmitTick: 50 * time.Millisecond,
		IdleCheckTick:  time.Second,
	}
}

func (p *EventPump) SetPeer(addr net.Addr) { p.peer = addr }

// Run drives the pump until ctx is cancelled or the connection reaches
// CLOSED. Shutdown (SIGINT upstream cancels ctx, idle timeout, or fatal
// error) invokes the close sequence and then stops the pump (spec.md
// §4.8 "Shutdown").
func (p *EventPump) Run(ctx context.Context) error {
	retransmit := time.NewTicker(p.RetransmitTick)
	idleCheck := time.NewTicker(p.IdleCheckTick)
	defer retransmit.Stop()
	defer idleCheck.Stop()

	readReady := make(chan struct{}, 1)
	readErrs := make(chan error, 1)
	go p.readLoop(ctx, readReady, readErrs)

	for {
		if p.conn.State() == StateClosed {
			return nil
		}

		select {
		case <-ctx.Done():
			p.conn.Close(false, 0x0000, "shutdown", time.Now())
			p.flushOutbound()
			return ctx.Err()

		case err := <-readErrs:
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err

		case <-readReady:
			p.handleIncoming()
			p.flushOutbound()

		case now := <-retransmit.C:
			p.conn.RunLossDetection(now)
			p.checkAckTimers(now)
			p.conn.CheckCloseExpiry(now)
			p.flushOutbound()

		case now := <-idleCheck.C:
			p.conn.CheckIdle(now)
			p.flushOutbound()
		}

		if p.OnLocalWritable != nil && p.OnLocalWritable(p.conn) {
			p.flushOutbound()
		}
	}
}

func (p *EventPump) readLoop(ctx context.Context, ready chan<- struct{}, errs chan<- error) {
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, addr, err := p.sock.ReadFrom(buf)
		if err != nil {
			select {
			case errs <- err:
			default:
			}
			return
		}
		p.peer = addr
		p.readBuf = append(p.readBuf[:0], buf[:n]...)
		select {
		case ready <- struct{}{}:
		case <-ctx.Done():
			return
		}
	}
}

func (p *EventPump) handleIncoming() {
	if err := p.conn.HandleDatagram(p.readBuf, time.Now()); err != nil {
		// Transport protocol violations already transitioned the
		// connection to CLOSING inside HandleDatagram; nothing more to
		// do here (spec.md §7).
		return
	}
}

func (p *EventPump) checkAckTimers(now time.Time) {
	for _, space := range []Space{SpaceInitial, SpaceHandshake, SpaceApplication} {
		ss := p.conn.spaces[space]
		if ss.ack.ackTimerArmed && !now.Before(ss.ack.ackDelayAt) {
			// leave ackElicited set; BuildPacket will emit the ACK on
			// the next writable opportunity (spec.md §4.6 "ACK policy")
		}
	}
}

// flushOutbound drains every space that has something to send and writes
// it to the socket, re-arming on EAGAIN rather than blocking (spec.md
// §4.8 "Writes that would block return send-non-fatal").
func (p *EventPump) flushOutbound() {
	if cf, ok := p.conn.CloseFrameToResend(); ok {
		p.sendCloseOnly(cf)
		return
	}
	for _, space := range []Space{SpaceInitial, SpaceHandshake, SpaceApplication} {
		for {
			pkt, ok, err := p.conn.BuildPacket(space, 1200, time.Now())
			if err != nil || !ok {
				break
			}
			if _, err := p.sock.WriteTo(pkt, p.peer); err != nil {
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					return // send-non-fatal: re-enable the writable watch implicitly next tick
				}
				return
			}
		}
	}
}

func (p *EventPump) sendCloseOnly(cf Frame) {
	ss := p.conn.spaces[SpaceApplication]
	if ss.keys == nil || ss.keys.Write == nil {
		return
	}
	pn := ss.nextPN
	ss.nextPN++
	h := &Header{DestCID: p.conn.peerCID, SrcCID: p.conn.localCID, PacketNumber: pn}
	pkt, err := Build(h, []Frame{cf}, ss.keys.Write, ss.rtb.lastAckedPN)
	if err != nil {
		return
	}
	p.sock.WriteTo(pkt, p.peer)
}
