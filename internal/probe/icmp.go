package probe

import (
	"context"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	protocolICMP     = 1
	protocolIPv6ICMP = 58
)

var echoPayload = []byte("pingmonitor-echo")

// Pinger sends a single ICMP echo per Check. Unprivileged mode uses
// datagram ICMP sockets (Linux ping_group_range, macOS); privileged mode
// needs CAP_NET_RAW.
type Pinger struct {
	Privileged bool

	id  int
	seq atomic.Uint32
}

func NewPinger(privileged bool) *Pinger {
	return &Pinger{Privileged: privileged, id: os.Getpid() & 0xffff}
}

func (p *Pinger) Check(ctx context.Context, target, addr string) CheckResult {
	ip := net.ParseIP(addr)
	if ip == nil {
		return CheckResult{Success: false, Message: "invalid address " + addr}
	}
	v4 := ip.To4() != nil

	network, laddr, proto := "udp4", "0.0.0.0", protocolICMP
	var reqType, replyType icmp.Type = ipv4.ICMPTypeEcho, ipv4.ICMPTypeEchoReply
	if !v4 {
		network, laddr, proto = "udp6", "::", protocolIPv6ICMP
		reqType, replyType = ipv6.ICMPTypeEchoRequest, ipv6.ICMPTypeEchoReply
	}
	if p.Privileged {
		network = "ip4:icmp"
		if !v4 {
			network = "ip6:ipv6-icmp"
		}
	}

	conn, err := icmp.ListenPacket(network, laddr)
	if err != nil {
		return CheckResult{Success: false, Message: "icmp listen: " + err.Error()}
	}
	defer conn.Close()
	// unblock ReadFrom on cancellation, not only on deadline
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	seq := int(p.seq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: reqType,
		Code: 0,
		Body: &icmp.Echo{ID: p.id, Seq: seq, Data: echoPayload},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return CheckResult{Success: false, Message: "icmp marshal: " + err.Error()}
	}

	var dst net.Addr = &net.UDPAddr{IP: ip}
	if p.Privileged {
		dst = &net.IPAddr{IP: ip}
	}

	start := time.Now()
	if _, err := conn.WriteTo(wb, dst); err != nil {
		return CheckResult{Success: false, Message: "icmp send: " + err.Error()}
	}

	rb := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(rb)
		if err != nil {
			if ctx.Err() != nil {
				return CheckResult{Success: false, Message: "timeout"}
			}
			return CheckResult{Success: false, Message: "icmp read: " + err.Error()}
		}
		rm, err := icmp.ParseMessage(proto, rb[:n])
		if err != nil || rm.Type != replyType {
			continue
		}
		echo, ok := rm.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}
		// datagram sockets get their ID rewritten by the kernel; raw ones
		// see every reply on the host
		if p.Privileged && echo.ID != p.id {
			continue
		}
		return CheckResult{
			Success:   true,
			LatencyMS: time.Since(start).Seconds() * 1000,
			Message:   "echo reply",
		}
	}
}
