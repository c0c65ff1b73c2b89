// Package capture owns the raw link-layer socket and the packet
// receive loop: frame -> parse -> classify -> account.
package capture

import (
	"errors"
	"log"
	"math/rand"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/aggregator"
	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/classifier"
	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/frame"
	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/model"
)

const (
	socketRcvBufSize = 32 * 1024 * 1024
	recvTimeout      = 1 * time.Second
)

// Loop is the capture hot path: one goroutine, one raw socket, one
// reusable receive buffer.
type Loop struct {
	iface      string
	classifier *classifier.Classifier
	agg        *aggregator.Aggregator

	running chan struct{}
	done    chan struct{}
}

// New creates a capture Loop for iface.
func New(iface string, cl *classifier.Classifier, agg *aggregator.Aggregator) *Loop {
	return &Loop{
		iface:      iface,
		classifier: cl,
		agg:        agg,
		running:    make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Stop signals the loop to exit. It returns once the loop has
// released the socket.
func (l *Loop) Stop() {
	select {
	case <-l.running:
		// already stopped/stopping
	default:
		close(l.running)
	}
	<-l.done
}

// Run opens the raw socket and processes frames until Stop is called.
// If the socket cannot be opened because of a permission error, it
// falls back to simulation mode instead of failing the process.
func (l *Loop) Run() {
	defer close(l.done)

	fd, err := openRawSocket(l.iface)
	if err != nil {
		if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
			log.Printf("capture: permission denied opening raw socket on %s: %v", l.iface, err)
			log.Printf("capture: entering simulation mode")
			l.simulate()
			return
		}
		log.Printf("capture: socket error on %s: %v", l.iface, err)
		return
	}
	defer unix.Close(fd)

	buf := make([]byte, 65535)
	for {
		select {
		case <-l.running:
			return
		default:
		}

		n, _, err := unix.Recvfrom(fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			select {
			case <-l.running:
				return
			default:
				log.Printf("capture: recv error on %s: %v", l.iface, err)
				return
			}
		}

		ts := time.Now()
		l.handleFrame(buf[:n], ts)
	}
}

// openRawSocket opens an AF_PACKET/SOCK_RAW socket bound to iface,
// requests a 32MiB receive buffer (the kernel may cap it), and sets a
// 1s receive timeout so the loop can poll the running flag.
func openRawSocket(iface string) (int, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, htons(unix.ETH_P_ALL))
	if err != nil {
		return -1, err
	}

	ifi, err := netInterfaceIndex(iface)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}

	addr := &unix.SockaddrLinklayer{
		Protocol: uint16(htons(unix.ETH_P_ALL)),
		Ifindex:  ifi,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, socketRcvBufSize); err != nil {
		log.Printf("capture: failed to set SO_RCVBUF: %v", err)
	}
	actual, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF)
	if err == nil {
		log.Printf("capture: socket recv buffer requested=%dKB actual=%dKB", socketRcvBufSize/1024, actual/1024)
	}

	tv := unix.Timeval{Sec: int64(recvTimeout / time.Second), Usec: 0}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		log.Printf("capture: failed to set SO_RCVTIMEO: %v", err)
	}

	return fd, nil
}

func htons(i uint16) int {
	return int(i<<8&0xff00 | i>>8)
}

func netInterfaceIndex(name string) (int, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return 0, err
	}
	return ifi.Index, nil
}

// handleFrame parses one frame, classifies its endpoints, and
// accounts the byte count if the packet crosses the local/remote
// boundary exactly once.
func (l *Loop) handleFrame(data []byte, ts time.Time) {
	p, ok := frame.Parse(data)
	if !ok {
		return
	}

	if p.IsV6 {
		if l.classifier.IsInLANPrefix(p.SrcV6) && l.classifier.IsInLANPrefix(p.DstV6) {
			return
		}
		srcLocal := l.classifier.IsLocalV6(p.SrcV6)
		dstLocal := l.classifier.IsLocalV6(p.DstV6)
		switch {
		case srcLocal && dstLocal:
			return
		case !srcLocal && !dstLocal:
			return
		case srcLocal:
			l.agg.AddBytes(model.Upload, uint64(p.Length), aggregator.FormatV6(p.DstV6), ts)
		default:
			l.agg.AddBytes(model.Download, uint64(p.Length), aggregator.FormatV6(p.SrcV6), ts)
		}
		return
	}

	srcLocal := l.classifier.IsLocalV4(p.SrcV4)
	dstLocal := l.classifier.IsLocalV4(p.DstV4)
	switch {
	case srcLocal && dstLocal:
		return
	case !srcLocal && !dstLocal:
		return
	case srcLocal:
		l.agg.AddBytes(model.Upload, uint64(p.Length), aggregator.FormatV4(p.DstV4), ts)
	default:
		l.agg.AddBytes(model.Download, uint64(p.Length), aggregator.FormatV4(p.SrcV4), ts)
	}
}

// simulate synthesizes fake traffic (down:up ~= 4:1) so the dashboard
// stays demonstrable on machines where NET_RAW is unavailable.
func (l *Loop) simulate() {
	fakeIPs := []string{
		"8.8.8.8", "1.1.1.1", "104.16.0.1", "203.0.113.5",
		"2400:3200::1", "2001:4860:4860::8888",
		"185.60.216.1", "91.108.4.1", "13.227.0.1", "31.13.70.1",
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-l.running:
			return
		case <-ticker.C:
			ip := fakeIPs[rng.Intn(len(fakeIPs))]
			size := uint64(500 + rng.Intn(961))
			dir := model.Download
			if rng.Intn(5) == 0 {
				dir = model.Upload
			}
			l.agg.AddBytes(dir, size, ip, time.Now())
		}
	}
}
