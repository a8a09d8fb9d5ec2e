package collector

import (
	"net"
	"strings"
	"time"

	"github.com/vigilnet/vigilnet/internal/logging"
)

// UDPServer accepts one syslog message per datagram and pushes it straight
// into the shared buffer.
type UDPServer struct {
	addr    string
	buffer  *Buffer
	metrics *Metrics
	log     *logging.Logger
}

func NewUDPServer(addr string, buffer *Buffer, metrics *Metrics, log *logging.Logger) *UDPServer {
	return &UDPServer{addr: addr, buffer: buffer, metrics: metrics, log: log}
}

// Serve listens until stopCh is closed. Each datagram is treated as exactly
// one message; a 64KiB buffer comfortably exceeds the 9K practical syslog
// UDP MTU ceiling.
func (s *UDPServer) Serve(stopCh <-chan struct{}) error {
	addr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-stopCh
		conn.Close()
	}()

	buf := make([]byte, 65536)
	for {
		conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				select {
				case <-stopCh:
					return nil
				default:
					continue
				}
			}
			select {
			case <-stopCh:
				return nil
			default:
				s.log.Error("udp read failed", "err", err)
				continue
			}
		}
		if n == 0 {
			continue
		}

		s.metrics.RecordReceived()
		ev := BufferedEvent{
			RawMessage: strings.TrimRight(string(buf[:n]), "\r\n"),
			ReceivedAt: time.Now().UTC(),
			SourceIP:   raddr.IP.String(),
		}
		if !s.buffer.Push(ev) {
			s.metrics.RecordDropped()
		}
	}
}
