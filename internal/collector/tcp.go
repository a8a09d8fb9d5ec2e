package collector

import (
	"bytes"
	"net"
	"time"

	"github.com/vigilnet/vigilnet/internal/logging"
)

const (
	tcpMaxLineBytes = 64 * 1024
	tcpIdleTimeout  = 5 * time.Minute
)

// TCPServer accepts newline-delimited syslog streams. Lines are framed
// manually with a bytes.Buffer rather than bufio.Scanner, which would error
// out on a line past its fixed token cap instead of truncating and moving
// on.
type TCPServer struct {
	addr    string
	buffer  *Buffer
	metrics *Metrics
	log     *logging.Logger
}

func NewTCPServer(addr string, buffer *Buffer, metrics *Metrics, log *logging.Logger) *TCPServer {
	return &TCPServer{addr: addr, buffer: buffer, metrics: metrics, log: log}
}

func (s *TCPServer) Serve(stopCh <-chan struct{}) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-stopCh
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-stopCh:
				return nil
			default:
				s.log.Error("tcp accept failed", "err", err)
				continue
			}
		}
		s.metrics.IncTCPConnections()
		go s.handleConn(conn, stopCh)
	}
}

func (s *TCPServer) handleConn(conn net.Conn, stopCh <-chan struct{}) {
	defer conn.Close()
	defer s.metrics.DecTCPConnections()

	remoteIP, _, _ := net.SplitHostPort(conn.RemoteAddr().String())

	var line bytes.Buffer
	chunk := make([]byte, 4096)

	for {
		conn.SetReadDeadline(time.Now().Add(tcpIdleTimeout))
		n, err := conn.Read(chunk)
		if n > 0 {
			for _, b := range chunk[:n] {
				if b == '\n' {
					s.emit(line.String(), remoteIP)
					line.Reset()
					continue
				}
				if line.Len() < tcpMaxLineBytes {
					line.WriteByte(b)
				}
				// bytes beyond the cap are dropped; the line is still
				// emitted (truncated) at the next newline.
			}
		}
		if err != nil {
			if line.Len() > 0 {
				s.emit(line.String(), remoteIP)
			}
			// a client resetting the connection is routine, not an error
			// worth logging.
			if !isConnReset(err) && !isTimeout(err) {
				s.log.Error("tcp read failed", "err", err)
			}
			return
		}

		select {
		case <-stopCh:
			return
		default:
		}
	}
}

func (s *TCPServer) emit(msg, sourceIP string) {
	if msg == "" {
		return
	}
	s.metrics.RecordReceived()
	ev := BufferedEvent{RawMessage: msg, ReceivedAt: time.Now().UTC(), SourceIP: sourceIP}
	if !s.buffer.Push(ev) {
		s.metrics.RecordDropped()
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func isConnReset(err error) bool {
	return err != nil && (err.Error() == "read: connection reset by peer" ||
		containsConnReset(err.Error()))
}

func containsConnReset(s string) bool {
	for i := 0; i+len("connection reset") <= len(s); i++ {
		if s[i:i+len("connection reset")] == "connection reset" {
			return true
		}
	}
	return false
}
