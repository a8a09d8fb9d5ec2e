package collector

import (
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilnet/vigilnet/internal/logging"
)

func TestUDPServerStripsTrailingCRLF(t *testing.T) {
	buffer := NewBuffer(10)
	metrics := NewMetrics()
	srv := NewUDPServer("127.0.0.1:0", buffer, metrics, logging.New(slog.LevelError, "text"))

	addr, err := net.ResolveUDPAddr("udp", srv.addr)
	require.NoError(t, err)
	conn, err := net.ListenUDP("udp", addr)
	require.NoError(t, err)
	srv.addr = conn.LocalAddr().String()
	conn.Close()

	stopCh := make(chan struct{})
	go srv.Serve(stopCh)
	time.Sleep(20 * time.Millisecond) // let Serve bind before we send

	client, err := net.Dial("udp", srv.addr)
	require.NoError(t, err)
	defer client.Close()
	_, err = client.Write([]byte("date=2026-08-06 devname=fw01\r\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return buffer.Len() == 1 }, time.Second, 10*time.Millisecond)
	close(stopCh)

	batch := buffer.PopBatch(1)
	require.Len(t, batch, 1)
	assert.Equal(t, "date=2026-08-06 devname=fw01", batch[0].RawMessage)
}
