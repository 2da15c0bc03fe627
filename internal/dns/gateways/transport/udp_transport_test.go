package transport

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-chain/internal/dns/common/log"
	"github.com/haukened/rr-chain/internal/dns/domain"
)

// handlerFunc adapts a function to PacketHandler.
type handlerFunc func(ctx context.Context, payload []byte, from net.Addr) []domain.Datagram

func (f handlerFunc) HandlePacket(ctx context.Context, payload []byte, from net.Addr) []domain.Datagram {
	return f(ctx, payload, from)
}

// MockPacketHandler implements PacketHandler for testing
type MockPacketHandler struct {
	mock.Mock
}

func (m *MockPacketHandler) HandlePacket(ctx context.Context, payload []byte, from net.Addr) []domain.Datagram {
	args := m.Called(ctx, payload, from)
	out, _ := args.Get(0).([]domain.Datagram)
	return out
}

func startTransport(t *testing.T, handler PacketHandler) (*UDPTransport, context.CancelFunc) {
	t.Helper()
	tr := NewUDPTransport("127.0.0.1:0", 20*time.Millisecond, log.NewNoopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, tr.Start(ctx, handler))
	t.Cleanup(func() {
		cancel()
		_ = tr.Stop()
	})
	return tr, cancel
}

func dial(t *testing.T, addr string) *net.UDPConn {
	t.Helper()
	raddr, err := net.ResolveUDPAddr("udp", addr)
	require.NoError(t, err)
	conn, err := net.DialUDP("udp", nil, raddr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readWithin(t *testing.T, conn *net.UDPConn, d time.Duration) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(d)))
	buf := make([]byte, MaxDatagramSize)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestUDPTransport_EchoRoundTrip(t *testing.T) {
	echo := handlerFunc(func(_ context.Context, payload []byte, from net.Addr) []domain.Datagram {
		return []domain.Datagram{{Payload: append([]byte("echo:"), payload...), Addr: from}}
	})
	tr, _ := startTransport(t, echo)

	conn := dial(t, tr.Address())
	_, err := conn.Write([]byte("hello"))
	require.NoError(t, err)

	assert.Equal(t, "echo:hello", string(readWithin(t, conn, time.Second)))
}

func TestUDPTransport_AddressIsBoundPort(t *testing.T) {
	tr := NewUDPTransport("127.0.0.1:0", 0, log.NewNoopLogger())
	assert.Equal(t, "127.0.0.1:0", tr.Address())
	require.NoError(t, tr.Bind())
	t.Cleanup(func() { _ = tr.Stop() })

	_, port, err := net.SplitHostPort(tr.Address())
	require.NoError(t, err)
	assert.NotEqual(t, "0", port)
}

func TestUDPTransport_HandlerSeesPayloadAndSender(t *testing.T) {
	h := &MockPacketHandler{}
	got := make(chan net.Addr, 1)
	h.On("HandlePacket", mock.Anything, []byte(`{"txid":1}`), mock.Anything).
		Run(func(args mock.Arguments) { got <- args.Get(2).(net.Addr) }).
		Return(nil)

	tr, _ := startTransport(t, h)
	conn := dial(t, tr.Address())
	_, err := conn.Write([]byte(`{"txid":1}`))
	require.NoError(t, err)

	select {
	case from := <-got:
		assert.Equal(t, conn.LocalAddr().String(), from.String())
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
	h.AssertExpectations(t)
}

func TestUDPTransport_SequentialHandling(t *testing.T) {
	var mu sync.Mutex
	active, maxActive, calls := 0, 0, 0
	h := handlerFunc(func(context.Context, []byte, net.Addr) []domain.Datagram {
		mu.Lock()
		active++
		calls++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	})
	tr, _ := startTransport(t, h)

	conn := dial(t, tr.Address())
	for i := 0; i < 5; i++ {
		_, err := conn.Write([]byte("x"))
		require.NoError(t, err)
	}
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 5
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxActive, "datagrams are handled one at a time")
}

func TestUDPTransport_ForwardsToThirdParty(t *testing.T) {
	upstream, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = upstream.Close() })

	fwd := handlerFunc(func(_ context.Context, payload []byte, _ net.Addr) []domain.Datagram {
		return []domain.Datagram{{Payload: payload, Addr: upstream.LocalAddr()}}
	})
	tr, _ := startTransport(t, fwd)
	conn := dial(t, tr.Address())
	_, err = conn.Write([]byte("forward me"))
	require.NoError(t, err)

	require.NoError(t, upstream.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 64)
	n, from, err := upstream.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "forward me", string(buf[:n]))
	assert.Equal(t, tr.Address(), from.String(), "forwarded from the transport's own socket")
}

func TestUDPTransport_StopEndsLoopCleanly(t *testing.T) {
	tr := NewUDPTransport("127.0.0.1:0", 20*time.Millisecond, log.NewNoopLogger())
	require.NoError(t, tr.Start(context.Background(), handlerFunc(func(context.Context, []byte, net.Addr) []domain.Datagram { return nil })))

	require.NoError(t, tr.Stop())
	select {
	case err := <-tr.Done():
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not end after Stop")
	}
	assert.NoError(t, tr.Stop(), "second stop is a no-op")
	assert.Error(t, tr.Start(context.Background(), nil), "stopped transport cannot restart")
}

func TestUDPTransport_ContextCancelEndsLoop(t *testing.T) {
	tr, cancel := startTransport(t, handlerFunc(func(context.Context, []byte, net.Addr) []domain.Datagram { return nil }))
	cancel()
	select {
	case err := <-tr.Done():
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not observe cancellation")
	}
}

func TestUDPTransport_DoubleStart(t *testing.T) {
	tr, _ := startTransport(t, handlerFunc(func(context.Context, []byte, net.Addr) []domain.Datagram { return nil }))
	err := tr.Start(context.Background(), nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestUDPTransport_BindErrors(t *testing.T) {
	tr := NewUDPTransport("not-an-address", 0, log.NewNoopLogger())
	assert.Error(t, tr.Bind())

	first := NewUDPTransport("127.0.0.1:0", 0, log.NewNoopLogger())
	require.NoError(t, first.Bind())
	t.Cleanup(func() { _ = first.Stop() })

	second := NewUDPTransport(first.Address(), 0, log.NewNoopLogger())
	err := second.Start(context.Background(), nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to bind")
}

func TestUDPTransport_Send(t *testing.T) {
	tr := NewUDPTransport("127.0.0.1:0", 0, log.NewNoopLogger())
	assert.Error(t, tr.Send(domain.Datagram{}), "send before bind fails")

	require.NoError(t, tr.Bind())
	t.Cleanup(func() { _ = tr.Stop() })

	sink, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	require.NoError(t, tr.Send(domain.Datagram{Payload: []byte("forged"), Addr: sink.LocalAddr()}))
	require.NoError(t, sink.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 16)
	n, _, err := sink.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "forged", string(buf[:n]))
}
