package upstream

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-chain/internal/dns/common/log"
	"github.com/haukened/rr-chain/internal/dns/domain"
	"github.com/haukened/rr-chain/internal/dns/gateways/wire"
)

// MockCodec implements wire.Codec for testing
type MockCodec struct {
	mock.Mock
}

func (m *MockCodec) Decode(data []byte) (domain.Message, error) {
	args := m.Called(data)
	return args.Get(0).(domain.Message), args.Error(1)
}

func (m *MockCodec) EncodeQuery(q domain.Query) ([]byte, error) {
	args := m.Called(q)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockCodec) EncodeResponse(r domain.Response) ([]byte, error) {
	args := m.Called(r)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

// fakeResolver answers each query with the payloads produced by reply.
func fakeResolver(t *testing.T, reply func(q domain.Query) [][]byte) string {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	codec := wire.NewJSONCodec(nil)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, from, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			msg, err := codec.Decode(buf[:n])
			if err != nil || msg.Kind != domain.KindQuery {
				continue
			}
			for _, out := range reply(msg.Query) {
				_, _ = conn.WriteTo(out, from)
			}
		}
	}()
	return conn.LocalAddr().String()
}

func newClient(t *testing.T, server string, timeout time.Duration) *Client {
	t.Helper()
	c, err := NewClient(Options{
		Server:  server,
		Timeout: timeout,
		Codec:   wire.NewJSONCodec(nil),
		Logger:  log.NewNoopLogger(),
	})
	require.NoError(t, err)
	return c
}

func encode(t *testing.T, r domain.Response) []byte {
	t.Helper()
	b, err := wire.NewJSONCodec(nil).EncodeResponse(r)
	require.NoError(t, err)
	return b
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Options{Codec: wire.NewJSONCodec(nil)})
	assert.EqualError(t, err, errServerRequired)

	_, err = NewClient(Options{Server: "127.0.0.1:21000"})
	assert.EqualError(t, err, errCodecRequired)

	c, err := NewClient(Options{Server: "127.0.0.1:21000", Codec: wire.NewJSONCodec(nil)})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, c.timeout)
}

func TestClient_LookupMatchesTxID(t *testing.T) {
	server := fakeResolver(t, func(q domain.Query) [][]byte {
		return [][]byte{encode(t, domain.NewAnswer(q.TxID, q.Name, q.Type, 3600, "15.197.140.28"))}
	})
	c := newClient(t, server, time.Second)

	resp, err := c.Lookup(context.Background(), "cloud.amazone.com", domain.RRTypeA)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), resp.TxID)
	assert.Equal(t, "15.197.140.28", resp.Result)
	require.NotNil(t, resp.TTL)
	assert.Equal(t, uint32(3600), *resp.TTL)

	resp, err = c.Lookup(context.Background(), "cloud.amazone.com", domain.RRTypeA)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), resp.TxID, "ids are sequential from zero")
}

func TestClient_DiscardsUnrelatedReplies(t *testing.T) {
	server := fakeResolver(t, func(q domain.Query) [][]byte {
		return [][]byte{
			[]byte("garbage"),
			encode(t, domain.NewAnswer(q.TxID+7, q.Name, q.Type, 60, "6.6.6.6")),
			[]byte(`{"txid":0,"flag":"0000","question":{"name":"x.com","type":"A"}}`),
			encode(t, domain.NewAnswer(q.TxID, q.Name, q.Type, 60, "3.33.147.88")),
		}
	})
	c := newClient(t, server, time.Second)

	resp, err := c.Lookup(context.Background(), "shop.amazone.com", domain.RRTypeA)
	require.NoError(t, err)
	assert.Equal(t, "3.33.147.88", resp.Result)
}

func TestClient_NegativeAnswerIsNotAnError(t *testing.T) {
	server := fakeResolver(t, func(q domain.Query) [][]byte {
		return [][]byte{encode(t, domain.NewNegativeAnswer(q))}
	})
	c := newClient(t, server, time.Second)

	resp, err := c.Lookup(context.Background(), "nope.amazone.com", domain.RRTypeA)
	require.NoError(t, err)
	assert.True(t, resp.IsNegative())
}

func TestClient_Timeout(t *testing.T) {
	server := fakeResolver(t, func(domain.Query) [][]byte { return nil })
	c := newClient(t, server, 50*time.Millisecond)

	start := time.Now()
	_, err := c.Lookup(context.Background(), "slow.amazone.com", domain.RRTypeA)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_CallerCancel(t *testing.T) {
	server := fakeResolver(t, func(domain.Query) [][]byte { return nil })
	c := newClient(t, server, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err := c.Lookup(ctx, "slow.amazone.com", domain.RRTypeA)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_EncodeFailure(t *testing.T) {
	codec := &MockCodec{}
	codec.On("EncodeQuery", mock.Anything).Return(nil, errors.New("boom"))
	c, err := NewClient(Options{Server: "127.0.0.1:1", Codec: codec})
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), "a.com", domain.RRTypeA)
	assert.ErrorContains(t, err, "encode failed")
	codec.AssertExpectations(t)
}

func TestClient_DialFailure(t *testing.T) {
	c, err := NewClient(Options{
		Server: "127.0.0.1:21000",
		Codec:  wire.NewJSONCodec(nil),
		Dial: func(context.Context, string, string) (net.Conn, error) {
			return nil, errors.New("no route")
		},
	})
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), "a.com", domain.RRTypeA)
	assert.ErrorContains(t, err, "failed to connect")
}

func TestClient_CustomIDs(t *testing.T) {
	server := fakeResolver(t, func(q domain.Query) [][]byte {
		return [][]byte{encode(t, domain.NewAnswer(q.TxID, q.Name, q.Type, 60, "1.2.3.4"))}
	})
	c, err := NewClient(Options{Server: server, Codec: wire.NewJSONCodec(nil), IDs: &counter{next: 900}, Timeout: time.Second})
	require.NoError(t, err)

	resp, err := c.Lookup(context.Background(), "a.com", domain.RRTypeA)
	require.NoError(t, err)
	assert.Equal(t, uint32(900), resp.TxID)
}
