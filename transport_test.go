package subway

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/quic-go/quic-go"
	"github.com/raskyld/subway/pkg/flow"
	"github.com/stretchr/testify/require"
)

func generateKeyPair(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate private key: %s", err)
		return nil
	}
	return key
}

func generateCa(t *testing.T, pkey *ecdsa.PrivateKey) []byte {
	t.Helper()
	notBefore := time.Now()
	notAfter := time.Now().Add(1 * time.Hour)

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		t.Fatalf("failed to generate serialNumber: %s", err)
	}
	tmpl := x509.Certificate{
		Subject: pkix.Name{
			CommonName: "self-signed",
		},
		SerialNumber:          serialNumber,
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IPAddresses: []net.IP{
			{127, 0, 0, 1},
		},
		IsCA: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &pkey.PublicKey, pkey)
	if err != nil {
		t.Fatalf("failed to generate CA: %s", err)
		return nil
	}
	return certDER
}

func generateLeaf(t *testing.T, ca *x509.Certificate, caKP, leafKP *ecdsa.PrivateKey, cn string) []byte {
	t.Helper()
	notBefore := time.Now()
	notAfter := time.Now().Add(1 * time.Hour)

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		t.Fatalf("failed to generate serialNumber: %s", err)
	}
	tmpl := x509.Certificate{
		Subject: pkix.Name{
			CommonName: cn,
		},
		SerialNumber: serialNumber,
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		IPAddresses: []net.IP{
			{127, 0, 0, 1},
		},
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		IsCA:                  false,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &tmpl, ca, &leafKP.PublicKey, caKP)
	if err != nil {
		t.Fatalf("failed to generate leaf: %s", err)
		return nil
	}
	return certDER
}

// testPKI issues one mTLS configuration per node, all signed by the same CA.
func testPKI(t *testing.T, nodes ...string) map[string]*tls.Config {
	t.Helper()
	caKey := generateKeyPair(t)
	caDER := generateCa(t, caKey)
	ca, err := x509.ParseCertificate(caDER)
	require.NoError(t, err, "failed to parse CA")

	caPool := x509.NewCertPool()
	caPool.AddCert(ca)

	configs := make(map[string]*tls.Config, len(nodes))
	for _, node := range nodes {
		key := generateKeyPair(t)
		der := generateLeaf(t, ca, caKey, key, node)
		leaf, err := x509.ParseCertificate(der)
		require.NoError(t, err, "failed to parse leaf of %s", node)

		configs[node] = &tls.Config{
			Certificates: []tls.Certificate{
				{
					Certificate: [][]byte{der},
					Leaf:        leaf,
					PrivateKey:  key,
				},
			},
			ClientAuth: tls.RequireAndVerifyClientCert,
			ClientCAs:  caPool,
			RootCAs:    caPool,
		}
	}
	return configs
}

func newTestTransport(t *testing.T, bus *Bus, tlsConf *tls.Config) *Transport {
	t.Helper()
	tr, err := NewTransport(bus, &TransportConfig{
		TlsConfig:   tlsConf,
		BindAddr:    "127.0.0.1",
		BindPort:    0,
		MetricSink:  metrics.NewInmemSink(time.Second, 5*time.Minute),
		LogHandler:  testLogHandler(bus.ID()),
		DialTimeout: 5 * time.Second,
	})
	require.NoError(t, err, "failed to start transport of %s", bus.ID())
	t.Cleanup(func() {
		require.NoError(t, tr.Shutdown())
	})
	return tr
}

func TestNewTransport(t *testing.T) {
	a := newTestBus(t, "a", nil)

	_, err := NewTransport(a, &TransportConfig{BindAddr: "127.0.0.1"})
	require.ErrorIs(t, err, ErrNoTLSConfig)

	tr := newTestTransport(t, a, testPKI(t, "a")["a"])
	ip, port, err := tr.Addr()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", ip.String())
	require.NotZero(t, port)

	addr, err := tr.AdvertiseAddr("node-a.local")
	require.NoError(t, err)
	require.Equal(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), addr)
}

func TestTransport(t *testing.T) {
	pki := testPKI(t, "a", "b")
	a := newTestBus(t, "a", echoHandler("a"), WithMeta(Meta{"zone": "eu"}))
	b := newTestBus(t, "b", echoHandler("b"), WithMeta(Meta{"zone": "us"}))
	trA := newTestTransport(t, a, pki["a"])
	trB := newTestTransport(t, b, pki["b"])

	addrB, err := trB.AdvertiseAddr("")
	require.NoError(t, err)

	t.Run("dial registers both ends", func(t *testing.T) {
		p, err := trA.Dial(testContext(t, 10*time.Second), addrB)
		require.NoError(t, err)
		require.Equal(t, "b", p.ID())
		require.Equal(t, Meta{"zone": "us"}, p.Meta())

		require.Eventually(t, func() bool {
			p, has := b.Peer("a")
			return has && p.Meta()["zone"] == "eu"
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("requests flow both ways", func(t *testing.T) {
		body, err := a.Request(testContext(t, 5*time.Second), &Request{
			Host:     "b",
			Method:   MethodPost,
			Pathname: "/over/quic",
			Body:     []byte(`{"big":"` + strings.Repeat("x", 256<<10) + `"}`),
		})
		require.NoError(t, err)
		got := decodeEcho(t, body)
		require.Equal(t, "b", got.Node)
		require.Equal(t, []string{"a", "b"}, got.Path)

		body, err = b.Request(testContext(t, 5*time.Second), &Request{Host: "a", Pathname: "/back"})
		require.NoError(t, err)
		require.Equal(t, "a", decodeEcho(t, body).Node)
	})

	t.Run("concurrent requests", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 16)
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := a.Request(testContext(t, 5*time.Second), &Request{Host: "b", Pathname: "/many"})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
	})

	t.Run("a second link to the same node is refused", func(t *testing.T) {
		_, err := trA.Dial(testContext(t, 10*time.Second), addrB)
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrPeerExists) || errors.Is(err, ErrHello), err.Error())
		require.Len(t, a.Peers(), 1)

		// the original link survives.
		_, err = a.Request(testContext(t, 5*time.Second), &Request{Host: "b"})
		require.NoError(t, err)
	})

	t.Run("invalid address", func(t *testing.T) {
		_, err := trA.Dial(testContext(t, time.Second), "not an address")
		require.ErrorIs(t, err, ErrInvalidAddr)
	})

	t.Run("shutdown removes the peers", func(t *testing.T) {
		require.NoError(t, trB.Shutdown())
		require.NoError(t, trB.Shutdown())

		require.Eventually(t, func() bool {
			_, has := a.Peer("b")
			return !has
		}, 10*time.Second, 20*time.Millisecond)

		_, err := trB.Dial(testContext(t, time.Second), addrB)
		require.ErrorIs(t, err, ErrShutdown)
	})
}

func TestTransportRejectsOwnID(t *testing.T) {
	pki := testPKI(t, "a", "c")
	a := newTestBus(t, "a", nil)
	c := newTestBus(t, "c", nil)
	trA := newTestTransport(t, a, pki["a"])
	trC := newTestTransport(t, c, pki["c"])

	addrA, err := trA.AdvertiseAddr("")
	require.NoError(t, err)

	// a node dialing itself gets its own id back.
	_, err = trA.Dial(testContext(t, 10*time.Second), addrA)
	require.ErrorIs(t, err, ErrHello)
	require.Empty(t, a.Peers())

	_, err = trC.Dial(testContext(t, 10*time.Second), addrA)
	require.NoError(t, err)
}

func TestTransportSkipsMalformedEnvelope(t *testing.T) {
	pki := testPKI(t, "b", "x")
	b := newTestBus(t, "b", echoHandler("b"))
	trB := newTestTransport(t, b, pki["b"])
	addrB, err := trB.AdvertiseAddr("")
	require.NoError(t, err)

	// x speaks the protocol by hand to control every frame it sends.
	ctx := testContext(t, 10*time.Second)
	tlsX := pki["x"].Clone()
	tlsX.NextProtos = []string{ProtocolVersion}
	conn, err := quic.DialAddr(ctx, addrB, tlsX, &quic.Config{})
	require.NoError(t, err)
	defer conn.CloseWithError(0, "bye")

	stream, err := conn.OpenStreamSync(ctx)
	require.NoError(t, err)
	require.NoError(t, stream.SetReadDeadline(time.Now().Add(10*time.Second)))

	hellos := flow.NewJSONCodec[*hello](maxHelloSize)
	require.NoError(t, hellos.Encode(stream, &hello{Version: ProtocolVersion, ID: "x"}))
	remote, err := hellos.DecodeOne(stream)
	require.NoError(t, err)
	require.Equal(t, "b", remote.ID)

	// a well framed envelope whose content is garbage.
	require.NoError(t, flow.NewBytesCodec(false, 0).Encode(stream, []byte{0xff, 0xff, 0xff}))

	codec := EnvelopeCodec(false, 0)
	req := newRequestEnvelope("x-1", "x", []string{"x", "b"}, &Request{Host: "b", Pathname: "/after-garbage"})
	require.NoError(t, codec.Encode(stream, req))

	elem, err := codec.Decode(stream)
	require.NoError(t, err)
	reply := elem.(*Envelope)
	require.Equal(t, "x-1", reply.InReplyTo)
	require.Equal(t, []string{"b", "x"}, reply.Path)
	require.Equal(t, http.StatusOK, reply.Message.Response.StatusCode)

	_, linked := b.Peer("x")
	require.True(t, linked, "the link must survive a malformed envelope")
}
