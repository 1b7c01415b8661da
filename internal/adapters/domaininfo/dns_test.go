package domaininfo

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startResolver serves a fixed zone on a loopback UDP port
func startResolver(t *testing.T, zone map[string][]dns.RR, failing map[string]bool) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		q := req.Question[0]
		switch {
		case failing[q.Name]:
			m.Rcode = dns.RcodeServerFailure
		default:
			records, ok := zone[q.Name]
			if !ok {
				m.Rcode = dns.RcodeNameError
			}
			for _, rr := range records {
				if rr.Header().Rrtype == q.Qtype {
					m.Answer = append(m.Answer, rr)
				}
			}
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	require.NoError(t, err)
	return rr
}

func TestDNSChecker_CheckDNS(t *testing.T) {
	zone := map[string][]dns.RR{
		"oldshop.com.": {
			mustRR(t, "oldshop.com. 300 IN A 203.0.113.7"),
			mustRR(t, "oldshop.com. 300 IN AAAA 2001:db8::7"),
		},
		"parked.example.": {},
	}
	addr := startResolver(t, zone, map[string]bool{"broken.example.": true})
	c := NewDNSChecker(addr, time.Second)
	assert.Equal(t, addr, c.Resolver())

	tests := []struct {
		name      string
		input     string
		wantIPs   []string
		resolves  bool
		wantError bool
	}{
		{name: "A and AAAA records", input: "https://www.oldshop.com/cart", wantIPs: []string{"203.0.113.7", "2001:db8::7"}, resolves: true},
		{name: "Existing name without addresses", input: "parked.example", wantIPs: []string{}},
		{name: "NXDOMAIN", input: "nope.example", wantIPs: []string{}},
		{name: "Server failure", input: "broken.example", wantError: true},
		{name: "IP literal", input: "10.1.2.3", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.CheckDNS(context.Background(), tt.input)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.resolves, got.Resolves)
			assert.Equal(t, tt.wantIPs, got.IPAddresses)
		})
	}
}

func TestDNSChecker_Unreachable(t *testing.T) {
	// Bound but never answered
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	c := NewDNSChecker(pc.LocalAddr().String(), 50*time.Millisecond)
	_, err = c.CheckDNS(context.Background(), "oldshop.com")
	assert.Error(t, err)
}

func TestResolverAddr(t *testing.T) {
	assert.Equal(t, "9.9.9.9:53", resolverAddr("9.9.9.9"))
	assert.Equal(t, "127.0.0.1:5353", resolverAddr("127.0.0.1:5353"))
	assert.NotEmpty(t, resolverAddr(""))
}
