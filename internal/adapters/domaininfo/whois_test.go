package domaininfo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const freshRecord = `   Domain Name: FRESH-OFFERS.COM
   Registry Domain ID: 2801234567_DOMAIN_COM-VRSN
   Registrar WHOIS Server: whois.namecheap.com
   Registrar URL: http://www.namecheap.com
   Updated Date: 2026-02-17T10:00:00Z
   Creation Date: 2026-02-17T10:00:00Z
   Registry Expiry Date: 2027-02-17T10:00:00Z
   Registrar: NameCheap, Inc.
   Registrar IANA ID: 1068
   Domain Status: clientTransferProhibited https://icann.org/epp#clientTransferProhibited
   Name Server: DNS1.REGISTRAR-SERVERS.COM
   Name Server: DNS2.REGISTRAR-SERVERS.COM
   DNSSEC: unsigned
`

const oldRecord = `   Domain Name: OLDSHOP.COM
   Registry Domain ID: 12345678_DOMAIN_COM-VRSN
   Registrar WHOIS Server: whois.godaddy.com
   Registrar URL: http://www.godaddy.com
   Updated Date: 2024-05-01T08:00:00Z
   Creation Date: 2009-05-01T08:00:00Z
   Registry Expiry Date: 2030-05-01T08:00:00Z
   Registrar: GoDaddy.com, LLC
   Registrar IANA ID: 146
   Domain Status: clientDeleteProhibited https://icann.org/epp#clientDeleteProhibited
   Name Server: NS1.OLDSHOP.COM
   Name Server: NS2.OLDSHOP.COM
   DNSSEC: unsigned
`

const noMatchRecord = `No match for domain "NOPE-NOT-REGISTERED.COM".
>>> Last update of whois database: 2026-03-01T00:00:00Z <<<
`

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staticLookup(records map[string]string, calls *atomic.Int32) LookupFunc {
	return func(_ context.Context, name string) (string, error) {
		if calls != nil {
			calls.Add(1)
		}
		if raw, ok := records[name]; ok {
			return raw, nil
		}
		return noMatchRecord, nil
	}
}

func TestWhoisChecker_DomainAge(t *testing.T) {
	records := map[string]string{
		"fresh-offers.com": freshRecord,
		"oldshop.com":      oldRecord,
	}
	c := NewWhoisChecker(time.Second, quietLogger(), WithLookup(staticLookup(records, nil)), WithClock(func() time.Time { return testNow }))

	tests := []struct {
		name      string
		input     string
		wantName  string
		wantDays  int
		wantNew   bool
		wantKnown bool
	}{
		{name: "Recently registered", input: "fresh-offers.com", wantName: "fresh-offers.com", wantDays: 12, wantNew: true, wantKnown: true},
		{name: "Subdomain and URL reduce to registrable domain", input: "https://login.Fresh-Offers.com/verify", wantName: "fresh-offers.com", wantDays: 12, wantNew: true, wantKnown: true},
		{name: "Long registered", input: "www.oldshop.com", wantName: "oldshop.com", wantDays: 6148, wantKnown: true},
		{name: "Not registered", input: "nope-not-registered.com", wantName: "nope-not-registered.com", wantDays: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			age, err := c.DomainAge(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, age.Domain)
			assert.Equal(t, tt.wantDays, age.AgeDays)
			assert.Equal(t, tt.wantNew, age.IsNew)
			assert.Equal(t, tt.wantKnown, age.Known())
			if tt.wantKnown {
				require.NotNil(t, age.RegistrationDate)
				assert.NotEmpty(t, age.Registrar)
			} else {
				assert.Nil(t, age.RegistrationDate)
			}
		})
	}
}

func TestWhoisChecker_InvalidDomains(t *testing.T) {
	var calls atomic.Int32
	c := NewWhoisChecker(time.Second, quietLogger(), WithLookup(staticLookup(nil, &calls)))

	for _, input := range []string{"", "localhost", "com", "192.168.1.10", "https://10.0.0.1/login"} {
		t.Run(input, func(t *testing.T) {
			_, err := c.DomainAge(context.Background(), input)
			assert.ErrorIs(t, err, ErrInvalidDomain)
		})
	}
	assert.Zero(t, calls.Load())
}

func TestWhoisChecker_CachesAnswers(t *testing.T) {
	var calls atomic.Int32
	now := testNow
	c := NewWhoisChecker(time.Second, quietLogger(),
		WithLookup(staticLookup(map[string]string{"oldshop.com": oldRecord}, &calls)),
		WithClock(func() time.Time { return now }),
		WithCacheTTL(time.Hour),
	)

	for i := 0; i < 3; i++ {
		_, err := c.DomainAge(context.Background(), "oldshop.com")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(2 * time.Hour)
	_, err := c.DomainAge(context.Background(), "shop.oldshop.com")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWhoisChecker_ConcurrentLookupsShareOneQuery(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	lookup := func(_ context.Context, name string) (string, error) {
		calls.Add(1)
		<-release
		return oldRecord, nil
	}
	c := NewWhoisChecker(time.Second, quietLogger(), WithLookup(lookup), WithClock(func() time.Time { return testNow }))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			age, err := c.DomainAge(context.Background(), "oldshop.com")
			assert.NoError(t, err)
			assert.True(t, age.Known())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestWhoisChecker_Failures(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		boom := errors.New("connection refused")
		c := NewWhoisChecker(time.Second, quietLogger(), WithLookup(func(context.Context, string) (string, error) {
			return "", boom
		}))
		_, err := c.DomainAge(context.Background(), "oldshop.com")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("caller gives up", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		c := NewWhoisChecker(time.Second, quietLogger(), WithLookup(func(context.Context, string) (string, error) {
			<-release
			return oldRecord, nil
		}))
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := c.DomainAge(ctx, "oldshop.com")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestParseCreated(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{raw: "2026-02-17T10:00:00Z", want: time.Date(2026, 2, 17, 10, 0, 0, 0, time.UTC), ok: true},
		{raw: "2019-07-04", want: time.Date(2019, 7, 4, 0, 0, 0, 0, time.UTC), ok: true},
		{raw: "04-Jul-2019", want: time.Date(2019, 7, 4, 0, 0, 0, 0, time.UTC), ok: true},
		{raw: " 2019.07.04 ", want: time.Date(2019, 7, 4, 0, 0, 0, 0, time.UTC), ok: true},
		{raw: "", ok: false},
		{raw: "before 1995", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseCreated(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), got)
			}
		})
	}
}
