package monitoring

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"

	"ravenwatch/internal/config"
)

func TestProbeDoesNotFollowRedirects(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
			return
		}
		w.Write([]byte("landed"))
	}))
	defer srv.Close()

	p, err := NewProber(WithTimeout(2 * time.Second))
	if err != nil {
		t.Fatalf("NewProber: %v", err)
	}

	out := p.Probe(context.Background(), srv.URL+"/old")
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.StatusCode != http.StatusMovedPermanently {
		t.Errorf("status = %d, want 301", out.StatusCode)
	}
	if out.StatusMessage != "Moved Permanently" {
		t.Errorf("status message = %q", out.StatusMessage)
	}
	if !out.HasLocation || out.Location != "/new" {
		t.Errorf("location = %q (present %v), want /new", out.Location, out.HasLocation)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server saw %d requests, want 1", n)
	}
	if out.Duration == nil {
		t.Error("duration should be measured")
	}
}

func TestProbeSendsUserAgent(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.UserAgent()
	}))
	defer srv.Close()

	p, _ := NewProber()
	p.Probe(context.Background(), srv.URL)
	if ua := <-got; ua != config.DefaultUserAgent {
		t.Fatalf("user agent = %q", ua)
	}

	p, _ = NewProber(WithUserAgent("ravenwatch-test"))
	p.Probe(context.Background(), srv.URL)
	if ua := <-got; ua != "ravenwatch-test" {
		t.Fatalf("user agent = %q", ua)
	}
}

func TestProbeTruncatesBody(t *testing.T) {
	body := strings.Repeat("x", 25)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	p, err := NewProber(WithMaxBodyBytes(10))
	if err != nil {
		t.Fatalf("NewProber: %v", err)
	}
	out := p.Probe(context.Background(), srv.URL)
	if len(out.Body) != 10 || !out.BodyTruncated {
		t.Errorf("body = %q truncated=%v, want 10 bytes truncated", out.Body, out.BodyTruncated)
	}
	if out.ContentLength != 25 {
		t.Errorf("content length = %d, want 25", out.ContentLength)
	}
	if out.ContentType != "text/plain" {
		t.Errorf("content type = %q", out.ContentType)
	}
}

func TestProbeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	p, _ := NewProber(WithTimeout(time.Second))
	out := p.Probe(context.Background(), target)
	if out.Responded() {
		t.Fatal("expected transport failure")
	}
	var te *TransportError
	if !errors.As(out.Err, &te) {
		t.Fatalf("error %T is not a TransportError", out.Err)
	}
	if out.StatusCodeString() != "" {
		t.Errorf("status code = %q, want empty", out.StatusCodeString())
	}
	if out.Duration == nil {
		t.Error("elapsed time should be recorded for transport failures")
	}
}

func TestProbeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	p, _ := NewProber(WithTimeout(100 * time.Millisecond))
	out := p.Probe(context.Background(), srv.URL)
	if out.Responded() {
		t.Fatal("expected timeout")
	}
	if out.Duration == nil || *out.Duration < 100*time.Millisecond {
		t.Errorf("duration = %v, want at least the timeout", out.Duration)
	}
}

func TestProbeInvalidURL(t *testing.T) {
	p, _ := NewProber()
	out := p.Probe(context.Background(), "http://[::1")
	if out.Responded() {
		t.Fatal("expected failure")
	}
	if out.Duration != nil {
		t.Errorf("duration = %v, want nil when no request was sent", *out.Duration)
	}
}

func TestNewProberRejectsBadOptions(t *testing.T) {
	for name, opt := range map[string]Option{
		"timeout":    WithTimeout(0),
		"user agent": WithUserAgent(""),
		"max body":   WithMaxBodyBytes(-1),
		"client":     WithHTTPClient(nil),
	} {
		if _, err := NewProber(opt); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

// startDNS serves A records for known and NXDOMAIN for everything else.
func startDNS(t *testing.T, known map[string]string) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		name := r.Question[0].Name
		if ip, ok := known[name]; ok {
			rr, _ := dns.NewRR(name + " 60 IN A " + ip)
			m.Answer = append(m.Answer, rr)
		} else {
			m.Rcode = dns.RcodeNameError
		}
		w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go srv.ActivateAndServe()
	<-started
	t.Cleanup(func() { srv.Shutdown() })

	return pc.LocalAddr().String()
}

func TestDNSDiagnoser(t *testing.T) {
	addr := startDNS(t, map[string]string{"up.test.": "192.0.2.10"})

	d, err := NewDNSDiagnoser(addr, time.Second)
	if err != nil {
		t.Fatalf("NewDNSDiagnoser: %v", err)
	}

	ctx := context.Background()
	if got := d.Diagnose(ctx, "up.test"); got != "dns: resolves to 192.0.2.10" {
		t.Errorf("up.test: %q", got)
	}
	if got := d.Diagnose(ctx, "gone.test"); got != "dns: nxdomain" {
		t.Errorf("gone.test: %q", got)
	}
	if got := d.Diagnose(ctx, "127.0.0.1"); got != "dns: literal address" {
		t.Errorf("literal: %q", got)
	}
}

func TestProbeAttachesDiagnosis(t *testing.T) {
	addr := startDNS(t, nil)
	d, _ := NewDNSDiagnoser(addr, time.Second)

	p, _ := NewProber(WithTimeout(time.Second), WithDiagnoser(d))
	out := p.Probe(context.Background(), "http://missing.invalid/")
	if out.Responded() {
		t.Fatal("expected transport failure")
	}
	var te *TransportError
	if !errors.As(out.Err, &te) || te.Diagnosis != "dns: nxdomain" {
		t.Fatalf("diagnosis missing from %v", out.Err)
	}
}
