package service

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeWhois answers by server name; "" is the library's own server choice.
type fakeWhois struct {
	answers map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeWhois) Whois(domain string, servers ...string) (string, error) {
	server := ""
	if len(servers) > 0 {
		server = servers[0]
	}
	f.calls = append(f.calls, server)
	if err, ok := f.errs[server]; ok {
		return "", err
	}
	if raw, ok := f.answers[server]; ok {
		return raw, nil
	}
	return "", errors.New("dial tcp: connection refused")
}

const registryAnswer = `% IANA WHOIS server
# comment line
   Domain Name: EXAMPLE.COM
   Registry Domain ID: 2336799_DOMAIN_COM-VRSN


   Registrar WHOIS Server: whois.registrar.test
   Creation Date: 1995-08-14T04:00:00Z
`

const registrarAnswer = `Domain Name: example.com
Registry Domain ID: 2336799_DOMAIN_COM-VRSN
Registrar WHOIS Server: whois.registrar.test
Registrar: Example Registrar, Inc.
Creation Date: 1995-08-14T04:00:00Z
Registry Expiry Date: 2026-08-13T04:00:00Z
Name Server: A.IANA-SERVERS.NET
Name Server: B.IANA-SERVERS.NET
`

func TestWhoisService_Lookup(t *testing.T) {
	f := &fakeWhois{answers: map[string]string{
		"":                     registryAnswer,
		"whois.registrar.test": registrarAnswer,
	}}
	s := &WhoisService{Client: f}

	res := s.Lookup(context.Background(), "example.com")
	if res.Failed() {
		t.Fatalf("Lookup failed: %s", res.Err)
	}
	raw, ok := res.Value.(string)
	if !ok {
		t.Fatalf("Expected text record, got %T", res.Value)
	}
	if !strings.Contains(raw, "Registrar: Example Registrar, Inc.") {
		t.Errorf("Expected registrar referral to be followed, got:\n%s", raw)
	}
	if len(f.calls) != 2 || f.calls[1] != "whois.registrar.test" {
		t.Errorf("Unexpected query sequence %v", f.calls)
	}
}

func TestWhoisService_Lookup_StripsComments(t *testing.T) {
	f := &fakeWhois{answers: map[string]string{"": registryAnswer}}
	s := &WhoisService{Client: f}

	res := s.Lookup(context.Background(), "example.com")
	if res.Failed() {
		t.Fatalf("Lookup failed: %s", res.Err)
	}
	raw := res.Value.(string)
	if strings.Contains(raw, "IANA WHOIS server") || strings.Contains(raw, "# comment") {
		t.Errorf("Comment lines were not stripped:\n%s", raw)
	}
	if strings.Contains(raw, "\n\n\n") {
		t.Errorf("Blank runs were not collapsed:\n%s", raw)
	}
}

func TestWhoisService_Lookup_StripsUpdateFooter(t *testing.T) {
	answer := func(ts string) string {
		return registrarAnswer + "URL of the ICANN Whois Inaccuracy Complaint Form: https://www.icann.org/wicf/\n" +
			">>> Last update of whois database: " + ts + " <<<\n"
	}
	f := &fakeWhois{answers: map[string]string{"": answer("2026-10-16T00:00:00Z")}}
	s := &WhoisService{Client: f}

	first := s.Lookup(context.Background(), "example.com")
	f.answers[""] = answer("2026-10-17T09:30:00Z")
	second := s.Lookup(context.Background(), "example.com")

	if first.Failed() || second.Failed() {
		t.Fatalf("Lookup failed: %+v %+v", first, second)
	}
	if strings.Contains(first.Value.(string), "Last update of whois database") {
		t.Errorf("Update footer was not stripped:\n%s", first.Value)
	}
	if !strings.Contains(first.Value.(string), "Inaccuracy Complaint Form") {
		t.Errorf("Regular lines should be kept:\n%s", first.Value)
	}
	if first.Value != second.Value {
		t.Errorf("Answers differing only in the footer should match:\n%s\n---\n%s", first.Value, second.Value)
	}
}

func TestWhoisService_Lookup_Fallbacks(t *testing.T) {
	notFound := errors.New("whois: no whois server found for domain: example.info")

	t.Run("Known TLD", func(t *testing.T) {
		f := &fakeWhois{
			errs:    map[string]error{"": notFound},
			answers: map[string]string{"whois.nic.info": "Domain Name: example.info\nRegistrar: Example Registrar, Inc.\n"},
		}
		res := (&WhoisService{Client: f}).Lookup(context.Background(), "example.info")
		if res.Failed() {
			t.Fatalf("Lookup failed: %s", res.Err)
		}
	})

	t.Run("IANA Referral", func(t *testing.T) {
		f := &fakeWhois{
			errs: map[string]error{"": notFound},
			answers: map[string]string{
				"whois.iana.org": "domain:       XYZ\nrefer:        whois.nic.xyz\n",
				"whois.nic.xyz":  "Domain Name: example.xyz\nRegistrar: Example Registrar, Inc.\n",
			},
		}
		res := (&WhoisService{Client: f}).Lookup(context.Background(), "example.xyz")
		if res.Failed() {
			t.Fatalf("Lookup failed: %s", res.Err)
		}
		if f.calls[len(f.calls)-1] != "whois.nic.xyz" {
			t.Errorf("Expected query against referred server, got %v", f.calls)
		}
	})
}

func TestWhoisService_Lookup_Errors(t *testing.T) {
	tests := []struct {
		name string
		f    *fakeWhois
	}{
		{"Network Failure", &fakeWhois{}},
		{"Not Found", &fakeWhois{answers: map[string]string{"": "No match for \"NOPE-EXAMPLE.COM\".\n>>> Last update of whois database: 2026-10-16T00:00:00Z <<<\n"}}},
		{"Empty Answer", &fakeWhois{answers: map[string]string{"": "% nothing here\n"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := (&WhoisService{Client: tt.f}).Lookup(context.Background(), "nope-example.com")
			if !strings.HasPrefix(res.Err, "Error retrieving WHOIS information: ") {
				t.Errorf("Expected WHOIS error string, got %+v", res)
			}
		})
	}

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		f := &fakeWhois{answers: map[string]string{"": registrarAnswer}}
		res := (&WhoisService{Client: f}).Lookup(ctx, "example.com")
		if !res.Failed() || len(f.calls) != 0 {
			t.Errorf("Expected no query after cancellation, got %+v calls=%v", res, f.calls)
		}
	})
}

func TestNewWhoisService(t *testing.T) {
	if s := NewWhoisService(0); s.Client == nil {
		t.Error("Expected a WHOIS client")
	}
}

// serveWhois answers every connection with answer and counts them.
func serveWhois(t *testing.T, answer string) (string, *atomic.Int32) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	var hits atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			hits.Add(1)
			go func(c net.Conn) {
				defer func() { _ = c.Close() }()
				_, _ = bufio.NewReader(c).ReadString('\n')
				_, _ = io.WriteString(c, answer)
			}(conn)
		}
	}()
	return ln.Addr().String(), &hits
}

func TestNewWhoisService_SingleRegistrarQuery(t *testing.T) {
	registrar, registrarHits := serveWhois(t, registrarAnswer)
	registry, registryHits := serveWhois(t, "Domain Name: EXAMPLE.COM\nRegistrar WHOIS Server: "+registrar+"\n")

	s := NewWhoisService(5 * time.Second)
	raw, err := s.Client.Whois("example.com", registry)
	if err != nil {
		t.Fatalf("Whois failed: %v", err)
	}
	if registryHits.Load() != 1 {
		t.Errorf("Expected one registry query, got %d", registryHits.Load())
	}
	if registrarHits.Load() != 0 {
		t.Errorf("Client followed the referral itself, registrar queried %d times", registrarHits.Load())
	}
	if strings.Contains(raw, "Example Registrar, Inc.") {
		t.Errorf("Registrar answer should not be appended by the client:\n%s", raw)
	}
}
