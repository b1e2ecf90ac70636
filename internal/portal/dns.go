package portal

import (
	"errors"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/metrics"
)

// dnsTTL is the TTL on every wildcard answer
const dnsTTL = 60

// dnsResponder answers every A question with the access point address,
// whatever the name. Other question types get an empty NOERROR reply.
type dnsResponder struct {
	server *dns.Server
	conn   net.PacketConn
	apIP   netip.Addr
}

func startDNS(addr string, apIP netip.Addr) (*dnsResponder, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}

	d := &dnsResponder{conn: conn, apIP: apIP}
	started := make(chan struct{})
	d.server = &dns.Server{
		PacketConn:        conn,
		Handler:           dns.HandlerFunc(d.answer),
		NotifyStartedFunc: func() { close(started) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.server.ActivateAndServe()
	}()

	select {
	case <-started:
		return d, nil
	case err := <-errCh:
		_ = conn.Close()
		if err == nil {
			err = errors.New("dns server exited during startup")
		}
		return nil, err
	case <-time.After(5 * time.Second):
		_ = conn.Close()
		return nil, errors.New("dns server did not start")
	}
}

// Addr returns the bound UDP address
func (d *dnsResponder) Addr() net.Addr {
	return d.conn.LocalAddr()
}

// Shutdown stops the responder
func (d *dnsResponder) Shutdown() {
	if err := d.server.Shutdown(); err != nil {
		logging.Debug("DNS responder shutdown", zap.Error(err))
		_ = d.conn.Close()
	}
}

func (d *dnsResponder) answer(w dns.ResponseWriter, req *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(req)
	m.Authoritative = true

	ip := net.IP(d.apIP.AsSlice())
	for _, q := range req.Question {
		qtype := dns.TypeToString[q.Qtype]
		metrics.DNSQueries.WithLabelValues(qtype).Inc()

		answer := "-"
		if q.Qclass == dns.ClassINET && (q.Qtype == dns.TypeA || q.Qtype == dns.TypeANY) {
			m.Answer = append(m.Answer, &dns.A{
				Hdr: dns.RR_Header{
					Name:   q.Name,
					Rrtype: dns.TypeA,
					Class:  dns.ClassINET,
					Ttl:    dnsTTL,
				},
				A: ip,
			})
			answer = d.apIP.String()
		}
		logging.LogDNSQuery(w.RemoteAddr().String(), q.Name, qtype, answer)
	}

	if err := w.WriteMsg(m); err != nil {
		logging.Debug("Failed to write DNS reply", zap.Error(err))
	}
}
