package portal

import (
	"bytes"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/credentials"
	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/metrics"
	"github.com/muurk/wifiportal/internal/radio"
)

// CaptivePaths are the probe URLs operating systems fetch to detect a
// captive portal. All of them, and any unknown path, redirect to the form.
var CaptivePaths = []string{
	"/generate_204",
	"/fwlink",
	"/hotspot-detect.html",
	"/ncsi.txt",
}

func (p *Portal) routes(s *session) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/", p.handleRoot(s))
	r.Post("/save", p.handleSave(s))
	r.Get("/scan", p.handleScan(s))
	if p.opts.StylesheetFile != "" {
		file := p.opts.StylesheetFile
		r.Get(stylesheetPath, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
			http.ServeFile(w, r, file)
		})
	}

	for _, path := range CaptivePaths {
		r.Get(path, redirectToRoot)
	}
	r.NotFound(redirectToRoot)
	r.MethodNotAllowed(redirectToRoot)

	return gziphandler.GzipHandler(r)
}

func (p *Portal) handleRoot(s *session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := renderPage(&buf, s.stylesheet); err != nil {
			logging.Error("Failed to render portal page", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(buf.Bytes())
	}
}

func (p *Portal) handleSave(s *session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeHTML(w, http.StatusBadRequest, badFormBody)
			return
		}

		ssid := r.FormValue("ssid")
		if ssid == "" {
			writeHTML(w, http.StatusBadRequest, emptySSIDBody)
			return
		}
		password := r.FormValue("password")
		if err := credentials.ValidateRecord(ssid, password); err != nil {
			logging.Warn("Rejected credentials", zap.String("ssid", ssid), zap.Error(err))
			writeHTML(w, http.StatusBadRequest, badFieldsBody)
			return
		}

		logging.Info("Credentials received", zap.String("ssid", ssid))

		ok := s.submit(r, func() {
			if p.onSave == nil {
				logging.Warn("No save handler installed, credentials discarded", zap.String("ssid", ssid))
			} else if err := p.onSave(ssid, password); err != nil {
				// Memory keeps the credential; the restart below loses it if
				// it never reached storage.
				logging.Error("Save handler failed", zap.String("ssid", ssid), zap.Error(err))
			}
			p.scheduleRestart()
		})
		if !ok {
			writeHTML(w, http.StatusServiceUnavailable, unavailableMsg)
			return
		}

		writeHTML(w, http.StatusOK, savedBody)
	}
}

func (p *Portal) handleScan(s *session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var networks []radio.Network
		var scanErr error

		ok := s.submit(r, func() {
			start := time.Now()
			networks, scanErr = p.radio.Scan(r.Context())
			metrics.ScanDuration.Observe(time.Since(start).Seconds())
		})
		if !ok {
			writeHTML(w, http.StatusServiceUnavailable, unavailableMsg)
			return
		}

		if scanErr != nil {
			logging.Warn("Network scan failed", zap.Error(scanErr))
		}
		if networks == nil {
			networks = []radio.Network{}
		}
		logging.Info("Scan complete", zap.Int("networks", len(networks)))

		body, err := json.Marshal(networks)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}

func redirectToRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Location", "/")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusFound)
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// requestLogger logs each request and records it in the portal metrics
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		metrics.RecordPortalRequest(route, status, time.Since(start))
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, status)
	})
}
