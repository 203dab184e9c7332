package httpfeed

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jose-valero/paceman-pings/internal/domain"
)

const SecretHeader = "X-Paceman-Secret"

// Submit entrega un record al dispatcher.
type Submit func(ctx context.Context, rec domain.Record) error

// Server expone el ingest push de records, health y métricas.
type Server struct {
	secret string
	submit Submit
	log    *slog.Logger
	mux    *http.ServeMux
}

// New: secret vacío deshabilita /paceman/record (solo quedan health y métricas).
func New(secret string, submit Submit, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{secret: secret, submit: submit, log: log, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	if s.secret != "" && s.submit != nil {
		s.mux.HandleFunc("/paceman/record", s.handleRecord)
	}
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(s.secret)) != 1 {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	_ = r.Body.Close()
	if err != nil {
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}

	var rec domain.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		s.log.Warn("ingest: invalid record json", "error", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.submit(ctx, rec); err != nil {
		s.log.Warn("ingest: dispatcher busy", "nickname", rec.Nickname, "error", err)
		http.Error(w, "busy", http.StatusServiceUnavailable)
		return
	}
	s.log.Debug("ingest: record accepted", "nickname", rec.Nickname)
	w.WriteHeader(http.StatusAccepted)
}

// Run sirve en addr hasta que ctx se cancela.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Info("HTTP listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
