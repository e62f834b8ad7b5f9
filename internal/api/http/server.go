package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jekabolt/grbpwr-attribution/internal/ratelimit"
)

// Config is the configuration for the http server
type Config struct {
	Port           string        `mapstructure:"port"`
	Address        string        `mapstructure:"address"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// RateLimit caps shop queries per client and account. Zero Max disables it.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Window time.Duration `mapstructure:"window"`
	Max    int           `mapstructure:"max"`
}

// Server is the http server
type Server struct {
	hs     *http.Server
	c      *Config
	engine  Engine
	limiter *ratelimit.Limiter
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a new server
func New(config *Config, e Engine) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		c:      config,
		engine: e,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if config.RateLimit.Max > 0 {
		window := config.RateLimit.Window
		if window <= 0 {
			window = time.Minute
		}
		s.limiter = ratelimit.NewLimiter(ctx, window, config.RateLimit.Max)
	}
	return s
}

// Done returns a channel that is closed when the http server exits
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Start starts the server
func (s *Server) Start(ctx context.Context) error {
	listenerAddr := fmt.Sprintf("%s:%s", s.c.Address, s.c.Port)
	s.hs = &http.Server{
		Addr:              listenerAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Default().InfoContext(ctx, "attribution api listening", slog.String("addr", "http://"+listenerAddr))
		err := s.hs.ListenAndServe()
		if err == http.ErrServerClosed {
			slog.Default().InfoContext(ctx, "http server returned")
		} else {
			slog.Default().ErrorContext(ctx, "http server exited with an error", slog.String("err", err.Error()))
		}
		close(s.done)
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	if s.hs == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.hs.Shutdown(ctx)
}
