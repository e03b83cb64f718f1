package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/openmon/livequery/internal/metrics"
)

// Server accepts client connections on a Unix socket and feeds each
// request to the store. Connections are independent; a slow client never
// blocks another.
type Server struct {
	socketPath  string
	idleTimeout time.Duration
	store       *Store
	log         zerolog.Logger
}

// New creates a server. idleTimeout bounds how long a keep-alive
// connection may sit between requests; zero disables the deadline.
func New(socketPath string, idleTimeout time.Duration, store *Store, log zerolog.Logger) *Server {
	return &Server{
		socketPath:  socketPath,
		idleTimeout: idleTimeout,
		store:       store,
		log:         log,
	}
}

// Run listens on the socket until ctx is cancelled. A stale socket file
// from an unclean shutdown is removed before binding.
func (s *Server) Run(ctx context.Context) error {
	if err := removeStaleSocket(s.socketPath); err != nil {
		return err
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	s.log.Info().Str("socket", s.socketPath).Msg("Query server listening")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return listener.Close()
	})
	g.Go(func() error {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			go s.handleConnection(ctx, conn)
		}
	})

	err = g.Wait()
	os.Remove(s.socketPath)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	log := s.log.With().Str("conn_id", connID).Logger()
	log.Debug().Msg("Connection opened")
	metrics.Get().ConnectionsOpen.Inc()
	defer metrics.Get().ConnectionsOpen.Dec()

	// Unblock the read when we are shutting down.
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	reader := bufio.NewReader(conn)
	for {
		if s.idleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		keepAlive, err := s.store.AnswerRequest(reader, conn, log)
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				log.Warn().Err(err).Msg("Connection aborted")
			} else {
				log.Debug().Msg("Connection closed")
			}
			return
		}
		if !keepAlive {
			log.Debug().Msg("Connection done")
			return
		}
	}
}

func removeStaleSocket(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("refusing to remove %s: not a socket", path)
	}
	return os.Remove(path)
}
