// Package web is the remote sink: it serves a browser viewer, streams
// JPEG frames over a websocket and feeds viewer clicks and keys back to the
// loop.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"tablecast/internal/input"
	"tablecast/internal/logger"
	"tablecast/internal/stream"
)

const (
	component = "WebSink"

	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
	maxMessage   = 4096
	clientQueue  = 2
)

//go:embed static/*
var staticFiles embed.FS

type Options struct {
	Listen      string
	Output      image.Point
	JPEGQuality int
}

type Server struct {
	opts     Options
	events   *input.Queue
	sink     *stream.ChannelSink
	log      logger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewServer(opts Options, events *input.Queue, sink *stream.ChannelSink, log logger.Logger) *Server {
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 80
	}
	return &Server{
		opts:     opts,
		events:   events,
		sink:     sink,
		log:      log,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 64 << 10},
		clients:  make(map[*client]struct{}),
	}
}

func (s *Server) Handler() http.Handler {
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(static)))
	mux.HandleFunc("/ws", s.serveWS)
	return mux
}

// Run serves HTTP and broadcasts sink buffers until ctx ends or the sink
// closes.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(component, "listening", map[string]interface{}{"addr": s.opts.Listen})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	err := s.pump(ctx, errCh)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		s.log.Warning(component, "http shutdown failed", map[string]interface{}{"error": serr.Error()})
	}
	s.closeClients()
	return err
}

func (s *Server) pump(ctx context.Context, errCh <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.sink.Done():
			return nil
		case err, ok := <-errCh:
			if ok && err != nil {
				return fmt.Errorf("serve %s: %w", s.opts.Listen, err)
			}
			errCh = nil
		case b := <-s.sink.Buffers():
			data, err := s.encode(b)
			b.Release()
			if err != nil {
				s.log.Warning(component, "jpeg encode failed", map[string]interface{}{
					"seq": b.Seq, "error": err.Error(),
				})
				continue
			}
			s.Broadcast(data)
		}
	}
}

func (s *Server) encode(b *stream.Buffer) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, b.Frame().Mat(),
		[]int{gocv.IMWriteJpegQuality, s.opts.JPEGQuality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// Broadcast queues data for every client. Clients whose queue is full
// skip this frame.
func (s *Server) Broadcast(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warning(component, "websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientQueue)}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.log.Info(component, "viewer connected", map[string]interface{}{
		"remote":  r.RemoteAddr,
		"viewers": s.Clients(),
	})

	go s.writePump(c)
	s.readPump(c)
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) readPump(c *client) {
	defer func() {
		s.remove(c)
		c.conn.Close()
		s.log.Info(component, "viewer disconnected", map[string]interface{}{
			"remote":  c.conn.RemoteAddr().String(),
			"viewers": s.Clients(),
		})
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warning(component, "viewer read failed", map[string]interface{}{"error": err.Error()})
			}
			return
		}
		ev, err := ParseMessage(data, s.opts.Output)
		if err != nil {
			s.log.Debug(component, "ignoring viewer message", map[string]interface{}{"error": err.Error()})
			continue
		}
		s.events.Publish(ev)
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
