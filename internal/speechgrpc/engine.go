// Package speechgrpc streams microphone audio to a gRPC speech recognizer.
package speechgrpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mindfulai/mindful/internal/transcribe"
	"github.com/mindfulai/mindful/internal/version"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

const defaultDialTimeout = 3 * time.Second

// Config controls the recognizer connection.
type Config struct {
	Endpoint    string
	APIKey      string
	DialTimeout time.Duration
	DialOptions []grpc.DialOption
}

// Engine opens StreamingRecognize calls against one endpoint.
type Engine struct {
	cfg Config
}

// New returns an engine for cfg.
func New(cfg Config) *Engine {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) Name() string { return "grpc" }

func (e *Engine) Available() bool { return e.cfg.Endpoint != "" }

// Ping dials the endpoint and waits for the connection to become ready.
func (e *Engine) Ping(ctx context.Context) error {
	conn, err := e.dial(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (e *Engine) dial(ctx context.Context) (*grpc.ClientConn, error) {
	if e.cfg.Endpoint == "" {
		return nil, errors.New("recognizer endpoint is empty")
	}

	options := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUserAgent(version.UserAgent()),
	}, e.cfg.DialOptions...)
	conn, err := grpc.NewClient(e.cfg.Endpoint, options...)
	if err != nil {
		return nil, fmt.Errorf("dial recognizer %q: %w", e.cfg.Endpoint, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, e.cfg.DialTimeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for recognizer readiness: %w", err)
	}
	return conn, nil
}

// Open starts one recognition stream and sends its config message.
func (e *Engine) Open(ctx context.Context, opts transcribe.Options) (transcribe.Stream, error) {
	conn, err := e.dial(ctx)
	if err != nil {
		return nil, err
	}

	if e.cfg.APIKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+e.cfg.APIKey)
	}

	var cs grpc.ClientStream
	err = runWithTimeout(ctx, e.cfg.DialTimeout, func() error {
		var openErr error
		cs, openErr = conn.NewStream(ctx, &streamDesc, FullMethod)
		return openErr
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open streaming recognizer: %w", err)
	}

	req, err := configRequest(opts)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := runWithTimeout(ctx, e.cfg.DialTimeout, func() error { return cs.SendMsg(req) }); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send initial streaming config: %w", err)
	}

	return &stream{conn: conn, cs: cs}, nil
}

type stream struct {
	conn *grpc.ClientConn
	cs   grpc.ClientStream

	sendMu     sync.Mutex
	closedSend bool

	pending []transcribe.Result

	closeOnce sync.Once
	closeErr  error
}

func (s *stream) SendAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closedSend {
		return errors.New("stream already closed for sending")
	}
	return s.cs.SendMsg(audioRequest(pcm))
}

func (s *stream) CloseSend() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closedSend {
		return nil
	}
	s.closedSend = true
	return s.cs.CloseSend()
}

// Recv returns results one at a time; a server message may carry several.
func (s *stream) Recv() (transcribe.Result, error) {
	for len(s.pending) == 0 {
		msg := &structpb.Struct{}
		if err := s.cs.RecvMsg(msg); err != nil {
			return transcribe.Result{}, err
		}
		s.pending = parseResults(msg)
	}
	result := s.pending[0]
	s.pending = s.pending[1:]
	return result, nil
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
