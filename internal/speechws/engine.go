// Package speechws streams microphone audio to a websocket speech recognizer
// speaking the Deepgram listen protocol.
package speechws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mindfulai/mindful/internal/fault"
	"github.com/mindfulai/mindful/internal/transcribe"
	"github.com/mindfulai/mindful/internal/version"
)

const defaultDialTimeout = 3 * time.Second

// Config controls the websocket recognizer connection.
type Config struct {
	URL         string
	APIKey      string
	DialTimeout time.Duration
	Dialer      *websocket.Dialer
}

// Engine opens listen sessions against one websocket endpoint.
type Engine struct {
	cfg Config
}

// New returns an engine for cfg.
func New(cfg Config) *Engine {
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) Name() string { return "websocket" }

func (e *Engine) Available() bool { return e.cfg.URL != "" }

// Validate checks the listen URL without dialing.
func (e *Engine) Validate() error {
	_, err := buildListenURL(e.cfg.URL, transcribe.Options{})
	return err
}

// Open dials the listen endpoint with the stream options encoded in the query.
func (e *Engine) Open(ctx context.Context, opts transcribe.Options) (transcribe.Stream, error) {
	listenURL, err := buildListenURL(e.cfg.URL, opts)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("User-Agent", version.UserAgent())
	if e.cfg.APIKey != "" {
		headers.Set("Authorization", "Token "+e.cfg.APIKey)
	}

	dialCtx, cancel := context.WithTimeout(ctx, e.cfg.DialTimeout)
	defer cancel()

	conn, resp, err := e.cfg.Dialer.DialContext(dialCtx, listenURL, headers)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fault.New(fault.ServiceNotAllowed, "not-allowed", fmt.Errorf("recognizer rejected credentials: HTTP %d", resp.StatusCode))
		}
		return nil, fmt.Errorf("connect to recognizer websocket: %w", err)
	}

	s := &stream{conn: conn, closed: make(chan struct{})}
	go s.closeOnDone(ctx)
	return s, nil
}

const closeGrace = time.Second

type stream struct {
	conn   *websocket.Conn
	closed chan struct{}

	writeMu    sync.Mutex
	closedSend bool

	closeOnce sync.Once
	closeErr  error
}

func (s *stream) SendAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closedSend {
		return errors.New("audio stream is already closed")
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

func (s *stream) CloseSend() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closedSend {
		return nil
	}
	s.closedSend = true
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		return fmt.Errorf("close stream: %w", err)
	}
	return nil
}

func (s *stream) Recv() (transcribe.Result, error) {
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return transcribe.Result{}, io.EOF
			}
			return transcribe.Result{}, fmt.Errorf("read recognizer event: %w", err)
		}

		var response listenResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "recognizer returned an unknown error"
			}
			return transcribe.Result{}, fault.FromCode(response.Code, errors.New(message))
		}

		result, ok := extractResult(response)
		if !ok {
			continue
		}
		return result, nil
	}
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// closeOnDone tears the connection down when the session context ends, which
// unblocks a pending Recv.
func (s *stream) closeOnDone(ctx context.Context) {
	select {
	case <-s.closed:
	case <-ctx.Done():
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		_ = s.Close()
	}
}

type alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

type listenResponse struct {
	Type        string `json:"type"`
	Code        string `json:"err_code"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`
}

func extractResult(response listenResponse) (transcribe.Result, bool) {
	if len(response.Channel.Alternatives) == 0 {
		return transcribe.Result{}, false
	}
	best := response.Channel.Alternatives[0]
	text := strings.TrimSpace(best.Transcript)
	if text == "" {
		return transcribe.Result{}, false
	}
	return transcribe.Result{
		Text:       text,
		Confidence: best.Confidence,
		IsFinal:    response.IsFinal || response.SpeechFinal,
	}, true
}

func buildListenURL(base string, opts transcribe.Options) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", errors.New("recognizer websocket url is empty")
	}
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	listenURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid recognizer websocket url: %w", err)
	}
	if listenURL.Scheme != "ws" && listenURL.Scheme != "wss" {
		return "", fmt.Errorf("invalid recognizer websocket url %q: scheme must be ws or wss", base)
	}

	sampleRate := opts.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	query := listenURL.Query()
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.Itoa(sampleRate))
	query.Set("channels", "1")
	query.Set("interim_results", strconv.FormatBool(opts.InterimResults))
	query.Set("punctuate", strconv.FormatBool(opts.AutomaticPunctuation))
	if opts.Model != "" {
		query.Set("model", opts.Model)
	}
	if opts.Language != "" {
		query.Set("language", opts.Language)
	}
	for _, phrase := range opts.Phrases {
		if phrase.Phrase == "" {
			continue
		}
		query.Add("keywords", fmt.Sprintf("%s:%g", phrase.Phrase, phrase.Boost))
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
