// Package client talks to the remote assistant backend: one multipart
// upload per recording cycle, a JSON chat path, and nothing else. The
// backend's transcription, reasoning and synthesis are opaque here.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/proxy"

	"jarvis/internal/cards"
	"jarvis/internal/session"
)

// Options configures the assistant client.
type Options struct {
	BaseURL   string
	VoicePath string
	ChatPath  string
	Timeout   time.Duration
	ProxyAddr string // optional SOCKS5 egress proxy
}

type Client struct {
	http     *http.Client
	voiceURL string
	chatURL  string
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if opts.VoicePath == "" {
		opts.VoicePath = "/api/voice"
	}
	if opts.ChatPath == "" {
		opts.ChatPath = "/api/chat"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	httpClient := &http.Client{Timeout: opts.Timeout}
	if opts.ProxyAddr != "" {
		dialer, err := proxy.SOCKS5("tcp", opts.ProxyAddr, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("dial socks proxy: %w", err)
		}
		httpClient.Transport = &http.Transport{
			DialContext: func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}
	}

	return &Client{
		http:     httpClient,
		voiceURL: base.JoinPath(opts.VoicePath).String(),
		chatURL:  base.JoinPath(opts.ChatPath).String(),
	}, nil
}

// voiceResponse is the backend's reply shape for both paths.
type voiceResponse struct {
	Transcript      string         `json:"transcript"`
	AIResponse      string         `json:"ai_response"`
	AudioBase64     string         `json:"audio_base64"`
	Intent          string         `json:"intent"`
	Confidence      float64        `json:"confidence"`
	HandlerResponse *cards.Payload `json:"handler_response"`
}

// Ask submits one recorded payload as a multipart upload. A non-2xx
// status or transport failure is a hard failure of the cycle.
func (c *Client) Ask(ctx context.Context, wavPayload []byte) (*session.Exchange, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="audio"; filename="utterance.wav"`)
	header.Set("Content-Type", "audio/wav")
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrUploadFailed, err)
	}
	if _, err := part.Write(wavPayload); err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrUploadFailed, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.voiceURL, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.do(req)
}

// Chat submits a typed message through the same pipeline.
func (c *Client) Chat(ctx context.Context, text string) (*session.Exchange, error) {
	payload, err := json.Marshal(map[string]string{"message": text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*session.Exchange, error) {
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", session.ErrUploadFailed, resp.StatusCode)
	}

	var parsed voiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", session.ErrUploadFailed, err)
	}

	ex := &session.Exchange{
		Transcript: parsed.Transcript,
		Reply:      parsed.AIResponse,
		Intent:     parsed.Intent,
		Confidence: parsed.Confidence,
		Card:       parsed.HandlerResponse,
	}

	if parsed.AudioBase64 != "" {
		audio, err := base64.StdEncoding.DecodeString(parsed.AudioBase64)
		if err != nil {
			// text fields are still usable; playback is not
			return ex, fmt.Errorf("%w: %v", session.ErrDecodeFailed, err)
		}
		ex.Audio = audio
	}

	return ex, nil
}
