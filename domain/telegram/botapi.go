package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/anivault/anivault/internal/metrics"
	"github.com/anivault/anivault/pkg/logger"
)

// maxResponseBytes caps how much of a backend reply we are willing to read.
const maxResponseBytes = 1 << 20

// BotAPI talks to a Bot-API-compatible chat backend over HTTP. Uploads are
// streamed from disk, so file size is bounded by the backend, not by memory.
type BotAPI struct {
	cfg        *Config
	httpClient *http.Client
	log        *slog.Logger
}

// NewBotAPI creates the chat-backend client, honoring the optional proxy.
func NewBotAPI(cfg *Config, log *slog.Logger) (*BotAPI, error) {
	httpClient, err := newHTTPClient(cfg.ProxyURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &BotAPI{
		cfg:        cfg,
		httpClient: httpClient,
		log:        log.With(logger.Scope("telegram.client")),
	}, nil
}

// newHTTPClient builds the transport, routing through a SOCKS5 or HTTP
// proxy when one is configured.
func newHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{}

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		switch u.Scheme {
		case "socks5", "socks5h":
			var auth *proxy.Auth
			if u.User != nil {
				auth = &proxy.Auth{User: u.User.Username()}
				if pw, ok := u.User.Password(); ok {
					auth.Password = pw
				}
			}
			dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("socks5 proxy: %w", err)
			}
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				transport.DialContext = cd.DialContext
			} else {
				transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
					return dialer.Dial(network, addr)
				}
			}
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
	}

	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

// User identifies the authorized session.
type User struct {
	ID        int64
	Username  string
	FirstName string
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

type chatPayload struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

type userPayload struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

type videoPayload struct {
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size"`
}

type messagePayload struct {
	MessageID int64         `json:"message_id"`
	Chat      chatPayload   `json:"chat"`
	Video     *videoPayload `json:"video"`
}

// GetMe verifies the session credential and returns who it belongs to.
func (b *BotAPI) GetMe(ctx context.Context) (*User, error) {
	raw, err := b.call(ctx, "getMe", url.Values{})
	if err != nil {
		return nil, err
	}
	var p userPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode getMe reply: %w", err)
	}
	return &User{ID: p.ID, Username: p.Username, FirstName: p.FirstName}, nil
}

// GetChat resolves a chat id or @username into a send target.
func (b *BotAPI) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	params := url.Values{}
	params.Set("chat_id", chatID)

	raw, err := b.call(ctx, "getChat", params)
	if err != nil {
		return nil, err
	}
	var p chatPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode getChat reply: %w", err)
	}
	return &Chat{ID: strconv.FormatInt(p.ID, 10), Title: p.Title, Type: p.Type}, nil
}

// SendVideo streams a local file to the chat as a playable video message.
func (b *BotAPI) SendVideo(ctx context.Context, req SendVideoRequest) (*Message, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		var err error
		defer func() {
			f.Close()
			pw.CloseWithError(err)
		}()
		if err = mw.WriteField("chat_id", req.ChatID); err != nil {
			return
		}
		if req.Caption != "" {
			if err = mw.WriteField("caption", req.Caption); err != nil {
				return
			}
		}
		if err = mw.WriteField("supports_streaming", strconv.FormatBool(req.SupportsStreaming)); err != nil {
			return
		}
		var part io.Writer
		if part, err = mw.CreateFormFile("video", filepath.Base(req.Path)); err != nil {
			return
		}
		if _, err = io.Copy(part, f); err != nil {
			return
		}
		err = mw.Close()
	}()

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.methodURL("sendVideo"), pr)
	if err != nil {
		return nil, fmt.Errorf("build sendVideo request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sendVideo: %w", err)
	}
	defer resp.Body.Close()

	raw, err := b.decodeResponse(resp, "sendVideo")
	if err != nil {
		return nil, err
	}
	var p messagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode sendVideo reply: %w", err)
	}
	metrics.UploadDuration.Observe(time.Since(start).Seconds())

	msg := &Message{ID: p.MessageID, ChatID: strconv.FormatInt(p.Chat.ID, 10)}
	if p.Video != nil {
		msg.Video = &Video{FileUniqueID: p.Video.FileUniqueID, FileSize: p.Video.FileSize}
	}
	return msg, nil
}

// call posts a form-encoded method request and unwraps the envelope.
func (b *BotAPI) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.methodURL(method), strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	return b.decodeResponse(resp, method)
}

// decodeResponse unwraps the {ok, result, description, error_code}
// envelope shared by every backend method.
func (b *BotAPI) decodeResponse(resp *http.Response, method string) (json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s reply: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%s returned status %d with a non-JSON body", method, resp.StatusCode)
	}
	if !envelope.OK {
		code := envelope.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		if code == http.StatusUnauthorized || code == http.StatusForbidden {
			return nil, fmt.Errorf("%s: %w: %s", method, ErrUnauthorized, envelope.Description)
		}
		return nil, fmt.Errorf("%s failed: %s (code %d)", method, envelope.Description, code)
	}
	if len(envelope.Result) == 0 {
		return nil, fmt.Errorf("%s returned an empty result", method)
	}
	return envelope.Result, nil
}

func (b *BotAPI) methodURL(method string) string {
	return strings.TrimRight(b.cfg.APIURL, "/") + "/bot" + b.cfg.Token + "/" + method
}
