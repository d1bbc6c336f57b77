package proxy

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/nanogpt-proxy/api/model"
	"github.com/nanogpt-proxy/api/services"
	"github.com/nanogpt-proxy/api/services/nanogpt"
	"github.com/nanogpt-proxy/api/utils/response"
)

// IdentityHeader names the caller on proxied requests. The gateway trusts
// it: the value is set by the frontend deployment, not by end users.
const IdentityHeader = "x-openwebui-user-email"

// UserSource resolves proxy callers and their upstream credentials.
// services.UserService satisfies it.
type UserSource interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	DecryptAPIKey(user *model.User) (string, error)
}

// ProxyHandler forwards OpenAI-style requests to the upstream API with the
// caller's decrypted key injected.
type ProxyHandler struct {
	upstream *nanogpt.Client
	users    UserSource
}

// NewProxyHandler creates a new proxy handler
func NewProxyHandler(upstream *nanogpt.Client, users UserSource) *ProxyHandler {
	return &ProxyHandler{
		upstream: upstream,
		users:    users,
	}
}

// Models serves the model catalogue. No identity and no key required.
// The upstream payload is relayed byte for byte.
func (h *ProxyHandler) Models(c *fiber.Ctx) error {
	models, err := h.upstream.GetModels(c.Context())
	if err != nil {
		var upstreamErr *nanogpt.UpstreamError
		if errors.As(err, &upstreamErr) {
			return relayUpstreamError(c, upstreamErr)
		}
		return response.InternalServerError(c, "Failed to reach upstream")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(models)
}

// Forward handles every other /v1/* request: resolve the caller from the
// identity header, decrypt their stored key, and relay the request and the
// response byte-for-byte.
func (h *ProxyHandler) Forward(c *fiber.Ctx) error {
	email := c.Get(IdentityHeader)
	if email == "" {
		return response.BadRequest(c, "Missing "+IdentityHeader+" header")
	}

	user, err := h.users.GetByEmail(c.Context(), email)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return response.Unauthorized(c, "Unknown user")
		}
		return response.InternalServerError(c, "Failed to load user")
	}

	if !user.Enabled {
		return response.Unauthorized(c, "Account is disabled")
	}

	apiKey, err := h.users.DecryptAPIKey(user)
	if err != nil {
		// A stored key that cannot be decrypted is an operational fault,
		// never an auth failure and never a silent keyless request.
		log.Errorf("proxy: failed to decrypt API key for %s: %v", email, err)
		return response.InternalServerError(c, "Failed to decrypt API key")
	}
	if apiKey == "" {
		return response.Unauthorized(c, "No API key configured")
	}

	// The gateway mounts the upstream's /v1 locally; strip it back off.
	path := strings.TrimPrefix(c.Path(), "/v1")

	var body io.Reader
	if reqBody := c.Body(); len(reqBody) > 0 {
		body = bytes.NewReader(reqBody)
	}

	// The fasthttp request context dies when the handler returns, but the
	// upstream body is consumed in the stream writer afterwards.
	resp, err := h.upstream.ProxyRequest(
		context.Background(),
		c.Method(),
		path,
		string(c.Request().URI().QueryString()),
		body,
		c.Get(fiber.HeaderContentType),
		apiKey,
	)
	if err != nil {
		return response.InternalServerError(c, "Upstream request failed")
	}

	c.Status(resp.StatusCode)
	if contentType := resp.Header.Get(fiber.HeaderContentType); contentType != "" {
		c.Set(fiber.HeaderContentType, contentType)
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer resp.Body.Close()

		buf := make([]byte, 32*1024)
		for {
			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				if _, writeErr := w.Write(buf[:n]); writeErr != nil {
					return
				}
				// Flush per chunk so SSE tokens reach the client as
				// they arrive.
				if flushErr := w.Flush(); flushErr != nil {
					return
				}
			}
			if readErr != nil {
				if readErr != io.EOF {
					log.Warnf("proxy: upstream stream ended early: %v", readErr)
				}
				return
			}
		}
	})

	return nil
}

func relayUpstreamError(c *fiber.Ctx, upstreamErr *nanogpt.UpstreamError) error {
	status := upstreamErr.StatusCode
	if status == 0 {
		status = fiber.StatusInternalServerError
	}
	c.Status(status)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(upstreamErr.Body)
}
