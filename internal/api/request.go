package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/errs"
	"github.com/spigell/resume-matcher/internal/logger"
	"github.com/spigell/resume-matcher/internal/utils"
)

const (
	contentTypeJSON = "application/json"
	acceptEncoding  = "gzip"

	headerRequestID  = "X-Request-ID"
	headerAdminToken = "X-Admin-Token"

	// maxResponseSize caps how much of a response body is read. Generated PDFs are the largest payloads.
	maxResponseSize = 64 << 20
	logPreviewLimit = 300
)

type call struct {
	method  string
	path    string
	query   url.Values
	auth    authPolicy
	body    io.Reader
	ctype   string
	headers map[string]string
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// filePart is one file in a multipart body.
type filePart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

// newRequest is the single place where headers and credentials are attached.
func (c *Client) newRequest(ctx context.Context, cl call) (*http.Request, string, error) {
	token, ok := c.token()
	if cl.auth == authRequired && !ok {
		return nil, "", errs.New(errs.KindUnauthorized, "Not authenticated")
	}

	endpoint := c.APIURL + cl.path
	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint, cl.body)
	if err != nil {
		return nil, "", errs.Wrap(errs.KindNetworkOrServer, "building request", err)
	}

	if len(cl.query) > 0 {
		req.URL.RawQuery = cl.query.Encode()
	}

	requestID := uuid.NewString()

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("Accept-Encoding", acceptEncoding)
	req.Header.Set(headerRequestID, requestID)
	if cl.ctype != "" {
		req.Header.Set("Content-Type", cl.ctype)
	}
	for k, v := range cl.headers {
		req.Header.Set(k, v)
	}

	if cl.auth != authNone && ok {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	return req, requestID, nil
}

func (c *Client) execute(ctx context.Context, cl call) (*response, error) {
	req, requestID, err := c.newRequest(ctx, cl)
	if err != nil {
		return nil, err
	}

	log := logger.ForRequest(c.logger, cl.method, cl.path, requestID)
	log.Debug("make request", zap.String("url", req.URL.String()), zap.Stringer("auth", cl.auth))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetworkOrServer, "cannot reach the matching service", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetworkOrServer, "reading response", err)
	}

	log.Debug("got response", zap.Int("status", resp.StatusCode), zap.Int("bytes", len(body)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := statusError(resp.StatusCode, body)
		log.Debug("request failed",
			zap.String("kind", apiErr.Kind.String()),
			zap.String("body", utils.TruncateForLog(string(body), logPreviewLimit)),
		)

		if resp.StatusCode == http.StatusUnauthorized && cl.auth == authRequired {
			c.invalidate(cl.path)
		}
		return nil, apiErr
	}

	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

// do runs the call and decodes a JSON body into target, which may be nil.
func (c *Client) do(ctx context.Context, cl call, target interface{}) error {
	resp, err := c.execute(ctx, cl)
	if err != nil {
		return err
	}

	if target == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.body, target); err != nil {
		return errs.Wrap(errs.KindNetworkOrServer, fmt.Sprintf("unexpected response from %s", cl.path), err)
	}

	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, auth authPolicy, target interface{}) error {
	return c.do(ctx, call{method: http.MethodGet, path: path, auth: auth}, target)
}

func (c *Client) postJSON(ctx context.Context, path string, auth authPolicy, payload, target interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errs.Wrap(errs.KindNetworkOrServer, "encoding request", err)
	}

	return c.do(ctx, call{
		method: http.MethodPost,
		path:   path,
		auth:   auth,
		body:   bytes.NewReader(data),
		ctype:  contentTypeJSON,
	}, target)
}

func (c *Client) postFormData(ctx context.Context, path string, auth authPolicy, fields map[string]string, files []filePart, target interface{}) error {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(f.field), escapeQuotes(f.filename)))
		h.Set("Content-Type", f.contentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return errs.Wrap(errs.KindNetworkOrServer, "encoding upload", err)
		}
		if _, err := part.Write(f.data); err != nil {
			return errs.Wrap(errs.KindNetworkOrServer, "encoding upload", err)
		}
	}

	for key, val := range fields {
		field, err := w.CreateFormField(key)
		if err != nil {
			return errs.Wrap(errs.KindNetworkOrServer, "encoding upload", err)
		}

		if _, err = io.Copy(field, strings.NewReader(val)); err != nil {
			return errs.Wrap(errs.KindNetworkOrServer, "encoding upload", err)
		}
	}

	if err := w.Close(); err != nil {
		return errs.Wrap(errs.KindNetworkOrServer, "encoding upload", err)
	}

	return c.do(ctx, call{
		method: http.MethodPost,
		path:   path,
		auth:   auth,
		body:   &b,
		ctype:  w.FormDataContentType(),
	}, target)
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	return io.ReadAll(io.LimitReader(reader, maxResponseSize))
}

// statusError maps a non-2xx response to the error taxonomy.
func statusError(status int, body []byte) *errs.Error {
	message, fields := parseDetail(body)
	if message == "" {
		message = http.StatusText(status)
	}
	if message == "" {
		message = fmt.Sprintf("unexpected status %d", status)
	}

	kind := errs.KindNetworkOrServer
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = errs.KindBadRequest
	case http.StatusUnauthorized:
		kind = errs.KindUnauthorized
	case http.StatusPaymentRequired:
		kind = errs.KindPaymentRequired
	case http.StatusConflict:
		kind = errs.KindConflict
	}

	return &errs.Error{Kind: kind, Status: status, Message: message, Fields: fields}
}

type validationDetail struct {
	Loc []interface{} `json:"loc"`
	Msg string        `json:"msg"`
}

// parseDetail understands {"detail": "..."} and the list form used for unprocessable bodies.
func parseDetail(body []byte) (string, map[string]string) {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return "", nil
	}

	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		return strings.TrimSpace(text), nil
	}

	var details []validationDetail
	if err := json.Unmarshal(payload.Detail, &details); err != nil {
		return "", nil
	}

	messages := make([]string, 0, len(details))
	fields := make(map[string]string)
	for _, d := range details {
		msg := strings.TrimSpace(d.Msg)
		if msg == "" {
			continue
		}
		messages = append(messages, msg)

		if len(d.Loc) > 0 {
			if name, ok := d.Loc[len(d.Loc)-1].(string); ok && name != "body" {
				fields[name] = msg
			}
		}
	}

	if len(fields) == 0 {
		fields = nil
	}

	return strings.Join(messages, "; "), fields
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
