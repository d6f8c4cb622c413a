package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/moyoez/localstore-go/tool"
	"github.com/moyoez/localstore-go/types"
)

const (
	FieldFile     = "file"
	FieldFolderId = "folder_id"

	// maxDrainBody caps how much of an ignored response body is read before closing.
	maxDrainBody = 64 * 1024
)

// HTTPTransport posts one file per request to the file-manager upload view.
type HTTPTransport struct {
	Endpoint         string
	Client           *http.Client
	Tokens           TokenSource
	ProgressInterval time.Duration
}

// NewHTTPTransport validates endpoint and returns a transport using the shared upload client.
func NewHTTPTransport(endpoint string, tokens TokenSource, progressInterval time.Duration) (*HTTPTransport, error) {
	if _, err := tool.ParseEndpoint(endpoint); err != nil {
		return nil, err
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	return &HTTPTransport{
		Endpoint:         endpoint,
		Client:           tool.GetUploadHttpClient(),
		Tokens:           tokens,
		ProgressInterval: progressInterval,
	}, nil
}

// Upload sends item as multipart field "file", with "folder_id" when the item has one.
// It returns nil on 200 or 302, *ServerRejectedError on any other status and
// *TransportError when no status was received.
func (t *HTTPTransport) Upload(ctx context.Context, item types.UploadItem, progress func(percent float64)) error {
	if item.File == nil {
		return &TransportError{Op: "open file", Err: errors.New("item has no file handle")}
	}

	token, err := t.Tokens.Token(ctx)
	if err != nil {
		return &TransportError{Op: "fetch csrf token", Err: err}
	}

	src, err := item.File.Open()
	if err != nil {
		return &TransportError{Op: "open file", Err: err}
	}
	defer func() {
		if err := src.Close(); err != nil {
			tool.DefaultLogger.Errorf("Failed to close %s: %v", item.FileName, err)
		}
	}()

	head, tail, contentType, err := buildFormEnvelope(item.File.Name(), item.FolderID, token)
	if err != nil {
		return &TransportError{Op: "build form", Err: err}
	}

	size := item.File.Size()
	counter := newProgressReader(src, size, t.ProgressInterval, progress)
	body := io.MultiReader(bytes.NewReader(head), counter, bytes.NewReader(tail))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, body)
	if err != nil {
		return &TransportError{Op: "create upload request", Err: err}
	}
	req.ContentLength = int64(len(head)) + size + int64(len(tail))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Referer", t.Endpoint)
	if token != "" {
		req.Header.Set(CSRFHeader, token)
		if _, ok := t.Tokens.(*CookieTokenSource); ok {
			req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: token})
		}
	}

	tool.DefaultLogger.Debugf("[Upload] POST %s: %s (%s, folder=%q)", t.Endpoint, item.FileName, tool.FormatFileSize(size), item.FolderID)
	resp, err := t.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &TransportError{Op: "upload cancelled", Err: ctx.Err()}
		}
		return &TransportError{Op: "send upload request", Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBody))
		if err := resp.Body.Close(); err != nil {
			tool.DefaultLogger.Errorf("Failed to close response body: %v", err)
		}
	}()

	if !IsSuccessStatus(resp.StatusCode) {
		if resp.StatusCode == http.StatusForbidden {
			if cookieSource, ok := t.Tokens.(*CookieTokenSource); ok {
				cookieSource.Invalidate()
			}
		}
		return &ServerRejectedError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	counter.finish()
	tool.DefaultLogger.Infof("[Upload] Uploaded %s to %s (%s)", item.FileName, t.Endpoint, resp.Status)
	return nil
}

// buildFormEnvelope renders everything of the multipart body except the file bytes,
// so the request can carry an exact Content-Length while the file is streamed.
func buildFormEnvelope(fileName, folderId, token string) (head, tail []byte, contentType string, err error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if token != "" {
		if err := mw.WriteField(CSRFField, token); err != nil {
			return nil, nil, "", fmt.Errorf("failed to write %s: %v", CSRFField, err)
		}
	}
	if folderId != "" {
		if err := mw.WriteField(FieldFolderId, folderId); err != nil {
			return nil, nil, "", fmt.Errorf("failed to write %s: %v", FieldFolderId, err)
		}
	}
	if _, err := mw.CreateFormFile(FieldFile, fileName); err != nil {
		return nil, nil, "", fmt.Errorf("failed to write file part header: %v", err)
	}
	headLen := buf.Len()
	if err := mw.Close(); err != nil {
		return nil, nil, "", fmt.Errorf("failed to close multipart writer: %v", err)
	}
	all := buf.Bytes()
	head = append([]byte(nil), all[:headLen]...)
	tail = append([]byte(nil), all[headLen:]...)
	return head, tail, mw.FormDataContentType(), nil
}
