// Package upload sends file attachments to the chat backend over HTTP.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	fileField = "file"
	roomField = "room"

	maxResponseBytes = 1 << 20
)

// Dispatcher posts one multipart request per upload. It keeps no state
// between calls: no queue, no retry.
type Dispatcher struct {
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

// NewDispatcher returns a dispatcher posting to endpoint. A nil client means
// a plain http.Client with no timeout, so transport defaults apply.
func NewDispatcher(endpoint string, client *http.Client, logger zerolog.Logger) *Dispatcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Dispatcher{
		endpoint: endpoint,
		client:   client,
		logger:   logger.With().Str("component", "upload").Logger(),
	}
}

// Endpoint returns the URL uploads are posted to.
func (d *Dispatcher) Endpoint() string {
	return d.endpoint
}

// Upload sends file to room. A server-side rejection is not an error: it comes
// back in Response.Error. Errors mean the request or its JSON reply failed.
func (d *Dispatcher) Upload(ctx context.Context, file File, room string) (Response, error) {
	logger := d.logger.With().
		Str("upload_id", uuid.NewString()).
		Str("room", room).
		Str("file", file.Name).
		Logger()

	body, contentType, err := buildMultipart(file, room)
	if err != nil {
		return Response{}, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, body)
	if err != nil {
		return Response{}, err
	}
	request.Header.Set("Content-Type", contentType)
	request.Header.Set("Accept", "application/json")

	logger.Debug().Int64("size", file.Size).Str("content_type", file.ContentType).Msg("posting upload")
	response, err := d.client.Do(request)
	if err != nil {
		return Response{}, fmt.Errorf("post upload: %w", err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read upload response: %w", err)
	}
	parsed, err := ParseResponse(data)
	if err != nil {
		return Response{}, fmt.Errorf("status %d: %w", response.StatusCode, err)
	}
	parsed.Status = response.StatusCode

	if parsed.Rejected() {
		logger.Info().Int("status", response.StatusCode).Str("reason", parsed.Error).Msg("upload rejected")
	} else {
		logger.Info().Int("status", response.StatusCode).Msg("upload accepted")
	}
	return parsed, nil
}

// UploadPath opens path and uploads it to room.
func (d *Dispatcher) UploadPath(ctx context.Context, path, room string) (Response, error) {
	file, closer, err := OpenFile(path)
	if err != nil {
		return Response{}, fmt.Errorf("open attachment: %w", err)
	}
	defer closer.Close()
	return d.Upload(ctx, file, room)
}

func buildMultipart(file File, room string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fileField, quoteEscaper.Replace(file.Name)))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if file.Content != nil {
		if _, err := io.Copy(part, file.Content); err != nil {
			return nil, "", fmt.Errorf("copy attachment: %w", err)
		}
	}
	if err := writer.WriteField(roomField, room); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
