package signup

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

// maxBodySize caps the signup body (1 MB).
const maxBodySize = 1 << 20

// ServeHTTP adapts Handle to net/http for the local server.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := Request{Method: r.Method}
	if r.Body != nil {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			req.bodyErr = err
		}
		req.Body = body
	}

	h.Handle(r.Context(), req).Write(w)
}

// HandleAPIGateway adapts Handle to an API Gateway (REST) proxy integration.
func (h *Handler) HandleAPIGateway(ctx context.Context, ev events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req := Request{Method: ev.HTTPMethod, Body: []byte(ev.Body)}
	if ev.IsBase64Encoded && ev.Body != "" {
		decoded, err := base64.StdEncoding.DecodeString(ev.Body)
		if err != nil {
			req.bodyErr = errors.Join(errors.New("body is not valid base64"), err)
			req.Body = nil
		} else {
			req.Body = decoded
		}
	}
	if len(req.Body) > maxBodySize {
		req.bodyErr = errors.New("body exceeds 1 MB")
		req.Body = nil
	}

	resp := h.Handle(ctx, req)
	return events.APIGatewayProxyResponse{
		StatusCode: resp.Status,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}, nil
}
