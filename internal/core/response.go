package core

import (
	"bytes"
	"encoding/json"
	"net/http"

	"cardsignup/internal/types"
)

// Content types used by signup responses.
const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeJSON = "application/json"
)

// Response is a transport-neutral HTTP response. Adapters write it to
// net/http or convert it to a Lambda proxy response.
type Response struct {
	Status  int
	Headers map[string]string
	Body    string
}

// Text builds a plain-text response with a copy of headers.
func Text(status int, body string, headers map[string]string) Response {
	h := cloneHeaders(headers)
	h["Content-Type"] = ContentTypeText
	return Response{Status: status, Headers: h, Body: body}
}

// PrettyJSON builds a JSON response indented with four spaces.
func PrettyJSON(status int, v any, headers map[string]string) (Response, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return Response{}, types.NewAppError(
			types.ErrCodeInternalSerialization,
			"failed to serialize response",
			err,
		)
	}

	h := cloneHeaders(headers)
	h["Content-Type"] = ContentTypeJSON
	return Response{
		Status:  status,
		Headers: h,
		Body:    string(bytes.TrimRight(buf.Bytes(), "\n")),
	}, nil
}

// Write sends the response on w.
func (r Response) Write(w http.ResponseWriter) {
	for k, v := range r.Headers {
		w.Header().Set(k, v)
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(r.Body))
}

func cloneHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	return out
}
