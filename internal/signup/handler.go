// Package signup is the externally invoked entry point: it checks the method,
// fetches the processor key, decodes and validates the form, provisions the
// customer and writes the response.
package signup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"cardsignup/internal/billing"
	"cardsignup/internal/core"
	"cardsignup/internal/external"
	"cardsignup/internal/secrets"
	"cardsignup/internal/telemetry"
	"cardsignup/internal/types"
)

// Fixed response bodies.
const (
	MethodNotAllowedBody = "Only POST requests are allowed"
	EmptyBodyPrompt      = "Please provide JSON data"
)

// Outcome values recorded for responses that are not errors.
const (
	outcomeMethodRejected = "method_rejected"
	outcomeEmptyBody      = "empty_body"
)

// Provisioner creates the processor resources for one signup.
type Provisioner interface {
	Provision(ctx context.Context, session external.PaymentSession, req types.SignupRequest) (*billing.ProvisionResult, error)
}

// SecretRef names the secret version holding the processor key.
type SecretRef struct {
	ProjectID string
	SecretID  string
	Version   string
}

// Config wires a Handler.
type Config struct {
	Secrets       secrets.Accessor
	Secret        SecretRef
	Gateway       external.PaymentGateway
	Provisioner   Provisioner
	Validator     *core.Validator
	Metrics       telemetry.Recorder
	Logger        *slog.Logger
	UniformStatus bool

	// NewID and Now are overridable for tests.
	NewID func() string
	Now   func() time.Time
}

// Handler serves signup requests. It holds no per-request state and is safe
// for concurrent use.
type Handler struct {
	secrets       secrets.Accessor
	secret        SecretRef
	gateway       external.PaymentGateway
	provisioner   Provisioner
	validator     *core.Validator
	metrics       telemetry.Recorder
	logger        *slog.Logger
	uniformStatus bool
	newID         func() string
	now           func() time.Time
}

// NewHandler creates a Handler from cfg.
func NewHandler(cfg Config) *Handler {
	h := &Handler{
		secrets:       cfg.Secrets,
		secret:        cfg.Secret,
		gateway:       cfg.Gateway,
		provisioner:   cfg.Provisioner,
		validator:     cfg.Validator,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		uniformStatus: cfg.UniformStatus,
		newID:         cfg.NewID,
		now:           cfg.Now,
	}
	if h.validator == nil {
		h.validator = core.NewValidator()
	}
	if h.metrics == nil {
		h.metrics = telemetry.NoopRecorder{}
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.newID == nil {
		h.newID = func() string { return uuid.New().String() }
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Request is a transport-neutral signup request.
type Request struct {
	Method string
	Body   []byte

	// bodyErr is set by adapters that failed to read or decode the body.
	bodyErr error
}

// Handle serves one invocation.
func (h *Handler) Handle(ctx context.Context, req Request) core.Response {
	start := h.now()
	id := h.newID()
	ctx = types.WithInvocationID(ctx, id)
	logger := h.logger.With("invocation_id", id)

	if !strings.EqualFold(req.Method, http.MethodPost) {
		h.metrics.RecordSignup(ctx, outcomeMethodRejected, h.now().Sub(start))
		return core.Text(http.StatusOK, MethodNotAllowedBody, core.MinimalCORSHeaders())
	}

	headers := core.FullCORSHeaders()
	outcome := string(types.ErrCodeInternalUnexpected)

	resp := core.Boundary(ctx, logger, h.uniformStatus, headers, func(ctx context.Context) (core.Response, error) {
		resp, result, err := h.handlePost(ctx, logger, req, headers)
		if err != nil {
			outcome = string(types.CodeOf(err))
			return core.Response{}, err
		}
		outcome = result
		return resp, nil
	})

	h.metrics.RecordSignup(ctx, outcome, h.now().Sub(start))
	return resp
}

// handlePost walks SECRET_FETCHED, BODY_PARSED, CREDENTIAL_SET and
// PROVISIONED. It returns the response and the outcome to record.
//
// A failed secret fetch is logged by its own guard and held: an absent body
// still gets the prompt, any other body fails with the secret error.
func (h *Handler) handlePost(ctx context.Context, logger *slog.Logger, req Request, headers map[string]string) (core.Response, string, error) {
	payload, secretErr := core.Guard(ctx, logger, "access_secret", h.fetchKey)

	var (
		signupReq *types.SignupRequest
		present   = true
		bodyErr   = req.bodyErr
	)
	if bodyErr == nil {
		signupReq, present, bodyErr = decodeBody(req.Body)
	} else {
		bodyErr = types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body could not be read", bodyErr)
	}
	if bodyErr == nil && !present {
		return core.Text(http.StatusOK, EmptyBodyPrompt, headers), outcomeEmptyBody, nil
	}
	if secretErr != nil {
		return core.Response{}, "", secretErr
	}
	if bodyErr != nil {
		return core.Response{}, "", bodyErr
	}
	if err := h.validator.ValidateSignup(signupReq); err != nil {
		return core.Response{}, "", err
	}

	session := h.gateway.Session(payload.Value)

	result, err := h.provisioner.Provision(ctx, session, *signupReq)
	if err != nil {
		return core.Response{}, "", err
	}

	resp, err := core.PrettyJSON(http.StatusOK, result, headers)
	if err != nil {
		return core.Response{}, "", err
	}
	return resp, telemetry.ResultSuccess, nil
}

// fetchKey reads the processor key. An unverified payload is not used.
func (h *Handler) fetchKey(ctx context.Context) (*secrets.Payload, error) {
	payload, err := h.secrets.Access(ctx, h.secret.ProjectID, h.secret.SecretID, h.secret.Version)
	if err != nil {
		return nil, err
	}
	if !payload.Verified {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeSecretChecksumMismatch,
			"secret payload failed CRC-32C verification",
			nil,
			map[string]any{"secret": payload.Name},
		)
	}
	return payload, nil
}

// decodeBody parses the signup JSON. present is false for an empty body and
// for any falsy JSON value: null, false, 0, "", [] or {}.
func decodeBody(body []byte) (req *types.SignupRequest, present bool, err error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false, nil
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, false, invalidJSON(err)
	}
	switch x := v.(type) {
	case nil:
		return nil, false, nil
	case bool:
		if !x {
			return nil, false, nil
		}
	case float64:
		if x == 0 {
			return nil, false, nil
		}
	case string:
		if x == "" {
			return nil, false, nil
		}
	case []any:
		if len(x) == 0 {
			return nil, false, nil
		}
	case map[string]any:
		if len(x) == 0 {
			return nil, false, nil
		}
		var out types.SignupRequest
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, false, invalidJSON(err)
		}
		return &out, true, nil
	}
	return nil, false, invalidJSON(fmt.Errorf("expected a JSON object, got %T", v))
}

func invalidJSON(err error) error {
	return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body is not a valid signup object", err)
}
