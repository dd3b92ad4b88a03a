package requester

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/kroma-labs/httprequester/retry"
	"github.com/kroma-labs/httprequester/uritemplate"
	"github.com/rs/zerolog"
)

// Sender performs one round trip relative to a base address.
// *httpclient.Client implements it.
type Sender interface {
	Send(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Requester issues requests through a Sender. It is immutable and safe for
// concurrent use; With and WithDefaultQueryParameters return copies.
type Requester struct {
	sender    Sender
	policy    retry.Policy
	modifiers []Modifier
	defaults  uritemplate.Params
	logger    zerolog.Logger
}

// New creates a Requester sending through sender.
func New(sender Sender, opts ...Option) (*Requester, error) {
	if sender == nil {
		return nil, argumentError("sender", ErrNilSender)
	}

	cfg := config{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	policy := retry.New(cfg.retryOpts...)
	if cfg.policy != nil {
		policy = *cfg.policy
	}

	return &Requester{
		sender:    sender,
		policy:    policy,
		modifiers: cfg.modifiers,
		defaults:  cfg.defaults,
		logger:    cfg.logger,
	}, nil
}

// With returns a copy of r that also runs modifier. r is unchanged.
// A nil modifier fails with an *ArgumentError wrapping ErrNilModifier.
func (r *Requester) With(modifier Modifier) (*Requester, error) {
	if modifier == nil {
		return nil, argumentError("modifier", ErrNilModifier)
	}
	out := r.clone()
	out.modifiers = append(out.modifiers, modifier)
	return out, nil
}

// WithDefaultQueryParameters returns a copy of r that merges params into
// every request, after any defaults r already has.
func (r *Requester) WithDefaultQueryParameters(params uritemplate.Params) *Requester {
	out := r.clone()
	out.defaults = append(out.defaults, params...)
	return out
}

// Policy returns the retry policy used by GET calls.
func (r *Requester) Policy() retry.Policy {
	return r.policy
}

func (r *Requester) clone() *Requester {
	out := *r
	out.modifiers = slices.Clone(r.modifiers)
	out.defaults = slices.Clone(r.defaults)
	return &out
}

// =============================================================================
// GET
// =============================================================================

// Get sends a GET for path through the retry policy. Retries default to
// the policy's count (0 unless configured); WithRetries overrides it.
func (r *Requester) Get(ctx context.Context, path string, opts ...CallOption) (*http.Response, error) {
	call := newCallConfig(opts)
	return r.get(ctx, call.apply(NewRequestSpec(http.MethodGet, path)), call)
}

// GetString is Get returning the body text. It returns "" and no error
// when no response was produced.
func (r *Requester) GetString(ctx context.Context, path string, opts ...CallOption) (string, error) {
	resp, err := r.Get(ctx, path, opts...)
	if err != nil {
		return "", err
	}
	return readString(resp)
}

// GetTemplate binds template against params and sends a GET. Nil params
// fail with ErrNilParameters before anything is sent.
//
//	resp, err := r.GetTemplate(ctx, "users/{id}", uritemplate.Of("id", "42", "expand", "orders"))
//	// GET /users/42?expand=orders
func (r *Requester) GetTemplate(
	ctx context.Context,
	template string,
	params uritemplate.Params,
	opts ...CallOption,
) (*http.Response, error) {
	if params == nil {
		return nil, argumentError("params", ErrNilParameters)
	}

	call := newCallConfig(opts)
	spec := call.apply(NewRequestSpec(http.MethodGet, template)).WithParams(params)
	return r.get(ctx, spec, call)
}

// GetTemplateString is GetTemplate returning the body text.
func (r *Requester) GetTemplateString(
	ctx context.Context,
	template string,
	params uritemplate.Params,
	opts ...CallOption,
) (string, error) {
	resp, err := r.GetTemplate(ctx, template, params, opts...)
	if err != nil {
		return "", err
	}
	return readString(resp)
}

// GetJSON sends a GET and decodes the response body into v, whatever the
// status. The response is returned with its body closed.
func (r *Requester) GetJSON(ctx context.Context, path string, v any, opts ...CallOption) (*http.Response, error) {
	resp, err := r.Get(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	return resp, DecodeJSON(resp, v)
}

func (r *Requester) get(ctx context.Context, spec RequestSpec, call callConfig) (*http.Response, error) {
	policy := r.policy
	if call.retries != nil {
		policy = policy.WithMaxRetries(*call.retries)
	}
	return r.execute(ctx, spec, call.authorization, policy)
}

// =============================================================================
// POST / PUT / DELETE
// =============================================================================

// Post sends body to path once.
func (r *Requester) Post(ctx context.Context, path string, body Body, opts ...CallOption) (*http.Response, error) {
	return r.sendOnce(ctx, http.MethodPost, path, &body, opts)
}

// Put sends body to path once.
func (r *Requester) Put(ctx context.Context, path string, body Body, opts ...CallOption) (*http.Response, error) {
	return r.sendOnce(ctx, http.MethodPut, path, &body, opts)
}

// Delete sends a DELETE for path once.
func (r *Requester) Delete(ctx context.Context, path string, opts ...CallOption) (*http.Response, error) {
	return r.sendOnce(ctx, http.MethodDelete, path, nil, opts)
}

func (r *Requester) sendOnce(
	ctx context.Context,
	method, path string,
	body *Body,
	opts []CallOption,
) (*http.Response, error) {
	call := newCallConfig(opts)
	spec := call.apply(NewRequestSpec(method, path))
	if body != nil {
		spec = spec.WithBody(*body)
	}
	return r.execute(ctx, spec, call.authorization, retry.Policy{})
}

// =============================================================================
// Raw sends
// =============================================================================

// SendMessage sends spec once after running the modifiers and merging the
// default query parameters.
func (r *Requester) SendMessage(ctx context.Context, spec RequestSpec) (*http.Response, error) {
	return r.execute(ctx, spec, "", retry.Policy{})
}

// SendMessageWithRetries is SendMessage through the retry policy with the
// given retry count. The body is resent unchanged on every attempt.
func (r *Requester) SendMessageWithRetries(ctx context.Context, spec RequestSpec, retries uint) (*http.Response, error) {
	return r.execute(ctx, spec, "", r.policy.WithMaxRetries(retries))
}

// Prepare returns spec as it would be sent: modifiers applied, target
// bound, defaults merged and authorization set.
func (r *Requester) Prepare(spec RequestSpec) (RequestSpec, error) {
	return r.prepare(spec, "")
}

// =============================================================================
// Pipeline
// =============================================================================

func (r *Requester) prepare(spec RequestSpec, authorization string) (RequestSpec, error) {
	for _, modify := range r.modifiers {
		spec = modify(spec)
	}

	uri, err := spec.URI()
	if err != nil {
		return RequestSpec{}, argumentError("target", err)
	}
	uri, err = mergeDefaults(uri, r.defaults)
	if err != nil {
		return RequestSpec{}, argumentError("target", err)
	}
	spec = spec.resolved(uri)

	if authorization != "" {
		spec = spec.WithAuthorization(authorization)
	}
	return spec, nil
}

func (r *Requester) execute(
	ctx context.Context,
	spec RequestSpec,
	authorization string,
	policy retry.Policy,
) (*http.Response, error) {
	prepared, err := r.prepare(spec, authorization)
	if err != nil {
		return nil, err
	}

	attempt := func(ctx context.Context) (*http.Response, error) {
		req, err := prepared.NewRequest(ctx)
		if err != nil {
			return nil, err
		}
		return r.sender.Send(ctx, req)
	}

	var out retry.Outcome
	if policy.MaxRetries() == 0 {
		resp, err := attempt(ctx)
		out = retry.Outcome{Response: resp, Err: err, Attempts: 1}
	} else {
		out = policy.Execute(ctx, attempt)
	}

	if out.Err != nil {
		r.logger.Warn().
			Err(out.Err).
			Str("method", prepared.method).
			Str("uri", prepared.target).
			Int("attempts", out.Attempts).
			Msg("request failed")
	}
	return out.Response, out.Err
}

// mergeDefaults merges defaults into a bound uri. For absolute URLs only
// the path and query take part.
func mergeDefaults(uri string, defaults uritemplate.Params) (string, error) {
	if len(defaults) == 0 {
		return uri, nil
	}
	if !isAbsolute(uri) {
		return uritemplate.MergeDefaults(uri, defaults)
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	merged, err := uritemplate.MergeDefaults(u.RequestURI(), defaults)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host + "/" + strings.TrimLeft(merged, "/"), nil
}
