// Package requester issues GET, POST, PUT and DELETE requests against a
// base address with optional retries, URI templating, request modifiers
// and default query parameters.
//
// # Quick Start
//
//	client, err := httpclient.NewBuilder().
//	    BaseAddress("https://api.example.com").
//	    Timeout(10 * time.Second).
//	    UserAgent(useragent.New("orders", "1.4.0")).
//	    Create()
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	r, err := requester.New(client)
//	if err != nil {
//	    return err
//	}
//
//	body, err := r.GetTemplateString(ctx, "orders/{id}", uritemplate.Of("id", "42"),
//	    requester.WithAuth("Bearer", token),
//	    requester.WithRetries(3),
//	)
//
// # Pipeline
//
// Every call runs the same steps:
//
//  1. The registered modifiers run in registration order.
//  2. The target is bound with its parameters and the default query
//     parameters are merged in. Explicit parameters come first.
//  3. The Authorization header is set, if one was given.
//  4. The request is sent. GET variants go through the retry policy, each
//     attempt rebuilding the request from the same RequestSpec.
//
// POST, PUT and DELETE are sent once. Use SendMessageWithRetries to retry
// a request with a body.
//
// # Responses
//
// A 4xx or 5xx status is a response, not an error. When retries are
// exhausted on a retryable status, the last response is returned with a
// nil error. When they are exhausted on a transient failure, that failure
// is returned unchanged.
package requester
