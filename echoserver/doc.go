// Package echoserver is a small HTTP server that reflects requests back to
// the caller. It is the target of the integration tests and of the
// `httprequester serve` command.
//
// Endpoints:
//
//	GET  /              200 "ok"
//	ANY  /headers       request headers as JSON
//	ANY  /content       request body, with the request Content-Type
//	ANY  /query         query parameters as JSON
//	ANY  /delay/{ms}    waits ms milliseconds (bounded by the request), then 200
//	ANY  /status/{code} responds with code
//	ANY  /flaky/{n}     503 for the first n calls per X-Flaky-Key, then 200
//	GET  /livez         liveness
//	GET  /readyz        readiness; pings Redis when configured
//	GET  /metrics       Prometheus metrics, when enabled
//
// Example:
//
//	srv := echoserver.New(
//	    echoserver.WithAddr(":8080"),
//	    echoserver.WithLogger(logger),
//	    echoserver.WithPrometheus(true),
//	)
//	if err := srv.ListenAndServe(ctx); err != nil {
//	    log.Fatal().Err(err).Msg("server failed")
//	}
//
// In tests, serve Handler() with httptest:
//
//	ts := httptest.NewServer(echoserver.New().Handler())
//	defer ts.Close()
package echoserver
