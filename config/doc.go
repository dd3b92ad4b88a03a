// Package config loads httprequester settings with koanf and maps them onto
// httpclient, requester and echoserver options.
//
// Sources are layered, later ones winning:
//
//  1. built-in defaults
//  2. an optional YAML file (WithFile) or inline YAML (WithYAML)
//  3. environment variables with the HTTPREQUESTER_ prefix
//  4. explicit overrides (WithOverrides), used by CLI flags
//
// Environment names map to keys by dropping the prefix, lowercasing, and
// turning "__" into a section separator:
//
//	HTTPREQUESTER_CLIENT__BASE_URL=https://api.example.com  ->  client.base_url
//	HTTPREQUESTER_RETRY__MAX_RETRIES=3                      ->  retry.max_retries
//
// Example config.yaml:
//
//	client:
//	  base_url: https://api.example.com
//	  timeout: 5s
//	  preset: low_latency
//	  headers:
//	    Accept: application/json
//	retry:
//	  max_retries: 3
//	  delay: 200ms
//	  strategy: exponential
//	breaker:
//	  enabled: true
package config
