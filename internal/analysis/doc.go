// Package analysis is the HTTP client for the content analysis service.
//
// The client posts a content URI to {AI_SERVICE_URL}/api/analyze/content and
// decodes the structured analysis. Failed calls are reported to a circuit
// breaker; after enough consecutive failures the client fails fast with
// ErrCircuitOpen until the recovery timeout passes, so a struggling service is
// not hammered by every queued job at once. Retrying is left to the job queue.
//
// Non-2xx responses are returned as *ServiceError:
//
//	var svcErr *analysis.ServiceError
//	if errors.As(err, &svcErr) && svcErr.StatusCode == http.StatusUnauthorized {
//		// bad API key
//	}
package analysis
