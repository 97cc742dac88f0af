// Package apiflow is the request layer between dashboard feature code and
// the backend API. Every call goes through one pipeline:
//
//   - Bearer token injection from a CredentialStore
//   - Request de-duplication: identical reads inside a short window share one dispatch
//   - Retries with exponential backoff for network errors, timeouts and 5xx
//   - A timeout guard bounding the whole call, retries included
//   - One replay after a 429, honouring Retry-After
//   - Session invalidation and a redirect to the right login page on 401
//   - Prometheus metrics and structured logging through a small Logger interface
//
// A background janitor evicts stale bookkeeping; Close stops it.
//
// Typical usage:
//
//	client := apiflow.New(
//	    apiflow.WithBaseURL("https://api.example.com/api"),
//	    apiflow.WithCredentialStore(store),
//	    apiflow.WithNavigator(nav),
//	    apiflow.WithCurrentRoute(router.Current),
//	)
//	defer client.Close()
//
//	resp, err := client.Get(ctx, "/pharmacy/orders", apiflow.WithQuery("status", "open"))
//	if errors.Is(err, apiflow.ErrUnauthorized) {
//	    // the user has already been sent to a login page
//	}
//
// Uploads use a Multipart body; the transport sets the boundary:
//
//	form := apiflow.NewMultipart().AddField("title", "Scan").AddFile("file", "scan.pdf", data)
//	_, err = client.Post(ctx, "/hr/documents", apiflow.WithMultipart(form))
//
// Configuration can be loaded from YAML or TOML with LoadConfig and applied
// with WithConfig; APIFLOW_* environment variables override file values.
package apiflow
