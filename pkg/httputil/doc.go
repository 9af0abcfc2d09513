// Package httputil provides the HTTP plumbing shared by image loading and the
// image proxy.
//
// # Overview
//
//   - [Client]: GET client with default headers, a body size cap and
//     observability hooks
//   - [Retry]: Automatic retry with exponential backoff
//
// # Fetching
//
// [Client.Fetch] performs one request and returns the upstream status, content
// type and body without judging the status; the image proxy relays those
// as-is. [Client.Get] is the strict variant used when Go loads an image
// itself: it retries transient failures and turns non-2xx statuses into
// errors.
//
//	c := httputil.NewClient(map[string]string{"Accept": "image/*"})
//	body, contentType, err := c.Get(ctx, "https://ui-avatars.com/api/?name=Jane")
//
// # Retry
//
// [Retry] wraps an operation with automatic retry for transient failures:
//
//   - Network errors
//   - 5xx server errors
//
// Only errors wrapped in [RetryableError] are retried; the delay doubles after
// each attempt:
//
//	err := httputil.Retry(ctx, 3, time.Second, func() error {
//	    return fetch()
//	})
//
// # Configuration
//
// Default settings:
//
//   - Request timeout: 10 seconds
//   - Max body: 10 MiB
//   - Max retries: 3
//   - Base backoff: 1 second
package httputil
