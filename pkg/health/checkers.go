package health

import (
	"context"
	"net/http"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck reports unhealthy when the goroutine count exceeds the
// threshold. Useful as a liveness check for goroutine leaks.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if count := runtime.NumGoroutine(); count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}

// HTTPGetCheck reports unhealthy when the URL cannot be reached or answers
// with a server error. Client errors count as reachable: the endpoint is up
// even if it dislikes an unauthenticated probe.
func HTTPGetCheck(client *http.Client, url string) CheckFunc {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return errors.Wrap(err, "build request")
		}
		resp, err := client.Do(req)
		if err != nil {
			return errors.Wrap(err, "reach endpoint")
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return errors.Errorf("endpoint returned %d", resp.StatusCode)
		}
		return nil
	}
}
