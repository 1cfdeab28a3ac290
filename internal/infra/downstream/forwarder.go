package downstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bryanwahyu/testcompanion/internal/domain/watch"
)

// Forwarder posts watcher changes to the aggregator's ingest endpoint.
type Forwarder struct{ *Client }

func NewForwarder(aggregatorURL string, opts Options) *Forwarder {
	return &Forwarder{NewClient(aggregatorURL, opts)}
}

var _ watch.Forwarder = (*Forwarder)(nil)

func (f *Forwarder) Forward(ctx context.Context, p watch.ForwardPayload) error {
	err := f.PostJSON(ctx, "/api/changes", p, nil)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusBadRequest {
		return fmt.Errorf("%w: %s", watch.ErrRejected, se.Body)
	}
	return err
}
