package gate

import (
	"context"
	"errors"
	"time"

	"git.cscs.ch/openchami/chamicore-sqlgate/internal/policy"
	"git.cscs.ch/openchami/chamicore-sqlgate/internal/skillset"
	"git.cscs.ch/openchami/chamicore-sqlgate/pkg/types"
)

// ErrNoEndpoint is returned when a request names no session store socket to
// fetch the policy from.
var ErrNoEndpoint = errors.New("request has no service endpoint")

// ContextStoreSource resolves policies from the skillset session store
// socket each request points at. The client is built per fetch: the endpoint
// is part of the request, and policies are never cached between calls.
type ContextStoreSource struct {
	Timeout    time.Duration
	Attempts   uint
	RetryDelay time.Duration
}

func (s ContextStoreSource) Fetch(ctx context.Context, req types.ValidationRequest) (*policy.Policy, error) {
	if req.ServiceEndpoint == "" {
		return nil, ErrNoEndpoint
	}
	var opts []skillset.Option
	if s.Timeout > 0 {
		opts = append(opts, skillset.WithTimeout(s.Timeout))
	}
	if s.Attempts > 0 {
		opts = append(opts, skillset.WithAttempts(s.Attempts))
	}
	if s.RetryDelay > 0 {
		opts = append(opts, skillset.WithRetryDelay(s.RetryDelay))
	}
	client := skillset.New(req.ServiceEndpoint, opts...)
	raw, err := client.GetContext(ctx, req.SessionID, req.InvocationID, skillset.ContextNameSQLPermissions)
	if err != nil {
		return nil, err
	}
	return policy.Parse(raw)
}

// FileSource loads the permission document from a local file on every
// validation. Meant for development and offline checks; edits to the file
// take effect on the next request.
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(_ context.Context, _ types.ValidationRequest) (*policy.Policy, error) {
	return policy.LoadFile(s.Path)
}
