// Package remote is the transport to the social backend.
//
// # Overview
//
// The backend is reached through an actor gateway that exposes every
// backend method as POST /api/call/{method}. The request body is the JSON
// array of positional arguments; the response body is the JSON result, or
// null for methods that may return nothing. Failed calls answer with a 4xx
// or 5xx status and a body of the form {"error": "..."}.
//
//	client, err := remote.NewClient("127.0.0.1:4943",
//		remote.WithIdentity("user-1"),
//		remote.WithRateLimit(10, 5),
//	)
//	if err != nil {
//		return err
//	}
//	var posts []social.Post
//	err = client.Call(ctx, "getPosts", nil, &posts)
//
// # Availability
//
// Nothing may be fetched before the gateway is reachable. Availability is
// the gate the query layer consults; StartProbe pings GET /api/status until
// it answers and then opens the gate, which runs the OnReady callbacks.
//
// # Errors
//
//   - Transport failures wrap ErrUnavailable.
//   - Rejected calls return *CallError with the method, status and message.
//   - Decoding failures are wrapped with the method name.
//
// Errors carry stack context from github.com/pkg/errors; errors.Is and
// errors.As work through the wrapping.
package remote
