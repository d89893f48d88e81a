// Package app is the composition root of feedsync.
//
// Boot loads the TOML configuration, opens the log file, selects the actor
// (the HTTP gateway or the in-process demo backend), starts the availability
// probe and builds the query client with the configured freshness policies.
// The probe gates every fetch: until the actor answers a ping nothing is
// requested, and once it does the client resumes every subscribed resource.
//
// Run hands the session to the Bubble Tea UI. Watch follows one conversation
// headlessly, printing confirmed messages as polling brings them in.
package app
