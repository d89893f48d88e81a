// Package social defines the social backend's resources and writes on top of
// the query engine.
//
// API is the typed view of the backend methods. Queries binds it to a
// query.Client: every resource is defined once with its key and freshness
// family, and every write once with its optimistic patch and the keys it
// invalidates. The presentation layer only ever sees query.Resource and
// query.Mutator values.
//
// Memory implements the same methods in process for the demo mode and for
// tests.
package social
