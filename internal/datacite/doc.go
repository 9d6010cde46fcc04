// Package datacite talks to the identifier registry. It owns the retry
// classification of failed requests, the rate-limited transport, cursor
// pagination for bulk listings, and the registration and metadata-update
// operations. Everything here is bound to exactly one environment, resolved
// before construction; the package itself cannot switch between production
// and test.
package datacite
