// Package server hosts the Fiber HTTP surface over the download cache. It
// attaches recover and request-id middlewares, exposes GET /documents?url=
// for decoded documents and serializes every call into the cache manager,
// which is not safe for concurrent use. Diagnostics live under /-/ and are
// registered by the routes subpackage.
package server
