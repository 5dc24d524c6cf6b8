// Package listings integrates with the third-party real-estate listings
// provider.
//
// The raw API is the [Provider] interface; two implementations exist
// ([HTTPProvider] for the live service, [MockProvider] for development)
// and are selected by configuration.
//
// All scheduler-path reads go through [Client], which applies the
// resilience policy uniformly: bounded retries with exponential backoff
// on transient failures, a circuit breaker with a cooldown window, and a
// TTL cache keyed by normalized query signature. Unresolved failures
// degrade to an empty result plus a logged warning — a Client read never
// aborts the caller's dispatch loop, and callers cannot distinguish
// "provider unreachable" from "no data" by design.
package listings
