// package calendar wraps the remote calendar provider's event API.
//
// The wire model reuses the typed event representation from
// google.golang.org/api/calendar/v3. GoogleClient talks HTTP with bearer
// credentials, retries once on 429 honoring Retry-After, and surfaces 401
// as a re-authorization signal; SimulatedClient stands in when no
// credential is configured and never performs network I/O.
package calendar
