// Package server provides HTTP routing, middleware, OAuth handling, and the
// push-notification receiver.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// OAuthHandler implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// When the user runs `calsync auth login`, a temporary HTTP server starts on localhost, handles the callback,
// and shuts down after receiving the OAuth token.
//
// # Notification Receiver
//
// [NotificationHandler] accepts calendar push notifications. The provider
// retries on non-2xx responses, so the handler always answers 200 and any
// sync work happens after the response is committed.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
