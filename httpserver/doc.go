/*
Package httpserver implements the multisig coordination gateway's HTTP
surface: the server lifecycle, the layered authorization pipeline and the
wallet operation handlers.

# Request Processing

Every wallet request passes through an ordered pipeline before its handler
runs:

 1. parse - read the body once, extract the token from query or body
 2. admin check - grant admin from the configured admin token (or globally
    when admin auth is disabled)
 3. wallet context - load the wallet record named in the route; unknown or
    removed wallets stop here with 404
 4. admin-only enforcement - reject non-admin callers on admin routes
 5. cosigner auth - require a recognized cosigner token on wallet-scoped
    routes

Which stages apply to a route is declared in its RoutePolicy rather than
decided inside the stages. Join is the notable exception to cosigner auth:
it proves eligibility with the wallet's join key inside the handler.

# Security Model

Three credential layers protect the API:

  - A service API key checked by HTTP basic auth at the transport edge
  - A process-wide admin token for list/remove and override access
  - Per-cosigner auth tokens minted at join time

All secret comparisons are constant time. Responses are scoped so that a
caller only ever sees their own cosigner token, and the wallet join key is
revealed exactly once, to the creator.

# Server Lifecycle

The Server runs the API and a Prometheus metrics endpoint on separate
listeners and exposes /livez, /readyz, /drain and /undrain for load-balancer
coordination with graceful shutdown.
*/
package httpserver
