/*
Package auth resolves who is calling and decides which tables they may touch.

# Identity

The service sits behind a gateway that authenticates users and forwards the
result in two headers: the username and a comma-separated role list.
HeaderMiddleware turns them into an Identity stored in the request context:

	mw := auth.NewHeaderMiddleware("X-Username", "X-Roles")
	router.Use(mw.Handle)

	func handler(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFrom(r.Context())
		...
	}

Handlers pass the Identity explicitly to the service layer; nothing below
the HTTP boundary reads it from the context.

# Access rule

A caller may access a table if it holds the administrator role (default
"ADMIN", a "ROLE_" prefix is ignored) or if its stored grant lists the
table by exact name. HasPermission is the pure rule; Authorizer applies it
against a GrantSource.
*/
package auth
