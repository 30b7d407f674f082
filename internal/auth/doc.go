// Package auth provides authentication and authorization for the directory API.
//
// # Credentials
//
// Store keeps user accounts in the database with Argon2id password hashes. Permission
// grants are stored as a JSON array of capability tags on the user record and are
// decoded leniently: malformed text yields no grants rather than an error.
//
// # Capabilities
//
// Resolve turns a role and its stored grants into a Capabilities set. Administrators
// hold the universal set, which answers true for every tag, including tags that do not
// exist yet. Every other user holds exactly the tags stored on the record.
//
// # Access checks
//
// Service.Authorize runs the fixed pipeline for a bearer token:
//   - token verification (NO_TOKEN, INVALID_TOKEN, EXPIRED_TOKEN)
//   - user lookup (USER_NOT_FOUND)
//   - activity check (USER_INACTIVE)
//   - capability resolution
//
// Middleware wraps the pipeline for fiber routes:
//
//	mw := auth.NewMiddleware(authService)
//	app.Get("/api/reports", mw.RequireCapability(auth.CapReportsExport), handler)
//	app.Get("/api/businesses", mw.OptionalAuth(), list)
//
// A rejection is a *Failure carrying the status and code sent to the caller. Failures
// with status 401 are definitive verdicts about the credential; anything else is a
// server fault and says nothing about it.
package auth
