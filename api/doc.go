// Package api exposes a docvault service over HTTP.
//
// Every route under /api requires a bearer JWT signed with the configured
// HMAC secret. The token's subject (or a "user_id" claim) names the owner
// the request acts for. Responses use the envelope produced by core.Result:
//
//	{"data": ...}
//	{"error": {"kind": "conflict", "message": "..."}}
//
// Routes:
//
//	GET    /health
//	GET    /api/files/types
//	POST   /api/files/upload           multipart form, field "file"
//	GET    /api/files/list
//	GET    /api/files/status/{id}
//	GET    /api/files/{id}/watch       websocket status stream
//	GET    /api/files/{id}/download    original bytes as an attachment
//	POST   /api/files/{id}/reprocess
//	DELETE /api/files/{id}
//	GET    /api/search?q=...&k=...
//
// Browsers cannot set headers on a websocket handshake, so the token may also
// be passed as the "token" query parameter.
package api
