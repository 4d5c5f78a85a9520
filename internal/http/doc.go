// Package http provides the JSON API of the festival service on a chi router.
//
// Public endpoints:
//   - POST /sessions: {"username","password"} -> {"token","expires_at","user"}. The
//     token is also returned in the X-Session-Token header and a session_token cookie.
//   - POST /registrations: self-registration; the account starts inactive.
//   - GET /healthz: storage ping.
//
// Everything else requires a bearer token (or the session cookie):
//   - DELETE /sessions/current: logout; the token is blacklisted until it expires.
//   - /users, /users/{userID}: administration and self-service profile edits, plus
//     PUT password and POST activate, deactivate and unlock.
//   - /programs, /programs/{programID}: search, CRUD, POST state, and PUT/DELETE on
//     programmers/{userID} and staff/{userID}.
//   - /programs/{programID}/screenings: search (title, genre, state, scheduled range,
//     sort=genre|timetable) and draft creation.
//   - /screenings/{screeningID}: GET, PUT (edit draft), DELETE (withdraw) and the
//     workflow actions submit, handler, review, approve, reject, final-submit, schedule.
//   - GET /me/screenings, GET /me/assignments: the caller's submissions and review queue.
//   - GET /audit: newest audit entries, administrators only.
//
// Errors are {"error_code","message","errors"}; the status follows
// application.ErrorKind: 400 malformed input, 401 credentials or session, 403
// permissions and account state, 404, 409 for state and membership conflicts,
// 422 validation.
package http
