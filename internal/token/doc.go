// Package token issues and verifies session tokens and keeps track of the
// tokens revoked before their expiry.
//
// JWTIssuer implements application.TokenIssuer with HS256 JSON Web Tokens.
// Revocations go to a Blacklist keyed by Digest(token), so a token can be
// checked without parsing it first. Blacklist entries never outlive the
// token they reject.
package token
