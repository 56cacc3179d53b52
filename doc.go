// Package auth is the authentication and session-integrity layer of a
// multi-user application. It authenticates users by password or by encrypted
// bearer token, manages the password-reset lifecycle, rate-limits credential
// guessing, and detects stale or revoked cookie sessions.
//
// Building blocks:
//   - TokenCodec encodes a small payload (user id, security stamp, issue
//     time) into a self-contained, AES-GCM encrypted, URL-safe bearer token
//     and decodes it back. It is a pure transform with no I/O.
//   - PasswordFlow owns the email+password decision sequences: Authenticate,
//     ChangePassword, SendPasswordResetLink, PasswordResetTokenIsValid, and
//     ResetPassword. Every branch that grants or denies access appends
//     exactly one SecurityEvent.
//   - TokenFlow issues and validates bearer access tokens using TokenCodec
//     and the Users store. Validation failures are logged but never audited;
//     they are too high volume to be actionable per event.
//   - CookieProtocol decides whether a previously signed-in principal is
//     still good. A rotated security stamp forces sign-out; a stale revision
//     claim triggers a silent refresh of the principal.
//
// Collaborators (stores, mailer, rate limiter, hasher, clock, randomness)
// are injected interfaces so the flows stay deterministic under test.
// Durable state lives in the Bun-backed repositories; rate-limit counters
// are expected to be shared across processes (see the ratelimit subpackage
// for a Redis-backed implementation).
package auth
