// Package auth issues and verifies the HS256 bearer tokens accepted by the
// Lifelog API.
//
// Tokens carry no roles: the subject is the user ID, and the API scopes every
// routine, log read and ingested event to it. Accounts live in the upstream
// product; this service only trusts tokens signed with the shared secret.
package auth
