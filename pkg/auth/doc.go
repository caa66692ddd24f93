// Package auth validates bearer access tokens issued by an Amazon Cognito
// user pool (or any issuer publishing an RS256 JWKS) and produces the
// authenticated [Principal] used by the gateway.
//
// # Pipeline
//
// The pipeline is built from three pieces, leaves first:
//
//   - [KeySetCache] holds exactly one generation of signing keys behind an
//     atomically swapped pointer. Readers never block and never observe a
//     partially replaced set.
//   - [KeyResolver] looks a key id up in the cache and, on a miss, fetches
//     the whole key set once, replaces the cache and retries the lookup.
//     Concurrent misses may all refresh; the last replacement wins.
//   - [TokenValidator] parses the token, resolves its key, verifies the RS256
//     signature before trusting any claim, then checks issuer, expiry and
//     token use.
//
// # Failure Kinds
//
// Every validation failure is reported as an *errors.Error whose code
// identifies one [FailureKind]. Use [KindOf] to branch on the kind; callers
// outside the process only ever see the generic "Unauthenticated" label.
//
// # OpenTelemetry Integration
//
// Validation and key set refreshes create spans under the
// "github.com/StricklySoft/agentgate/pkg/auth" instrumentation scope.
package auth
