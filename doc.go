// Package auth implements token based authentication and account
// lifecycle management on top of bun and fiber.
//
// Token lifecycle:
//   - TokenCodec signs and verifies HS256 JWTs carrying the user id and,
//     under multitenancy, the organization id. Signature verification
//     always precedes expiry evaluation, so a tampered token is reported
//     as malformed even when its claimed expiry has passed.
//   - Every authorized request receives a reissued token on the exchange
//     response header, giving clients a rolling session window.
//
// Request authorization:
//   - Authorizer is the fiber middleware. It parses the Authorization
//     header, decodes the credential, loads the sanitized account (and
//     tenant when multitenancy is on), and stores the AuthContext on both
//     fiber locals and the request context. All failures collapse into a
//     single forbidden response.
//   - RequireAdmin and RequireSuperuser stack on top of the Authorizer
//     for role gated routes.
//
// Account flows:
//   - Command handlers (register, activate, login, admin login, logout,
//     password reset, password change, user management) each pair a
//     Message with a Handler whose Execute runs the flow inside a single
//     transaction. Flows that email the account treat delivery as part of
//     the contract and fail when the notification cannot be sent.
//   - Single use perishable tokens drive activation and reset
//     confirmation; consuming one nulls it so a replay can never match.
package auth
