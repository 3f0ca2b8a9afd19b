// Package kumoridisk holds the shared domain types of the Kumori-Disk
// cloud-storage backend: users, provider links, confirmation tokens, the
// session token pair, and the interfaces the services consume.
//
// # Architecture
//
// User: a single account, created either by local email/password sign-up or
// by authorizing with an OAuth provider. Local accounts start Pending and
// become Confirmed through the email-confirmation flow; provider-created
// accounts start Confirmed because the provider already verified the email.
//
// ProviderLink: the record binding a user to an external provider's user id.
// A user has at most one link per provider and links are never mutated.
//
// ConfirmationToken: a single-use, time-boxed random hash proving control of
// an email address. It lives entirely in the TokenCache.
//
// TokenPair: a signed access/refresh pair carrying the user id as subject.
//
// The orchestrators live in the auth subpackage; store, cache, mail, token
// and transaction implementations live in their own subpackages and are
// wired together in cmd/kumori-disk.
package kumoridisk
