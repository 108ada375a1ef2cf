// Package models defines the core domain entities for TrustVault.
//
// # Entities
//
//   - User: registered account with a personal liquid balance and a
//     denormalized view of group memberships
//   - Group: a savings pool ("ranch") with an ordered member roster, a
//     liquid balance, and an invested amount
//   - Transaction: a proposed movement of value, approved by majority vote
//     before it may execute
//   - Invite: an email-addressed offer of group membership
//
// # Design principles
//
//  1. Entities reference each other by ID strings, never by pointer, so a
//     record round-trips through the store as a self-contained document.
//  2. Monetary values are decimal.Decimal, never floats.
//  3. Derived values (memberCount, totalAssets) are recomputed from the
//     authoritative fields; a stored copy is a cache, not a source of truth.
package models
