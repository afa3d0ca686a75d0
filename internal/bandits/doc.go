// Package bandits owns the bandit registry and the contact lifecycle.
//
// A Bandit is an operator-defined device profile made of identifiers. Every
// captured frame is evaluated against every registered bandit; a bandit is hit
// when any of its identifiers matches. Hits open or extend a Contact keyed by
// (bandit, source), and fan out to InitialTrackHandler and BanditTraceHandler
// callbacks. A watchdog retires contacts that have not been hit within the
// configured timeout; a later hit opens a fresh contact with a new UUID.
//
// Removing a bandit leaves its open contacts in place until the watchdog
// retires them. No new contact can start for a removed bandit.
//
// No SQL/database code is allowed in this package; persistence goes through
// the Repository interface.
package bandits
