// Package services contains the client application services: keeping a
// device's profile in sync with its sync group, and issuing and opening
// read-only shares. Everything that reaches the network is sealed here
// first; the server only ever sees envelopes.
package services
