// Package cli provides the interactive authkeeper command-line client.
//
// It wires configuration, the local credential database, the API client and
// the token lifecycle manager, then runs a REPL. The commands are thin: input
// is read and validated here, everything else is delegated to auth.Manager
// and oauth.Flow.
//
// Commands:
//   - register, login, oauth <provider>
//   - status, profile, refresh
//   - logout, delete
//   - help, exit | quit
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
