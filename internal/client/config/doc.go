// Package config loads runtime configuration for the authkeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file named by -c/-config or $AUTHKEEPER_CONFIG.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   server base URL
//	-d string   local credential database path
//	-t int      request timeout (seconds)
//
// # JSON schema
//
// Durations use timex.Duration, so "15s" and integer nanoseconds both work.
// Every key is optional:
//
//	{
//	  "server_url": "http://localhost:8080",
//	  "storage_path": "/home/me/.config/authkeeper/authkeeper.db",
//	  "request_timeout": "15s",
//	  "verbose": false,
//	  "endpoints": {"login": "/auth/login", "refresh": "/user/refresh"},
//	  "oauth": {
//	    "redirect_url": "http://localhost:3000/oauth-callback.html",
//	    "github": {"client_id": "...", "scopes": ["user:email"]}
//	  }
//	}
package config
