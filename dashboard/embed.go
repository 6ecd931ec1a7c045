// Package dashboard holds the web UI of the disaster dashboard, compiled
// into the binary with go:embed.
//
// The server package serves these files at "/", rendering index.html as a
// template with the board title. Library users normally have no reason to
// import it.
package dashboard

import "embed"

// Assets contains the dashboard page:
//
//	assets/
//	  index.html    - view cards, location search and emergency panel; talks
//	                  to /api and /api/sse with inline JavaScript
//
//go:embed assets/*
var Assets embed.FS
