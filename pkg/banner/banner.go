// Package banner prints the startup summary.
package banner

import (
	"fmt"
	"os"
)

const art = `
                              _           _
  ___ _ __ _____      _____| |__   __ _| |_
 / __| '__/ _ \ \ /\ / / __| '_ \ / _` + "`" + ` | __|
| (__| | |  __/\ V  V / (__| | | | (_| | |_
 \___|_|  \___| \_/\_/ \___|_| |_|\__,_|\__|
`

// Print writes the banner and effective settings to stderr so stdout
// stays clean for tooling.
func Print(version, addr, dbPath, cfgSource string) {
	fmt.Fprint(os.Stderr, art)
	fmt.Fprintf(os.Stderr, "  version: %s\n", version)
	fmt.Fprintf(os.Stderr, "  listen:  %s\n", addr)
	fmt.Fprintf(os.Stderr, "  store:   %s\n", dbPath)
	fmt.Fprintf(os.Stderr, "  config:  %s\n\n", cfgSource)
}
