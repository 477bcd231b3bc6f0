// red-connector-http moves files and listed directory trees between a
// remote HTTP(S), FTP, SFTP or SCP endpoint and the local filesystem, and
// mounts remote HTTP directories through FUSE.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yarkm13/red-connector-http/internal/connerr"
)

// cliVersion is the connector CLI protocol version reported by cli-version.
const cliVersion = "1"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(ctx)
	err := app.root().Execute(os.Args[1:])
	if err != nil {
		if app.logger != nil {
			app.logger.Debug("command failed", "kind", string(connerr.KindOf(err)))
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
