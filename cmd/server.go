package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"dupsync/internal/hashcache"
	"dupsync/internal/hashengine"
	"dupsync/internal/remote/server"
)

var (
	serverBindAddr string
	serverPort     int
	serverCache    string
	serverIndex    string
)

// serverCmd runs the dedup-server subprocess a Supervisor launches
// over an ssh -L tunnel. It serves exactly one command and exits,
// matching the remote pipeline's bind-accept-serve-one shape.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve one remote dedup request over a loopback socket",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cache hashengine.Cache
		if serverCache != "" {
			c, err := hashcache.Open(serverCache)
			if err != nil {
				return err
			}
			defer c.Close()
			cache = c
		}

		return server.Serve(cmd.Context(), server.Config{
			BindAddr:  serverBindAddr,
			Port:      serverPort,
			Cache:     cache,
			Logger:    log.New(os.Stderr, "dupsync-server: ", log.LstdFlags),
			IndexPath: serverIndex,
		})
	},
}

func init() {
	serverCmd.Flags().StringVar(&serverBindAddr, "bind", "127.0.0.1", "loopback address to bind")
	serverCmd.Flags().IntVar(&serverPort, "port", 0, "port to bind (0 picks one; the tunnel client passes the remote end of its -L forward)")
	serverCmd.Flags().StringVar(&serverCache, "cache", "", "hash cache database path")
	serverCmd.Flags().StringVar(&serverIndex, "index", "", "path to persist this run's file index (raw sqlite, separate from --cache)")
}
