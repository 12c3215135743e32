package main

import (
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hytopiagg/world-editor-sub010/internal/host"
)

var cmdServe = &cobra.Command{
	Use:   "serve [flags]",
	Short: "Serve import sessions over a websocket",
	Long: `
The "serve" command exposes the import pipeline on a websocket endpoint.
A connected host sends scanWorldSize and parseWorld requests naming world
archives under --root, and receives progress, block chunks and results as
JSON messages.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunServe(serveOptions)
	},
}

// ServeOptions bundles all options for the serve command.
type ServeOptions struct {
	Listen string
	Root   string
}

var serveOptions ServeOptions

func init() {
	cmdRoot.AddCommand(cmdServe)

	f := cmdServe.Flags()
	f.StringVar(&serveOptions.Listen, "listen", "127.0.0.1:8431", "address to listen on")
	f.StringVar(&serveOptions.Root, "root", ".", "directory world archives are served from")
}

func RunServe(opts ServeOptions) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/import", host.NewServer(opts.Root).Handler())

	log.WithFields(log.Fields{"listen": opts.Listen, "root": opts.Root}).Info("serving import sessions")
	return http.ListenAndServe(opts.Listen, mux)
}
