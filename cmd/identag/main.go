// Command identag tags the words of source code identifiers with parts of
// speech.
//
// Usage:
//
//	identag [flags] <command> [args]
//
// Commands:
//
//	train     - Fit a model from a labeled SQLite corpus
//	serve     - Serve the tagger over HTTP (default :5000)
//	tag       - Tag one identifier with a local model
//	probe     - Check whether a cache namespace exists
//	evaluate  - Compute metrics from a confusion matrix
//	version   - Show version information
//
// train reads its own YAML named with -f and writes the model to
// model_output, a local path or an s3://bucket/key location. serve, tag and
// probe read serve.yaml from -f, or else from $IDENTAG_CONFIG_DIR or
// os.UserConfigDir()/identag. Relative model, embedding, dictionary and
// cache paths in serve.yaml resolve against the directory holding it:
//
//	model: models/model.msgpack   # or s3://bucket/identag/model.msgpack
//	cache:
//	  backend: sqlite             # badger, sqlite or memory
//	  dir: cache
//
// serve answers GET /tag/{identifier}/{context}[/{namespace}] and
// GET /probe/{namespace}, plus /healthz and /metrics.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/identag/cmd/identag/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
