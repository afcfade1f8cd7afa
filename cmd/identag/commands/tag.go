package commands

import (
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/identag/cmd/identag/internal/config"
	"github.com/haivivi/identag/pkg/cli"
	"github.com/haivivi/identag/pkg/tagger"
)

var (
	tagFile      string
	tagNamespace string
	probeFile    string
)

var tagCmd = &cobra.Command{
	Use:   "tag <identifier> <context>",
	Short: "Tag one identifier with a local model",
	Long: `Tag one identifier without starting a server. Context is one of
FUNCTION, ATTRIBUTE, CLASS, DECLARATION or PARAMETER.

Examples:
  identag tag getFileName FUNCTION
  identag tag numberArray DECLARATION --namespace my-project
  identag tag -f serve.yaml maxRetries ATTRIBUTE --format json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(tagFile)
		if err != nil {
			return err
		}
		rt, err := loadRuntime(cmd.Context(), cfg, nil, slog.Default())
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := rt.Service.Tag(cmd.Context(), tagger.Request{
			Identifier: args[0],
			Context:    args[1],
			Namespace:  tagNamespace,
		})
		if err != nil {
			return err
		}
		return output((*tagResult)(res))
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe <namespace>",
	Short: "Check whether a cache namespace exists",
	Long: `Report whether a cache namespace exists. Probing never creates the
namespace.

Examples:
  identag probe my-project`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(probeFile)
		if err != nil {
			return err
		}
		cache, err := openCache(cfg.Cache, slog.Default())
		if err != nil {
			return err
		}
		defer cache.Close()

		svc := &tagger.Service{Cache: cache}
		exists, err := svc.Probe(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return output(probeResult{Namespace: args[0], Exists: exists})
	},
}

func init() {
	tagCmd.Flags().StringVarP(&tagFile, "file", "f", "", "serve config YAML (default: <config dir>/serve.yaml)")
	tagCmd.Flags().StringVarP(&tagNamespace, "namespace", "n", "", "cache namespace (default: no caching)")
	probeCmd.Flags().StringVarP(&probeFile, "file", "f", "", "serve config YAML (default: <config dir>/serve.yaml)")
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(probeCmd)
}

type tagResult tagger.Result

func (r *tagResult) Tables() []cli.Table {
	t := cli.Table{
		Title:   r.Identifier + " (" + r.Context + ")",
		Headers: []string{"#", "word", "tag"},
	}
	if r.Cached {
		t.Title += " cached"
	}
	for i, w := range r.Words {
		t.Rows = append(t.Rows, []string{strconv.Itoa(i), w, r.Tags[i]})
	}
	return []cli.Table{t}
}

type probeResult struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Exists    bool   `json:"exists" yaml:"exists"`
}

func (p probeResult) Tables() []cli.Table {
	exists := "no"
	if p.Exists {
		exists = "yes"
	}
	return []cli.Table{{
		Headers: []string{"namespace", "exists"},
		Rows:    [][]string{{p.Namespace, exists}},
	}}
}
