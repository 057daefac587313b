package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/klejdi94/weft/chain"
	"github.com/klejdi94/weft/core"
	"github.com/klejdi94/weft/middleware"
	"github.com/klejdi94/weft/registry"
)

var (
	renderVars    []string
	renderVersion int
	renderPinned  bool

	invokeVars    []string
	invokeVersion int
	invokePinned  bool
	invokeRetries int
	invokeTimeout time.Duration
	invokeRecord  bool
)

func init() {
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(invokeCmd)

	renderCmd.Flags().StringArrayVar(&renderVars, "var", nil, "variable binding name=value (repeatable)")
	renderCmd.Flags().IntVar(&renderVersion, "version", 0, "template version (default: latest)")
	renderCmd.Flags().BoolVar(&renderPinned, "pinned", false, "use the pinned version")

	invokeCmd.Flags().StringArrayVar(&invokeVars, "var", nil, "variable binding name=value (repeatable)")
	invokeCmd.Flags().IntVar(&invokeVersion, "version", 0, "template version (default: latest)")
	invokeCmd.Flags().BoolVar(&invokePinned, "pinned", false, "use the pinned version")
	invokeCmd.Flags().IntVar(&invokeRetries, "retries", 0, "retry transient backend failures this many times")
	invokeCmd.Flags().DurationVar(&invokeTimeout, "timeout", 0, "per-call backend timeout (e.g. 30s)")
	invokeCmd.Flags().BoolVar(&invokeRecord, "record", false, "record the run in the run log")
}

var renderCmd = &cobra.Command{
	Use:   "render <name>",
	Short: "Render a stored template with --var bindings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bindings, err := parseBindings(renderVars)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		tpl, err := lookupTemplate(ctx, store, args[0], renderVersion, renderPinned)
		if err != nil {
			return err
		}
		out, err := tpl.Render(bindings)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var invokeCmd = &cobra.Command{
	Use:   "invoke <name>",
	Short: "Render a stored template and send it to the backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bindings, err := parseBindings(invokeVars)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		tpl, err := lookupTemplate(ctx, store, args[0], invokeVersion, invokePinned)
		if err != nil {
			return err
		}
		b, closeBackend, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer closeBackend()

		mws := []middleware.Middleware{middleware.Logging(logger)}
		if invokeRecord {
			runs, closeRuns, err := openRunlog(0)
			if err != nil {
				return err
			}
			defer closeRuns()
			mws = append(mws, middleware.Observe(runs, tpl.Name()))
		}
		if invokeTimeout > 0 {
			mws = append(mws, middleware.Timeout(invokeTimeout))
		}
		if invokeRetries > 0 {
			mws = append(mws, middleware.Retry(invokeRetries, nil))
		}

		ch, err := chain.New(tpl, middleware.Wrap(b, mws...), chain.WithModel(cfg.Model))
		if err != nil {
			return err
		}
		out, err := ch.Invoke(ctx, bindings)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func lookupTemplate(ctx context.Context, store registry.Store, name string, version int, pinned bool) (*core.Template, error) {
	if pinned {
		return store.Resolve(ctx, name)
	}
	return store.Get(ctx, name, version)
}

func parseBindings(pairs []string) (core.Bindings, error) {
	bindings := make(core.Bindings, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("bad --var %q (want name=value)", pair)
		}
		bindings[name] = value
	}
	return bindings, nil
}
