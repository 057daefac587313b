package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/klejdi94/weft/core"
	"github.com/klejdi94/weft/registry"
)

var (
	putFile    string
	getVersion int
	getOutput  string
	listPinned bool
	listLimit  int
	deleteAll  bool
)

func init() {
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(deleteCmd)

	putCmd.Flags().StringVarP(&putFile, "file", "f", "", "definition file, YAML or JSON (default: stdin)")
	getCmd.Flags().IntVar(&getVersion, "version", 0, "version to fetch (default: latest)")
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "yaml", "output format: yaml or json")
	listCmd.Flags().BoolVar(&listPinned, "pinned", false, "only templates with a pinned version")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "cap the number of results")
	deleteCmd.Flags().BoolVar(&deleteAll, "all", false, "delete every version")
}

var putCmd = &cobra.Command{
	Use:   "put",
	Short: "Store a template definition",
	Long:  "Store a template definition read from --file or stdin. The next free version number is assigned unless the definition carries one.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(putFile)
		if err != nil {
			return err
		}
		var def core.Definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return fmt.Errorf("decode definition: %w", err)
		}
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		stored, err := store.Put(ctx, &def)
		if err != nil {
			return err
		}
		fmt.Printf("stored %s v%d\n", stored.Name, stored.Version)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print a stored definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		def, err := store.Definition(ctx, args[0], getVersion)
		if err != nil {
			return err
		}
		return printDefinition(def, getOutput)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		infos, err := store.List(ctx, registry.Filter{Pinned: listPinned, Limit: listLimit})
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Printf("%s\tv%d\t%s\t%s\n", info.Name, info.Version, pinMark(info.Pinned), info.Description)
		}
		return nil
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions <name>",
	Short: "List every stored version of a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		infos, err := store.Versions(ctx, args[0])
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Printf("v%d\t%s\t%s\n", info.Version, pinMark(info.Pinned), info.UpdatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var pinCmd = &cobra.Command{
	Use:   "pin <name> [version]",
	Short: "Pin the version Resolve and invoke use",
	Long:  "Pin one stored version of a template. Without a version argument the latest version is pinned.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		version, err := parseVersionArg(args, 1)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		if err := store.Pin(ctx, name, version); err != nil {
			return err
		}
		if version == 0 {
			if def, err := store.Definition(ctx, name, 0); err == nil {
				version = def.Version
			}
		}
		fmt.Printf("pinned %s v%d\n", name, version)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name> [version]",
	Short: "Delete a stored version (or --all of them)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		version, err := parseVersionArg(args, 1)
		if err != nil {
			return err
		}
		if version == 0 && !deleteAll {
			return fmt.Errorf("delete needs a version argument or --all")
		}
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		if err := store.Delete(ctx, name, version); err != nil {
			return err
		}
		if version == 0 {
			fmt.Printf("deleted %s (all versions)\n", name)
		} else {
			fmt.Printf("deleted %s v%d\n", name, version)
		}
		return nil
	},
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func parseVersionArg(args []string, i int) (int, error) {
	if len(args) <= i {
		return 0, nil
	}
	v, err := strconv.Atoi(args[i])
	if err != nil || v < 1 {
		return 0, fmt.Errorf("bad version %q", args[i])
	}
	return v, nil
}

func pinMark(pinned bool) string {
	if pinned {
		return "pinned"
	}
	return "-"
}

func printDefinition(def *core.Definition, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(def)
	case "yaml":
		data, err := yaml.Marshal(def)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}
