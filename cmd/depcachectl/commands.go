package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/depcache"
	"github.com/unkn0wn-root/depcache/codec"
	"github.com/unkn0wn-root/depcache/internal/util"
)

func validateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the strategy descriptors of --config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.config == "" {
				return errors.New("--config is required")
			}
			descs, err := loadDescriptors(g.config)
			if err != nil {
				return err
			}
			reg, err := depcache.NewRegistry(descs...)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSHAPE\tLOCATION\tBASE KEY\tTTL\tCODEC\tDEPENDENCIES")
			for _, name := range reg.Names() {
				d, _ := reg.Lookup(name)
				cd := d.Codec
				if cd == "" {
					cd = "json"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
					d.Name, d.Shape, d.Location, util.Versioned(d.Version, d.BaseKey), d.TTL, cd,
					len(d.Dependencies)+len(d.UserDependencies))
			}
			return w.Flush()
		},
	}
}

func resetCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete cached keys",
	}
	cmd.AddCommand(resetPrefixCmd(g), resetDependencyCmd(g), resetAllCmd(g))
	return cmd
}

func resetPrefixCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "prefix <prefix>...",
		Short: "Delete every key under the given prefixes (relative to --namespace)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(g)
			if err != nil {
				return err
			}
			defer e.Close(cmd.Context())

			prefixes := make([]string, len(args))
			for i, a := range args {
				prefixes[i] = util.Namespaced(e.Namespace(), a)
			}
			n, err := e.Reset.ResetKeys(cmd.Context(), prefixes...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d keys\n", n)
			return nil
		},
	}
}

func resetDependencyCmd(g *globals) *cobra.Command {
	var group int64
	cmd := &cobra.Command{
		Use:   "dependency <entity-type>",
		Short: "Delete every key derived from an entity type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(g)
			if err != nil {
				return err
			}
			defer e.Close(cmd.Context())

			var gp *int64
			if cmd.Flags().Changed("group") {
				gp = &group
			}
			if err := e.Reset.ResetOnDependencyChange(cmd.Context(), depcache.EntityType(args[0]), gp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().Int64Var(&group, "group", 0, "also reset the dependency set of this group")
	return cmd
}

func resetAllCmd(g *globals) *cobra.Command {
	var (
		keep []string
		yes  bool
	)
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Delete every key in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear the database without --yes")
			}
			e, err := open(g)
			if err != nil {
				return err
			}
			defer e.Close(cmd.Context())

			n, err := e.Reset.ResetAll(cmd.Context(), keep...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d keys\n", n)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&keep, "keep", nil, "keep keys containing any of these substrings")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}

func depsCmd(g *globals) *cobra.Command {
	var group int64
	cmd := &cobra.Command{
		Use:   "deps <entity-type>",
		Short: "List the cache keys tracked for an entity type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(g)
			if err != nil {
				return err
			}
			defer e.Close(cmd.Context())

			var gp *int64
			if cmd.Flags().Changed("group") {
				gp = &group
			}
			keys, err := e.Tracker.Dependents(cmd.Context(), depcache.EntityType(args[0]), gp)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&group, "group", 0, "list the dependency set of this group")
	return cmd
}

func scoresCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Read score-ordered collections",
	}
	cmd.AddCommand(scoresTopCmd(g))
	return cmd
}

func scoresTopCmd(g *globals) *cobra.Command {
	var (
		count    int
		below    int64
		codecArg string
	)
	cmd := &cobra.Command{
		Use:   "top <key>",
		Short: "Print the highest-scored members of a sorted set (full key)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(g)
			if err != nil {
				return err
			}
			defer e.Close(cmd.Context())

			var cursor *int64
			if cmd.Flags().Changed("below") {
				cursor = &below
			}
			if codecArg == "raw" {
				return printTop(cmd, e, codec.String{}, args[0], cursor, count)
			}
			cd, err := codec.ByName[any](codecArg)
			if err != nil {
				return err
			}
			return printTop(cmd, e, cd, args[0], cursor, count)
		},
	}
	cmd.Flags().IntVar(&count, "count", 10, "members to print")
	cmd.Flags().Int64Var(&below, "below", 0, "start strictly below this score")
	cmd.Flags().StringVar(&codecArg, "codec", "raw", "member encoding: raw, json, msgpack or cbor")
	return cmd
}

func printTop[V any](cmd *cobra.Command, e *depcache.Engine, cd codec.Codec[V], key string, cursor *int64, count int) error {
	list, err := depcache.NewScoreListFor(e, cd)
	if err != nil {
		return err
	}
	page, err := list.GetPage(cmd.Context(), key, nil, cursor, count)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, m := range page.Items {
		fmt.Fprintln(out, m)
	}
	if page.Next != nil {
		fmt.Fprintf(out, "next: %d\n", *page.Next)
	}
	return nil
}

func throttleCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "throttle",
		Short: "Inspect throttle counters",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status <key>...",
		Short: "Print the current count of throttle keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(g)
			if err != nil {
				return err
			}
			defer e.Close(cmd.Context())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tUSED")
			for _, k := range args {
				n, err := e.Throttler.Used(cmd.Context(), k)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%d\n", k, n)
			}
			return w.Flush()
		},
	})
	return cmd
}
