package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coreman2200/milkbind/internal/presets"
	"github.com/coreman2200/milkbind/internal/render"
)

func newPresetsCommand(_ *rootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List or create preset files",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "presets", "preset directory")

	list := &cobra.Command{
		Use:   "list",
		Short: "List presets with their scene",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := presets.Open(dir)
			if err != nil {
				return err
			}
			for _, name := range lib.List() {
				p := lib.Get(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", name, p.Scene, formatParams(p.Params))
			}
			return nil
		},
	}

	var scene string
	var params []string
	create := &cobra.Command{
		Use:   "new <name>",
		Short: "Write a new preset file",
		Example: `  milkbind presets new warm --scene solid --param r=1 --param g=0.4
  milkbind presets new sweep --scene grad --param speed=0.5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := &render.Preset{Name: args[0], Scene: scene}
			for _, kv := range params {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("param %q: want key=value", kv)
				}
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return fmt.Errorf("param %q: %w", kv, err)
				}
				if p.Params == nil {
					p.Params = map[string]float64{}
				}
				p.Params[k] = f
			}
			if err := presets.Save(dir, p); err != nil {
				return fmt.Errorf("save preset: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", p.Name)
			return nil
		},
	}
	create.Flags().StringVar(&scene, "scene", "solid", "scene name (solid|grad|ocean)")
	create.Flags().StringArrayVar(&params, "param", nil, "scene parameter key=value (repeatable)")

	cmd.AddCommand(list, create)
	return cmd
}

func formatParams(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(m[k], 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
