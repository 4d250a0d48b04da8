package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/signamoz/signa/internal/config"
	"github.com/signamoz/signa/internal/gesture"
	"github.com/signamoz/signa/internal/store"
)

// NewSignsCmd manages the known-sign dictionary.
func NewSignsCmd(cfgPath *string) *cobra.Command {
	root := &cobra.Command{
		Use:   "signs",
		Short: "List or edit the known-sign dictionary",
	}

	var language string
	var jsonOut bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List known signs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if language != "" && !gesture.Language(language).Valid() {
				return fmt.Errorf("unsupported language %q", language)
			}
			return withStore(*cfgPath, func(st *store.Store) error {
				signs, err := st.Signs().List(language)
				if err != nil {
					return err
				}
				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(signs)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				for _, sg := range signs {
					fmt.Fprintf(w, "%s\t%s\t%s\n", sg.Language, sg.Word, sg.Description)
				}
				return w.Flush()
			})
		},
	}
	list.Flags().StringVarP(&language, "language", "l", "", "only this language")
	list.Flags().BoolVar(&jsonOut, "json", false, "output JSON")

	add := &cobra.Command{
		Use:   "add <language> <word> [description...]",
		Short: "Add a sign or update its description",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !gesture.Language(args[0]).Valid() {
				return fmt.Errorf("unsupported language %q", args[0])
			}
			return withStore(*cfgPath, func(st *store.Store) error {
				sg := &store.Sign{Language: args[0], Word: args[1], Description: strings.Join(args[2:], " ")}
				if err := st.Signs().Upsert(sg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s/%s\n", sg.Language, sg.Word)
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:     "remove <language> <word>",
		Aliases: []string{"rm"},
		Short:   "Remove a sign",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(*cfgPath, func(st *store.Store) error {
				return st.Signs().Delete(args[0], args[1])
			})
		},
	}

	root.AddCommand(list, add, remove)
	return root
}

func withStore(cfgPath string, fn func(*store.Store) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.MustStatePaths(cfg); err != nil {
		return err
	}
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}
