package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/db"
	"github.com/jacekjursza/codehem/internal/address"
	"github.com/jacekjursza/codehem/internal/patch"
	"github.com/jacekjursza/codehem/mcp"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

type elementView struct {
	Path    string       `json:"path"`
	Kind    core.Kind    `json:"kind"`
	Name    string       `json:"name"`
	Range   core.Range   `json:"range"`
	Payload core.Payload `json:"payload,omitempty"`
}

func newExtractCmd(a *app) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "List the elements of a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, ex, err := a.source(args[0])
			if err != nil {
				return err
			}

			tree := ex.ExtractContext(cmd.Context(), src)
			if kind != "" {
				k, ok := core.ParseKind(kind)
				if !ok {
					return fmt.Errorf("unknown kind %q", kind)
				}
				tree = ex.ExtractKind(src, k)
			}

			var views []elementView
			tree.Walk(func(el *core.Element) bool {
				views = append(views, elementView{
					Path:    address.Canonical(tree, el.ID),
					Kind:    el.Kind,
					Name:    el.Name,
					Range:   el.Range,
					Payload: el.Payload,
				})
				return true
			})

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return writeJSON(out, views)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, v := range views {
				fmt.Fprintf(tw, "%d-%d\t%s\t%s\n", v.Range.Start, v.Range.End, v.Kind, v.Path)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Only extract top-level elements of this kind")
	return cmd
}

func newLocateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "locate <file> <path>",
		Short: "Print the line range of the element a path addresses",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, ex, err := a.source(args[0])
			if err != nil {
				return err
			}
			rng := address.NewLocator(ex).Locate(args[1], src)
			if !rng.Found() {
				return &core.NotFoundError{Path: args[1]}
			}
			if a.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), rng)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %d\n", rng.Start, rng.End)
			return nil
		},
	}
}

func newFingerprintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <file> <path>",
		Short: "Print the SHA-256 fingerprint of an element",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, ex, err := a.source(args[0])
			if err != nil {
				return err
			}
			fp, err := a.engine(ex).Fingerprint(src, args[1])
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"path": args[1], "fingerprint": fp})
			}
			fmt.Fprintln(cmd.OutOrStdout(), fp)
			return nil
		},
	}
}

func newPatchCmd(a *app) *cobra.Command {
	var (
		modeFlag string
		expect   string
		text     string
		stdin    bool
		dryRun   bool
		root     string
	)
	cmd := &cobra.Command{
		Use:   "patch <file> <path>",
		Short: "Replace or append to an element, guarded by its fingerprint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := patch.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			if stdin {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read from stdin: %w", err)
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("nothing to patch: pass --text or --stdin")
			}

			var res *patch.Result
			if dryRun {
				src, ex, err := a.source(args[0])
				if err != nil {
					return err
				}
				res, err = a.engine(ex).Apply(src, args[1], text, mode, expect)
				if err != nil {
					return err
				}
			} else {
				wsRoot, file, err := splitTarget(root, args[0])
				if err != nil {
					return err
				}
				ws, closeWS, err := a.openWorkspace(cmd, wsRoot)
				if err != nil {
					return err
				}
				defer closeWS()
				res, err = ws.ApplyPatch(cmd.Context(), file, args[1], text, mode, expect)
				if err != nil {
					return err
				}
			}

			a.validate(cmd.ErrOrStderr(), args[0], res.Code)

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return writeJSON(out, res)
			}
			fmt.Fprintf(out, "%s %s +%d -%d %s\n", bold(res.Status), args[1], res.LinesAdded, res.LinesRemoved, res.After)
			printDiff(out, res.Diff)
			return nil
		},
	}
	cmd.Flags().StringVarP(&modeFlag, "mode", "m", "replace", "Patch mode: replace or append")
	cmd.Flags().StringVarP(&expect, "expect", "e", "", "Fingerprint the element must currently have")
	cmd.Flags().StringVarP(&text, "text", "t", "", "New text for the element")
	cmd.Flags().BoolVar(&stdin, "stdin", false, "Read the new text from stdin")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "Show the result without writing the file")
	cmd.Flags().StringVar(&root, "root", "", "Workspace root (default: the file's directory)")
	cmd.MarkFlagsMutuallyExclusive("text", "stdin")
	return cmd
}

// validate warns about syntax errors in patched code. It never fails the
// patch; the file has already been written.
func (a *app) validate(w io.Writer, file, code string) {
	lang, err := a.registry.DetectLanguage(file, code)
	if err != nil {
		return
	}
	entry, err := a.registry.Get(lang)
	if err != nil {
		return
	}
	for _, msg := range entry.Syntax.Validate([]byte(code)).Errors {
		fmt.Fprintf(w, "%s %s\n", red("warning:"), msg)
	}
}

func newFindCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "find <root> <name> <kind>",
		Short: "Find where an element is declared in a directory tree",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := core.ParseKind(args[2])
			if !ok {
				return fmt.Errorf("unknown kind %q", args[2])
			}
			ws, closeWS, err := a.openWorkspace(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeWS()

			locs := ws.FindAll(args[1], kind)
			if len(locs) == 0 {
				return &core.NotFoundError{Path: fmt.Sprintf("%s[%s]", args[1], kind)}
			}
			if !all {
				locs = locs[:1]
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return writeJSON(out, locs)
			}
			for _, l := range locs {
				fmt.Fprintf(out, "%s:%d\t%s\n", l.File, l.Range.Start, l.Path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "List every match instead of the first")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [file]",
		Short: "Show journaled patches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Journal.DSN == "" {
				return errors.New("journal is disabled: set journal.dsn or CODEHEM_JOURNAL_DSN")
			}
			journal, err := db.Open(a.journalConfig())
			if err != nil {
				return err
			}
			defer journal.Close()

			file := ""
			if len(args) == 1 {
				file = args[0]
			}
			records, err := journal.History(file, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return writeJSON(out, records)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t+%d -%d\n",
					r.AppliedAt.Format("2006-01-02 15:04:05"), r.File, r.Path, r.Mode, r.LinesAdded, r.LinesRemoved)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of records")
	return cmd
}

func printDiff(w io.Writer, diff string) {
	if diff == "" {
		return
	}
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "@@"):
			line = cyan(line)
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			line = green(line)
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			line = red(line)
		}
		fmt.Fprint(w, line)
	}
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [root]",
		Short: "Serve the workspace tools to an MCP client over stdio",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			ws, closeWS, err := a.openWorkspace(cmd, root)
			if err != nil {
				return err
			}
			defer closeWS()

			return mcp.NewServer(ws, a.logger, version).Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
