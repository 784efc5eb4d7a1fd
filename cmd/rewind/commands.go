package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/rewind/internal/app"
	"github.com/dshills/rewind/internal/plugin/lua"
)

func newRunCmd(e *env) *cobra.Command {
	var (
		id          string
		name        string
		width       int
		height      int
		watchConfig bool
	)
	cmd := &cobra.Command{
		Use:   "run SCRIPT...",
		Short: "Run Lua scripts against a canvas and store the timeline",
		Long: `Runs each script in order against the canvas, recording every mutation.
Without --id a new canvas is created; with --id the stored timeline is
reopened at its current position and extended.

Scripts see the canvas as the global ctx and navigation as the history module:

  ctx.fillStyle = "#3366ff"
  ctx:fillRect(10, 10, 40, 40)
  history.tag("square")`,
		Args: cobra.MinimumNArgs(1),
		RunE: e.runE(func(cmd *cobra.Command, args []string) error {
			if watchConfig {
				e.watchConfig()
			}

			var (
				s   *app.Session
				err error
			)
			if id != "" {
				s, err = e.app.Open(cmd.Context(), id)
			} else {
				if name == "" {
					name = args[0]
				}
				s, err = e.app.NewSession(name, width, height)
			}
			if err != nil {
				return err
			}
			defer s.Close()

			for _, path := range args {
				if err := s.RunScript(cmd.Context(), path, cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			if err := s.Save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.ID())
			return nil
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "Extend a stored timeline instead of creating one")
	cmd.Flags().StringVar(&name, "name", "", "Display name for a new timeline (default: first script path)")
	cmd.Flags().IntVar(&width, "width", 300, "Canvas width for a new timeline")
	cmd.Flags().IntVar(&height, "height", 150, "Canvas height for a new timeline")
	cmd.Flags().BoolVar(&watchConfig, "watch-config", false, "Apply history settings from config file edits while running")
	return cmd
}

// navigate opens the timeline named by ref, applies fn, saves and prints
// the new position.
func (e *env) navigate(cmd *cobra.Command, ref string, fn func(*app.Session) error) error {
	s, err := e.app.Open(cmd.Context(), ref)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := fn(s); err != nil {
		return err
	}
	if err := s.Save(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "position %d of %d..%d\n",
		s.Timeline().Position(), s.Timeline().Oldest(), s.Timeline().Newest())
	return nil
}

func optionalCount(args []string, i int) (int, error) {
	if len(args) <= i {
		return 1, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid step count %q", args[i])
	}
	return n, nil
}

func newSeekCmd(e *env) *cobra.Command {
	var pngPath string
	cmd := &cobra.Command{
		Use:   "seek ID NO",
		Short: "Move a timeline to a transaction number",
		Args:  cobra.ExactArgs(2),
		RunE: e.runE(func(cmd *cobra.Command, args []string) error {
			no, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid transaction number %q", args[1])
			}
			return e.navigate(cmd, args[0], func(s *app.Session) error {
				if err := s.Tracker().Seek(no); err != nil {
					return err
				}
				if pngPath != "" {
					return writePNG(s, pngPath)
				}
				return nil
			})
		}),
	}
	cmd.Flags().StringVar(&pngPath, "png", "", "Export the canvas at the new position to this file")
	return cmd
}

func newUndoCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "undo ID [N]",
		Short: "Step a timeline back N transactions (default 1)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: e.runE(func(cmd *cobra.Command, args []string) error {
			n, err := optionalCount(args, 1)
			if err != nil {
				return err
			}
			return e.navigate(cmd, args[0], func(s *app.Session) error {
				return s.Tracker().Undo(n)
			})
		}),
	}
}

func newRedoCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "redo ID [N]",
		Short: "Step a timeline forward N transactions (default 1)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: e.runE(func(cmd *cobra.Command, args []string) error {
			n, err := optionalCount(args, 1)
			if err != nil {
				return err
			}
			return e.navigate(cmd, args[0], func(s *app.Session) error {
				return s.Tracker().Redo(n)
			})
		}),
	}
}

func newTagCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "tag ID NAME",
		Short: "Tag the current position of a timeline",
		Args:  cobra.ExactArgs(2),
		RunE: e.runE(func(cmd *cobra.Command, args []string) error {
			return e.navigate(cmd, args[0], func(s *app.Session) error {
				return s.Tracker().PutTag(args[1])
			})
		}),
	}
}

func newJumpCmd(e *env) *cobra.Command {
	var (
		forward bool
		steps   int
	)
	cmd := &cobra.Command{
		Use:   "jump ID [PATTERN]",
		Short: "Jump to the nearest matching tag",
		Long: `Moves back (or forward with --forward) to the Nth nearest tag matching
PATTERN. PATTERN is a tag name, or a regular expression when prefixed with
"re:". Without PATTERN any tag matches. The position is left unchanged when
no tag matches.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: e.runE(func(cmd *cobra.Command, args []string) error {
			pattern := ""
			if len(args) == 2 {
				pattern = args[1]
			}
			m, err := lua.ParseMatcher(pattern)
			if err != nil {
				return err
			}

			found := false
			err = e.navigate(cmd, args[0], func(s *app.Session) error {
				var err error
				if forward {
					found, err = s.Tracker().RedoTag(m, steps)
				} else {
					found, err = s.Tracker().UndoTag(m, steps)
				}
				return err
			})
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintln(cmd.OutOrStdout(), "no matching tag")
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&forward, "forward", false, "Search forward instead of back")
	cmd.Flags().IntVarP(&steps, "count", "n", 1, "Skip to the Nth matching tag")
	return cmd
}

func newExportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "export ID FILE",
		Short: "Write the canvas at the current position as PNG",
		Args:  cobra.ExactArgs(2),
		RunE: e.runE(func(cmd *cobra.Command, args []string) error {
			s, err := e.app.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer s.Close()
			return writePNG(s, args[1])
		}),
	}
}

func writePNG(s *app.Session, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.ExportPNG(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func newInspectCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect ID",
		Short: "Show the transactions, checkpoints and tags of a timeline",
		Args:  cobra.ExactArgs(1),
		RunE: e.runE(func(cmd *cobra.Command, args []string) error {
			s, err := e.app.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer s.Close()
			printTimeline(cmd.OutOrStdout(), s)
			return nil
		}),
	}
}

func printTimeline(out io.Writer, s *app.Session) {
	tl := s.Timeline()
	meta := s.Meta()

	fmt.Fprintf(out, "id:          %s\n", meta.ID)
	fmt.Fprintf(out, "name:        %s\n", meta.Name)
	fmt.Fprintf(out, "canvas:      %dx%d\n", s.Canvas().Width(), s.Canvas().Height())
	fmt.Fprintf(out, "position:    %d (oldest %d, newest %d)\n", tl.Position(), tl.Oldest(), tl.Newest())
	fmt.Fprintf(out, "pending:     %d\n", len(tl.Pending()))
	fmt.Fprintf(out, "checkpoints: %v\n", tl.CheckpointAnchors())

	tags := map[int][]string{}
	for _, tag := range tl.Tags() {
		tags[tag.No] = append(tags[tag.No], tag.Name)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nNO\tCOST\tCOMMANDS\tTAGS")
	for no := tl.Oldest() + 1; no <= tl.Newest(); no++ {
		tx, ok := tl.Transaction(no)
		if !ok {
			continue
		}
		marker := " "
		if no == tl.Position() {
			marker = "*"
		}
		ops := ""
		for i, c := range tx.Commands {
			if i > 0 {
				ops += " "
			}
			ops += string(c.Op)
		}
		fmt.Fprintf(w, "%s%d\t%d\t%s\t%v\n", marker, no, tx.Cost, ops, tags[no])
	}
	_ = w.Flush()
}

func newListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored timelines",
		Args:  cobra.NoArgs,
		RunE: e.runE(func(cmd *cobra.Command, _ []string) error {
			metas, err := e.app.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSIZE\tPOSITION\tUPDATED")
			for _, m := range metas {
				fmt.Fprintf(w, "%s\t%s\t%dx%d\t%d/%d\t%s\n",
					m.ID, m.Name, m.Width, m.Height, m.Position, m.Newest,
					m.Updated.Local().Format(time.DateTime))
			}
			return w.Flush()
		}),
	}
}

func newDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a stored timeline",
		Args:  cobra.ExactArgs(1),
		RunE: e.runE(func(cmd *cobra.Command, args []string) error {
			id, err := e.app.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		}),
	}
}
