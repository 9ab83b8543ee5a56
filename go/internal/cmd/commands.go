package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/challengetracker/go/internal/commands"
	"github.com/mcdev12/challengetracker/go/internal/flags"
	"github.com/mcdev12/challengetracker/go/internal/settings"
)

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket gateway and list API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	listCmd = &cobra.Command{
		Use:   "list <owner>",
		Short: "Print an owner's saved trackers in list order",
		Args:  cobra.ExactArgs(1),
		RunE:  runList,
	}

	copyCmd = &cobra.Command{
		Use:   "copy <owner> <id>",
		Short: "Duplicate a saved tracker at the end of the owner's list",
		Args:  cobra.ExactArgs(2),
		RunE:  runCopy,
	}

	moveCmd = &cobra.Command{
		Use:       "move <owner> <id> <up|down>",
		Short:     "Swap a saved tracker with its neighbour",
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{string(flags.DirectionUp), string(flags.DirectionDown)},
		RunE:      runMove,
	}

	deleteCmd = &cobra.Command{
		Use:   "delete <owner> <id>",
		Short: "Delete a saved tracker and renumber the list",
		Args:  cobra.ExactArgs(2),
		RunE:  runDelete,
	}

	settingsCmd = &cobra.Command{
		Use:   "settings",
		Short: "Inspect tracker settings",
	}

	settingsCheckCmd = &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a settings file and print the effective values",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSettingsCheck,
	}
)

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	go func() {
		if err := services.Gateway.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway failed")
		}
	}()
	if services.pgListener != nil {
		go func() {
			if err := services.pgListener.Start(ctx); err != nil {
				log.Error().Err(err).Msg("flag listener failed")
			}
		}()
	}

	server := setupServer(cfg, services)
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("world", cfg.World).Msg("challenge tracker listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runList(cmd *cobra.Command, args []string) error {
	app, closeStore, err := openFlags(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	s, err := settings.Load(cfg.SettingsFile)
	if err != nil {
		return err
	}

	entries, err := app.List(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POS\tID\tTRACKER")
	for _, e := range entries {
		pos := 0
		if e.ListPosition != nil {
			pos = *e.ListPosition
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", pos, e.ID, commands.Describe(e.TrackerOptions, s))
	}
	return w.Flush()
}

func runCopy(cmd *cobra.Command, args []string) error {
	app, closeStore, err := openFlags(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	copied, err := app.Copy(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), copied.ID)
	return nil
}

func runMove(cmd *cobra.Command, args []string) error {
	dir := flags.Direction(args[2])
	if dir != flags.DirectionUp && dir != flags.DirectionDown {
		return fmt.Errorf("direction must be %q or %q", flags.DirectionUp, flags.DirectionDown)
	}
	app, closeStore, err := openFlags(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	return app.Move(cmd.Context(), args[0], args[1], dir)
}

func runDelete(cmd *cobra.Command, args []string) error {
	app, closeStore, err := openFlags(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	_, err = app.Unset(cmd.Context(), args[0], args[1])
	return err
}

func runSettingsCheck(cmd *cobra.Command, args []string) error {
	path := cfg.SettingsFile
	if len(args) == 1 {
		path = args[0]
	}
	s, err := settings.Load(path)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "allowShow\t%s\n", s.AllowShow)
	fmt.Fprintf(w, "displayButton\t%s\n", s.DisplayButton)
	fmt.Fprintf(w, "buttonLocation\t%s\n", s.ButtonLocation)
	fmt.Fprintf(w, "size\t%d\n", s.Size)
	fmt.Fprintf(w, "frameWidth\t%s\n", s.FrameWidth)
	fmt.Fprintf(w, "windowed\t%t\n", s.Windowed)
	fmt.Fprintf(w, "scroll\t%t\n", s.Scroll)
	fmt.Fprintf(w, "debug\t%t\n", s.Debug)
	return w.Flush()
}
