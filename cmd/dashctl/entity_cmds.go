package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iota-uz/flockdesk/modules/dashboard/domain/entity"
	"github.com/iota-uz/flockdesk/modules/dashboard/presentation/dom"
	"github.com/iota-uz/flockdesk/modules/dashboard/presentation/templates"
)

type pageFlags struct {
	page       string
	waitReload bool
}

func (f *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.page, "page", "", `Page to load first (default: the kind's listing, "-" for none)`)
	cmd.Flags().BoolVar(&f.waitReload, "wait-reload", false, "Wait for the reload that follows a successful change")
}

func newViewCmd(a *app) *cobra.Command {
	var pf pageFlags
	var html bool
	cmd := &cobra.Command{
		Use:   "view <kind> <id>",
		Short: "Open the detail modal of an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := a.newSession(ctx)
			if err != nil {
				return err
			}
			defer s.close()
			if err := s.open(ctx, kind, pf.page); err != nil {
				return err
			}
			if err := s.dispatch(ctx, trigger(entity.View, entity.Reference{Kind: kind, ID: args[1]})); err != nil {
				return err
			}
			sel := ""
			if html {
				sel = "#" + entity.DetailModalID(kind)
			}
			return s.finish(ctx, cmd.OutOrStdout(), sel)
		},
	}
	pf.register(cmd)
	cmd.Flags().BoolVar(&html, "html", false, "Include the modal markup in the output")
	return cmd
}

func parseSets(sets []string) (url.Values, error) {
	values := url.Values{}
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return nil, withCode(exitUsage, fmt.Errorf("invalid --set %q (expected field=value)", s))
		}
		values.Add(name, value)
	}
	return values, nil
}

// runForm loads the form of ref, applies sets and submits it.
func runForm(cmd *cobra.Command, a *app, pf pageFlags, verb entity.Verb, ref entity.Reference, sets []string) error {
	overrides, err := parseSets(sets)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := a.newSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	s.waitReload = pf.waitReload
	if err := s.open(ctx, ref.Kind, pf.page); err != nil {
		return err
	}
	t := trigger(verb, ref)
	if verb == entity.Add {
		t = dom.Trigger{Tag: "button", ID: entity.AddButtonIDs(ref.Kind)[0], Attrs: map[string]string{}}
	}
	if err := s.dispatch(ctx, t); err != nil {
		return err
	}
	modalID := entity.FormModalID(ref.Kind)
	if !s.m.Runtime().Modals.IsShown(modalID) {
		return s.finish(ctx, cmd.OutOrStdout(), "")
	}
	if err := s.m.Submit(ctx, "#"+modalID+" form", overrides); err != nil {
		return err
	}
	return s.finish(ctx, cmd.OutOrStdout(), "")
}

func newEditCmd(a *app) *cobra.Command {
	var pf pageFlags
	var sets []string
	cmd := &cobra.Command{
		Use:   "edit <kind> <id>",
		Short: "Load the edit form of an entity, change fields and save it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			return runForm(cmd, a, pf, entity.Edit, entity.Reference{Kind: kind, ID: args[1]}, sets)
		},
	}
	pf.register(cmd)
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Form field to set, field=value (repeatable)")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var pf pageFlags
	var sets []string
	cmd := &cobra.Command{
		Use:   "add <kind>",
		Short: "Load the create form of a kind, fill it and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			return runForm(cmd, a, pf, entity.Add, entity.Reference{Kind: kind}, sets)
		},
	}
	pf.register(cmd)
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Form field to set, field=value (repeatable)")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var pf pageFlags
	var name string
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete an entity after confirmation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			ref := entity.Reference{Kind: kind, ID: args[1], DisplayName: name}
			if ref.DisplayName == "" {
				ref.DisplayName = kind.String() + " " + ref.ID
			}
			if !yes {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), templates.DeleteConfirmationMessage(ref.DisplayName), "(re-run with --yes to confirm)")
				return err
			}

			ctx := cmd.Context()
			s, err := a.newSession(ctx)
			if err != nil {
				return err
			}
			defer s.close()
			s.waitReload = pf.waitReload
			if err := s.open(ctx, kind, pf.page); err != nil {
				return err
			}
			if err := s.dispatch(ctx, trigger(entity.Delete, ref)); err != nil {
				return err
			}
			if err := s.m.Click(ctx, "#"+entity.ConfirmDeleteButtonID); err != nil {
				return err
			}
			return s.finish(ctx, cmd.OutOrStdout(), "")
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "Display name shown in the confirmation")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}

func newBulkDeleteCmd(a *app) *cobra.Command {
	var pf pageFlags
	var yes bool
	cmd := &cobra.Command{
		Use:   "bulk-delete <kind> <id>...",
		Short: "Delete several entities in one request",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			ids := args[1:]
			if !yes {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), templates.BulkDeleteConfirmationMessage(kind, len(ids)), "(re-run with --yes to confirm)")
				return err
			}

			ctx := cmd.Context()
			s, err := a.newSession(ctx)
			if err != nil {
				return err
			}
			defer s.close()
			s.waitReload = pf.waitReload
			if err := s.open(ctx, kind, pf.page); err != nil {
				return err
			}
			rt := s.m.Runtime()
			if err := rt.Loop.Call(ctx, func() error { return s.m.Deletes().ConfirmBulk(kind, ids) }); err != nil {
				return err
			}
			if err := s.m.Click(ctx, "#"+entity.ConfirmBulkDeleteButtonID); err != nil {
				return err
			}
			return s.finish(ctx, cmd.OutOrStdout(), "")
		},
	}
	pf.register(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}
