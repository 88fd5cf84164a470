package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iliyamo/taskboard/internal/client"
)

func (a *app) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = a.v.GetString("password")
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			c := a.client()
			u, err := c.Login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := a.saveToken(c.Token()); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s <%s>\n", u.Name, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (or BOARDCTL_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			if err := a.client().Logout(ctx); err != nil {
				return err
			}
			return a.saveToken("")
		},
	}
}

func (a *app) boardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List your boards",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			boards, err := a.client().Boards(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tPOSITION\tMEMBERS")
			for _, b := range boards {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", b.ID, b.Title, b.Position, len(b.Members))
			}
			return w.Flush()
		},
	}
}

func (a *app) boardCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "board", Short: "Board commands"}
	var color string
	create := &cobra.Command{
		Use:   "create TITLE",
		Short: "Create a board",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			b, err := a.client().CreateBoard(ctx, client.BoardInput{Title: strings.Join(args, " "), Color: color})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created board %d %q\n", b.ID, b.Title)
			return nil
		},
	}
	create.Flags().StringVar(&color, "color", "", "board colour")
	cmd.AddCommand(create)
	return cmd
}

func (a *app) listsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lists BOARD_ID",
		Short: "Show a board's lists and cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := parseID(args[0], "board")
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			s := client.NewSession(a.client(), boardID)
			if err := s.Refresh(ctx); err != nil {
				return err
			}
			st := s.State()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (board %d, version %d)\n", st.Board.Title, st.Board.ID, st.Board.Version)
			for _, col := range st.Columns {
				fmt.Fprintf(out, "[%d] %s (list %d)\n", col.List.Position, col.List.Title, col.List.ID)
				for _, c := range col.Cards {
					fmt.Fprintf(out, "    %d. %s (card %d)\n", c.Position, c.Title, c.ID)
				}
			}
			return nil
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "list", Short: "List commands"}

	create := &cobra.Command{
		Use:   "create BOARD_ID TITLE",
		Short: "Add a list to a board",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := parseID(args[0], "board")
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			l, err := a.client().CreateList(ctx, boardID, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created list %d at position %d\n", l.ID, l.Position)
			return nil
		},
	}

	var boardID uint64
	var to int
	move := &cobra.Command{
		Use:   "move LIST_ID",
		Short: "Move a list to another position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listID, err := parseID(args[0], "list")
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			s := client.NewSession(a.client(), boardID)
			if err := s.Refresh(ctx); err != nil {
				return err
			}
			if err := s.MoveColumn(ctx, listID, to); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "moved list %d to position %d\n", listID, to)
			return nil
		},
	}
	move.Flags().Uint64Var(&boardID, "board", 0, "board id")
	move.Flags().IntVar(&to, "to", 0, "target position")
	_ = move.MarkFlagRequired("board")

	cmd.AddCommand(create, move)
	return cmd
}

func (a *app) cardCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "card", Short: "Card commands"}

	var desc string
	var labels []string
	create := &cobra.Command{
		Use:   "create LIST_ID TITLE",
		Short: "Append a card to a list",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			listID, err := parseID(args[0], "list")
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			c, err := a.client().CreateCard(ctx, listID, client.CardInput{
				Title:       strings.Join(args[1:], " "),
				Description: desc,
				Labels:      labels,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created card %d at position %d\n", c.ID, c.Position)
			return nil
		},
	}
	create.Flags().StringVar(&desc, "description", "", "card description")
	create.Flags().StringSliceVar(&labels, "label", nil, "label (repeatable)")

	var boardID, toList uint64
	var index int
	move := &cobra.Command{
		Use:   "move CARD_ID",
		Short: "Move a card within or across lists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := parseID(args[0], "card")
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			s := client.NewSession(a.client(), boardID)
			if err := s.Refresh(ctx); err != nil {
				return err
			}
			if err := s.MoveCard(ctx, cardID, toList, index); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "moved card %d to list %d position %d\n", cardID, toList, index)
			return nil
		},
	}
	move.Flags().Uint64Var(&boardID, "board", 0, "board id")
	move.Flags().Uint64Var(&toList, "to-list", 0, "destination list id")
	move.Flags().IntVar(&index, "index", 0, "position in the destination list")
	_ = move.MarkFlagRequired("board")
	_ = move.MarkFlagRequired("to-list")

	cmd.AddCommand(create, move)
	return cmd
}

func (a *app) membersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "members", Short: "Board membership"}
	add := &cobra.Command{
		Use:   "add BOARD_ID USER_ID",
		Short: "Add a user to a board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := parseID(args[0], "board")
			if err != nil {
				return err
			}
			userID, err := parseID(args[1], "user")
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			members, err := a.client().AddMember(ctx, boardID, userID)
			if err != nil {
				return err
			}
			for _, m := range members {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", m.ID, m.Name, m.Email)
			}
			return nil
		},
	}
	cmd.AddCommand(add)
	return cmd
}
