package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/client/models"
	"github.com/dmitrijs2005/manylla-sync/internal/client/services"
	"github.com/dmitrijs2005/manylla-sync/internal/filex"
	"github.com/spf13/cobra"
)

func newShareCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Issue and open read-only share links",
	}
	cmd.AddCommand(
		newShareCreateCmd(s),
		newShareOpenCmd(s),
		newShareListCmd(s),
		newShareRevokeCmd(s),
	)
	return cmd
}

type shareCreateOptions struct {
	categories   []string
	days         int
	recipient    string
	maxViews     int64
	includePhoto bool
	qrFile       string
	qrText       bool
}

func newShareCreateCmd(s *session) *cobra.Command {
	var opts shareCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Share selected categories of the profile",
		Long: `Encrypts the chosen categories of the local profile under a fresh key and
prints a link. The key travels only in the link's fragment; anyone holding
the link can read the shared part until it expires or runs out of views.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := s.app
			profile, err := a.store.Load(cmd.Context())
			if err != nil {
				return err
			}

			so := models.ShareOptions{
				Categories:     opts.categories,
				IncludePhoto:   opts.includePhoto,
				ExpirationDays: opts.days,
				RecipientType:  opts.recipient,
			}
			if cmd.Flags().Changed("max-views") {
				so.MaxViews = &opts.maxViews
			}

			issued, err := a.shares.Issue(cmd.Context(), profile, so)
			if err != nil {
				return err
			}

			printOK(a.out, "share created for %s", issued.Share.RecipientType)
			printField(a.out, "Expires", issued.Share.ExpiresAt.Local().Format(time.RFC1123))
			if issued.Share.MaxViews != nil {
				printField(a.out, "Max views", *issued.Share.MaxViews)
			}
			a.println("")
			a.println(issued.URL)
			a.println("")

			if opts.qrText {
				qr, err := services.ShareQRText(issued.URL)
				if err != nil {
					return err
				}
				a.println(qr)
			}
			if opts.qrFile != "" {
				png, err := services.ShareQRPNG(issued.URL, services.DefaultQRSize)
				if err != nil {
					return err
				}
				if _, err := filex.WriteFileAtomic(opts.qrFile, png, 0o600); err != nil {
					return err
				}
				printOK(a.out, "QR code written to %s", opts.qrFile)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&opts.categories, "categories", nil, "categories to include (comma separated)")
	f.IntVar(&opts.days, "days", 7, fmt.Sprintf("days until the link expires, one of %v", models.ShareExpirationDays))
	f.StringVar(&opts.recipient, "recipient", "", "who the link is for, e.g. teacher or doctor")
	f.Int64Var(&opts.maxViews, "max-views", 0, "how many times the link may be opened")
	f.BoolVar(&opts.includePhoto, "include-photo", false, "include the profile photo")
	f.StringVar(&opts.qrFile, "qr", "", "also write the link as a PNG QR code to this file")
	f.BoolVar(&opts.qrText, "qr-text", false, "also print the link as a QR code")
	_ = cmd.MarkFlagRequired("categories")
	return cmd
}

func newShareOpenCmd(s *session) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "open <link>",
		Short: "Open a share link",
		Long: `Fetches and decrypts a shared profile. Accepts the full link or just the
part after the first '#'. Each open counts as one view.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := s.app
			opened, err := a.shares.Open(cmd.Context(), args[0])
			if err != nil {
				return &messageError{msg: services.AccessMessage(err), err: err}
			}

			p := opened.Profile
			printOK(a.out, "shared profile of %s", value(p.DisplayName()))
			printField(a.out, "Shared with", opened.RecipientType)
			printField(a.out, "Hours left", opened.HoursRemaining)
			if opened.ViewsRemaining != nil {
				printField(a.out, "Views left", *opened.ViewsRemaining)
			}
			a.println("")
			for _, c := range p.Categories {
				a.println(hint(categoryTitle(c)))
				for _, e := range p.Entries {
					if e.Category == c.Name {
						a.println("  - " + e.Title)
					}
				}
			}

			if output != "" {
				data, err := json.MarshalIndent(p, "", "  ")
				if err != nil {
					return err
				}
				if _, err := filex.WriteFileAtomic(output, data, 0o600); err != nil {
					return err
				}
				printOK(a.out, "written to %s", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the shared profile JSON to this file")
	return cmd
}

func categoryTitle(c models.Category) string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Name
}

func newShareListCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active shares issued from this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := s.app
			shares, err := a.shares.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(shares) == 0 {
				a.println(muted("no active shares"))
				return nil
			}
			for _, sh := range shares {
				views := "unlimited"
				if sh.MaxViews != nil {
					views = fmt.Sprintf("%d views", *sh.MaxViews)
				}
				a.println(fmt.Sprintf("%s  %-12s %s  expires %s  %s",
					value(sh.SyncID), sh.RecipientType, strings.Join(sh.Categories, ","),
					sh.ExpiresAt.Local().Format(time.DateOnly), muted(views)))
			}
			return nil
		},
	}
}

func newShareRevokeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <share-id>",
		Short: "Delete a share so its link stops working",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := s.app
			if err := a.shares.Revoke(cmd.Context(), args[0]); err != nil {
				return err
			}
			printOK(a.out, "share revoked")
			return nil
		},
	}
}
