package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"gitlab.com/dirk.krummacker/contacts-app/internal/client"
	"gitlab.com/dirk.krummacker/contacts-app/internal/navigation"
	"gitlab.com/dirk.krummacker/contacts-app/pkg/model"
)

// Usage example on the command line:
// > go run . list
// > go run . search flor
// > go run . edit ryan-florence --twitter @ryanflorence
// > go run . favorite ryan-florence true
// > go run . bench --sizes 100,1000
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var baseURL string
	var c *client.Client
	root := &cobra.Command{
		Use:           "client",
		Short:         "Command line client for the contacts app",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			c, err = client.New(baseURL, nil)
			return err
		},
	}
	root.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "base URL of the contacts app")

	// The subcommands are built with a getter because the client only exists after flag parsing.
	get := func() *client.Client { return c }
	root.AddCommand(
		newListCmd(get),
		newSearchCmd(get),
		newShowCmd(get),
		newNewCmd(get),
		newEditCmd(get),
		newFavoriteCmd(get),
		newDeleteCmd(get),
		newBenchCmd(get),
	)
	return root
}

func newListCmd(get func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := get().List(cmd.Context())
			if err != nil {
				return err
			}
			printContacts(cmd, list.Contacts)
			return nil
		},
	}
}

func newSearchCmd(get func() *client.Client) *cobra.Command {
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search contacts, typing the query one character at a time",
		Long: `Sends one search per keystroke like the search field of the web app does. Every
keystroke supersedes the search in flight; only the result of the last one is shown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nav := navigation.New(get())
			ctx := cmd.Context()
			if err := nav.Navigate(ctx, "/", navigation.Options{}); err != nil {
				return err
			}
			query := []rune(args[0])
			var wg sync.WaitGroup
			var mu sync.Mutex
			var failed error
			for i := 1; i <= len(query); i++ {
				prefix := string(query[:i])
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := nav.Search(ctx, prefix)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case errors.Is(err, navigation.ErrSuperseded):
						fmt.Fprintf(cmd.OutOrStdout(), "superseded: %q\n", prefix)
					case err != nil:
						failed = err
					}
				}()
				time.Sleep(delay)
			}
			wg.Wait()
			if failed != nil {
				return failed
			}
			list, ok := nav.Current().Data.(model.ContactList)
			if !ok {
				return errors.New("unexpected loader data")
			}
			printContacts(cmd, list.Contacts)
			entries, _ := nav.History()
			fmt.Fprintf(cmd.OutOrStdout(), "history: %v\n", entries)
			return nil
		},
	}
	cmd.Flags().DurationVar(&delay, "delay", 20*time.Millisecond, "time between two keystrokes")
	return cmd
}

func newShowCmd(get func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contact, err := get().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printContact(cmd, contact)
			return nil
		},
	}
}

// editFlags registers one flag per field of the edit form.
func editFlags(cmd *cobra.Command) {
	cmd.Flags().String("first", "", "first name")
	cmd.Flags().String("last", "", "last name")
	cmd.Flags().String("twitter", "", "twitter handle")
	cmd.Flags().String("avatar", "", "avatar URL")
	cmd.Flags().String("notes", "", "notes")
}

// changedFields returns the edit form fields that were given on the command line.
func changedFields(cmd *cobra.Command) url.Values {
	fields := url.Values{}
	for _, name := range []string{"first", "last", "twitter", "avatar", "notes"} {
		if cmd.Flags().Changed(name) {
			value, _ := cmd.Flags().GetString(name)
			fields.Set(name, value)
		}
	}
	return fields
}

func newNewCmd(get func() *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a contact, optionally with values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := get()
			id, err := c.Create(cmd.Context())
			if err != nil {
				return err
			}
			if fields := changedFields(cmd); len(fields) > 0 {
				if err := c.Update(cmd.Context(), id, fields); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	editFlags(cmd)
	return cmd
}

func newEditCmd(get func() *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Overwrite the given fields of a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := get()
			if err := c.Update(cmd.Context(), args[0], changedFields(cmd)); err != nil {
				return err
			}
			contact, err := c.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printContact(cmd, contact)
			return nil
		},
	}
	editFlags(cmd)
	return cmd
}

func newFavoriteCmd(get func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite ID true|false",
		Short: "Mark or unmark a contact as favorite",
		Long: `Toggles the favorite flag without navigating away from the contact. The optimistic
value is printed as soon as the form is submitted, the confirmed value once the contact was
reloaded.`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"true", "false"},
		RunE: func(cmd *cobra.Command, args []string) error {
			favorite, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("favorite must be true or false: %w", err)
			}
			ctx := cmd.Context()
			nav := navigation.New(get())
			if err := nav.Navigate(ctx, "/contacts/"+url.PathEscape(args[0]), navigation.Options{}); err != nil {
				return err
			}
			detail, ok := nav.Current().Data.(model.ContactDetail)
			if !ok {
				return errors.New("unexpected loader data")
			}
			fetcher := nav.Fetcher()
			fetcher.Subscribe(func(s navigation.FetcherState) {
				if s.State == navigation.Submitting {
					fmt.Fprintf(cmd.OutOrStdout(), "optimistic: %s\n", star(navigation.DisplayFavorite(detail.Contact.Favorite, s.FormData)))
				}
			})
			if _, err := fetcher.Submit(ctx, navigation.Submission{Form: client.FavoriteForm(favorite)}); err != nil {
				return err
			}
			detail, ok = nav.Current().Data.(model.ContactDetail)
			if !ok {
				return errors.New("unexpected loader data")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "confirmed:  %s\n", star(detail.Contact.Favorite))
			return nil
		},
	}
}

func newDeleteCmd(get func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().Delete(cmd.Context(), args[0])
		},
	}
}

func star(favorite bool) string {
	if favorite {
		return "★"
	}
	return "☆"
}

func displayName(contact model.Contact) string {
	switch {
	case !contact.HasName():
		return "No Name"
	case contact.First == "":
		return contact.Last
	case contact.Last == "":
		return contact.First
	}
	return contact.First + " " + contact.Last
}

func printContacts(cmd *cobra.Command, contacts []model.Contact) {
	if len(contacts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No contacts")
		return
	}
	for _, contact := range contacts {
		favorite := ""
		if contact.Favorite {
			favorite = " ★"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-38s %s%s\n", contact.ID, displayName(contact), favorite)
	}
}

func printContact(cmd *cobra.Command, contact *model.Contact) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", displayName(*contact), star(contact.Favorite))
	fmt.Fprintf(cmd.OutOrStdout(), "  id:      %s\n", contact.ID)
	if contact.Twitter != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  twitter: %s\n", contact.Twitter)
	}
	if contact.Avatar != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  avatar:  %s\n", contact.Avatar)
	}
	if contact.Notes != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  notes:   %s\n", contact.Notes)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  created: %s\n", contact.CreatedAt.Format(time.RFC3339))
}

// withTimeout is used by commands that may hang on a slow server.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
