// Command userdirctl is a CLI for the user directory API. It drives the
// optimistic sync store against a running server, mirroring how an
// interactive frontend would.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"userdir/pkg/client"
	"userdir/pkg/domain"
	"userdir/pkg/syncstore"
)

const usage = `usage: userdirctl [-server URL] [-timeout DUR] <command> [args]

commands:
  list                               print all directory entries
  create -name .. -surname .. -email .. -company .. -job ..
                                     add an entry
  update <id> [field flags]          overwrite fields of an entry
  delete <id>                        remove an entry
  refresh <id>                       re-check an entry against the server
  health                             check server liveness
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "userdirctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	global := flag.NewFlagSet("userdirctl", flag.ContinueOnError)
	global.SetOutput(out)
	server := global.String("server", "http://localhost:8080", "directory server base URL")
	timeout := global.Duration("timeout", 30*time.Second, "request timeout")
	global.Usage = func() { fmt.Fprint(out, usage) }
	if err := global.Parse(args); err != nil {
		return err
	}
	rest := global.Args()
	if len(rest) == 0 {
		fmt.Fprint(out, usage)
		return fmt.Errorf("command required")
	}

	remote := client.New(*server, client.WithTimeout(*timeout))
	store := syncstore.New(remote)
	ctx := context.Background()

	switch rest[0] {
	case "list":
		return runList(ctx, store, out)
	case "create":
		return runCreate(ctx, store, rest[1:], out)
	case "update":
		return runUpdate(ctx, store, rest[1:], out)
	case "delete":
		return runDelete(ctx, store, rest[1:], out)
	case "refresh":
		return runRefresh(ctx, store, rest[1:], out)
	case "health":
		if err := remote.Health(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
		return nil
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

func runList(ctx context.Context, store *syncstore.Store, out io.Writer) error {
	if err := store.Load(ctx); err != nil {
		return err
	}
	printUsers(out, store.Users())
	return nil
}

func draftFlags(fs *flag.FlagSet, draft *domain.UserDraft) {
	fs.StringVar(&draft.Name, "name", draft.Name, "first name")
	fs.StringVar(&draft.Surname, "surname", draft.Surname, "last name")
	fs.StringVar(&draft.Email, "email", draft.Email, "email address")
	fs.StringVar(&draft.Company, "company", draft.Company, "company")
	fs.StringVar(&draft.JobTitle, "job", draft.JobTitle, "job title")
}

func runCreate(ctx context.Context, store *syncstore.Store, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(out)
	var draft domain.UserDraft
	draftFlags(fs, &draft)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := domain.CheckDraft(draft); err != nil {
		return err
	}
	if err := store.Create(ctx, draft); err != nil {
		return err
	}
	printUsers(out, store.Users())
	return nil
}

func runUpdate(ctx context.Context, store *syncstore.Store, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("update: id required")
	}
	id := args[0]

	if err := store.Load(ctx); err != nil {
		return err
	}
	current, ok := findUser(store.Users(), id)
	if !ok {
		return fmt.Errorf("user %s not found", id)
	}

	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.SetOutput(out)
	draft := domain.DraftOf(current)
	draftFlags(fs, &draft)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if err := domain.CheckDraft(draft); err != nil {
		return err
	}

	store.SetEditing(current)
	if err := store.Update(ctx, id, draft); err != nil {
		return err
	}
	printUsers(out, store.Users())
	return nil
}

func runDelete(ctx context.Context, store *syncstore.Store, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("delete: id required")
	}
	if err := store.Load(ctx); err != nil {
		return err
	}
	if _, ok := findUser(store.Users(), args[0]); !ok {
		return fmt.Errorf("user %s not found", args[0])
	}
	if err := store.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(out, "deleted", args[0])
	return nil
}

func runRefresh(ctx context.Context, store *syncstore.Store, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("refresh: id required")
	}
	present, err := store.Refresh(ctx, args[0])
	if err != nil {
		return err
	}
	if !present {
		fmt.Fprintln(out, args[0], "no longer present")
		return nil
	}
	user, _ := findUser(store.Users(), args[0])
	printUsers(out, []domain.User{user})
	return nil
}

func findUser(users []domain.User, id string) (domain.User, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return domain.User{}, false
}

func printUsers(out io.Writer, users []domain.User) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSURNAME\tEMAIL\tCOMPANY\tJOB TITLE")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Surname, u.Email, u.Company, u.JobTitle)
	}
	_ = w.Flush()
}
