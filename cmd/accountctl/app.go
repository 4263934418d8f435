package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopfront/accounts/internal/client"
	"github.com/shopfront/accounts/internal/models"
)

var errUsage = errors.New("usage")

// sessionStore keeps the session token between invocations
type sessionStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// app renders the account forms and admin views in the terminal
type app struct {
	api    *client.Client
	view   *client.View
	prompt *prompter
	store  sessionStore
	out    io.Writer
}

func newApp(api *client.Client, prompt *prompter, store sessionStore, out io.Writer) *app {
	view := client.NewView()
	view.OnChange = func(action string, s client.Status) {
		switch s.State {
		case client.StateLoading:
			fmt.Fprintf(out, "%s...\n", action)
		case client.StateError:
			fmt.Fprintf(out, "Error: %s\n", s.Message)
		case client.StateSuccess:
			if s.Message != "" {
				fmt.Fprintln(out, s.Message)
			}
		}
	}
	return &app{api: api, view: view, prompt: prompt, store: store, out: out}
}

const usage = `usage: accountctl [-server URL] <command> [args]

commands:
  register [-avatar FILE]      create an account
  login                        sign in
  logout                       sign out
  forgot-password              email a password reset link
  reset-password <token>       set a new password with a reset token
  me                           show my profile
  update-password              change my password
  update-profile [-avatar FILE] change my name, email or avatar
  users [-page N] [-count N] [-role ROLE] [-search TEXT]
                               list users (admin)
  user <id>                    show a user (admin)
  set-role <id> <user|admin>   change the role of a user (admin)
  delete-user <id>             delete a user (admin)
`

// run dispatches a command
func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return errUsage
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx)
	case "logout":
		return a.logout(ctx)
	case "forgot-password":
		return a.forgotPassword(ctx)
	case "reset-password":
		return a.resetPassword(ctx, args)
	case "me":
		return a.me(ctx)
	case "update-password":
		return a.updatePassword(ctx)
	case "update-profile":
		return a.updateProfile(ctx, args)
	case "users":
		return a.users(ctx, args)
	case "user":
		return a.user(ctx, args)
	case "set-role":
		return a.setRole(ctx, args)
	case "delete-user":
		return a.deleteUser(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprintf(a.out, "unknown command: %s\n\n%s", cmd, usage)
		return errUsage
	}
}

// persist saves the current session token
func (a *app) persist() error {
	return a.store.Save(a.api.Token())
}

func readAvatarFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read avatar: %w", err)
	}
	return client.AvatarDataURI(data), nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(a.out)
	avatarPath := fs.String("avatar", "", "avatar image file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	var req models.RegisterRequest
	var err error
	if req.Name, err = a.prompt.Text("Name", ""); err != nil {
		return err
	}
	if req.Email, err = a.prompt.Text("Email", ""); err != nil {
		return err
	}
	if req.Password, err = a.prompt.Password("Password"); err != nil {
		return err
	}
	avatar, err := readAvatarFile(*avatarPath)
	if err != nil {
		return err
	}

	err = a.view.Run("register", func() (string, error) {
		sess, err := a.api.Register(ctx, req, avatar)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Welcome, %s", sess.User.Name), nil
	})
	if err != nil {
		return err
	}
	return a.persist()
}

func (a *app) login(ctx context.Context) error {
	email, err := a.prompt.Text("Email", "")
	if err != nil {
		return err
	}
	password, err := a.prompt.Password("Password")
	if err != nil {
		return err
	}

	err = a.view.Run("login", func() (string, error) {
		sess, err := a.api.Login(ctx, email, password)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Welcome back, %s", sess.User.Name), nil
	})
	if err != nil {
		return err
	}
	return a.persist()
}

func (a *app) logout(ctx context.Context) error {
	err := a.view.Run("logout", func() (string, error) {
		return a.api.Logout(ctx)
	})
	if err != nil {
		return err
	}
	return a.store.Clear()
}

func (a *app) forgotPassword(ctx context.Context) error {
	email, err := a.prompt.Text("Email", "")
	if err != nil {
		return err
	}
	return a.view.Run("forgot-password", func() (string, error) {
		return a.api.ForgotPassword(ctx, email)
	})
}

func (a *app) resetPassword(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "usage: accountctl reset-password <token>")
		return errUsage
	}

	password, err := a.prompt.Password("New Password")
	if err != nil {
		return err
	}
	confirm, err := a.prompt.Password("Confirm Password")
	if err != nil {
		return err
	}

	err = a.view.Run("reset-password", func() (string, error) {
		if _, err := a.api.ResetPassword(ctx, args[0], password, confirm); err != nil {
			return "", err
		}
		return "Password Updated Successfully !", nil
	})
	if err != nil {
		return err
	}
	return a.persist()
}

func (a *app) me(ctx context.Context) error {
	var user *models.User
	err := a.view.Run("me", func() (string, error) {
		var err error
		user, err = a.api.Me(ctx)
		return "", err
	})
	if err != nil {
		return err
	}
	a.printUser(user)
	return nil
}

func (a *app) updatePassword(ctx context.Context) error {
	var req models.UpdatePasswordRequest
	var err error
	if req.OldPassword, err = a.prompt.Password("Old Password"); err != nil {
		return err
	}
	if req.NewPassword, err = a.prompt.Password("New Password"); err != nil {
		return err
	}
	if req.ConfirmPassword, err = a.prompt.Password("Confirm Password"); err != nil {
		return err
	}

	err = a.view.Run("update-password", func() (string, error) {
		if _, err := a.api.UpdatePassword(ctx, req); err != nil {
			return "", err
		}
		return "Password Updated Successfully", nil
	})
	if err != nil {
		return err
	}
	return a.persist()
}

func (a *app) updateProfile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update-profile", flag.ContinueOnError)
	fs.SetOutput(a.out)
	avatarPath := fs.String("avatar", "", "new avatar image file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	current, err := a.api.Me(ctx)
	if err != nil {
		return a.view.Run("update-profile", func() (string, error) { return "", err })
	}

	var req models.UpdateProfileRequest
	if req.Name, err = a.prompt.Text("Name", current.Name); err != nil {
		return err
	}
	if req.Email, err = a.prompt.Text("Email", current.Email); err != nil {
		return err
	}
	avatar, err := readAvatarFile(*avatarPath)
	if err != nil {
		return err
	}

	return a.view.Run("update-profile", func() (string, error) {
		if err := a.api.UpdateProfile(ctx, req, avatar); err != nil {
			return "", err
		}
		return "Profile Updated Successfully", nil
	})
}

func (a *app) users(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("users", flag.ContinueOnError)
	fs.SetOutput(a.out)
	page := fs.Int("page", 0, "page number")
	count := fs.Int("count", 0, "users per page")
	role := fs.String("role", "", "role filter")
	search := fs.String("search", "", "search by name or email")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	q := models.UserListQuery{Page: *page, Count: *count, Search: *search}
	if *role != "" {
		r := models.Role(*role)
		q.Role = &r
	}

	var list *models.UserListResponse
	err := a.view.Run("users", func() (string, error) {
		var err error
		list, err = a.api.ListUsers(ctx, q)
		return "", err
	})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tCREATED")
	for _, u := range list.Users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role, u.CreatedAt.Format(time.DateOnly))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	pages := (list.UsersCount + list.Count - 1) / max(list.Count, 1)
	fmt.Fprintf(a.out, "page %d of %d, %d users\n", list.Page, max(pages, 1), list.UsersCount)
	return nil
}

func (a *app) user(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "usage: accountctl user <id>")
		return errUsage
	}

	var user *models.User
	err := a.view.Run("user", func() (string, error) {
		var err error
		user, err = a.api.GetUser(ctx, args[0])
		return "", err
	})
	if err != nil {
		return err
	}
	a.printUser(user)
	return nil
}

func (a *app) setRole(ctx context.Context, args []string) error {
	if len(args) != 2 {
		fmt.Fprintln(a.out, "usage: accountctl set-role <id> <user|admin>")
		return errUsage
	}

	return a.view.Run("set-role", func() (string, error) {
		user, err := a.api.GetUser(ctx, args[0])
		if err != nil {
			return "", err
		}
		req := models.UpdateRoleRequest{Name: user.Name, Email: user.Email, Role: models.Role(strings.ToLower(args[1]))}
		if err := a.api.UpdateRole(ctx, args[0], req); err != nil {
			return "", err
		}
		return "User Updated Successfully", nil
	})
}

func (a *app) deleteUser(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "usage: accountctl delete-user <id>")
		return errUsage
	}

	return a.view.Run("delete-user", func() (string, error) {
		return a.api.DeleteUser(ctx, args[0])
	})
}

func (a *app) printUser(u *models.User) {
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", u.ID)
	fmt.Fprintf(tw, "Name\t%s\n", u.Name)
	fmt.Fprintf(tw, "Email\t%s\n", u.Email)
	fmt.Fprintf(tw, "Role\t%s\n", u.Role)
	fmt.Fprintf(tw, "Avatar\t%s\n", u.Avatar.URL)
	fmt.Fprintf(tw, "Joined On\t%s\n", u.CreatedAt.Format(time.DateOnly))
	_ = tw.Flush()
}
