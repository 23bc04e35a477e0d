package cli

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

	"expensetracker/internal/app"
	"expensetracker/internal/auth"
	"expensetracker/internal/config"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/prefs"
)

var ErrNotLoggedIn = errors.New("not logged in, run: expense-cli login -email <email> -password <password>")

// FailureError carries the message of an API reply with success false.
type FailureError struct {
	Message string
}

func (e *FailureError) Error() string { return e.Message }

// IsFailure reports whether err is an API-level failure rather than a
// transport or usage error.
func IsFailure(err error) bool {
	var f *FailureError
	return errors.As(err, &f)
}

type command struct {
	name    string
	usage   string
	summary string
	// needsList loads the cached list before run.
	needsList bool
	run       func(c *Console, ctx context.Context, args []string) error
}

var commands = []command{
	{"register", "-username U -email E -password P", "create an account", false, (*Console).register},
	{"login", "-email E -password P", "log in and remember the session", false, (*Console).login},
	{"logout", "", "forget the stored session", false, (*Console).logout},
	{"whoami", "", "show the logged in user", false, (*Console).whoami},
	{"list", "[-filter all|week|month|3months] [-summary]", "list expenses and their total", false, (*Console).list},
	{"add", "-description D -amount A -category C [-date YYYY-MM-DD]", "record an expense", false, (*Console).add},
	{"edit", "-id N [-description D] [-amount A] [-category C] [-date YYYY-MM-DD]", "change an expense", true, (*Console).edit},
	{"delete", "-id N", "delete an expense", false, (*Console).remove},
	{"categories", "", "list the valid categories", false, (*Console).categories},
	{"seed", "[-count N] [-parallel P]", "create random expenses", false, (*Console).seed},
}

// Console is the terminal front end. It reads and writes through the
// containers of one App.
type Console struct {
	app    *app.App
	out    io.Writer
	errOut io.Writer
	now    func() time.Time
}

func NewConsole(a *app.App, out, errOut io.Writer) *Console {
	return &Console{app: a, out: out, errOut: errOut, now: time.Now}
}

// Run is the entry point of expense-cli. It returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("expense-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	profile := fs.String("config", defaultProfilePath(), "client profile (YAML)")
	verbose := fs.Bool("v", false, "log requests to stderr")
	fs.Usage = func() { usage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(stderr, fs)
		return 2
	}

	cfg, err := config.LoadClient(*profile)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	level := cfg.LogLevel
	if *verbose {
		level = "debug"
	}
	logger := log.New(log.Config{Level: log.ParseLevel(level), Output: stderr})

	a := app.New(app.Config{
		APIURL: cfg.APIURL,
		Store:  prefs.NewFileStore(cfg.SessionFile),
		Logger: logger,
	})
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if err := NewConsole(a, stdout, stderr).Execute(ctx, fs.Args()); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

// Execute restores the session and runs one subcommand. Commands that read
// the cached list start the App, which also loads it. list loads on its own
// under the requested filter.
func (c *Console) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("missing command")
	}
	name, rest := args[0], args[1:]
	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		start := c.app.Auth.Restore
		if cmd.needsList {
			start = func() error { return c.app.Start(ctx) }
		}
		if err := start(); err != nil {
			return err
		}
		return cmd.run(c, ctx, rest)
	}
	return fmt.Errorf("unknown command %q", name)
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "usage: expense-cli [-config FILE] [-v] <command> [flags]")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, cmd := range commands {
		fmt.Fprintf(tw, "  %s %s\t%s\n", cmd.name, cmd.usage, cmd.summary)
	}
	tw.Flush()
	fmt.Fprintln(w)
	fs.PrintDefaults()
}

func defaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return dir + "/expense-tracker/config.yaml"
}

func newFlags(name string, errOut io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(errOut)
	return fs
}

func (c *Console) requireLogin() (core.User, error) {
	u, ok := c.app.Auth.User()
	if !ok {
		return core.User{}, ErrNotLoggedIn
	}
	return u, nil
}

func (c *Console) register(ctx context.Context, args []string) error {
	fs := newFlags("register", c.errOut)
	var req auth.RegisterRequest
	fs.StringVar(&req.Username, "username", "", "username")
	fs.StringVar(&req.Email, "email", "", "email")
	fs.StringVar(&req.Password, "password", "", "password (at least 6 characters)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := c.app.Auth.Register(ctx, req)
	if err != nil {
		return err
	}
	if !res.Success() {
		return &FailureError{Message: res.MessageOr("Registration failed")}
	}
	fmt.Fprintln(c.out, "Registration successful! Please login.")
	return nil
}

func (c *Console) login(ctx context.Context, args []string) error {
	fs := newFlags("login", c.errOut)
	email := fs.String("email", "", "email")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := c.app.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "Login failed"
		}
		return &FailureError{Message: msg}
	}
	fmt.Fprintf(c.out, "Welcome, %s!\n", res.User.Username)
	return nil
}

func (c *Console) logout(_ context.Context, _ []string) error {
	if err := c.app.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Logged out.")
	return nil
}

func (c *Console) whoami(_ context.Context, _ []string) error {
	u, err := c.requireLogin()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s <%s> (id %d)\n", u.Username, u.Email, u.ID)
	return nil
}

func (c *Console) list(ctx context.Context, args []string) error {
	fs := newFlags("list", c.errOut)
	filter := fs.String("filter", string(core.FilterAll), "all, week, month or 3months")
	summary := fs.Bool("summary", false, "also print totals per category")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := c.requireLogin(); err != nil {
		return err
	}
	f, err := core.ParseFilter(*filter)
	if err != nil {
		return err
	}
	store := c.app.Expenses
	load := func() error { return store.SetFilter(ctx, f) }
	if store.Filter() == f {
		load = func() error { return store.Load(ctx) }
	}
	if err := load(); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDESCRIPTION\tAMOUNT\tCATEGORY\tDATE")
	for _, e := range store.Expenses() {
		fmt.Fprintf(tw, "%d\t%s\t%s€\t%s\t%s\n", e.ID, e.Description, e.Amount.StringFixed(2), e.Category, e.Date)
	}
	tw.Flush()
	fmt.Fprintf(c.out, "\nTotal: %s€ (%d expenses)\n", store.FormattedTotal(), store.Count())

	if *summary {
		fmt.Fprintln(c.out)
		tw = tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		for _, ca := range store.Summary() {
			fmt.Fprintf(tw, "%s\t%s€\t%d\n", ca.Category, ca.Amount.StringFixed(2), ca.Count)
		}
		tw.Flush()
	}
	return nil
}

// expenseFlags binds the expense form fields to fs.
type expenseFlags struct {
	description, amount, category, date string
}

func (ef *expenseFlags) bind(fs *flag.FlagSet, defaultDate string) {
	fs.StringVar(&ef.description, "description", "", "what was bought")
	fs.StringVar(&ef.amount, "amount", "", "amount, e.g. 12.50")
	fs.StringVar(&ef.category, "category", "", "one of: "+categoryNames())
	fs.StringVar(&ef.date, "date", defaultDate, "expense date, YYYY-MM-DD")
}

// apply overwrites the fields of in that were set on the command line.
func (ef *expenseFlags) apply(in core.ExpenseInput, set map[string]bool) (core.ExpenseInput, error) {
	if set["description"] {
		in.Description = ef.description
	}
	if set["amount"] {
		amount, err := core.ParseAmount(ef.amount)
		if err != nil {
			return in, err
		}
		in.Amount = amount
	}
	if set["category"] {
		cat, err := core.ParseCategory(ef.category)
		if err != nil {
			return in, err
		}
		in.Category = cat
	}
	if set["date"] {
		d, err := core.ParseDate(ef.date)
		if err != nil {
			return in, err
		}
		in.Date = d
	}
	return in, nil
}

func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func (c *Console) add(ctx context.Context, args []string) error {
	fs := newFlags("add", c.errOut)
	var ef expenseFlags
	today := core.DateOf(c.now()).String()
	ef.bind(fs, today)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := c.requireLogin(); err != nil {
		return err
	}

	set := setFlags(fs)
	set["description"], set["amount"], set["category"], set["date"] = true, true, true, true
	in, err := ef.apply(core.ExpenseInput{}, set)
	if err != nil {
		return err
	}

	res, err := c.app.Expenses.Create(ctx, in)
	if err != nil {
		return err
	}
	if !res.Success() {
		return &FailureError{Message: res.MessageOr("Failed to create expense")}
	}
	fmt.Fprintf(c.out, "Expense added. Total: %s€\n", c.app.Expenses.FormattedTotal())
	return nil
}

func (c *Console) edit(ctx context.Context, args []string) error {
	fs := newFlags("edit", c.errOut)
	id := fs.Int64("id", 0, "expense id")
	var ef expenseFlags
	ef.bind(fs, "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := c.requireLogin(); err != nil {
		return err
	}

	current, ok := c.app.Expenses.Find(*id)
	if !ok {
		return &FailureError{Message: fmt.Sprintf("Expense %d not found", *id)}
	}
	in, err := ef.apply(current.Input(), setFlags(fs))
	if err != nil {
		return err
	}

	c.app.Expenses.StartEdit(*id)
	res, err := c.app.Expenses.Update(ctx, *id, in)
	if err != nil {
		c.app.Expenses.CancelEdit()
		return err
	}
	if !res.Success() {
		c.app.Expenses.CancelEdit()
		return &FailureError{Message: res.MessageOr("Failed to update expense")}
	}
	fmt.Fprintf(c.out, "Expense %d updated. Total: %s€\n", *id, c.app.Expenses.FormattedTotal())
	return nil
}

func (c *Console) remove(ctx context.Context, args []string) error {
	fs := newFlags("delete", c.errOut)
	id := fs.Int64("id", 0, "expense id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := c.requireLogin(); err != nil {
		return err
	}

	res, err := c.app.Expenses.Delete(ctx, *id)
	if err != nil {
		return err
	}
	if !res.Success() {
		return &FailureError{Message: res.MessageOr("Failed to delete expense")}
	}
	fmt.Fprintf(c.out, "Expense %d deleted. Total: %s€\n", *id, c.app.Expenses.FormattedTotal())
	return nil
}

func (c *Console) categories(_ context.Context, _ []string) error {
	for _, cat := range core.Categories() {
		fmt.Fprintln(c.out, cat)
	}
	return nil
}

func categoryNames() string {
	names := make([]string, 0, len(core.Categories()))
	for _, cat := range core.Categories() {
		names = append(names, cat.String())
	}
	return strings.Join(names, ", ")
}
