package cli

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync/atomic"

	"github.com/bxcodec/faker/v3"
	"golang.org/x/sync/errgroup"

	"expensetracker/internal/apiclient"
	"expensetracker/internal/core"
)

const maxSeedCount = 500

// randomExpense builds a plausible expense dated within the last 90 days.
func randomExpense(today core.Date, rng *rand.Rand) core.ExpenseInput {
	desc := strings.TrimSuffix(faker.Sentence(), ".")
	if len(desc) > 60 {
		desc = strings.TrimSpace(desc[:60])
	}
	if desc == "" {
		desc = faker.Word()
	}
	cats := core.Categories()
	return core.ExpenseInput{
		Description: desc,
		Amount:      core.FromCents(100 + rng.Int64N(15000)),
		Category:    cats[rng.IntN(len(cats))],
		Date:        core.DateOf(today.AddDate(0, 0, -rng.IntN(90))),
	}
}

// seed posts expenses straight through the API client so the list is
// reloaded once at the end rather than after every write.
func (c *Console) seed(ctx context.Context, args []string) error {
	fs := newFlags("seed", c.errOut)
	count := fs.Int("count", 20, "number of expenses to create")
	parallel := fs.Int("parallel", 4, "concurrent requests")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *count < 1 || *count > maxSeedCount {
		return fmt.Errorf("count must be between 1 and %d", maxSeedCount)
	}
	if *parallel < 1 {
		*parallel = 1
	}
	if _, err := c.requireLogin(); err != nil {
		return err
	}

	today := core.DateOf(c.now())
	rng := rand.New(rand.NewPCG(uint64(c.now().UnixNano()), 0))
	inputs := make([]core.ExpenseInput, *count)
	for i := range inputs {
		inputs[i] = randomExpense(today, rng)
	}

	token := c.app.Auth.Token()
	var created atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*parallel)
	for _, in := range inputs {
		g.Go(func() error {
			res, err := c.app.Client.Post(gctx, "/expenses", in, apiclient.WithToken(token))
			if err != nil {
				return err
			}
			if !res.Success() {
				return &FailureError{Message: res.MessageOr("Failed to create expense")}
			}
			created.Add(1)
			return nil
		})
	}
	seedErr := g.Wait()

	if err := c.app.Expenses.Load(ctx); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created %d expenses. Total: %s€\n", created.Load(), c.app.Expenses.FormattedTotal())
	return seedErr
}
