package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/rdsquote/internal/api"
	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/controller"
	"github.com/roach88/rdsquote/internal/store"
)

// signalContext returns a context cancelled on SIGINT/SIGTERM or when the
// command's own context ends.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan) // Prevent signal handler leak
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled or command finished
		}
	}()
	return ctx, cancel
}

// newClient builds the backend client for --server.
func (o *RootOptions) newClient() (*api.Client, error) {
	return api.New(o.Server, api.WithLogger(o.Logger()))
}

// openStore opens --session-db, or an in-memory store when it is empty.
func (o *RootOptions) openStore() (*store.Store, error) {
	if o.SessionDB == "" {
		return store.OpenEphemeral()
	}
	return store.Open(o.SessionDB)
}

// loadPolicy reads --policy, or returns the default policy.
func (o *RootOptions) loadPolicy() (catalog.Policy, error) {
	if o.Policy == "" {
		return catalog.DefaultPolicy(), nil
	}
	return catalog.LoadPolicy(o.Policy)
}

// pricingSession wires a controller to the backend and a session store.
type pricingSession struct {
	ID      string
	client  *api.Client
	store   *store.Store
	session *store.SessionStore
	ctrl    *controller.Controller

	mu      sync.Mutex
	notices []string
}

// errSessionSetup marks failures that happen before the backend is contacted.
var errSessionSetup = errors.New("session setup")

// openPricingSession resumes --session or creates a new one, and builds a
// controller whose request seqs continue after the session's log.
func openPricingSession(ctx context.Context, o *RootOptions, label string) (*pricingSession, error) {
	policy, err := o.loadPolicy()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errSessionSetup, err)
	}
	if o.Session != "" && !store.ValidSessionID(o.Session) {
		return nil, fmt.Errorf("%w: invalid session ID %q", errSessionSetup, o.Session)
	}

	client, err := o.newClient()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errSessionSetup, err)
	}

	st, err := o.openStore()
	if err != nil {
		return nil, fmt.Errorf("%w: open session store: %w", errSessionSetup, err)
	}

	id := o.Session
	if id == "" {
		if id, err = st.NewSession(ctx, label); err != nil {
			st.Close()
			return nil, fmt.Errorf("%w: %w", errSessionSetup, err)
		}
	}
	lastSeq, err := st.LastSeq(ctx, id)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: %w", errSessionSetup, err)
	}

	ps := &pricingSession{
		ID:      id,
		client:  client,
		store:   st,
		session: st.Session(id),
	}
	ps.ctrl = controller.New(client,
		controller.WithPersister(ps.session),
		controller.WithRequestLog(ps.session),
		controller.WithPolicy(policy),
		controller.WithDebounce(o.Debounce),
		controller.WithClock(controller.NewClockAt(lastSeq)),
		controller.WithLogger(o.Logger().With("session", id)),
	)
	ps.ctrl.Subscribe(ps.collect)

	o.Logger().Debug("pricing session opened", "session", id, "resumed_seq", lastSeq, "server", client.BaseURL())
	return ps, nil
}

// collect keeps notices for JSON output.
func (ps *pricingSession) collect(ev controller.Event) {
	if ev.Kind != controller.EventNotice {
		return
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.notices = append(ps.notices, ev.Message)
}

// Notices returns the notices emitted so far.
func (ps *pricingSession) Notices() []string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return append([]string(nil), ps.notices...)
}

// Settle waits until nothing is pending or in flight and every round trip
// has been recorded.
func (ps *pricingSession) Settle(ctx context.Context) error {
	if err := ps.ctrl.Settle(ctx); err != nil {
		return err
	}
	ps.ctrl.Wait()
	return nil
}

// Close stops the controller and closes the store.
func (ps *pricingSession) Close() error {
	return errors.Join(ps.ctrl.Close(), ps.store.Close())
}

// sessionFailure reports an openPricingSession or Start error.
func sessionFailure(f *OutputFormatter, err error) error {
	if errors.Is(err, errSessionSetup) {
		return failWith(f, ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}
	return fail(f, err)
}
