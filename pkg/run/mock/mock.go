package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/fluxcd/servicereload/pkg/run"
)

type response struct {
	out run.Output
	err error
}

// Runner stands in for the orchestrator's command line tool. Canned
// responses are looked up by the full argument string; anything else
// goes to RunFunc, or succeeds silently if that is nil. Every call is
// recorded.
type Runner struct {
	RunFunc func(ctx context.Context, cmd run.Cmd) (run.Output, error)

	mu        sync.Mutex
	responses map[string]response
	calls     []run.Cmd
}

var _ run.Runner = &Runner{}

// Respond scripts the result of the command whose arguments, joined by
// spaces, equal args.
func (r *Runner) Respond(args string, out run.Output, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.responses == nil {
		r.responses = map[string]response{}
	}
	r.responses[args] = response{out: out, err: err}
}

func (r *Runner) Run(ctx context.Context, cmd run.Cmd) (run.Output, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	resp, ok := r.responses[cmd.String()]
	f := r.RunFunc
	r.mu.Unlock()

	if ok {
		return resp.out, resp.err
	}
	if f != nil {
		return f(ctx, cmd)
	}
	return run.Output{}, nil
}

// Calls returns every command run so far, in order.
func (r *Runner) Calls() []run.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]run.Cmd(nil), r.calls...)
}

// CallsWithPrefix returns the commands whose argument string starts
// with prefix, in order.
func (r *Runner) CallsWithPrefix(prefix string) []run.Cmd {
	var res []run.Cmd
	for _, c := range r.Calls() {
		if strings.HasPrefix(c.String(), prefix) {
			res = append(res, c)
		}
	}
	return res
}
