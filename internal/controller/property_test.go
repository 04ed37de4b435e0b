package controller_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/roach88/rdsquote/internal/controller"
	"github.com/roach88/rdsquote/internal/testutil"
	"github.com/roach88/rdsquote/internal/value"
)

// Any burst of edits inside the debounce window produces exactly one request,
// carrying the last edit.
func TestProperty_BurstSendsOneRequestWithLastEdit(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		edits := rapid.SliceOfN(rapid.SampledFrom([]string{"0", "10", "20", "30", "40", "50"}), 1, 20).Draw(rt, "edits")
		gaps := rapid.SliceOfN(rapid.IntRange(0, 149), len(edits), len(edits)).Draw(rt, "gaps")

		tr := testutil.NewFakeTransport(testutil.RDSCatalog("v1"))
		sched := testutil.NewManualScheduler()
		c := controller.New(tr, controller.WithScheduler(sched), controller.WithLogger(quietLogger))
		defer c.Close()

		if err := c.Start(context.Background()); err != nil {
			rt.Fatalf("start: %v", err)
		}
		sched.Advance(controller.DefaultDebounce)
		c.Wait()

		for i, raw := range edits {
			if err := c.SetField("sys.spare_saw_blades_qty", raw); err != nil {
				rt.Fatalf("set field: %v", err)
			}
			if i < len(edits)-1 {
				sched.Advance(time.Duration(gaps[i]) * time.Millisecond)
			}
		}
		sched.Advance(controller.DefaultDebounce)
		c.Wait()

		calls := tr.Calls()
		if !assert.Len(rt, calls, 2) {
			return
		}
		want, err := value.ParseNumber(edits[len(edits)-1])
		if err != nil {
			rt.Fatalf("parse: %v", err)
		}
		assert.True(rt, want.Equal(calls[1].Inputs["sys.spare_saw_blades_qty"]))
	})
}

// Whatever a session stored, rehydrating it yields exactly the catalog's
// fields, each inside its domain, and keeps every in-domain stored value.
func TestProperty_RehydrateIntersectsDomains(t *testing.T) {
	cat := testutil.RDSCatalog("v1")
	candidates := []value.Value{
		value.Text("Left"), value.Text("Right"), value.Text("Tall"), value.Text("bogus"),
		value.NewNumber(0), value.NewNumber(1), value.NewNumber(30), value.NewNumber(7),
	}
	ids := append(cat.IDs(), "sys.unknown")

	rapid.Check(t, func(rt *rapid.T) {
		stored := value.InputSet{}
		for _, id := range ids {
			if rapid.Bool().Draw(rt, "has_"+string(id)) {
				stored[id] = rapid.SampledFrom(candidates).Draw(rt, "val_"+string(id))
			}
		}

		tr := testutil.NewFakeTransport(cat)
		saved := &controller.SessionState{Inputs: stored, LastValid: stored}
		c := controller.New(tr,
			controller.WithScheduler(testutil.NewManualScheduler()),
			controller.WithPersister(testutil.NewMemoryPersister(saved)),
			controller.WithLogger(quietLogger),
		)
		defer c.Close()
		if err := c.Start(context.Background()); err != nil {
			rt.Fatalf("start: %v", err)
		}

		got := c.Snapshot().Inputs
		assert.Len(rt, got, len(cat.Fields))
		for _, f := range cat.Fields {
			v := got[f.ID]
			assert.True(rt, f.InDomain(v), "%s=%v outside domain", f.ID, v)
			if sv, ok := stored[f.ID]; ok && f.InDomain(sv) {
				assert.True(rt, value.Equal(sv, v), "%s lost stored value", f.ID)
			}
		}
	})
}
