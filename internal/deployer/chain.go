package deployer

import (
	"context"
	"fmt"
	"slices"

	"github.com/provisio/prov/internal/inventory"
	"github.com/provisio/prov/internal/product"
)

// operation selects the deployer method a chain invokes.
type operation int

const (
	opDeploy operation = iota
	opUndeploy
	opStart
	opStop
)

func (o operation) String() string {
	switch o {
	case opDeploy:
		return "deploy"
	case opUndeploy:
		return "undeploy"
	case opStart:
		return "start"
	default:
		return "stop"
	}
}

// reversed reports whether steps run last to first.
func (o operation) reversed() bool {
	return o == opUndeploy || o == opStop
}

func (o operation) invoke(ctx context.Context, d product.Deployer) product.Result {
	switch o {
	case opDeploy:
		return d.Deploy(ctx)
	case opUndeploy:
		return d.Undeploy(ctx)
	case opStart:
		return d.Start(ctx)
	default:
		return d.Stop(ctx)
	}
}

// chainResult is the outcome of one component chain.
type chainResult struct {
	Component string
	Result    product.Result
	Err       error
}

// runChain initializes and invokes every step of c's procedure. A FAILED
// step ends the chain; the chain result is the worst step result.
func runChain(ctx context.Context, reg *product.Registry, c inventory.Component, op operation) chainResult {
	steps := slices.Clone(c.Procedure)
	if op.reversed() {
		slices.Reverse(steps)
	}

	out := chainResult{Component: c.Name, Result: product.OK}
	results := make([]product.Result, 0, len(steps))
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			out.Result = product.Failed
			out.Err = err
			return out
		}

		d, err := reg.New(step.Type)
		if err != nil {
			out.Result = product.Failed
			out.Err = fmt.Errorf("component %s step %d: %w", c.Name, i+1, err)
			return out
		}
		if err := d.Init(ctx, c.Context, step.Params); err != nil {
			out.Result = product.Failed
			out.Err = fmt.Errorf("component %s step %d (%s): init: %w", c.Name, i+1, step.Type, err)
			return out
		}

		r := op.invoke(ctx, d)
		results = append(results, r)
		if r == product.Failed || r == product.IncompatibleAPIVersion {
			out.Result = product.Failed
			out.Err = fmt.Errorf("component %s step %d (%s): %s failed", c.Name, i+1, step.Type, op)
			return out
		}
	}
	out.Result = product.Worst(results...)
	if out.Result == product.AlreadyInstalled {
		out.Result = product.OK
	}
	return out
}
