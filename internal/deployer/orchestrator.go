// Package deployer is the deployment orchestrator: it diffs the installed
// structure of a product against a target structure and runs the component
// deployer chains that get from one to the other.
package deployer

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"

	oerrors "github.com/provisio/prov/internal/errors"
	"github.com/provisio/prov/internal/inventory"
	"github.com/provisio/prov/internal/output"
	"github.com/provisio/prov/internal/product"
	"github.com/provisio/prov/internal/resolver"
)

// Resolver provides the structure and contexts of a product version.
type Resolver interface {
	Download(ctx context.Context, name, version string) (*resolver.Resolution, error)
}

// Options configures an Orchestrator.
type Options struct {
	Resolver Resolver
	Store    *inventory.Store

	// Base resolves step types when a product archive cannot be loaded to
	// undeploy, start or stop an installed version.
	Base *product.Registry

	// MaxHistory bounds the change history per product.
	MaxHistory int
}

// Orchestrator runs deploy, undeploy, start and stop calls. Calls are not
// serialized here; the engine holds the working folder lock around them.
type Orchestrator struct {
	opts Options
}

// New returns an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = inventory.DefaultMaxHistory
	}
	if opts.Base == nil {
		opts.Base = product.NewRegistry()
	}
	return &Orchestrator{opts: opts}
}

// Deploy brings product name to version. An empty version undeploys the
// installed version.
func (o *Orchestrator) Deploy(ctx context.Context, name, version string) (product.Result, error) {
	if version == "" {
		return o.Undeploy(ctx, name)
	}
	return o.deploy(ctx, name, version, sets.New[string]())
}

func (o *Orchestrator) deploy(ctx context.Context, name, version string, visiting sets.Set[string]) (product.Result, error) {
	runID := uuid.NewString()
	log := output.ProductLogger(name).With("run", runID[:8])

	if visiting.Has(name) {
		return product.Failed, fmt.Errorf("%w: product %s requires itself through %s",
			oerrors.ErrDeploymentFailed, name, strings.Join(sets.List(visiting), ", "))
	}
	visiting.Insert(name)
	defer visiting.Delete(name)

	prev, err := o.opts.Store.Get(name)
	if err != nil {
		return product.Failed, err
	}
	if prev != nil && prev.Version == version {
		log.Info("already installed", "version", version)
		return product.AlreadyInstalled, nil
	}

	target, err := o.opts.Resolver.Download(ctx, name, version)
	if err != nil {
		if oerrors.Is(err, oerrors.ErrIncompatibleAPIVersion) {
			return product.IncompatibleAPIVersion, err
		}
		return product.Failed, err
	}

	// Required products first.
	var results []product.Result
	for _, req := range target.Structure.Requires {
		log.Debug("deploying required product", "product", req.Product, "version", req.Version)
		r, err := o.deploy(ctx, req.Product, req.Version, visiting)
		if err != nil || r == product.Failed || r == product.IncompatibleAPIVersion {
			return product.Failed, fmt.Errorf("%w: required product %s %s: %w",
				oerrors.ErrDeploymentFailed, req.Product, req.Version, errOrResult(err, r))
		}
		results = append(results, r)
	}

	targetComponents := components(target)
	var previous []inventory.Component
	if prev != nil {
		previous = prev.Components
	}
	plan := Diff(previous, targetComponents)
	plan.Product, plan.To = name, version
	if prev != nil {
		plan.From = prev.Version
	}
	log.Debug("plan", "from", plan.From, "to", version, "summary", plan.Summary())

	var chains []chainResult
	if len(plan.Undeploy) > 0 {
		reg := o.installedRegistry(ctx, log, prev)
		chains = append(chains, o.runAll(ctx, log, reg, plan.Undeploy, opUndeploy)...)
	}
	chains = append(chains, o.runAll(ctx, log, target.Deployers, plan.Deploy, opDeploy)...)
	for _, c := range plan.Untouched {
		log.Info(output.FormatComponentLine(c.Name, c.Artifact.String(), output.StatusUntouched))
	}

	result, err := aggregate(chains, results...)
	if !result.Applied() {
		log.Warn("deployment failed, installed state unchanged", "version", version)
		return result, err
	}

	rec := &inventory.Record{
		Name:       name,
		Version:    version,
		Requires:   target.Structure.Requires,
		Components: targetComponents,
	}
	if prev != nil {
		rec.Index, rec.Changes = prev.Index, prev.Changes
	}
	id, change := inventory.PrepareChange(name, version, inventory.ActionDeploy, targetComponents)
	change.Result = result
	change.RunID = runID
	change.Deployed = names(plan.Deploy)
	change.Undeployed = names(plan.Undeploy)
	rec.AddChange(id, change, o.opts.MaxHistory)
	if err := o.opts.Store.Put(rec); err != nil {
		return product.Failed, err
	}
	return result, nil
}

// Undeploy removes every installed component of name, last declared first.
func (o *Orchestrator) Undeploy(ctx context.Context, name string) (product.Result, error) {
	log := output.ProductLogger(name)

	prev, err := o.installed(name)
	if err != nil {
		return product.Failed, err
	}

	plan := Diff(prev.Components, nil)
	reg := o.installedRegistry(ctx, log, prev)
	result, err := aggregate(o.runAll(ctx, log, reg, plan.Undeploy, opUndeploy))
	if !result.Applied() {
		log.Warn("undeploy failed, installed state unchanged", "version", prev.Version)
		return result, err
	}

	if err := o.opts.Store.Delete(name); err != nil {
		return product.Failed, err
	}
	return result, nil
}

// Start runs the start operation of every installed component in declared order.
func (o *Orchestrator) Start(ctx context.Context, name string) (product.Result, error) {
	return o.lifecycle(ctx, name, opStart)
}

// Stop runs the stop operation of every installed component, last declared first.
func (o *Orchestrator) Stop(ctx context.Context, name string) (product.Result, error) {
	return o.lifecycle(ctx, name, opStop)
}

func (o *Orchestrator) lifecycle(ctx context.Context, name string, op operation) (product.Result, error) {
	log := output.ProductLogger(name)

	rec, err := o.installed(name)
	if err != nil {
		return product.Failed, err
	}
	comps := append([]inventory.Component(nil), rec.Components...)
	if op.reversed() {
		for i, j := 0, len(comps)-1; i < j; i, j = i+1, j-1 {
			comps[i], comps[j] = comps[j], comps[i]
		}
	}

	reg := o.installedRegistry(ctx, log, rec)
	return aggregate(o.runAll(ctx, log, reg, comps, op))
}

// Plan computes the changes deploying version would make, without running
// any chain. An empty version plans an undeploy.
func (o *Orchestrator) Plan(ctx context.Context, name, version string) (*Plan, error) {
	prev, err := o.opts.Store.Get(name)
	if err != nil {
		return nil, err
	}
	var previous []inventory.Component
	from := ""
	if prev != nil {
		previous, from = prev.Components, prev.Version
	}

	var target []inventory.Component
	if version != "" {
		res, err := o.opts.Resolver.Download(ctx, name, version)
		if err != nil {
			return nil, err
		}
		target = components(res)
	} else if prev == nil {
		return nil, notInstalled(name)
	}

	plan := Diff(previous, target)
	plan.Product, plan.From, plan.To = name, from, version
	return plan, nil
}

func (o *Orchestrator) installed(name string) (*inventory.Record, error) {
	rec, err := o.opts.Store.Get(name)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, notInstalled(name)
	}
	return rec, nil
}

func notInstalled(name string) error {
	return oerrors.NewNotFoundError(
		fmt.Sprintf("product %q is not installed", name),
		"",
		"Run 'prov list' to see installed products.",
	)
}

// installedRegistry returns the deployer types of the installed version.
// The archive is normally cached, so this needs no network.
func (o *Orchestrator) installedRegistry(ctx context.Context, plog *log.Logger, rec *inventory.Record) *product.Registry {
	res, err := o.opts.Resolver.Download(ctx, rec.Name, rec.Version)
	if err != nil {
		plog.Warn("installed version unavailable, using built-in deployer types", "version", rec.Version, "err", err)
		return o.opts.Base
	}
	return res.Deployers
}

// runAll runs one chain per component. Every chain runs regardless of the
// results of the others.
func (o *Orchestrator) runAll(ctx context.Context, plog *log.Logger, reg *product.Registry, comps []inventory.Component, op operation) []chainResult {
	out := make([]chainResult, 0, len(comps))
	for _, c := range comps {
		r := runChain(ctx, reg, c, op)
		out = append(out, r)

		if r.Err != nil {
			plog.Error(output.FormatComponentLine(c.Name, c.Artifact.String(), output.StatusFailed), "err", r.Err)
			continue
		}
		plog.Info(output.FormatComponentLine(c.Name, c.Artifact.String(), statusFor(op, r.Result)))
	}
	return out
}

func statusFor(op operation, r product.Result) string {
	if r == product.NeedReboot {
		return output.StatusReboot
	}
	switch op {
	case opDeploy:
		return output.StatusDeployed
	case opUndeploy:
		return output.StatusUndeployed
	case opStart:
		return output.StatusStarted
	default:
		return output.StatusStopped
	}
}

// aggregate folds chain results and extra results into the worst case.
// A FAILED outcome carries an ErrDeploymentFailed aggregate of chain errors.
func aggregate(chains []chainResult, extra ...product.Result) (product.Result, error) {
	results := append([]product.Result(nil), extra...)
	var errs []error
	for _, c := range chains {
		results = append(results, c.Result)
		if c.Err != nil {
			errs = append(errs, c.Err)
		}
	}

	result := product.Worst(results...)
	if result == product.AlreadyInstalled {
		result = product.OK
	}
	if result != product.Failed {
		return result, nil
	}
	if len(errs) == 0 {
		return result, oerrors.ErrDeploymentFailed
	}
	return result, fmt.Errorf("%w: %w", oerrors.ErrDeploymentFailed, utilerrors.NewAggregate(errs))
}

func errOrResult(err error, r product.Result) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("result %s", r)
}

func components(res *resolver.Resolution) []inventory.Component {
	out := make([]inventory.Component, 0, len(res.Structure.Components))
	for _, c := range res.Structure.Components {
		dc, _ := res.Context(c.Name)
		out = append(out, inventory.NewComponent(c, dc))
	}
	return out
}

func names(comps []inventory.Component) []string {
	out := make([]string, 0, len(comps))
	for _, c := range comps {
		out = append(out, c.Name)
	}
	return out
}
