package simulation

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/narrative-recall/internal/cmr"
	"github.com/nvandessel/narrative-recall/internal/config"
	"github.com/nvandessel/narrative-recall/internal/landscape"
	"github.com/nvandessel/narrative-recall/internal/logging"
	"github.com/nvandessel/narrative-recall/internal/recall"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Model names a recall model the runner can build.
type Model string

const (
	ModelLandscape Model = "landscape"
	ModelCMR       Model = "cmr"

	// ModelLandscapeCMR encodes with the landscape model first and hands its
	// learned connections to CMR as the semantic similarity matrix.
	ModelLandscapeCMR Model = "landscape-cmr"
)

// ErrUnknownModel is returned for model names outside Models().
var ErrUnknownModel = errors.New("unknown model")

// Models lists every supported model.
func Models() []Model {
	return []Model{ModelLandscape, ModelCMR, ModelLandscapeCMR}
}

// ParseModel maps a name to a Model.
func ParseModel(s string) (Model, error) {
	for _, m := range Models() {
		if string(m) == s {
			return m, nil
		}
	}
	names := make([]string, 0, len(Models()))
	for _, m := range Models() {
		names = append(names, string(m))
	}
	return "", fmt.Errorf("%w: %q (valid: %s)", ErrUnknownModel, s, strings.Join(names, ", "))
}

// Engine is the retrieval surface shared by both models.
type Engine interface {
	OutcomeProbabilities() []float64
	FreeRecall(src recall.Source, steps int) ([]int, error)
	ForceRecall(choice int) ([]int, error)
	Retrieving() bool
}

// CycleSnapshot captures engine state after one encoding step.
type CycleSnapshot struct {
	Model Model `json:"model"`
	Index int   `json:"index"`
	Cycle []int `json:"cycle"`

	// Landscape state.
	Activations []float64   `json:"activations,omitempty"`
	Connections [][]float64 `json:"connections,omitempty"`

	// CMR state.
	Context []float64 `json:"context,omitempty"`
}

// ReplayStep records the outcome distribution before one forced choice.
type ReplayStep struct {
	Position int `json:"position"`

	// Choice is the forced outcome: recall.Stop or item+1.
	Choice int `json:"choice"`

	// Probability is the chance the sampler would have drawn Choice.
	Probability   float64   `json:"probability"`
	Probabilities []float64 `json:"probabilities"`
}

// Result captures one simulated trial.
type Result struct {
	RunID     string    `json:"run_id"`
	Scenario  string    `json:"scenario"`
	Model     Model     `json:"model"`
	Seed      uint64    `json:"seed"`
	Steps     int       `json:"steps"`
	CreatedAt time.Time `json:"created_at"`

	Presentations []int `json:"presentations"`
	Recalls       []int `json:"recalls"`

	// Stopped reports whether the episode ended on a STOP outcome rather
	// than the step limit or exhaustion.
	Stopped bool `json:"stopped"`

	// Pre-retrieval landscape state.
	Activations []float64   `json:"activations,omitempty"`
	Connections [][]float64 `json:"connections,omitempty"`

	// Pre-retrieval CMR state.
	Context []float64   `json:"context,omitempty"`
	Mfc     [][]float64 `json:"mfc,omitempty"`
	Mcf     [][]float64 `json:"mcf,omitempty"`

	Cycles []CycleSnapshot `json:"cycles,omitempty"`

	Replay        []ReplayStep `json:"replay,omitempty"`
	LogLikelihood float64      `json:"log_likelihood,omitempty"`
}

// Runner builds engines from configuration and drives trials. A Runner is
// safe for concurrent use; each trial owns its engine.
type Runner struct {
	config *config.Config
	logger *slog.Logger
	events *logging.EventLogger
}

// NewRunner creates a runner. A nil cfg uses config.Default(), a nil logger
// discards output, and a nil events logger records nothing.
func NewRunner(cfg *config.Config, logger *slog.Logger, events *logging.EventLogger) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{config: cfg, logger: logger, events: events}
}

// Run encodes the scenario with the named model and samples a free-recall
// sequence of at most steps items from src. Pass recall.Unbounded for
// steps to recall until a stop is drawn or every unit is recalled.
func (r *Runner) Run(scn Scenario, model Model, src recall.Source, steps int) (*Result, error) {
	res := newResult(scn, model)
	res.Steps = steps

	engine, err := r.prepare(scn, model, res)
	if err != nil {
		return nil, err
	}

	if r.events.Tracing() {
		if err := r.tracedRecall(engine, scn.Units(), src, steps, res); err != nil {
			return res, fmt.Errorf("free recall: %w", err)
		}
	} else {
		recalls, err := engine.FreeRecall(src, steps)
		res.Recalls = recalls
		if err != nil {
			return res, fmt.Errorf("free recall: %w", err)
		}
		res.Stopped = !engine.Retrieving()

		for pos, item := range recalls {
			r.log(res, logging.EventRecall, pos, []int{item}, nil)
		}
		if res.Stopped {
			r.log(res, logging.EventStop, len(recalls), nil, nil)
		}
	}

	r.logger.Debug("trial finished",
		"run_id", res.RunID,
		"scenario", res.Scenario,
		"model", res.Model,
		"recalls", len(res.Recalls),
		"stopped", res.Stopped)
	return res, nil
}

// Replay encodes the scenario and forces sequence through the engine,
// recording the outcome probabilities before each choice and a closing
// STOP. A nil sequence replays scn.Target. LogLikelihood sums the log
// probabilities of every forced outcome.
func (r *Runner) Replay(scn Scenario, model Model, sequence []int) (*Result, error) {
	if sequence == nil {
		sequence = scn.Target
	}
	if err := recall.CheckUnits(sequence, scn.Units()); err != nil {
		return nil, fmt.Errorf("replay sequence: %w", err)
	}

	res := newResult(scn, model)
	res.Steps = len(sequence)

	engine, err := r.prepare(scn, model, res)
	if err != nil {
		return nil, err
	}
	if _, err := engine.ForceRecall(recall.NoChoice); err != nil {
		return nil, fmt.Errorf("opening episode: %w", err)
	}

	for pos, item := range sequence {
		p := engine.OutcomeProbabilities()
		r.record(res, pos, item+1, p[item+1], p)
		r.log(res, logging.EventRecall, pos, []int{item}, p)

		recalls, err := engine.ForceRecall(item + 1)
		res.Recalls = recalls
		if err != nil {
			return res, fmt.Errorf("replay position %d: %w", pos, err)
		}
	}

	// The sampler falls back to STOP for any draw past the item mass, so
	// the effective stop chance is whatever the items leave.
	p := engine.OutcomeProbabilities()
	r.record(res, len(sequence), recall.Stop, 1-floats.Sum(p[1:]), p)
	r.log(res, logging.EventStop, len(sequence), nil, p)
	if _, err := engine.ForceRecall(recall.Stop); err != nil {
		return res, fmt.Errorf("closing episode: %w", err)
	}
	res.Stopped = true

	r.logger.Debug("replay finished",
		"run_id", res.RunID,
		"scenario", res.Scenario,
		"model", res.Model,
		"log_likelihood", res.LogLikelihood)
	return res, nil
}

// tracedRecall samples like FreeRecall, drawing once per step from src,
// but logs the outcome distribution each choice was drawn from.
func (r *Runner) tracedRecall(engine Engine, units int, src recall.Source, steps int, res *Result) error {
	if _, err := engine.ForceRecall(recall.NoChoice); err != nil {
		return err
	}
	target := units
	if steps >= 0 && steps < units {
		target = steps
	}

	sampler := recall.NewSampler(src)
	for len(res.Recalls) < target {
		p := engine.OutcomeProbabilities()
		choice := sampler.Sample(p)
		if choice == recall.Stop {
			r.log(res, logging.EventStop, len(res.Recalls), nil, p)
			if _, err := engine.ForceRecall(recall.Stop); err != nil {
				return err
			}
			break
		}
		r.log(res, logging.EventRecall, len(res.Recalls), []int{choice - 1}, p)
		recalls, err := engine.ForceRecall(choice)
		res.Recalls = recalls
		if err != nil {
			return err
		}
	}
	res.Stopped = !engine.Retrieving()
	return nil
}

func newResult(scn Scenario, model Model) *Result {
	return &Result{
		RunID:         uuid.NewString(),
		Scenario:      scn.Name,
		Model:         model,
		CreatedAt:     time.Now().UTC(),
		Presentations: scn.Presentations(),
		Recalls:       []int{},
	}
}

func (r *Runner) record(res *Result, pos, choice int, prob float64, p []float64) {
	res.Replay = append(res.Replay, ReplayStep{
		Position:      pos,
		Choice:        choice,
		Probability:   prob,
		Probabilities: p,
	})
	// Impossible outcomes are floored so the total stays finite.
	res.LogLikelihood += math.Log(math.Max(prob, math.SmallestNonzeroFloat64))
}

func (r *Runner) log(res *Result, typ string, step int, items []int, p []float64) {
	if r.events == nil {
		return
	}
	r.events.Log(logging.Event{
		RunID:         res.RunID,
		Scenario:      res.Scenario,
		Model:         string(res.Model),
		Type:          typ,
		Step:          step,
		Items:         items,
		Probabilities: p,
	})
}

// prepare builds the engine for model and encodes the scenario into it,
// filling the pre-retrieval state of res.
func (r *Runner) prepare(scn Scenario, model Model, res *Result) (Engine, error) {
	if err := scn.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scn.Name, err)
	}

	switch model {
	case ModelLandscape:
		return r.encodeLandscape(scn, res)

	case ModelCMR:
		sim, err := scn.SimilarityMatrix()
		if err != nil {
			return nil, err
		}
		return r.encodeCMR(scn, sim, res)

	case ModelLandscapeCMR:
		if r.config.CMR.SemanticScale == 0 {
			r.logger.Warn("semantic_scale is 0; learned connections will not affect recall",
				"model", model)
		}
		l, err := r.encodeLandscape(scn, res)
		if err != nil {
			return nil, err
		}
		return r.encodeCMR(scn, l.Connections(), res)

	default:
		_, err := ParseModel(string(model))
		return nil, err
	}
}

func (r *Runner) encodeLandscape(scn Scenario, res *Result) (*landscape.Engine, error) {
	conn, err := scn.ConnectivityMatrix()
	if err != nil {
		return nil, err
	}
	e, err := landscape.New(conn, r.config.Landscape, r.config.Choice)
	if err != nil {
		return nil, fmt.Errorf("building landscape engine: %w", err)
	}

	for i, cycle := range scn.Cycles {
		if err := e.Experience([][]int{cycle}); err != nil {
			return nil, fmt.Errorf("cycle %d: %w", i, err)
		}
		r.log(res, logging.EventExperience, i, cycle, nil)
		if scn.TraceCycles {
			res.Cycles = append(res.Cycles, CycleSnapshot{
				Model:       ModelLandscape,
				Index:       i,
				Cycle:       append([]int(nil), cycle...),
				Activations: e.Activations(),
				Connections: recall.Rows(e.Connections()),
			})
		}
	}

	res.Activations = e.Activations()
	res.Connections = recall.Rows(e.Connections())
	return e, nil
}

func (r *Runner) encodeCMR(scn Scenario, similarities mat.Matrix, res *Result) (*cmr.Engine, error) {
	order := scn.Presentations()
	e, err := cmr.New(scn.Units(), len(order), similarities, r.config.CMR, r.config.Choice)
	if err != nil {
		return nil, fmt.Errorf("building cmr engine: %w", err)
	}

	for i, item := range order {
		if err := e.Present([]int{item}); err != nil {
			return nil, fmt.Errorf("presentation %d: %w", i, err)
		}
		r.log(res, logging.EventExperience, i, []int{item}, nil)
		if scn.TraceCycles {
			res.Cycles = append(res.Cycles, CycleSnapshot{
				Model:   ModelCMR,
				Index:   i,
				Cycle:   []int{item},
				Context: e.Context(),
			})
		}
	}

	res.Context = e.Context()
	res.Mfc = recall.Rows(e.Mfc())
	res.Mcf = recall.Rows(e.Mcf())
	return e, nil
}

// Serial event types of a trial in long format.
const (
	EventStudy  = "study"
	EventRecall = "recall"
)

// SerialEvent is one study or recall event by serial position.
type SerialEvent struct {
	Type     string `json:"type"`
	Position int    `json:"position"`
	Item     int    `json:"item"`
}

// SerialEvents flattens the trial into study events followed by recall
// events.
func (res *Result) SerialEvents() []SerialEvent {
	events := make([]SerialEvent, 0, len(res.Presentations)+len(res.Recalls))
	for pos, item := range res.Presentations {
		events = append(events, SerialEvent{Type: EventStudy, Position: pos, Item: item})
	}
	for pos, item := range res.Recalls {
		events = append(events, SerialEvent{Type: EventRecall, Position: pos, Item: item})
	}
	return events
}
