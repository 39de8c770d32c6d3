// Package reporter implements a probing model that maps paired hidden-state
// representations to scalar credences, trained without ground-truth labels
// by an internal-consistency objective.
package reporter

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ethanedwards/elk/losses"
)

// Error taxonomy. Callers can match these with errors.Is.
var (
	// ErrInvalidConfig marks a configuration that can never produce a
	// usable reporter (unknown optimizer, unknown init scheme, spherical
	// init on a multi-layer probe). Never retried.
	ErrInvalidConfig = errors.New("invalid reporter configuration")

	// ErrInvalidArgument marks bad call inputs (supervised weight without
	// labels, more labels than rows). The caller must fix its inputs.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFinite marks a fit whose best loss across all restarts was
	// NaN or infinite; no restart produced a usable model.
	ErrNotFinite = errors.New("non-finite loss")
)

// LossTerm is one parsed entry of the loss specification.
type LossTerm struct {
	Name string
	Coef float64
}

// ReporterConfig describes how to build and fit a reporter. It is read-only
// after NewReporter validates it; the derived loss terms are computed once.
type ReporterConfig struct {
	// Activation is the hidden activation: "gelu", "relu" or "swish".
	Activation string `yaml:"activation"`
	// Bias enables bias terms in the affine layers.
	Bias bool `yaml:"bias"`
	// HiddenSize is the hidden width; 0 derives 4*inFeatures/3.
	HiddenSize int `yaml:"hidden_size"`
	// Init selects the restart initialization scheme: "default", "pca",
	// "spherical" or "zero".
	Init string `yaml:"init"`
	// Loss lists weighted loss terms as "coef*name" strings.
	Loss []string `yaml:"loss"`
	// Normalization selects the per-group statistics transform: "full"
	// (center and scale, the default) or "meanonly" (center only).
	Normalization string `yaml:"normalization"`
	// NumLayers is the number of affine layers in the probe.
	NumLayers int `yaml:"num_layers"`
	// PreLN prepends a non-affine LayerNorm to the probe stack.
	PreLN bool `yaml:"pre_ln"`
	// SupervisedWeight blends a supervised BCE term into the loss.
	SupervisedWeight float64 `yaml:"supervised_weight"`

	// LR is the Adam learning rate. Ignored by the LBFGS driver.
	LR float64 `yaml:"lr"`
	// NumEpochs is the per-restart epoch (or LBFGS iteration) budget.
	NumEpochs int `yaml:"num_epochs"`
	// NumTries is the number of randomized restarts per fit.
	NumTries int `yaml:"num_tries"`
	// Optimizer selects the training driver: "adam" or "lbfgs".
	Optimizer string `yaml:"optimizer"`
	// WeightDecay is the decoupled weight decay / L2 penalty.
	WeightDecay float64 `yaml:"weight_decay"`

	// Verbose prints per-restart progress during Fit.
	Verbose bool `yaml:"verbose"`

	lossTerms []LossTerm
}

// DefaultConfig returns the standard reporter configuration.
func DefaultConfig() *ReporterConfig {
	return &ReporterConfig{
		Activation:       "gelu",
		Bias:             true,
		Init:             "default",
		Loss:             []string{"1.0*ccs"},
		Normalization:    "full",
		NumLayers:        1,
		SupervisedWeight: 0.0,
		LR:               1e-2,
		NumEpochs:        1000,
		NumTries:         10,
		Optimizer:        "lbfgs",
		WeightDecay:      0.01,
	}
}

// LoadConfig reads a YAML reporter configuration from path, filling unset
// fields from DefaultConfig.
func LoadConfig(path string) (*ReporterConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// ParseLossSpec parses "coef*name" strings into ordered loss terms. The
// registry decides which names are valid.
func ParseLossSpec(spec []string, registry losses.Registry) ([]LossTerm, error) {
	if len(spec) == 0 {
		return nil, fmt.Errorf("%w: empty loss specification", ErrInvalidConfig)
	}
	terms := make([]LossTerm, 0, len(spec))
	for _, s := range spec {
		parts := strings.SplitN(s, "*", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("%w: loss term %q is not of the form \"coef*name\"", ErrInvalidConfig, s)
		}
		coef, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: loss term %q has a bad coefficient: %v", ErrInvalidConfig, s, err)
		}
		if coef < 0 {
			return nil, fmt.Errorf("%w: loss term %q has a negative coefficient", ErrInvalidConfig, s)
		}
		name := parts[1]
		if _, ok := registry[name]; !ok {
			return nil, fmt.Errorf("%w: unknown loss term %q", ErrInvalidConfig, name)
		}
		terms = append(terms, LossTerm{Name: name, Coef: coef})
	}
	return terms, nil
}

// CanonicalLoss serializes loss terms back into "coef*name" strings, so a
// parsed configuration round-trips stably.
func CanonicalLoss(terms []LossTerm) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = fmt.Sprintf("%g*%s", t.Coef, t.Name)
	}
	return out
}

// LossTerms returns the parsed loss specification. Empty before the config
// has been attached to a reporter.
func (c *ReporterConfig) LossTerms() []LossTerm {
	out := make([]LossTerm, len(c.lossTerms))
	copy(out, c.lossTerms)
	return out
}

// finalize validates the config against the registry and derives the loss
// terms. Called once by NewReporter.
func (c *ReporterConfig) finalize(registry losses.Registry) error {
	switch c.Activation {
	case "gelu", "relu", "swish":
	default:
		return fmt.Errorf("%w: unknown activation %q", ErrInvalidConfig, c.Activation)
	}
	switch c.Normalization {
	case "", "full", "meanonly":
	default:
		return fmt.Errorf("%w: unknown normalization %q", ErrInvalidConfig, c.Normalization)
	}
	if c.NumLayers < 1 {
		return fmt.Errorf("%w: num_layers must be at least 1", ErrInvalidConfig)
	}
	if c.SupervisedWeight < 0 || c.SupervisedWeight > 1 {
		return fmt.Errorf("%w: supervised_weight must be in [0, 1]", ErrInvalidConfig)
	}
	if c.NumTries < 1 {
		return fmt.Errorf("%w: num_tries must be at least 1", ErrInvalidConfig)
	}
	terms, err := ParseLossSpec(c.Loss, registry)
	if err != nil {
		return err
	}
	c.lossTerms = terms
	c.Loss = CanonicalLoss(terms)
	return nil
}
