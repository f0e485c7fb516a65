// Package scenario replays scripted user sessions against the headless
// dashboard.
package scenario

import (
	"bytes"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/iota-uz/flockdesk/pkg/serrors"
)

var ErrInvalid = serrors.NewError("SCENARIO_INVALID", "scenario file is invalid", "")

type Action string

const (
	ActionOpen    Action = "open"
	ActionClick   Action = "click"
	ActionCheck   Action = "check"
	ActionUncheck Action = "uncheck"
	ActionFill    Action = "fill"
	ActionSubmit  Action = "submit"
	ActionWait    Action = "wait"
)

// Step is one user gesture. Target is a page path for open and a CSS
// selector for every other action except wait.
type Step struct {
	Action Action              `yaml:"action" validate:"required,oneof=open click check uncheck fill submit wait"`
	Target string              `yaml:"target" validate:"required_unless=Action wait"`
	Value  string              `yaml:"value"`
	Values map[string][]string `yaml:"values"`
	// Wait pauses for this long before settling.
	Duration time.Duration `yaml:"duration" validate:"gte=0"`
	// AllowError keeps the replay going when the step fails.
	AllowError bool `yaml:"allow_error"`
}

func (s Step) String() string {
	if s.Target == "" {
		return string(s.Action)
	}
	return string(s.Action) + " " + s.Target
}

type Scenario struct {
	Name  string `yaml:"name" validate:"required"`
	Steps []Step `yaml:"steps" validate:"required,min=1,dive"`
}

var validate = validator.New()

// Parse decodes and validates a scenario document. Unknown keys are errors.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, errors.Wrapf(ErrInvalid, "decode: %v", err)
	}
	if err := validate.Struct(&sc); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+" ("+fe.Tag()+")")
			}
			return nil, errors.Wrapf(ErrInvalid, "invalid fields: %s", strings.Join(fields, ", "))
		}
		return nil, errors.Wrap(err, "validate scenario")
	}
	for i, st := range sc.Steps {
		if st.Action == ActionOpen && !strings.HasPrefix(st.Target, "/") {
			return nil, errors.Wrapf(ErrInvalid, "step %d: open target %q is not a path", i+1, st.Target)
		}
	}
	return &sc, nil
}

func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read scenario")
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return sc, nil
}
