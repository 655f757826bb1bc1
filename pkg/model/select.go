package model

import (
	"path"

	"github.com/pipeship/pipeship/pkg/errors"
	"github.com/spf13/afero"
)

// Export modes control which tasks are handed to a backend.
const (
	// ModeIncremental skips tasks whose product is already up to date
	ModeIncremental = "incremental"

	// ModeRegular submits every task, letting the backend skip work
	ModeRegular = "regular"

	// ModeForce submits every task and forces execution
	ModeForce = "force"
)

// ErrInvalidMode indicates an unknown export mode
var ErrInvalidMode = errors.New("mode must be one of: incremental, regular, force")

// Plan is the outcome of task selection: the tasks to submit and the
// dependency edges among them.
type Plan struct {
	Spec  *Spec
	Graph Graph
	Mode  string
}

// Force reports whether backends must force task execution
func (p *Plan) Force() bool {
	return p.Mode == ModeForce
}

// Empty reports whether there is nothing to submit
func (p *Plan) Empty() bool {
	return len(p.Graph) == 0
}

// Select filters the spec's tasks according to mode.
//
// Incremental selection is local: a task is considered up to date when
// its product exists under root and is not older than its source.
// Regular and force modes keep every task.
func (s *Spec) Select(fs afero.Fs, root, mode string) (*Plan, error) {
	switch mode {
	case ModeRegular, ModeForce:
		return &Plan{Spec: s, Graph: s.Graph(), Mode: mode}, nil
	case ModeIncremental:
	default:
		return nil, ErrInvalidMode.WrapMessage("got %q", mode)
	}

	keep := make(map[string]bool, len(s.Tasks))
	for _, t := range s.Tasks {
		if !s.upToDate(fs, root, t) {
			keep[t.Name] = true
		}
	}
	return &Plan{Spec: s, Graph: s.Graph().Restrict(keep), Mode: mode}, nil
}

func (s *Spec) upToDate(fs afero.Fs, root string, t Task) bool {
	if t.Product == "" {
		return false
	}
	product, err := fs.Stat(path.Join(root, t.Product))
	if err != nil {
		return false
	}
	source, err := fs.Stat(path.Join(root, t.Source))
	if err != nil {
		return false
	}
	return !product.ModTime().Before(source.ModTime())
}
