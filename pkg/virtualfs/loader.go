package virtualfs

import (
	"github.com/antibyte/cpcrun/pkg/logger"
	"github.com/antibyte/cpcrun/pkg/runloop"
)

// Loader reads programs for the run loop. The read happens on its own
// goroutine; the result is handed back through post, which must run the
// function on the run loop's goroutine.
type Loader struct {
	fs    *VFS
	owner string
	post  func(func()) error
}

// NewLoader returns a loader for the programs of owner.
func NewLoader(fs *VFS, owner string, post func(func()) error) *Loader {
	return &Loader{fs: fs, owner: owner, post: post}
}

// Load implements runloop.FileLoader.
func (l *Loader) Load(req runloop.FileRequest, done func(string, error)) {
	go func() {
		text, err := l.fs.ReadFile(l.owner, req.Name)
		if postErr := l.post(func() { done(text, err) }); postErr != nil {
			logger.Warn(logger.AreaFileLoad, "result of %s %q lost: %v", req.Command, req.Name, postErr)
		}
	}()
}
