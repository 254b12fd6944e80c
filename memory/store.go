package memory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/petasbytes/chatloop/message"
)

// ErrInvalidID is returned for conversation IDs that are empty or could
// address something other than a single conversation.
var ErrInvalidID = errors.New("memory: invalid conversation id")

// Store loads and saves whole conversations by ID. Load of an unknown ID
// returns a nil slice and no error.
type Store interface {
	Load(ctx context.Context, id string) ([]message.Message, error)
	Save(ctx context.Context, id string, msgs []message.Message) error
}

func validateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// FileStore keeps each conversation in <Dir>/<id>.json.
type FileStore struct {
	Dir string
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore { return &FileStore{Dir: dir} }

func (s *FileStore) path(id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, id+".json"), nil
}

// Load reads the conversation id. A missing file is an empty history.
func (s *FileStore) Load(ctx context.Context, id string) ([]message.Message, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	return LoadConversation(p)
}

// Save replaces the conversation id, creating Dir if needed.
func (s *FileStore) Save(ctx context.Context, id string, msgs []message.Message) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	return SaveConversation(p, msgs)
}
