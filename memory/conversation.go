package memory

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/petasbytes/chatloop/message"
)

// LoadConversation reads the conversation stored at path. A missing file is an
// empty conversation.
func LoadConversation(path string) ([]message.Message, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var msgs []message.Message
	if err := json.Unmarshal(b, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SaveConversation writes msgs to path, creating parent directories. The file
// is replaced atomically so a crash never leaves half a conversation.
func SaveConversation(path string, msgs []message.Message) error {
	b, err := json.MarshalIndent(msgs, "", " ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
