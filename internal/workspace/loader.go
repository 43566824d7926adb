package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// SystemPromptFilename is the file the Session Driver reads at the start of
// every session to build the model's system message.
const SystemPromptFilename = "SYSTEM_PROMPT.md"

// LoadSystemPrompt reads <root>/SYSTEM_PROMPT.md fresh from disk.
//
// The content is never cached: operators editing SYSTEM_PROMPT.md between
// Outer Loop sessions expect the next session to pick up the change.
// A missing file is a startup error rather than an empty-string default,
// since an agent with no system prompt is almost certainly a
// misconfiguration rather than an intentional choice.
func LoadSystemPrompt(root string) (string, error) {
	path := filepath.Join(root, SystemPromptFilename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s not found in workspace %s", SystemPromptFilename, root)
		}
		return "", fmt.Errorf("read %s: %w", SystemPromptFilename, err)
	}

	return string(data), nil
}
