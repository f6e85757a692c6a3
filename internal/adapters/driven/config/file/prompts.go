package file

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

//go:embed defaults
var defaultFS embed.FS

const promptExt = ".txt"

// PromptStore serves prompt templates from a user-editable directory.
// Missing or malformed files fall back to the built-in templates.
// The directory is seeded lazily on the first Load.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	seedOnce  sync.Once
	seedErr   error
}

// NewPromptStore creates a store rooted at promptDir (default ~/.sanctum/prompts).
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".sanctum", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// defaultPrompt returns the built-in template for name.
func defaultPrompt(name string) (string, bool) {
	data, err := defaultFS.ReadFile("defaults/" + name + promptExt)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// Load returns the template for name.
func (s *PromptStore) Load(name string) (string, error) {
	s.seedOnce.Do(s.seed)

	s.mu.RLock()
	prompt, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return prompt, nil
	}

	prompt, err := s.resolve(name)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

// resolve prefers the user's file when it is readable and has exactly one
// %s placeholder.
func (s *PromptStore) resolve(name string) (string, error) {
	builtin, hasBuiltin := defaultPrompt(name)

	if s.seedErr == nil {
		data, err := os.ReadFile(filepath.Join(s.promptDir, name+promptExt))
		switch {
		case err == nil:
			prompt := strings.TrimSpace(string(data))
			n := strings.Count(prompt, "%s")
			if n == 1 || !hasBuiltin {
				return prompt, nil
			}
			logger.Warn("Prompt %s has %d %%s placeholders, want 1; using the built-in prompt", name, n)
		case !errors.Is(err, fs.ErrNotExist):
			logger.Warn("Reading prompt %s: %v", name, err)
		}
	}

	if hasBuiltin {
		return builtin, nil
	}
	if s.seedErr != nil {
		return "", fmt.Errorf("load prompt %q: %w", name, s.seedErr)
	}
	return "", fmt.Errorf("load prompt %q: %w", name, fs.ErrNotExist)
}

// Reload clears the cache so edited files are picked up.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// seed copies every built-in file that does not exist yet.
func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	entries, err := defaultFS.ReadDir("defaults")
	if err != nil {
		s.seedErr = fmt.Errorf("read built-in prompts: %w", err)
		return
	}
	for _, e := range entries {
		path := filepath.Join(s.promptDir, e.Name())
		if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		data, err := defaultFS.ReadFile("defaults/" + e.Name())
		if err != nil {
			s.seedErr = fmt.Errorf("read built-in %s: %w", e.Name(), err)
			return
		}
		if err := os.WriteFile(path, data, 0600); err != nil {
			s.seedErr = fmt.Errorf("write %s: %w", e.Name(), err)
			return
		}
	}
}
